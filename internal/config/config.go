package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed corrections.yaml
var correctionsYAML []byte

type Config struct {
	Camera      CameraConfig
	Detection   DetectionConfig
	Identity    IdentityConfig
	Scan        ScanConfig
	Ledger      LedgerConfig
	Sheets      SheetsConfig
	Database    DatabaseConfig
	Roster      RosterConfig
	NameReader  NameReaderConfig
	OpenAI      OpenAIConfig
	Gemini      GeminiConfig
	Mail        MailConfig
	Web         WebConfig
	Corrections CorrectionsConfig
}

type CameraConfig struct {
	Index  int // device index passed to the capture backend (default 0)
	Width  int // requested frame width (default 1920)
	Height int // requested frame height (default 1080)
	FPS    int // requested frame rate (default 30)
}

type DetectionConfig struct {
	Strategy      string // "edges" (default) or "adaptive"
	MinArea       int    // minimum contour area in pixels for a card candidate (default 8000)
	DebugImageDir string // when set, rectified card regions are written here
}

type IdentityConfig struct {
	Prefix string // registration number prefix (default URK)
}

type ScanConfig struct {
	StabilityThreshold int           // consecutive identical reads before acceptance (default 3)
	Interval           time.Duration // minimum spacing between processing task starts (default 1s)
	Cooldown           time.Duration // pause after an accepted scan (default 2s)
	PreventDuplicates  bool          // one row per identity per day (default true)
	Location           *time.Location
}

type LedgerConfig struct {
	Backend string // "sheets" (default), "postgres" or "memory"
}

type SheetsConfig struct {
	SpreadsheetID   string
	TabName         string // default ANT
	TabPerSession   bool   // append a timestamp suffix to the tab name on every start
	CredentialsFile string // service account JSON on disk
	CredentialsJSON string // service account JSON inline (takes precedence)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RosterConfig struct {
	File        string // YAML file mapping registration numbers to names
	DatabaseURL string // MariaDB DSN for the institution student table
	Table       string // table holding the roster (default students)
}

type NameReaderConfig struct {
	Provider string // "", "openai" or "gemini"
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type MailConfig struct {
	Server   string
	Port     int // default 587
	User     string
	Password string
	To       string
}

type WebConfig struct {
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

// Configured reports whether enough settings are present to send mail.
func (m MailConfig) Configured() bool {
	return m.Server != "" && m.User != "" && m.Password != ""
}

type CorrectionsConfig struct {
	Rules []CorrectionRule `yaml:"corrections"`
}

type CorrectionRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
// Returns the default value if the env var is unset or not a recognized boolean.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envLocation resolves an IANA zone name. An unset variable means the local zone.
func envLocation(key string) (*time.Location, error) {
	name := os.Getenv(key)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, name, err)
	}
	return loc, nil
}

// ParseCorrections decodes a correction table document.
func ParseCorrections(data []byte) (CorrectionsConfig, error) {
	var c CorrectionsConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return CorrectionsConfig{}, fmt.Errorf("failed to parse corrections: %w", err)
	}
	for i, r := range c.Rules {
		if r.From == "" {
			return CorrectionsConfig{}, fmt.Errorf("correction rule %d has empty 'from'", i)
		}
	}
	return c, nil
}

// LoadCorrections returns the embedded correction table, or the table read
// from path when path is not empty.
func LoadCorrections(path string) (CorrectionsConfig, error) {
	if path == "" {
		return ParseCorrections(correctionsYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CorrectionsConfig{}, fmt.Errorf("failed to read corrections file: %w", err)
	}
	return ParseCorrections(data)
}

// Load reads the configuration from the environment. Settings that would
// silently change recorded attendance (timezone, correction table) are
// rejected instead of replaced with defaults.
func Load() (*Config, error) {
	corrections, err := LoadCorrections(os.Getenv("CORRECTIONS_FILE"))
	if err != nil {
		if os.Getenv("CORRECTIONS_FILE") == "" {
			// This is an embedded file so this error should never happen in practice
			panic("failed to unmarshal embedded corrections.yaml: " + err.Error())
		}
		return nil, fmt.Errorf("CORRECTIONS_FILE: %w", err)
	}

	location, err := envLocation("ATTENDANCE_TIMEZONE")
	if err != nil {
		return nil, err
	}

	return &Config{
		Camera: CameraConfig{
			Index:  envIntAllowZero("CAMERA_INDEX", 0),
			Width:  envInt("CAMERA_WIDTH", 1920),
			Height: envInt("CAMERA_HEIGHT", 1080),
			FPS:    envInt("CAMERA_FPS", 30),
		},
		Detection: DetectionConfig{
			Strategy:      envString("CARD_STRATEGY", "edges"),
			MinArea:       envInt("CARD_MIN_AREA", 8000),
			DebugImageDir: os.Getenv("DEBUG_IMAGE_DIR"),
		},
		Identity: IdentityConfig{
			Prefix: strings.ToUpper(envString("REGNO_PREFIX", "URK")),
		},
		Scan: ScanConfig{
			StabilityThreshold: envInt("SCAN_STABILITY_THRESHOLD", 3),
			Interval:           time.Duration(envInt("SCAN_INTERVAL_MS", 1000)) * time.Millisecond,
			Cooldown:           time.Duration(envInt("SCAN_COOLDOWN_SECONDS", 2)) * time.Second,
			PreventDuplicates:  envBool("PREVENT_DUPLICATE_DAILY", true),
			Location:           location,
		},
		Ledger: LedgerConfig{
			Backend: envString("LEDGER_BACKEND", "sheets"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
			TabName:         envString("SHEETS_TAB_NAME", "ANT"),
			TabPerSession:   envBool("SHEETS_TAB_PER_SESSION", false),
			CredentialsFile: envString("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			File:        os.Getenv("ROSTER_FILE"),
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
			Table:       envString("ROSTER_TABLE", "students"),
		},
		NameReader: NameReaderConfig{
			Provider: strings.ToLower(os.Getenv("NAME_READER")),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Mail: MailConfig{
			Server:   os.Getenv("SMTP_SERVER"),
			Port:     envInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			To:       os.Getenv("TO_EMAIL"),
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Corrections: corrections,
	}, nil
}

// envIntAllowZero is envInt for settings where 0 is a meaningful value.
func envIntAllowZero(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
