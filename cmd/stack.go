package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/attendance-scanner/internal/ai"
	"github.com/kozaktomas/attendance-scanner/internal/barcode"
	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/ledger/memory"
	"github.com/kozaktomas/attendance-scanner/internal/ledger/postgres"
	"github.com/kozaktomas/attendance-scanner/internal/ledger/sheets"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
	"github.com/kozaktomas/attendance-scanner/internal/regno"
	"github.com/kozaktomas/attendance-scanner/internal/roster"
	"github.com/kozaktomas/attendance-scanner/internal/roster/mariadb"
	"github.com/kozaktomas/attendance-scanner/internal/stability"
	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

// checkFunc adapts a connectivity probe to handlers.Checker.
type checkFunc func(ctx context.Context) error

func (f checkFunc) Check(ctx context.Context) error { return f(ctx) }

// stack is everything a scanning command needs, built from the environment.
type stack struct {
	cfg      *config.Config
	backend  string
	source   string // human readable ledger location, used in reports
	ledger   ledger.Ledger
	checker  checkFunc
	pipeline *pipeline.Pipeline
	reader   ai.NameReader
	closers  []func() error
}

// Close releases database connections.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
}

// buildStack wires ledger, roster, name reader and pipeline from cfg.
// With dryRun the ledger lives in memory whatever LEDGER_BACKEND says.
func buildStack(ctx context.Context, cfg *config.Config, dryRun bool) (*stack, error) {
	s := &stack{cfg: cfg}

	if err := s.openLedger(ctx, dryRun); err != nil {
		s.Close()
		return nil, err
	}

	directory, err := s.openRoster()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.reader, err = ai.New(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create name reader: %w", err)
	}

	strategy, err := vision.ParseStrategy(cfg.Detection.Strategy)
	if err != nil {
		s.Close()
		return nil, err
	}

	pcfg := pipeline.Config{
		Decoder:   barcode.NewDecoder(),
		Locator:   vision.NewLocator(strategy, cfg.Detection.MinArea),
		Extractor: regno.NewExtractor(regno.NewValidator(cfg.Identity.Prefix), regno.CorrectionsFromConfig(cfg.Corrections)),
		Gate:      stability.New(cfg.Scan.StabilityThreshold),
		Ledger:    s.ledger,
		Directory: directory,
		DebugDir:  cfg.Detection.DebugImageDir,
	}
	if s.reader != nil {
		pcfg.NameReader = s.reader
	}

	s.pipeline, err = pipeline.New(pcfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stack) openLedger(ctx context.Context, dryRun bool) error {
	cfg := s.cfg
	backend := strings.ToLower(cfg.Ledger.Backend)
	if dryRun {
		backend = "memory"
	}
	s.backend = backend

	bookOpts := []ledger.BookOption{
		ledger.WithLocation(cfg.Scan.Location),
		ledger.WithDuplicatePrevention(cfg.Scan.PreventDuplicates),
	}

	switch backend {
	case "memory":
		s.ledger = ledger.NewBook(memory.NewTable(), bookOpts...)
		s.source = "memory"

	case "sheets":
		table, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			TabName:         cfg.Sheets.TabName,
			TabPerSession:   cfg.Sheets.TabPerSession,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			CredentialsJSON: cfg.Sheets.CredentialsJSON,
		})
		if err != nil {
			return err
		}
		if err := table.Setup(ctx); err != nil {
			return fmt.Errorf("failed to prepare attendance sheet: %w", err)
		}
		fmt.Printf("Using Google Sheets ledger: %s, tab %s\n", table.Title(), table.TabName())
		s.ledger = ledger.NewBook(table, bookOpts...)
		s.checker = table.Check
		s.source = table.URL()

	case "postgres":
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(&cfg.Database)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)
		s.ledger = postgres.NewLedger(pool,
			postgres.WithLocation(cfg.Scan.Location),
			postgres.WithDuplicatePrevention(cfg.Scan.PreventDuplicates))
		s.checker = pool.Ping
		s.source = "PostgreSQL"
		fmt.Printf("Using PostgreSQL ledger\n")

	default:
		return fmt.Errorf("unknown ledger backend %q (use sheets, postgres or memory)", cfg.Ledger.Backend)
	}
	return nil
}

// openRoster chains the YAML roster and the institution database, in that
// order. It returns nil when neither is configured.
func (s *stack) openRoster() (roster.Directory, error) {
	var chain roster.Chain

	if s.cfg.Roster.File != "" {
		f, err := roster.LoadFile(s.cfg.Roster.File)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Loaded roster with %d students\n", f.Len())
		chain = append(chain, f)
	}

	if s.cfg.Roster.DatabaseURL != "" {
		dir, err := mariadb.Open(s.cfg.Roster.DatabaseURL, s.cfg.Roster.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to open roster database: %w", err)
		}
		s.closers = append(s.closers, dir.Close)
		chain = append(chain, dir)
	}

	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// check probes the ledger. Backends without a remote store always pass.
func (s *stack) check(ctx context.Context) error {
	if s.checker == nil {
		return nil
	}
	return s.checker(ctx)
}
