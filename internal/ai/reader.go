// Package ai reads the printed student name from a card image with a hosted
// vision model. It is only consulted when no roster knows the identity.
package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

//go:embed prompts/card_name.txt
var cardNamePrompt string

const (
	// maxImageSize bounds the longer side of the image sent to the model.
	maxImageSize = 1024
	maxRetries   = 3
)

// NameReader reads a display name from a rectified card image.
type NameReader interface {
	Name() string
	// ReadName returns the raw name text, or "" when the card carries no
	// legible name. The caller cleans and validates it.
	ReadName(ctx context.Context, card image.Image) (string, error)
	Usage() Usage
}

// Usage tracks token usage across calls.
type Usage struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type usageTracker struct {
	mu    sync.Mutex
	usage Usage
}

func (u *usageTracker) track(inputTokens, outputTokens int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.Requests++
	u.usage.InputTokens += int(inputTokens)
	u.usage.OutputTokens += int(outputTokens)
}

func (u *usageTracker) Usage() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}

// New creates the reader selected by NAME_READER. It returns nil when no
// reader is configured.
func New(ctx context.Context, cfg *config.Config) (NameReader, error) {
	switch cfg.NameReader.Provider {
	case "":
		return nil, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("OPENAI_TOKEN is required for the openai name reader")
		}
		return NewOpenAIReader(cfg.OpenAI.Token), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini name reader")
		}
		return NewGeminiReader(ctx, cfg.Gemini.APIKey)
	default:
		return nil, fmt.Errorf("unknown name reader %q (expected openai or gemini)", cfg.NameReader.Provider)
	}
}

type nameResponse struct {
	Name string `json:"name"`
}

// parseNameResponse accepts the model's JSON answer, tolerating a fenced code block.
func parseNameResponse(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var resp nameResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Name), nil
}

func retryMessage(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Answer only with a JSON object of the form {\"name\": \"...\"}.", err)
}
