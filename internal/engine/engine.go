// Package engine abstracts the generative backends that produce reviews.
// The orchestrator talks to the Engine interface only; provider selection
// happens once, in New.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/cr/internal/models"
)

// Format selects the response shape requested from the model.
type Format int

const (
	// FormatText asks for free-form prose (specialist agent passes).
	FormatText Format = iota
	// FormatJSON asks for the structured three-key review document.
	FormatJSON
)

// Response is the outcome of a generation call. Exactly one field is
// populated: Text for FormatText calls, Result for FormatJSON calls.
type Response struct {
	Text   string
	Result *models.ReviewResult
}

// Engine is a generative backend. Implementations normalize their own
// transport and parse failures into the models error types; callers never
// see a partial result alongside an error.
type Engine interface {
	Generate(ctx context.Context, prompt string, format Format) (*Response, error)
	Name() string
}

// Config selects and configures a backend. Zero values fall back to
// per-provider defaults.
type Config struct {
	Provider  string // "gemini" (default) or "anthropic"
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// New creates an engine by provider name.
func New(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "gemini", "google":
		return NewGemini(cfg)
	case "anthropic", "claude":
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown engine provider: %q", cfg.Provider)
	}
}

// stripFences removes a surrounding markdown code fence from model output.
// Structured mode usually returns bare JSON, but models still fence it
// often enough that parsing without this step is a coin flip.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// parseResult decodes model output into a ReviewResult, tolerating fences.
func parseResult(text string) (*models.ReviewResult, error) {
	cleaned := stripFences(text)
	var result models.ReviewResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, &models.MalformedResponseError{Reason: "review JSON did not parse", Err: err}
	}
	return &result, nil
}
