package engine

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/cr/internal/models"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 8192
)

// Anthropic is the alternative engine, backed by the official SDK. The
// API has no responseMimeType equivalent, so FormatJSON is enforced with
// a system prompt and the shared fence-strip + parse path.
type Anthropic struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic engine from cfg. An empty APIKey is
// allowed: the SDK falls back to ANTHROPIC_API_KEY.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	client := anthropic.NewClient(opts...)
	return &Anthropic{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

const anthropicJSONSystem = `You are a code review engine. Respond with a single valid JSON document and nothing else: no markdown fencing, no prose before or after the JSON.`

// Generate sends one prompt and returns the model's answer.
func (a *Anthropic) Generate(ctx context.Context, prompt string, format Format) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if format == FormatJSON {
		params.System = []anthropic.TextBlockParam{{Text: anthropicJSONSystem}}
	}

	msg, err := a.api.Messages.New(ctx, params)
	if err != nil {
		return nil, &models.TransportError{Service: "anthropic", Err: fmt.Errorf("anthropic API call: %w", err)}
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &models.MalformedResponseError{Reason: "no text content in engine response"}
	}

	if format == FormatJSON {
		parsed, err := parseResult(text)
		if err != nil {
			return nil, err
		}
		return &Response{Result: parsed}, nil
	}
	return &Response{Text: text}, nil
}
