package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joescharf/cr/internal/models"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiTimeout = 180 * time.Second
)

// Gemini is the default engine: a direct REST client for the Google
// generative language API. One attempt per call, no retry, no backoff.
// A failed specialist call degrades the deep review immediately instead
// of stalling the whole fan-out.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini engine from cfg, applying defaults for
// model, base URL and timeout.
func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not set (config engine.api_key or GEMINI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultGeminiTimeout
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends one prompt and returns the model's answer. FormatJSON
// requests strict JSON output via responseMimeType and parses the text
// into a ReviewResult.
func (g *Gemini) Generate(ctx context.Context, prompt string, format Format) (*Response, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: prompt}},
			},
		},
	}
	if format == FormatJSON {
		body.GenerationConfig = &geminiGenConfig{ResponseMimeType: "application/json"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &models.TransportError{Service: "gemini", Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &models.TransportError{Service: "gemini", Err: err}
	}

	if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
		return nil, &models.AuthError{Service: "gemini", Status: httpResp.StatusCode}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &models.TransportError{
			Service: "gemini",
			Status:  httpResp.StatusCode,
			Err:     fmt.Errorf("%s", truncate(respBody, 512)),
		}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &models.MalformedResponseError{Reason: "engine response did not parse", Err: err}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &models.MalformedResponseError{Reason: "no candidates in engine response"}
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
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

// truncate keeps error messages readable when the API returns an HTML or
// multi-kilobyte error body.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}
