package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/cr/internal/models"
)

// candidateReply builds the wire shape the generative API answers with.
func candidateReply(t *testing.T, texts ...string) []byte {
	t.Helper()
	parts := make([]geminiPart, 0, len(texts))
	for _, txt := range texts {
		parts = append(parts, geminiPart{Text: txt})
	}
	body, err := json.Marshal(geminiResponse{
		Candidates: []geminiCandidate{{Content: geminiContent{Role: "model", Parts: parts}}},
	})
	require.NoError(t, err)
	return body
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGemini(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return g
}

func TestGeminiGenerate_Text(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(candidateReply(t, "The code looks ", "fine."))
	})

	resp, err := g.Generate(context.Background(), "review this", FormatText)
	require.NoError(t, err)
	assert.Equal(t, "The code looks fine.", resp.Text)
	assert.Nil(t, resp.Result)

	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "review this", gotBody.Contents[0].Parts[0].Text)
	assert.Nil(t, gotBody.GenerationConfig, "text mode must not constrain the response type")
}

func TestGeminiGenerate_JSON(t *testing.T) {
	doc := `{"summary":"* ok","review_report":[{"file_path":"a.go","severity":"MINOR","issue_type":"Style","description":"d"}],"full_corrected_code":""}`

	var gotBody geminiRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(candidateReply(t, doc))
	})

	resp, err := g.Generate(context.Background(), "review this", FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "* ok", resp.Result.Summary)
	require.Len(t, resp.Result.Issues, 1)
	assert.Equal(t, models.SeverityMinor, resp.Result.Issues[0].Severity)

	require.NotNil(t, gotBody.GenerationConfig)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)
}

func TestGeminiGenerate_JSONFenced(t *testing.T) {
	// Models fence their output despite responseMimeType often enough
	// that parsing must tolerate it.
	doc := "```json\n{\"summary\":\"s\",\"review_report\":[]}\n```"
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(candidateReply(t, doc))
	})

	resp, err := g.Generate(context.Background(), "p", FormatJSON)
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "s", resp.Result.Summary)
	assert.Empty(t, resp.Result.Issues)
}

func TestGeminiGenerate_Errors(t *testing.T) {
	t.Run("auth status maps to AuthError", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})
			_, err := g.Generate(context.Background(), "p", FormatText)
			var authErr *models.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, status, authErr.Status)
			assert.Equal(t, "gemini", authErr.Service)
		}
	})

	t.Run("server error maps to TransportError", func(t *testing.T) {
		g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		_, err := g.Generate(context.Background(), "p", FormatText)
		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusServiceUnavailable, transportErr.Status)
	})

	t.Run("empty candidates", func(t *testing.T) {
		g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		})
		_, err := g.Generate(context.Background(), "p", FormatText)
		var malformed *models.MalformedResponseError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("JSON mode with unparsable text", func(t *testing.T) {
		g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(candidateReply(t, "sorry, I cannot do that"))
		})
		_, err := g.Generate(context.Background(), "p", FormatJSON)
		var malformed *models.MalformedResponseError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("connection refused maps to TransportError", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		g, err := NewGemini(Config{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
		require.NoError(t, err)
		_, err = g.Generate(context.Background(), "p", FormatText)
		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Zero(t, transportErr.Status)
	})
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNew_ProviderSelection(t *testing.T) {
	eng, err := New(Config{Provider: "", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", eng.Name())

	eng, err = New(Config{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", eng.Name())

	_, err = New(Config{Provider: "bard", APIKey: "k"})
	require.Error(t, err)
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json untouched", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"language tag fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n  ", `{"a":1}`},
		{"no closing fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripFences(tc.in))
		})
	}
}
