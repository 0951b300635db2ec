package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/forge"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/store"
)

type fakeEngine struct {
	result *models.ReviewResult
	err    error
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, format engine.Format) (*engine.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if format == engine.FormatJSON {
		return &engine.Response{Result: f.result}, nil
	}
	return &engine.Response{Text: "specialist findings"}, nil
}

func (f *fakeEngine) Name() string { return "fake" }

type fakeFetcher struct{}

func (fakeFetcher) FetchPR(ctx context.Context, owner, repo string, number int) (*forge.PullRequest, error) {
	return &forge.PullRequest{Title: "Add retry loop", Body: "Retries transient failures."}, nil
}

func (fakeFetcher) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	return "--- a/main.go\n+++ b/main.go\n", nil
}

func sampleResult() *models.ReviewResult {
	return &models.ReviewResult{
		Summary: "Solid change with one injection risk.",
		Issues: []models.Issue{
			{
				FilePath:    "db.go",
				StartLine:   10,
				EndLine:     12,
				Severity:    models.SeverityCritical,
				IssueType:   "SQL Injection",
				Description: "User input is concatenated into the query.",
			},
		},
	}
}

func setupTestServer(t *testing.T, eng engine.Engine) (*Server, store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	srv := NewServer(s, eng, func(forge.Platform) (forge.Fetcher, error) {
		return fakeFetcher{}, nil
	})
	return srv, s
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateReview_PasteNotSaved(t *testing.T) {
	srv, s := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()

	body := `{"code":"package main","mode":"quick"}`
	req := httptest.NewRequest("POST", "/api/v1/reviews", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result      *models.ReviewResult `json:"result"`
		HealthScore int                  `json:"health_score"`
		Saved       bool                 `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Solid change with one injection risk.", resp.Result.Summary)
	assert.Equal(t, 90, resp.HealthScore)
	assert.False(t, resp.Saved)

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "paste reviews must never be persisted")
}

func TestCreateReview_PRSaved(t *testing.T) {
	srv, s := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()

	body := `{"platform":"github","owner":"acme","repo":"widgets","number":7,"mode":"deep","agents":["security","performance"]}`
	req := httptest.NewRequest("POST", "/api/v1/reviews", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Saved bool `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme", entries[0].Owner)
	assert.Equal(t, "widgets", entries[0].Repo)
	assert.Equal(t, 7, entries[0].PRNumber)
}

func TestCreateReview_BadRequests(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()

	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"no source", `{"mode":"quick"}`},
		{"bad mode", `{"code":"x","mode":"thorough"}`},
		{"unknown agent", `{"code":"x","mode":"deep","agents":["velocity"]}`},
		{"bad platform", `{"platform":"sourceforge","owner":"a","repo":"b","number":1,"mode":"quick"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/reviews", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateReview_EngineFailure(t *testing.T) {
	srv, s := setupTestServer(t, &fakeEngine{err: errors.New("engine unreachable")})
	router := srv.Router()

	body := `{"code":"package main","mode":"quick"}`
	req := httptest.NewRequest("POST", "/api/v1/reviews", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "engine unreachable")

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryEndpoints(t *testing.T) {
	srv, s := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		entry := &models.HistoryEntry{Owner: "acme", Repo: "widgets", PRNumber: i, Result: *sampleResult()}
		require.NoError(t, s.Append(ctx, entry))
	}

	// List
	req := httptest.NewRequest("GET", "/api/v1/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed []struct {
		Owner       string `json:"owner"`
		PRNumber    int    `json:"pr_number"`
		HealthScore int    `json:"health_score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "acme", listed[0].Owner)
	assert.Equal(t, 90, listed[0].HealthScore)

	// Clear
	req = httptest.NewRequest("DELETE", "/api/v1/history", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// List again: empty JSON array, not null
	req = httptest.NewRequest("GET", "/api/v1/history", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDashboardEndpoint(t *testing.T) {
	srv, s := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		entry := &models.HistoryEntry{Owner: "acme", Repo: "widgets", PRNumber: i, Result: *sampleResult()}
		require.NoError(t, s.Append(ctx, entry))
	}

	req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Scores []struct {
			Score int    `json:"score"`
			Ref   string `json:"ref"`
		} `json:"scores"`
		IssueTypes []struct {
			Type  string `json:"type"`
			Count int    `json:"count"`
		} `json:"issue_types"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Scores, 3)
	assert.Equal(t, 90, resp.Scores[0].Score)
	assert.Equal(t, "acme/widgets#1", resp.Scores[0].Ref)
	require.Len(t, resp.IssueTypes, 1)
	assert.Equal(t, "SQL Injection", resp.IssueTypes[0].Type)
	assert.Equal(t, 3, resp.IssueTypes[0].Count)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeEngine{result: sampleResult()})
	router := srv.Router()

	req := httptest.NewRequest("OPTIONS", "/api/v1/reviews", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
