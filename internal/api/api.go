// Package api exposes reviews, history, and dashboard aggregates as a
// JSON REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/forge"
	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store      store.Store
	engine     engine.Engine
	fetcherFor func(forge.Platform) (forge.Fetcher, error)
}

// NewServer creates a new API server. fetcherFor builds a platform-specific
// pull request fetcher, letting each request choose GitHub or GitLab.
func NewServer(st store.Store, eng engine.Engine, fetcherFor func(forge.Platform) (forge.Fetcher, error)) *Server {
	return &Server{store: st, engine: eng, fetcherFor: fetcherFor}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.liveness)

	mux.HandleFunc("POST /api/v1/reviews", s.createReview)
	mux.HandleFunc("GET /api/v1/history", s.listHistory)
	mux.HandleFunc("DELETE /api/v1/history", s.clearHistory)
	mux.HandleFunc("GET /api/v1/dashboard", s.dashboard)

	return logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Reviews ---

// createReviewRequest is the JSON body for POST /api/v1/reviews. Pasted code
// takes precedence when both a code snippet and PR coordinates are present.
type createReviewRequest struct {
	Platform string   `json:"platform"`
	Owner    string   `json:"owner"`
	Repo     string   `json:"repo"`
	Number   int      `json:"number"`
	Code     string   `json:"code"`
	Mode     string   `json:"mode"`
	Agents   []string `json:"agents"`
}

type createReviewResponse struct {
	Result      *models.ReviewResult `json:"result"`
	HealthScore int                  `json:"health_score"`
	Saved       bool                 `json:"saved"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agents, err := models.ParseAgentList(strings.Join(req.Agents, ","))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rr := models.ReviewRequest{Mode: mode, Agents: agents}
	var entry *models.HistoryEntry

	switch {
	case req.Code != "":
		rr.Title = models.PasteTitle
		rr.Body = models.PasteBody
		rr.Code = req.Code

	case req.Owner != "" && req.Repo != "" && req.Number > 0:
		platform, err := forge.ParsePlatform(req.Platform)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fetcher, err := s.fetcherFor(platform)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pr, err := fetcher.FetchPR(r.Context(), req.Owner, req.Repo, req.Number)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		diff, err := fetcher.FetchDiff(r.Context(), req.Owner, req.Repo, req.Number)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		rr.Title = pr.Title
		rr.Body = pr.Body
		rr.Code = diff
		entry = &models.HistoryEntry{Owner: req.Owner, Repo: req.Repo, PRNumber: req.Number}

	default:
		writeError(w, http.StatusBadRequest, "provide either code, or owner, repo, and number")
		return
	}

	result, err := review.New(s.engine, nil).Review(r.Context(), rr)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Only PR-sourced reviews are persisted; pasted snippets never are.
	saved := false
	if entry != nil {
		entry.Result = *result
		if err := s.store.Append(r.Context(), entry); err != nil {
			slog.Warn("failed to save review history", "error", err)
		} else {
			saved = true
		}
	}

	writeJSON(w, http.StatusOK, createReviewResponse{
		Result:      result,
		HealthScore: health.Score(result.Issues),
		Saved:       saved,
	})
}

// --- History ---

// historyEntry augments a stored entry with its computed health score.
type historyEntry struct {
	models.HistoryEntry
	HealthScore int `json:"health_score"`
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{HistoryEntry: e, HealthScore: health.Score(e.Result.Issues)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Dashboard ---

type dashboardResponse struct {
	Scores     []health.ScorePoint `json:"scores"`
	IssueTypes []health.TypeCount  `json:"issue_types"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Scores:     health.ScoreSeries(entries),
		IssueTypes: health.IssueTypeCounts(entries),
	})
}
