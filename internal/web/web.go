// Package web serves the browser UI: a review form, the rendered report,
// and the quality dashboard. Pages are rendered server-side from embedded
// templates; charts are inline SVG computed in Go.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/forge"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the HTML review UI.
type Handler struct {
	store      store.Store
	engine     engine.Engine
	fetcherFor func(forge.Platform) (forge.Fetcher, error)
	tmpl       *template.Template
}

// NewHandler parses the embedded templates and wires the handler's
// dependencies. fetcherFor builds a platform-specific PR fetcher; it is a
// constructor rather than a fixed client so each request can pick GitHub or
// GitLab from the form.
func NewHandler(st store.Store, eng engine.Engine, fetcherFor func(forge.Platform) (forge.Fetcher, error)) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{store: st, engine: eng, fetcherFor: fetcherFor, tmpl: tmpl}, nil
}

// Router returns an http.Handler for the UI routes.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /review", h.reviewSubmit)
	mux.HandleFunc("GET /dashboard", h.dashboard)
	mux.HandleFunc("POST /dashboard/clear", h.clearHistory)

	return mux
}

type agentOption struct {
	ID      string
	Name    string
	Checked bool
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	all := models.AllAgents()
	opts := make([]agentOption, 0, len(all))
	for _, a := range all {
		opts = append(opts, agentOption{ID: string(a), Name: a.DisplayName(), Checked: true})
	}
	h.render(w, "index.html", struct{ Agents []agentOption }{Agents: opts})
}

func (h *Handler) reviewSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, "the submitted form could not be parsed")
		return
	}

	mode, err := models.ParseMode(r.FormValue("mode"))
	if err != nil {
		h.renderError(w, err.Error())
		return
	}
	agents, err := models.ParseAgentList(strings.Join(r.Form["agents"], ","))
	if err != nil {
		h.renderError(w, err.Error())
		return
	}

	req := models.ReviewRequest{Mode: mode, Agents: agents}
	var entry *models.HistoryEntry

	switch r.FormValue("input_method") {
	case "paste":
		req.Title = models.PasteTitle
		req.Body = models.PasteBody
		req.Code = r.FormValue("code")

	default:
		platform, err := forge.ParsePlatform(r.FormValue("platform"))
		if err != nil {
			h.renderError(w, err.Error())
			return
		}
		owner := strings.TrimSpace(r.FormValue("owner"))
		repo := strings.TrimSpace(r.FormValue("repo"))
		number, numErr := strconv.Atoi(strings.TrimSpace(r.FormValue("number")))
		if owner == "" || repo == "" || numErr != nil || number <= 0 {
			h.renderError(w, "owner, repository, and a positive pull request number are required")
			return
		}

		fetcher, err := h.fetcherFor(platform)
		if err != nil {
			h.renderError(w, err.Error())
			return
		}
		pr, err := fetcher.FetchPR(r.Context(), owner, repo, number)
		if err != nil {
			h.renderError(w, fmt.Sprintf("could not fetch pull request metadata: %v", err))
			return
		}
		diff, err := fetcher.FetchDiff(r.Context(), owner, repo, number)
		if err != nil {
			h.renderError(w, fmt.Sprintf("could not fetch the diff: %v", err))
			return
		}

		req.Title = pr.Title
		req.Body = pr.Body
		req.Code = diff
		entry = &models.HistoryEntry{Owner: owner, Repo: repo, PRNumber: number}
	}

	result, err := review.New(h.engine, nil).Review(r.Context(), req)
	if err != nil {
		h.renderError(w, fmt.Sprintf("review failed: %v", err))
		return
	}

	saved := false
	if entry != nil {
		entry.Result = *result
		if err := h.store.Append(r.Context(), entry); err != nil {
			slog.Warn("failed to save review history", "error", err)
		} else {
			saved = true
		}
	}

	title := models.PasteTitle
	if entry != nil {
		title = entry.PRRef()
		if req.Title != "" {
			title += ": " + req.Title
		}
	}
	h.render(w, "result.html", buildResultPage(title, result, saved))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Load(r.Context())
	if err != nil {
		http.Error(w, "failed to load review history", http.StatusInternalServerError)
		return
	}
	h.render(w, "dashboard.html", buildDashboardPage(entries))
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		http.Error(w, "failed to clear review history", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, msg string) {
	h.render(w, "result.html", resultPage{Error: msg})
}

// render buffers the template output; the response body is written only
// after the whole template has executed.
func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
