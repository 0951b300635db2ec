package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/forge"
	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

// Server wraps the review pipeline and history store and exposes them as
// MCP tools.
type Server struct {
	store      store.Store
	engine     engine.Engine
	fetcherFor func(forge.Platform) (forge.Fetcher, error)
}

// NewServer creates the MCP server wrapper. fetcherFor constructs a forge
// client per call so each tool invocation can pick GitHub or GitLab.
func NewServer(st store.Store, eng engine.Engine, fetcherFor func(forge.Platform) (forge.Fetcher, error)) *Server {
	return &Server{
		store:      st,
		engine:     eng,
		fetcherFor: fetcherFor,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("cr", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.reviewCodeTool())
	srv.AddTool(s.reviewPRTool())
	srv.AddTool(s.historyTool())
	srv.AddTool(s.clearHistoryTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// cr_review_code
func (s *Server) reviewCodeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_review_code",
		mcp.WithDescription("Review a pasted code snippet. Returns the structured report as JSON: a summary, a list of issues (severity, type, file, lines, description, fix suggestion), corrected code, and the 0-100 health score. Snippet reviews are never recorded in history."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code or diff to review")),
		mcp.WithString("mode", mcp.Description("Review mode: quick (single pass) or deep (parallel specialist agents plus synthesis). Default: quick")),
		mcp.WithString("agents", mcp.Description("Comma-separated specialist agents for deep mode: security, performance, readability, documentation, error-handling. Default: all")),
	)
	return tool, s.handleReviewCode
}

func (s *Server) handleReviewCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}

	mode, agents, errResult := reviewOptions(request)
	if errResult != nil {
		return errResult, nil
	}

	result, err := review.New(s.engine, nil).Review(ctx, models.ReviewRequest{
		Title:  models.PasteTitle,
		Body:   models.PasteBody,
		Code:   code,
		Mode:   mode,
		Agents: agents,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	return reviewResultText(result, false)
}

// cr_review_pr
func (s *Server) reviewPRTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_review_pr",
		mcp.WithDescription("Fetch a pull or merge request and review its diff. Returns the structured report as JSON with the 0-100 health score. Successful reviews are recorded in history unless save=false."),
		mcp.WithString("pr", mcp.Required(), mcp.Description("Pull request reference in owner/repo#number form")),
		mcp.WithString("platform", mcp.Description("Hosting platform: github or gitlab. Default: github")),
		mcp.WithString("mode", mcp.Description("Review mode: quick or deep. Default: quick")),
		mcp.WithString("agents", mcp.Description("Comma-separated specialist agents for deep mode. Default: all")),
		mcp.WithString("save", mcp.Description("Set to false to skip recording the review in history")),
	)
	return tool, s.handleReviewPR
}

func (s *Server) handleReviewPR(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("pr")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: pr"), nil
	}
	owner, repo, number, err := forge.ParseRef(ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	platform, err := forge.ParsePlatform(request.GetString("platform", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode, agents, errResult := reviewOptions(request)
	if errResult != nil {
		return errResult, nil
	}

	fetcher, err := s.fetcherFor(platform)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build %s client: %v", platform, err)), nil
	}

	pr, err := fetcher.FetchPR(ctx, owner, repo, number)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch pull request: %v", err)), nil
	}
	diff, err := fetcher.FetchDiff(ctx, owner, repo, number)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch diff: %v", err)), nil
	}

	result, err := review.New(s.engine, nil).Review(ctx, models.ReviewRequest{
		Title:  pr.Title,
		Body:   pr.Body,
		Code:   diff,
		Mode:   mode,
		Agents: agents,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	saved := false
	if !strings.EqualFold(request.GetString("save", ""), "false") {
		entry := &models.HistoryEntry{
			Owner:    owner,
			Repo:     repo,
			PRNumber: number,
			Result:   *result,
		}
		if err := s.store.Append(ctx, entry); err != nil {
			slog.Warn("failed to save review history", "pr", ref, "error", err)
		} else {
			saved = true
		}
	}

	return reviewResultText(result, saved)
}

// cr_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_history",
		mcp.WithDescription("List recorded reviews in chronological order. Returns a JSON array of entries with timestamp, pull request reference, health score, issue count, and summary."),
		mcp.WithString("limit", mcp.Description("Return only the most recent N entries")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if raw := request.GetString("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid limit: %q (want a positive integer)", raw)), nil
		}
		limit = n
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	type entryOut struct {
		Timestamp   string `json:"timestamp"`
		PR          string `json:"pr"`
		HealthScore int    `json:"health_score"`
		Issues      int    `json:"issues"`
		Summary     string `json:"summary"`
	}

	out := make([]entryOut, len(entries))
	for i, e := range entries {
		out[i] = entryOut{
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			PR:          e.PRRef(),
			HealthScore: health.Score(e.Result.Issues),
			Issues:      len(e.Result.Issues),
			Summary:     e.Result.Summary,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// cr_clear_history
func (s *Server) clearHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("cr_clear_history",
		mcp.WithDescription("Delete all recorded review history. Returns the number of entries removed."),
	)
	return tool, s.handleClearHistory
}

func (s *Server) handleClearHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear history: %v", err)), nil
	}

	data, err := json.Marshal(map[string]any{"cleared": len(entries)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// reviewOptions reads the mode and agents parameters shared by both review
// tools.
func reviewOptions(request mcp.CallToolRequest) (models.ReviewMode, []models.AgentKind, *mcp.CallToolResult) {
	mode, err := models.ParseMode(request.GetString("mode", ""))
	if err != nil {
		return "", nil, mcp.NewToolResultError(err.Error())
	}
	agents, err := models.ParseAgentList(request.GetString("agents", ""))
	if err != nil {
		return "", nil, mcp.NewToolResultError(err.Error())
	}
	return mode, agents, nil
}

// reviewResultText marshals a review result with its health score.
func reviewResultText(result *models.ReviewResult, saved bool) (*mcp.CallToolResult, error) {
	out := map[string]any{
		"result":       result,
		"health_score": health.Score(result.Issues),
		"saved":        saved,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
