// Package review orchestrates code reviews against a generative engine.
// Quick mode is a single structured call; deep mode fans specialist
// agents out concurrently, tolerates partial failure, and synthesizes
// the survivors' reports into the same normalized result.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/models"
)

// AgentCallback is invoked once per specialist agent as its call
// finishes, with a nil error on success. Invocations are serialized, but
// arrive in completion order, not selection order.
type AgentCallback func(agent models.AgentKind, err error)

// Orchestrator runs reviews. It is stateless between calls and safe for
// concurrent use.
type Orchestrator struct {
	engine engine.Engine

	cbMu        sync.Mutex
	onAgentDone AgentCallback
}

// New creates an orchestrator. onAgentDone may be nil.
func New(eng engine.Engine, onAgentDone AgentCallback) *Orchestrator {
	return &Orchestrator{engine: eng, onAgentDone: onAgentDone}
}

// Review validates the request and dispatches to the selected mode.
// Validation happens before any network call.
func (o *Orchestrator) Review(ctx context.Context, req models.ReviewRequest) (*models.ReviewResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Mode == models.ModeDeep {
		return o.Deep(ctx, req.Title, req.Body, req.Code, req.Agents)
	}
	return o.Quick(ctx, req.Title, req.Body, req.Code)
}

// Quick performs a single-pass review: one structured call, parsed
// directly as the final result.
func (o *Orchestrator) Quick(ctx context.Context, title, body, code string) (*models.ReviewResult, error) {
	resp, err := o.engine.Generate(ctx, BuildQuickPrompt(title, body, code), engine.FormatJSON)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// agentOutcome is one specialist's slot in the fan-out. Slots are
// pre-allocated and disjoint, so the workers share no mutable state.
type agentOutcome struct {
	agent  models.AgentKind
	report string
	err    error
}

// Deep performs a multi-agent review. Every selected agent gets its own
// free-text call; the calls run concurrently and one agent's failure
// never cancels the others. The caller blocks until all agents have
// finished. Synthesis starts only after the fan-out has fully quiesced
// and consumes exactly the successful reports; if no agent succeeded the
// operation fails with ErrAllAgentsFailed and no synthesis call is made.
func (o *Orchestrator) Deep(ctx context.Context, title, body, code string, agents []models.AgentKind) (*models.ReviewResult, error) {
	outcomes := make([]agentOutcome, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(agents))
	for i, agent := range agents {
		g.Go(func() error {
			resp, err := o.engine.Generate(gctx, BuildAgentPrompt(agent, code), engine.FormatText)
			if err != nil {
				outcomes[i] = agentOutcome{agent: agent, err: err}
			} else {
				outcomes[i] = agentOutcome{agent: agent, report: resp.Text}
			}
			o.notifyAgentDone(agent, err)
			// Always nil: a failed specialist degrades the review
			// instead of cancelling its siblings.
			return nil
		})
	}
	// Join-all: every worker returns nil, so Wait only blocks.
	_ = g.Wait()

	reports := make(map[string]string, len(outcomes))
	for _, out := range outcomes {
		if out.err == nil && out.report != "" {
			reports[out.agent.DisplayName()] = out.report
		}
	}
	if len(reports) == 0 {
		return nil, models.ErrAllAgentsFailed
	}

	reportsJSON, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling specialist reports: %w", err)
	}

	resp, err := o.engine.Generate(ctx, BuildSynthesisPrompt(title, body, string(reportsJSON)), engine.FormatJSON)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (o *Orchestrator) notifyAgentDone(agent models.AgentKind, err error) {
	if o.onAgentDone == nil {
		return
	}
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onAgentDone(agent, err)
}
