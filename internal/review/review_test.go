package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEngine scripts engine behavior per format and records every prompt.
type fakeEngine struct {
	mu        sync.Mutex
	textCalls []string
	jsonCalls []string

	textFn func(prompt string) (string, error)
	jsonFn func(prompt string) (*models.ReviewResult, error)
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Generate(ctx context.Context, prompt string, format engine.Format) (*engine.Response, error) {
	if format == engine.FormatJSON {
		f.mu.Lock()
		f.jsonCalls = append(f.jsonCalls, prompt)
		f.mu.Unlock()
		if f.jsonFn != nil {
			result, err := f.jsonFn(prompt)
			if err != nil {
				return nil, err
			}
			return &engine.Response{Result: result}, nil
		}
		return &engine.Response{Result: &models.ReviewResult{Summary: "* fine", Issues: []models.Issue{}}}, nil
	}

	f.mu.Lock()
	f.textCalls = append(f.textCalls, prompt)
	f.mu.Unlock()
	if f.textFn != nil {
		text, err := f.textFn(prompt)
		if err != nil {
			return nil, err
		}
		return &engine.Response{Text: text}, nil
	}
	return &engine.Response{Text: "looks fine"}, nil
}

func (f *fakeEngine) calls() (text, json int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.textCalls), len(f.jsonCalls)
}

func TestQuick(t *testing.T) {
	eng := &fakeEngine{
		jsonFn: func(prompt string) (*models.ReviewResult, error) {
			assert.Contains(t, prompt, "Title: Add cache")
			assert.Contains(t, prompt, "Description: speeds up reads")
			assert.Contains(t, prompt, "func main()")
			assert.Contains(t, prompt, "'summary', 'review_report', and 'full_corrected_code'")
			return &models.ReviewResult{Summary: "* tidy"}, nil
		},
	}
	o := New(eng, nil)

	result, err := o.Quick(context.Background(), "Add cache", "speeds up reads", "func main() {}")
	require.NoError(t, err)
	assert.Equal(t, "* tidy", result.Summary)

	textCalls, jsonCalls := eng.calls()
	assert.Zero(t, textCalls)
	assert.Equal(t, 1, jsonCalls)
}

func TestQuick_EngineFailure(t *testing.T) {
	eng := &fakeEngine{
		jsonFn: func(string) (*models.ReviewResult, error) {
			return nil, &models.TransportError{Service: "gemini", Err: errors.New("down")}
		},
	}
	o := New(eng, nil)

	_, err := o.Quick(context.Background(), "t", "b", "code")
	var transportErr *models.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestDeep_AllAgentsSucceed(t *testing.T) {
	agents := models.AllAgents()
	eng := &fakeEngine{
		textFn: func(prompt string) (string, error) {
			// Echo the focus line back so the synthesis assertion can
			// tie each report to its agent.
			line, _, _ := strings.Cut(prompt, "\n")
			return "findings: " + line, nil
		},
	}
	o := New(eng, nil)

	result, err := o.Deep(context.Background(), "t", "b", "code", agents)
	require.NoError(t, err)
	require.NotNil(t, result)

	textCalls, jsonCalls := eng.calls()
	assert.Equal(t, len(agents), textCalls)
	assert.Equal(t, 1, jsonCalls)

	synthesis := eng.jsonCalls[0]
	for _, agent := range agents {
		assert.Contains(t, synthesis, agent.DisplayName())
	}
	assert.Contains(t, synthesis, "You are a lead engineer.")
}

func TestDeep_PartialFailure(t *testing.T) {
	agents := []models.AgentKind{models.AgentSecurity, models.AgentPerformance}
	eng := &fakeEngine{
		textFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "performance anti-patterns") {
				return "", &models.TransportError{Service: "gemini", Err: errors.New("timeout")}
			}
			return "injection risk in query builder", nil
		},
	}

	var cbMu sync.Mutex
	cbErrs := map[models.AgentKind]error{}
	o := New(eng, func(agent models.AgentKind, err error) {
		cbMu.Lock()
		defer cbMu.Unlock()
		cbErrs[agent] = err
	})

	result, err := o.Deep(context.Background(), "t", "b", "code", agents)
	require.NoError(t, err, "one surviving agent is enough")
	require.NotNil(t, result)

	// Synthesis consumes exactly the survivors.
	require.Len(t, eng.jsonCalls, 1)
	synthesis := eng.jsonCalls[0]
	assert.Contains(t, synthesis, "Security")
	assert.Contains(t, synthesis, "injection risk in query builder")
	assert.NotContains(t, synthesis, "Performance")

	require.Len(t, cbErrs, 2)
	assert.NoError(t, cbErrs[models.AgentSecurity])
	assert.Error(t, cbErrs[models.AgentPerformance])
}

func TestDeep_AllAgentsFail(t *testing.T) {
	eng := &fakeEngine{
		textFn: func(string) (string, error) {
			return "", &models.TransportError{Service: "gemini", Err: errors.New("down")}
		},
	}
	o := New(eng, nil)

	_, err := o.Deep(context.Background(), "t", "b", "code", models.AllAgents())
	require.ErrorIs(t, err, models.ErrAllAgentsFailed)

	_, jsonCalls := eng.calls()
	assert.Zero(t, jsonCalls, "no synthesis call when every specialist failed")
}

func TestDeep_DispatchesConcurrently(t *testing.T) {
	agents := models.AllAgents()

	// Every specialist call blocks until all of them have arrived. A
	// serial dispatch would never release the barrier.
	var arrived sync.WaitGroup
	arrived.Add(len(agents))
	eng := &fakeEngine{
		textFn: func(string) (string, error) {
			arrived.Done()
			arrived.Wait()
			return "report", nil
		},
	}
	o := New(eng, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Deep(context.Background(), "t", "b", "code", agents)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("specialist calls did not overlap")
	}
}

func TestReview_Dispatch(t *testing.T) {
	t.Run("validation failure makes no engine call", func(t *testing.T) {
		eng := &fakeEngine{}
		o := New(eng, nil)

		_, err := o.Review(context.Background(), models.ReviewRequest{Mode: models.ModeQuick})
		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)

		textCalls, jsonCalls := eng.calls()
		assert.Zero(t, textCalls)
		assert.Zero(t, jsonCalls)
	})

	t.Run("quick", func(t *testing.T) {
		eng := &fakeEngine{}
		o := New(eng, nil)

		_, err := o.Review(context.Background(), models.ReviewRequest{Code: "x", Mode: models.ModeQuick})
		require.NoError(t, err)
		textCalls, jsonCalls := eng.calls()
		assert.Zero(t, textCalls)
		assert.Equal(t, 1, jsonCalls)
	})

	t.Run("deep", func(t *testing.T) {
		eng := &fakeEngine{}
		o := New(eng, nil)

		_, err := o.Review(context.Background(), models.ReviewRequest{
			Code:   "x",
			Mode:   models.ModeDeep,
			Agents: []models.AgentKind{models.AgentSecurity},
		})
		require.NoError(t, err)
		textCalls, jsonCalls := eng.calls()
		assert.Equal(t, 1, textCalls)
		assert.Equal(t, 1, jsonCalls)
	})
}

func TestBuildAgentPrompt(t *testing.T) {
	prompt := BuildAgentPrompt(models.AgentSecurity, "SELECT * FROM users")

	assert.Equal(t, "You are an expert in Security. Your sole focus is to find security vulnerabilities. Analyze this code and list your findings.\n\n```\nSELECT * FROM users\n```", prompt)
}

func TestBuildQuickPrompt(t *testing.T) {
	prompt := BuildQuickPrompt("My PR", "Does things", "code here")

	assert.Contains(t, prompt, "You are an expert software engineer performing a code review.")
	assert.Contains(t, prompt, "Title: My PR")
	assert.Contains(t, prompt, "Description: Does things")
	assert.Contains(t, prompt, "```\ncode here\n```")
	assert.Contains(t, prompt, "'summary', 'review_report', and 'full_corrected_code'")
	assert.Contains(t, prompt, "severity (CRITICAL, MAJOR, MINOR)")
}

func TestBuildSynthesisPrompt(t *testing.T) {
	reports := `{
  "Readability": "nested ifs",
  "Security": "sql injection"
}`
	prompt := BuildSynthesisPrompt("My PR", "Does things", reports)

	assert.Contains(t, prompt, "You are a lead engineer.")
	assert.Contains(t, prompt, "Title: My PR")
	assert.Contains(t, prompt, "**Reports from specialists:**\n"+reports)
	assert.Contains(t, prompt, "file_path, start_line, end_line")
}
