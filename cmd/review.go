package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/forge"
	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/output"
	"github.com/joescharf/cr/internal/review"
)

var (
	reviewMode     string
	reviewAgents   string
	reviewPlatform string
	reviewNoSave   bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a pull request or a code snippet",
}

var reviewPRCmd = &cobra.Command{
	Use:   "pr <owner/repo#number>",
	Short: "Review a pull or merge request",
	Long: `Fetch a pull request (GitHub) or merge request (GitLab) and review
its diff. Successful reviews are recorded in the history unless
--no-save is given.`,
	Example: `  cr review pr golang/go#12345
  cr review pr mygroup/myproject#7 --platform gitlab --mode deep`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewPRRun(cmd.Context(), args[0])
	},
}

var reviewCodeCmd = &cobra.Command{
	Use:   "code [file]",
	Short: "Review a source file or stdin",
	Long: `Review code from a file, or from stdin when the argument is "-" or
absent. Direct submissions are never recorded in the history.`,
	Example: `  cr review code main.go --mode deep
  git diff | cr review code -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		return reviewCodeRun(cmd.Context(), path)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewPRCmd)
	reviewCmd.AddCommand(reviewCodeCmd)

	reviewCmd.PersistentFlags().StringVarP(&reviewMode, "mode", "m", "quick", "Review mode: quick or deep")
	reviewCmd.PersistentFlags().StringVarP(&reviewAgents, "agents", "a", "", "Deep-mode agents (comma-separated, default all)")
	reviewPRCmd.Flags().StringVarP(&reviewPlatform, "platform", "p", "github", "Platform: github or gitlab")
	reviewPRCmd.Flags().BoolVar(&reviewNoSave, "no-save", false, "Do not record the review in the history")
}

func reviewPRRun(ctx context.Context, ref string) error {
	owner, repo, number, err := forge.ParseRef(ref)
	if err != nil {
		return err
	}
	platform, err := forge.ParsePlatform(reviewPlatform)
	if err != nil {
		return err
	}
	mode, agents, err := reviewSelection()
	if err != nil {
		return err
	}

	fetcher, err := newFetcherFor()(platform)
	if err != nil {
		return err
	}

	ui.Info("Fetching %s from %s", ref, platform)
	pr, err := fetcher.FetchPR(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("fetch pull request: %w", err)
	}
	diff, err := fetcher.FetchDiff(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("fetch diff: %w", err)
	}
	ui.VerboseLog("fetched %q (%d bytes of diff)", pr.Title, len(diff))

	result, err := runReview(ctx, models.ReviewRequest{
		Title:  pr.Title,
		Body:   pr.Body,
		Code:   diff,
		Mode:   mode,
		Agents: agents,
	})
	if err != nil {
		return err
	}

	output.RenderResult(ui, result)

	if reviewNoSave {
		return nil
	}
	s, err := getStore()
	if err != nil {
		ui.Warning("Review not saved: %v", err)
		return nil
	}
	entry := &models.HistoryEntry{Owner: owner, Repo: repo, PRNumber: number, Result: *result}
	if err := s.Append(ctx, entry); err != nil {
		ui.Warning("Review not saved: %v", err)
		return nil
	}
	ui.Success("Saved to history as %s (health %d)", entry.PRRef(), health.Score(result.Issues))
	return nil
}

func reviewCodeRun(ctx context.Context, path string) error {
	var code []byte
	var err error
	if path == "-" {
		code, err = io.ReadAll(os.Stdin)
	} else {
		code, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}

	mode, agents, err := reviewSelection()
	if err != nil {
		return err
	}

	result, err := runReview(ctx, models.ReviewRequest{
		Title:  models.PasteTitle,
		Body:   models.PasteBody,
		Code:   string(code),
		Mode:   mode,
		Agents: agents,
	})
	if err != nil {
		return err
	}

	output.RenderResult(ui, result)
	return nil
}

// reviewSelection parses the shared --mode and --agents flags.
func reviewSelection() (models.ReviewMode, []models.AgentKind, error) {
	mode, err := models.ParseMode(reviewMode)
	if err != nil {
		return "", nil, err
	}
	agents, err := models.ParseAgentList(reviewAgents)
	if err != nil {
		return "", nil, err
	}
	return mode, agents, nil
}

// runReview executes a review with per-agent progress feedback in deep
// mode.
func runReview(ctx context.Context, req models.ReviewRequest) (*models.ReviewResult, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, err
	}

	var cb review.AgentCallback
	if req.Mode == models.ModeDeep {
		ui.Info("Running deep review with %d agents (%s)", len(req.Agents), eng.Name())
		cb = func(agent models.AgentKind, err error) {
			if err != nil {
				ui.Warning("%s agent failed: %v", agent.DisplayName(), err)
				return
			}
			ui.Success("%s agent finished", agent.DisplayName())
		}
	} else {
		ui.Info("Running quick review (%s)", eng.Name())
	}

	result, err := review.New(eng, cb).Review(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}
	return result, nil
}
