package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/output"
)

var dashboardForce bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the code quality dashboard",
	Long: `Render the review history as a terminal dashboard: health scores
over time, the most common issue types, and the full review table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardRun(cmd.Context())
	},
}

var dashboardClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all review history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardClearRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.AddCommand(dashboardClearCmd)

	dashboardClearCmd.Flags().BoolVarP(&dashboardForce, "force", "f", false, "Skip the confirmation prompt")
}

func dashboardRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	entries, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(entries) == 0 {
		ui.Warning("No review data found. Perform a review from a Pull Request to see the dashboard.")
		return nil
	}

	fmt.Fprintf(ui.Out, "\n%s\n\n", output.Cyan("Code Quality Dashboard"))
	renderScoreChart(entries)
	renderTypeChart(entries)
	renderHistoryTable(entries)
	return nil
}

// renderScoreChart prints health scores over time as horizontal bars.
func renderScoreChart(entries []models.HistoryEntry) {
	fmt.Fprintf(ui.Out, "%s\n\n", output.Cyan("Health Score Over Time"))
	for _, p := range health.ScoreSeries(entries) {
		fmt.Fprintf(ui.Out, "  %s  %s %3s  %s\n",
			p.Time.Format("2006-01-02 15:04"),
			scoreBar(p.Score, 40),
			output.HealthColor(p.Score),
			p.Ref,
		)
	}
	fmt.Fprintln(ui.Out)
}

// scoreBar renders a fixed-width bar filled proportionally to score/100.
func scoreBar(score, width int) string {
	filled := score * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// renderTypeChart prints issue type frequencies, scaled to the most
// common type.
func renderTypeChart(entries []models.HistoryEntry) {
	counts := health.IssueTypeCounts(entries)
	if len(counts) == 0 {
		ui.Info("No issues have been logged yet.")
		return
	}

	fmt.Fprintf(ui.Out, "%s\n\n", output.Cyan("Most Common Issue Types"))
	max := counts[0].Count
	for _, c := range counts {
		width := c.Count * 30 / max
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(ui.Out, "  %-28s %s %d\n", c.Type, strings.Repeat("█", width), c.Count)
	}
	fmt.Fprintln(ui.Out)
}

func renderHistoryTable(entries []models.HistoryEntry) {
	fmt.Fprintf(ui.Out, "%s\n\n", output.Cyan("Full Review History"))

	table := ui.Table([]string{"Time", "PR", "Health", "Issues"})
	for _, e := range entries {
		table.Append([]string{
			e.Timestamp.Format("2006-01-02 15:04"),
			e.PRRef(),
			output.HealthColor(health.Score(e.Result.Issues)),
			fmt.Sprintf("%d", len(e.Result.Issues)),
		})
	}
	table.Render()
}

func dashboardClearRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	entries, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(entries) == 0 {
		ui.Warning("History is already empty")
		return nil
	}

	if !dashboardForce {
		fmt.Fprintf(ui.Out, "Delete all %d review entries? [y/N] ", len(entries))
		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			ui.Info("Aborted")
			return nil
		}
	}

	if err := s.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	ui.Success("Cleared %d review entries", len(entries))
	return nil
}
