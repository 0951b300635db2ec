package output

import (
	"fmt"
	"strings"

	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
)

// RenderResult prints a complete review to the UI: summary, health
// score, issues grouped by severity, and the corrected code when one
// was produced.
func RenderResult(u *UI, result *models.ReviewResult) {
	fmt.Fprintf(u.Out, "\n%s\n\n", Cyan("Review Summary"))
	fmt.Fprintln(u.Out, Markdown(result.Summary))

	score := health.Score(result.Issues)
	fmt.Fprintf(u.Out, "Health Score: %s\n\n", HealthColor(score))

	if len(result.Issues) == 0 {
		u.Success("No Specific Issues Found")
		return
	}

	groups := health.GroupBySeverity(result.Issues)
	renderSeverityGroup(u, "Critical Issues", Red, groups.Critical)
	renderSeverityGroup(u, "Major Issues", Yellow, groups.Major)
	renderSeverityGroup(u, "Minor Issues", Cyan, groups.Minor)

	if result.FullCorrectedCode != "" {
		fmt.Fprintf(u.Out, "%s\n\n", Cyan("Complete Corrected Code"))
		fmt.Fprintln(u.Out, "```")
		fmt.Fprint(u.Out, result.FullCorrectedCode)
		if !strings.HasSuffix(result.FullCorrectedCode, "\n") {
			fmt.Fprintln(u.Out)
		}
		fmt.Fprintln(u.Out, "```")
	}
}

func renderSeverityGroup(u *UI, title string, colorize func(string) string, issues []models.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(u.Out, "%s\n\n", colorize(fmt.Sprintf("%s (%d)", title, len(issues))))
	for _, issue := range issues {
		renderIssue(u, issue)
	}
}

func renderIssue(u *UI, issue models.Issue) {
	issueType := issue.IssueType
	if issueType == "" {
		issueType = "General"
	}
	filePath := issue.FilePath
	if filePath == "" {
		filePath = "N/A"
	}
	fmt.Fprintf(u.Out, "  %s at %s (Lines: %d-%d)\n", issueType, filePath, issue.StartLine, issue.EndLine)

	description := issue.Description
	if description == "" {
		description = "No description provided."
	}
	fmt.Fprintf(u.Out, "  %s\n", description)

	if issue.FixSuggestionCode != "" {
		fmt.Fprintln(u.Out, "  Suggestion:")
		fmt.Fprint(u.Out, indent(issue.FixSuggestionCode, "    "))
	}
	fmt.Fprintln(u.Out)
}

// indent prefixes every line, keeping a trailing newline.
func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
