package review

import (
	"fmt"
	"strings"

	"github.com/joescharf/cr/internal/models"
)

// BuildQuickPrompt generates the single-pass review prompt: context,
// fenced code, and the three-key JSON contract.
func BuildQuickPrompt(title, body, code string) string {
	var b strings.Builder

	b.WriteString("You are an expert software engineer performing a code review. Analyze the following code and provide your feedback in a structured JSON format.\n\n")

	b.WriteString("**Context:**\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n\n", body)

	b.WriteString("**Code to Review:**\n")
	writeFenced(&b, code)

	b.WriteString("**Instructions:**\n")
	b.WriteString("Return a single JSON object with three top-level keys: 'summary', 'review_report', and 'full_corrected_code'.\n")
	b.WriteString("1.  **summary**: A concise, high-level summary of the findings as a single markdown string with bullet points.\n")
	b.WriteString("2.  **review_report**: An array of objects. For every issue found, create a corresponding object in this array. Each object must include: file_path, start_line, end_line, severity (CRITICAL, MAJOR, MINOR), issue_type, a detailed description, and a 'fix_suggestion_code' snippet.\n")
	b.WriteString("3.  **full_corrected_code**: A string containing the complete, corrected code for the file, with all suggestions applied.\n")

	return b.String()
}

// BuildAgentPrompt generates a specialist's free-text prompt. Each agent
// sees only its own focus and the code, nothing from its siblings.
func BuildAgentPrompt(agent models.AgentKind, code string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert in %s. Your sole focus is to %s Analyze this code and list your findings.\n\n",
		agent.DisplayName(), agent.Expertise())
	b.WriteString("```\n")
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```")

	return b.String()
}

// BuildSynthesisPrompt generates the consolidation prompt from the
// successful specialists' reports, pre-rendered as an indented JSON
// object keyed by agent display name.
func BuildSynthesisPrompt(title, body, reportsJSON string) string {
	var b strings.Builder

	b.WriteString("You are a lead engineer. Consolidate the following reports into a single JSON object with three top-level keys: 'summary', 'review_report', and 'full_corrected_code'.\n\n")

	b.WriteString("**Context:**\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n\n", body)

	b.WriteString("**Reports from specialists:**\n")
	b.WriteString(reportsJSON)
	b.WriteString("\n\n")

	b.WriteString("**Instructions:**\n")
	b.WriteString("1.  **summary**: Write a concise overall summary of all findings as a single markdown string with bullet points.\n")
	b.WriteString("2.  **review_report**: For every actionable issue found, create a detailed object in this array. Each object MUST contain: file_path, start_line, end_line, severity (CRITICAL, MAJOR, MINOR), issue_type, description, and a 'fix_suggestion_code' snippet.\n")
	b.WriteString("3.  **full_corrected_code**: Based on the original code and all suggestions, generate a string containing the complete, corrected code for the file.\n")

	return b.String()
}

// writeFenced writes code inside a bare markdown fence. The fence stays
// language-neutral: the tool reviews diffs and files of any language.
func writeFenced(b *strings.Builder, code string) {
	b.WriteString("```\n")
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
}
