package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ReviewMode selects the analysis depth for a review.
type ReviewMode string

const (
	ModeQuick ReviewMode = "quick"
	ModeDeep  ReviewMode = "deep"
)

// ParseMode converts a mode string (case-insensitive) to a ReviewMode.
func ParseMode(s string) (ReviewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quick":
		return ModeQuick, nil
	case "deep":
		return ModeDeep, nil
	default:
		return "", fmt.Errorf("unknown review mode: %q (want quick or deep)", s)
	}
}

// AgentKind identifies a specialist review agent.
type AgentKind string

const (
	AgentSecurity      AgentKind = "security"
	AgentPerformance   AgentKind = "performance"
	AgentReadability   AgentKind = "readability"
	AgentDocumentation AgentKind = "documentation"
	AgentErrorHandling AgentKind = "error-handling"
)

// AllAgents returns every specialist agent in display order.
func AllAgents() []AgentKind {
	return []AgentKind{
		AgentSecurity,
		AgentPerformance,
		AgentReadability,
		AgentDocumentation,
		AgentErrorHandling,
	}
}

// DisplayName returns the human-facing agent name used in prompts and reports.
func (a AgentKind) DisplayName() string {
	switch a {
	case AgentSecurity:
		return "Security"
	case AgentPerformance:
		return "Performance"
	case AgentReadability:
		return "Readability"
	case AgentDocumentation:
		return "Documentation"
	case AgentErrorHandling:
		return "Error Handling"
	default:
		return string(a)
	}
}

// Expertise returns the fixed focus statement injected into the agent's prompt.
func (a AgentKind) Expertise() string {
	switch a {
	case AgentSecurity:
		return "find security vulnerabilities."
	case AgentPerformance:
		return "find performance anti-patterns."
	case AgentReadability:
		return "review for readability and best practices."
	case AgentDocumentation:
		return "check for missing or incomplete docstrings and comments."
	case AgentErrorHandling:
		return "look for improper or missing error handling."
	default:
		return ""
	}
}

// ParseAgentKind converts an agent name (id or display form) to an AgentKind.
func ParseAgentKind(s string) (AgentKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "security":
		return AgentSecurity, nil
	case "performance":
		return AgentPerformance, nil
	case "readability":
		return AgentReadability, nil
	case "documentation", "docs":
		return AgentDocumentation, nil
	case "error-handling", "errors":
		return AgentErrorHandling, nil
	default:
		return "", fmt.Errorf("unknown agent: %q (supported: %s)", s, strings.Join(agentNames(), ", "))
	}
}

// ParseAgentList parses a comma-separated agent list. An empty input selects
// every agent, mirroring the default-all checkbox state of the review form.
func ParseAgentList(s string) ([]AgentKind, error) {
	if strings.TrimSpace(s) == "" {
		return AllAgents(), nil
	}

	var agents []AgentKind
	seen := make(map[AgentKind]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := ParseAgentKind(part)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		agents = append(agents, kind)
	}
	if len(agents) == 0 {
		return AllAgents(), nil
	}
	return agents, nil
}

func agentNames() []string {
	all := AllAgents()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = string(a)
	}
	return names
}

// Severity is the wire-level severity of an issue. Recognized values are
// uppercase; anything else is stored untouched and excluded from the
// severity display groups.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

// NormalizeSeverity uppercases a severity for scoring comparisons.
func NormalizeSeverity(s Severity) Severity {
	return Severity(strings.ToUpper(string(s)))
}

// Issue is a single finding within a review report.
type Issue struct {
	FilePath          string   `json:"file_path"`
	StartLine         int      `json:"start_line"`
	EndLine           int      `json:"end_line"`
	Severity          Severity `json:"severity"`
	IssueType         string   `json:"issue_type"`
	Description       string   `json:"description"`
	FixSuggestionCode string   `json:"fix_suggestion_code,omitempty"`
}

// issueWire mirrors Issue with raw line fields so models that emit line
// numbers as strings ("12") or floats still decode.
type issueWire struct {
	FilePath          string          `json:"file_path"`
	StartLine         json.RawMessage `json:"start_line"`
	EndLine           json.RawMessage `json:"end_line"`
	Severity          Severity        `json:"severity"`
	IssueType         string          `json:"issue_type"`
	Description       string          `json:"description"`
	FixSuggestionCode string          `json:"fix_suggestion_code"`
}

// UnmarshalJSON decodes an issue tolerantly: line numbers may arrive as JSON
// numbers or numeric strings, and absent fields zero out.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var w issueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	i.FilePath = w.FilePath
	i.StartLine = lineNumber(w.StartLine)
	i.EndLine = lineNumber(w.EndLine)
	i.Severity = w.Severity
	i.IssueType = w.IssueType
	i.Description = w.Description
	i.FixSuggestionCode = w.FixSuggestionCode
	return nil
}

// lineNumber extracts an int from a raw JSON number or numeric string.
// Unparseable values become 0 rather than failing the whole report.
func lineNumber(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// ReviewResult is the normalized output of every review, quick or deep.
// Its wire shape is the three-key JSON object the engine is instructed to
// return: summary, review_report, full_corrected_code.
type ReviewResult struct {
	Summary           string
	Issues            []Issue
	FullCorrectedCode string
}

type reviewResultWire struct {
	Summary           json.RawMessage `json:"summary"`
	ReviewReport      json.RawMessage `json:"review_report"`
	FullCorrectedCode string          `json:"full_corrected_code"`
}

// UnmarshalJSON decodes the three-key report shape. The summary may be a
// string or a list of bullet strings (some models return either); a list is
// folded into markdown bullets. A missing or null review_report becomes an
// empty issue list, but any non-array value is rejected.
func (r *ReviewResult) UnmarshalJSON(data []byte) error {
	var w reviewResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	summary, err := decodeSummary(w.Summary)
	if err != nil {
		return err
	}
	r.Summary = summary

	r.Issues = []Issue{}
	if len(w.ReviewReport) > 0 && string(w.ReviewReport) != "null" {
		if err := json.Unmarshal(w.ReviewReport, &r.Issues); err != nil {
			return fmt.Errorf("review_report is not an array: %w", err)
		}
	}

	r.FullCorrectedCode = w.FullCorrectedCode
	return nil
}

// MarshalJSON always emits the canonical three keys, with review_report as an
// array even when no issues were found.
func (r ReviewResult) MarshalJSON() ([]byte, error) {
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(struct {
		Summary           string  `json:"summary"`
		ReviewReport      []Issue `json:"review_report"`
		FullCorrectedCode string  `json:"full_corrected_code,omitempty"`
	}{
		Summary:           r.Summary,
		ReviewReport:      issues,
		FullCorrectedCode: r.FullCorrectedCode,
	})
}

func decodeSummary(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = "* " + item
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("summary is neither a string nor a list of strings")
}

// Metadata applied when code arrives as a direct paste rather than a pull
// request. Paste reviews are never persisted, so these stand in for the PR
// title and body in prompts and on the result page.
const (
	PasteTitle = "Direct Code Submission"
	PasteBody  = "A code snippet submitted for direct review."
)

// ReviewRequest describes one unit of code to review.
type ReviewRequest struct {
	Title  string
	Body   string
	Code   string
	Mode   ReviewMode
	Agents []AgentKind
}

// Validate checks the request before any network call is made.
func (r ReviewRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return &ValidationError{Reason: "no code to review"}
	}
	switch r.Mode {
	case ModeQuick:
		return nil
	case ModeDeep:
		if len(r.Agents) == 0 {
			return &ValidationError{Reason: "deep mode requires at least one specialist agent"}
		}
		for _, a := range r.Agents {
			if a.Expertise() == "" {
				return &ValidationError{Reason: fmt.Sprintf("unknown agent: %q", a)}
			}
		}
		return nil
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown review mode: %q", r.Mode)}
	}
}
