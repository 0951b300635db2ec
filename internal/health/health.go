// Package health computes deterministic quality metrics over review results.
package health

import (
	"sort"
	"time"

	"github.com/joescharf/cr/internal/models"
)

// Score deductions per recognized severity.
const (
	criticalPenalty = 10
	majorPenalty    = 5
	minorPenalty    = 2
)

// Score computes the 0-100 health score for a set of issues: start at 100,
// subtract 10 per CRITICAL, 5 per MAJOR, 2 per MINOR, clamp at 0. Severity is
// uppercased before comparison, so "critical" still costs 10 points even
// though the display partition would not show it.
func Score(issues []models.Issue) int {
	score := 100
	for _, issue := range issues {
		switch models.NormalizeSeverity(issue.Severity) {
		case models.SeverityCritical:
			score -= criticalPenalty
		case models.SeverityMajor:
			score -= majorPenalty
		case models.SeverityMinor:
			score -= minorPenalty
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// Partition groups issues by recognized severity for display. Issues whose
// severity matches none of the three exact uppercase values land in no group;
// they stay in the stored list and in the aggregate counts.
type Partition struct {
	Critical []models.Issue
	Major    []models.Issue
	Minor    []models.Issue
}

// GroupBySeverity partitions issues into the three display groups, preserving
// original relative order within each group. Matching is exact, not
// case-folded.
func GroupBySeverity(issues []models.Issue) Partition {
	var p Partition
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			p.Critical = append(p.Critical, issue)
		case models.SeverityMajor:
			p.Major = append(p.Major, issue)
		case models.SeverityMinor:
			p.Minor = append(p.Minor, issue)
		}
	}
	return p
}

// Grouped returns how many issues landed in a display group.
func (p Partition) Grouped() int {
	return len(p.Critical) + len(p.Major) + len(p.Minor)
}

// ScorePoint is one review's health score positioned in time.
type ScorePoint struct {
	Time  time.Time `json:"time"`
	Score int       `json:"score"`
	Ref   string    `json:"ref"`
}

// ScoreSeries computes the health-score-over-time series for the dashboard,
// ordered chronologically.
func ScoreSeries(entries []models.HistoryEntry) []ScorePoint {
	points := make([]ScorePoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, ScorePoint{
			Time:  e.Timestamp,
			Score: Score(e.Result.Issues),
			Ref:   e.PRRef(),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points
}

// TypeCount is the frequency of one issue type across the whole history.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// IssueTypeCounts tallies issue types across every stored issue, including
// issues whose severity is unrecognized. Untyped issues are bucketed as
// "Unknown". Results are ordered by count descending, then name.
func IssueTypeCounts(entries []models.HistoryEntry) []TypeCount {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, issue := range e.Result.Issues {
			name := issue.IssueType
			if name == "" {
				name = "Unknown"
			}
			counts[name]++
		}
	}

	result := make([]TypeCount, 0, len(counts))
	for name, n := range counts {
		result = append(result, TypeCount{Type: name, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Type < result[j].Type
	})
	return result
}
