package web

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joescharf/cr/internal/health"
	"github.com/joescharf/cr/internal/models"
)

// resultPage is the view model for the result template. A non-empty Error
// renders the inline failure box instead of the report.
type resultPage struct {
	Error       string
	Title       string
	Summary     string
	Health      int
	HealthClass string
	NoIssues    bool
	Groups      []issueGroup
	Corrected   string
	Saved       bool
}

type issueGroup struct {
	Name   string
	Class  string
	Issues []issueView
}

type issueView struct {
	Heading     string
	Description string
	Suggestion  string
}

func buildResultPage(title string, result *models.ReviewResult, saved bool) resultPage {
	page := resultPage{
		Title:   title,
		Summary: result.Summary,
		Health:  health.Score(result.Issues),
		Saved:   saved,
	}
	page.HealthClass = scoreClass(page.Health)

	if len(result.Issues) == 0 {
		page.NoIssues = true
		return page
	}

	p := health.GroupBySeverity(result.Issues)
	for _, g := range []struct {
		name, class string
		issues      []models.Issue
	}{
		{"Critical Issues", "critical", p.Critical},
		{"Major Issues", "major", p.Major},
		{"Minor Issues", "minor", p.Minor},
	} {
		if len(g.issues) == 0 {
			continue
		}
		group := issueGroup{Name: g.name, Class: g.class}
		for _, issue := range g.issues {
			group.Issues = append(group.Issues, issueView{
				Heading:     issueHeading(issue),
				Description: issueDescription(issue),
				Suggestion:  issue.FixSuggestionCode,
			})
		}
		page.Groups = append(page.Groups, group)
	}

	page.Corrected = result.FullCorrectedCode
	return page
}

func issueHeading(issue models.Issue) string {
	issueType := issue.IssueType
	if issueType == "" {
		issueType = "General"
	}
	path := issue.FilePath
	if path == "" {
		path = "N/A"
	}
	return fmt.Sprintf("%s at %s (Lines: %d-%d)", issueType, path, issue.StartLine, issue.EndLine)
}

func issueDescription(issue models.Issue) string {
	if issue.Description == "" {
		return "No description provided."
	}
	return issue.Description
}

// scoreClass maps a health score to the CSS class used wherever scores appear.
// Thresholds match the terminal coloring: 80 and up is healthy, 50 and up
// needs attention, below that is failing.
func scoreClass(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 50:
		return "mid"
	default:
		return "bad"
	}
}

// dashboardPage is the view model for the dashboard template.
type dashboardPage struct {
	Empty   bool
	Entries []entryRow
	Score   *scoreChart
	Types   *typeChart
}

type entryRow struct {
	Time       string
	Ref        string
	Score      int
	ScoreClass string
	Issues     int
}

func buildDashboardPage(entries []models.HistoryEntry) dashboardPage {
	if len(entries) == 0 {
		return dashboardPage{Empty: true}
	}

	page := dashboardPage{
		Score: buildScoreChart(health.ScoreSeries(entries)),
		Types: buildTypeChart(health.IssueTypeCounts(entries)),
	}
	for _, e := range entries {
		score := health.Score(e.Result.Issues)
		page.Entries = append(page.Entries, entryRow{
			Time:       e.Timestamp.Format("2006-01-02 15:04"),
			Ref:        e.PRRef(),
			Score:      score,
			ScoreClass: scoreClass(score),
			Issues:     len(e.Result.Issues),
		})
	}
	return page
}

// scoreChart holds precomputed SVG geometry for the health-over-time line
// chart, so the template only substitutes numbers.
type scoreChart struct {
	W, H     int
	PadLeft  int
	Right    int
	Axis     []axisTick
	Polyline string
	Points   []chartPoint
}

type axisTick struct {
	Y      float64
	LabelY float64
	Label  string
}

type chartPoint struct {
	X, Y  float64
	Class string
	Title string
}

const (
	scoreChartW   = 640
	scoreChartH   = 200
	scorePadLeft  = 36
	scorePadRight = 16
	scorePadTop   = 16
	scorePadBot   = 24
)

func buildScoreChart(series []health.ScorePoint) *scoreChart {
	if len(series) == 0 {
		return nil
	}

	c := &scoreChart{
		W:       scoreChartW,
		H:       scoreChartH,
		PadLeft: scorePadLeft,
		Right:   scoreChartW - scorePadRight,
	}
	innerW := float64(scoreChartW - scorePadLeft - scorePadRight)
	innerH := float64(scoreChartH - scorePadTop - scorePadBot)

	yFor := func(score int) float64 {
		return round1(float64(scorePadTop) + (1-float64(score)/100)*innerH)
	}

	for _, tick := range []int{0, 50, 100} {
		y := yFor(tick)
		c.Axis = append(c.Axis, axisTick{Y: y, LabelY: round1(y + 4), Label: strconv.Itoa(tick)})
	}

	step := 0.0
	if len(series) > 1 {
		step = innerW / float64(len(series)-1)
	}

	var points strings.Builder
	for i, p := range series {
		x := float64(scorePadLeft) + step*float64(i)
		if len(series) == 1 {
			x = float64(scorePadLeft) + innerW/2
		}
		x = round1(x)
		y := yFor(p.Score)
		if points.Len() > 0 {
			points.WriteByte(' ')
		}
		fmt.Fprintf(&points, "%g,%g", x, y)
		c.Points = append(c.Points, chartPoint{
			X:     x,
			Y:     y,
			Class: scoreClass(p.Score),
			Title: fmt.Sprintf("%s scored %d on %s", p.Ref, p.Score, p.Time.Format("2006-01-02")),
		})
	}
	c.Polyline = points.String()
	return c
}

// typeChart holds precomputed SVG geometry for the issue-type bar chart.
type typeChart struct {
	W, H       int
	LabelRight int
	BarLeft    int
	BarHeight  int
	Bars       []typeBar
}

type typeBar struct {
	Y      int
	TextY  int
	Width  float64
	CountX float64
	Label  string
	Count  int
}

const (
	typeChartW  = 640
	typeLabelW  = 150
	typeBarLeft = 160
	typeBarMaxW = 420
	typeRowH    = 26
	typeBarH    = 16
	typePadTop  = 10
	typePadBot  = 8
	typeMaxRows = 10
)

func buildTypeChart(counts []health.TypeCount) *typeChart {
	if len(counts) == 0 {
		return nil
	}
	if len(counts) > typeMaxRows {
		counts = counts[:typeMaxRows]
	}

	c := &typeChart{
		W:          typeChartW,
		H:          typePadTop + len(counts)*typeRowH + typePadBot,
		LabelRight: typeLabelW,
		BarLeft:    typeBarLeft,
		BarHeight:  typeBarH,
	}

	// IssueTypeCounts sorts by count descending, so the first row sets scale.
	max := counts[0].Count
	for i, tc := range counts {
		y := typePadTop + i*typeRowH
		width := round1(float64(tc.Count) / float64(max) * typeBarMaxW)
		if width < 2 {
			width = 2
		}
		c.Bars = append(c.Bars, typeBar{
			Y:      y,
			TextY:  y + typeBarH - 3,
			Width:  width,
			CountX: round1(float64(typeBarLeft) + width + 6),
			Label:  truncateLabel(tc.Type, 22),
			Count:  tc.Count,
		})
	}
	return c
}

func truncateLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
