package analysis

import (
	"fmt"
	"math"
	"sort"

	"uxpulse/api/models"
)

// ProportionZTest runs a two-proportion z-test and returns the z statistic
// and two-sided p-value. Degenerate inputs (zero trials, pooled proportion
// at 0 or 1) return a p-value of 1: no evidence either way.
func ProportionZTest(successA, totalA, successB, totalB int) (z, p float64) {
	if totalA <= 0 || totalB <= 0 {
		return 0, 1
	}
	pA := float64(successA) / float64(totalA)
	pB := float64(successB) / float64(totalB)
	pooled := float64(successA+successB) / float64(totalA+totalB)
	if pooled <= 0 || pooled >= 1 {
		return 0, 1
	}
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(totalA) + 1/float64(totalB)))
	if se == 0 {
		return 0, 1
	}
	z = (pB - pA) / se
	p = math.Erfc(math.Abs(z) / math.Sqrt2)
	return z, p
}

// FunnelComparison pairs one funnel's conversion in two versions with the
// significance of the change.
type FunnelComparison struct {
	FunnelName     string  `json:"funnel_name"`
	ConversionA    float64 `json:"conversion_a"`
	ConversionB    float64 `json:"conversion_b"`
	Delta          float64 `json:"delta"`
	EnteredA       int     `json:"entered_a"`
	EnteredB       int     `json:"entered_b"`
	PValue         float64 `json:"p_value"`
	Significant    bool    `json:"significant"`
	SampleTooSmall bool    `json:"sample_too_small"`
}

// significanceLevel is the two-sided alpha for funnel comparisons.
const significanceLevel = 0.05

// minSampleForSignificance is the per-side floor below which the z-test is
// not trusted and the comparison is flagged instead.
const minSampleForSignificance = 30

// CompareFunnel builds a comparison from two computed metric sets for the
// same funnel definition.
func CompareFunnel(name string, a, b models.FunnelMetrics) FunnelComparison {
	cmp := FunnelComparison{
		FunnelName:  name,
		ConversionA: a.OverallConversion,
		ConversionB: b.OverallConversion,
		Delta:       round2(b.OverallConversion - a.OverallConversion),
		EnteredA:    a.TotalEntered,
		EnteredB:    b.TotalEntered,
	}
	if a.TotalEntered < minSampleForSignificance || b.TotalEntered < minSampleForSignificance {
		cmp.SampleTooSmall = true
		cmp.PValue = 1
		return cmp
	}
	_, p := ProportionZTest(a.TotalCompleted, a.TotalEntered, b.TotalCompleted, b.TotalEntered)
	cmp.PValue = round4(p)
	cmp.Significant = p < significanceLevel
	return cmp
}

// IssueBreakdown counts issues per severity for one version.
type IssueBreakdown struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// BreakdownIssues tallies a version's issues by severity.
func BreakdownIssues(issues []models.UXIssue) IssueBreakdown {
	var b IssueBreakdown
	b.Total = len(issues)
	for i := range issues {
		switch issues[i].Severity {
		case models.SeverityCritical:
			b.Critical++
		case models.SeverityWarning:
			b.Warning++
		case models.SeverityInfo:
			b.Info++
		}
	}
	return b
}

// TrafficComparison holds the headline traffic deltas between two
// versions, aggregated from their daily rollups.
type TrafficComparison struct {
	SessionsA     int     `json:"sessions_a"`
	SessionsB     int     `json:"sessions_b"`
	BounceRateA   float64 `json:"bounce_rate_a"`
	BounceRateB   float64 `json:"bounce_rate_b"`
	BounceDelta   float64 `json:"bounce_delta"`
	BouncePValue  float64 `json:"bounce_p_value"`
	BounceSig     bool    `json:"bounce_significant"`
	AvgDurationA  float64 `json:"avg_duration_a"`
	AvgDurationB  float64 `json:"avg_duration_b"`
	DurationDelta float64 `json:"duration_delta"`
	GoalSessionsA int     `json:"goal_sessions_a"`
	GoalSessionsB int     `json:"goal_sessions_b"`
}

// CompareTraffic aggregates two versions' daily rollups into one traffic
// diff with a significance test on the bounce-rate change.
func CompareTraffic(statsA, statsB []models.DailyStat) TrafficComparison {
	sumA := sumDailyStats(statsA)
	sumB := sumDailyStats(statsB)

	cmp := TrafficComparison{
		SessionsA:     sumA.sessions,
		SessionsB:     sumB.sessions,
		BounceRateA:   sumA.bounceRate(),
		BounceRateB:   sumB.bounceRate(),
		AvgDurationA:  sumA.avgDuration(),
		AvgDurationB:  sumB.avgDuration(),
		GoalSessionsA: sumA.goals,
		GoalSessionsB: sumB.goals,
	}
	cmp.BounceDelta = round2(cmp.BounceRateB - cmp.BounceRateA)
	cmp.DurationDelta = round2(cmp.AvgDurationB - cmp.AvgDurationA)

	if sumA.sessions >= minSampleForSignificance && sumB.sessions >= minSampleForSignificance {
		_, p := ProportionZTest(sumA.bounced, sumA.sessions, sumB.bounced, sumB.sessions)
		cmp.BouncePValue = round4(p)
		cmp.BounceSig = p < significanceLevel
	} else {
		cmp.BouncePValue = 1
	}
	return cmp
}

type trafficTotals struct {
	sessions    int
	bounced     int
	goals       int
	durationSum float64
}

func sumDailyStats(stats []models.DailyStat) trafficTotals {
	var t trafficTotals
	for _, day := range stats {
		t.sessions += day.TotalSessions
		t.bounced += int(math.Round(day.BounceRate / 100 * float64(day.TotalSessions)))
		t.goals += day.GoalSessions
		t.durationSum += day.AvgDuration * float64(day.TotalSessions)
	}
	return t
}

func (t trafficTotals) bounceRate() float64 {
	if t.sessions == 0 {
		return 0
	}
	return round2(float64(t.bounced) / float64(t.sessions) * 100)
}

func (t trafficTotals) avgDuration() float64 {
	if t.sessions == 0 {
		return 0
	}
	return round2(t.durationSum / float64(t.sessions))
}

// PageComparison is one page's movement between two versions.
type PageComparison struct {
	URL         string  `json:"url"`
	ViewsA      int     `json:"views_a"`
	ViewsB      int     `json:"views_b"`
	ExitRateA   float64 `json:"exit_rate_a"`
	ExitRateB   float64 `json:"exit_rate_b"`
	ExitDelta   float64 `json:"exit_delta"`
	BounceRateA float64 `json:"bounce_rate_a"`
	BounceRateB float64 `json:"bounce_rate_b"`
	BounceDelta float64 `json:"bounce_delta"`
	TimeOnPageA float64 `json:"time_on_page_a"`
	TimeOnPageB float64 `json:"time_on_page_b"`
}

// minViewsForPageDiff keeps low-traffic pages out of the page diff; their
// rate swings are noise.
const minViewsForPageDiff = 10

// ComparePages pairs pages by URL across two versions and returns the
// movements sorted by exit-rate worsening. Pages present in only one
// version or with too few views on either side are skipped.
func ComparePages(pagesA, pagesB []models.PageMetrics) []PageComparison {
	byURL := make(map[string]models.PageMetrics, len(pagesA))
	for _, page := range pagesA {
		byURL[page.URL] = page
	}

	var out []PageComparison
	for _, b := range pagesB {
		a, ok := byURL[b.URL]
		if !ok {
			continue
		}
		if a.TotalViews < minViewsForPageDiff || b.TotalViews < minViewsForPageDiff {
			continue
		}
		out = append(out, PageComparison{
			URL:         b.URL,
			ViewsA:      a.TotalViews,
			ViewsB:      b.TotalViews,
			ExitRateA:   a.ExitRate,
			ExitRateB:   b.ExitRate,
			ExitDelta:   round2(b.ExitRate - a.ExitRate),
			BounceRateA: a.BounceRate,
			BounceRateB: b.BounceRate,
			BounceDelta: round2(b.BounceRate - a.BounceRate),
			TimeOnPageA: a.AvgTimeOnPage,
			TimeOnPageB: b.AvgTimeOnPage,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExitDelta > out[j].ExitDelta
	})
	return out
}

// exitRateAlertDelta is the exit-rate increase in percentage points that
// raises a comparison alert for a page.
const exitRateAlertDelta = 10.0

// BuildAlerts derives human-readable warnings from a finished comparison:
// new critical issues, significant bounce or conversion worsening, and
// pages whose exit rate jumped.
func BuildAlerts(cmp *VersionComparison) []string {
	var alerts []string
	for _, issue := range cmp.New {
		if issue.Severity == models.SeverityCritical {
			alerts = append(alerts, fmt.Sprintf("New critical issue %s at %s (impact %.1f)",
				issue.IssueType, issue.Location, issue.ImpactScore))
		}
	}
	if cmp.Traffic.BounceSig && cmp.Traffic.BounceDelta > 0 {
		alerts = append(alerts, fmt.Sprintf("Bounce rate rose %.1f points (%.1f%% to %.1f%%, p=%.4f)",
			cmp.Traffic.BounceDelta, cmp.Traffic.BounceRateA, cmp.Traffic.BounceRateB, cmp.Traffic.BouncePValue))
	}
	for _, funnel := range cmp.Funnels {
		if funnel.Significant && funnel.Delta < 0 {
			alerts = append(alerts, fmt.Sprintf("Funnel %q conversion dropped %.1f points (p=%.4f)",
				funnel.FunnelName, -funnel.Delta, funnel.PValue))
		}
	}
	for _, page := range cmp.Pages {
		if page.ExitDelta >= exitRateAlertDelta {
			alerts = append(alerts, fmt.Sprintf("Exit rate on %s rose %.1f points (%.1f%% to %.1f%%)",
				page.URL, page.ExitDelta, page.ExitRateA, page.ExitRateB))
		}
	}
	return alerts
}

// VersionComparison is the full A/B diff surfaced by the compare endpoint.
type VersionComparison struct {
	Traffic   TrafficComparison  `json:"traffic"`
	IssuesA   IssueBreakdown     `json:"issues_a"`
	IssuesB   IssueBreakdown     `json:"issues_b"`
	New       []models.UXIssue   `json:"new_issues"`
	Resolved  []models.UXIssue   `json:"resolved_issues"`
	Regressed []models.UXIssue   `json:"regressed_issues"`
	Improved  []models.UXIssue   `json:"improved_issues"`
	Funnels   []FunnelComparison `json:"funnels"`
	Pages     []PageComparison   `json:"pages,omitempty"`
	Alerts    []string           `json:"alerts,omitempty"`
}

// CompareVersions diffs two issue sets key-by-key and attaches funnel
// comparisons. Issue identity follows the lifecycle key, so the same
// movement rules apply as in the per-run diff.
func CompareVersions(issuesA, issuesB []models.UXIssue, funnels []FunnelComparison) VersionComparison {
	cmp := VersionComparison{
		IssuesA: BreakdownIssues(issuesA),
		IssuesB: BreakdownIssues(issuesB),
		Funnels: funnels,
	}

	for _, rec := range DiffIssues(issuesB, issuesA) {
		switch rec.Status {
		case models.LifecycleNew:
			if issue := findIssue(issuesB, rec.IssueID); issue != nil {
				cmp.New = append(cmp.New, *issue)
			}
		case models.LifecycleResolved:
			if issue := findIssue(issuesA, rec.IssueID); issue != nil {
				cmp.Resolved = append(cmp.Resolved, *issue)
			}
		case models.LifecycleRegressed:
			if issue := findIssue(issuesB, rec.IssueID); issue != nil {
				cmp.Regressed = append(cmp.Regressed, *issue)
			}
		case models.LifecycleImproved:
			if issue := findIssue(issuesB, rec.IssueID); issue != nil {
				cmp.Improved = append(cmp.Improved, *issue)
			}
		}
	}

	for _, bucket := range [][]models.UXIssue{cmp.New, cmp.Resolved, cmp.Regressed, cmp.Improved} {
		sort.Slice(bucket, func(a, b int) bool {
			return bucket[a].ImpactScore > bucket[b].ImpactScore
		})
	}
	return cmp
}

func findIssue(issues []models.UXIssue, id string) *models.UXIssue {
	for i := range issues {
		if issues[i].ID == id {
			return &issues[i]
		}
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
