package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

func TestProportionZTest_NoDifference(t *testing.T) {
	z, p := ProportionZTest(50, 100, 50, 100)
	assert.Zero(t, z)
	assert.Equal(t, 1.0, p)
}

func TestProportionZTest_StrongDifference(t *testing.T) {
	_, p := ProportionZTest(10, 100, 90, 100)
	assert.Less(t, p, 0.001)
}

func TestProportionZTest_Degenerate(t *testing.T) {
	_, p := ProportionZTest(0, 0, 5, 10)
	assert.Equal(t, 1.0, p)

	_, p = ProportionZTest(0, 100, 0, 100)
	assert.Equal(t, 1.0, p, "pooled proportion at zero yields no evidence")

	_, p = ProportionZTest(100, 100, 100, 100)
	assert.Equal(t, 1.0, p)
}

func TestCompareFunnel_Significant(t *testing.T) {
	a := models.FunnelMetrics{TotalEntered: 200, TotalCompleted: 40, OverallConversion: 20}
	b := models.FunnelMetrics{TotalEntered: 200, TotalCompleted: 100, OverallConversion: 50}

	cmp := CompareFunnel("Landing → Apply", a, b)
	assert.Equal(t, 30.0, cmp.Delta)
	assert.True(t, cmp.Significant)
	assert.False(t, cmp.SampleTooSmall)
}

func TestCompareFunnel_SmallSampleFlagged(t *testing.T) {
	a := models.FunnelMetrics{TotalEntered: 10, TotalCompleted: 1, OverallConversion: 10}
	b := models.FunnelMetrics{TotalEntered: 10, TotalCompleted: 9, OverallConversion: 90}

	cmp := CompareFunnel("Landing → Apply", a, b)
	assert.True(t, cmp.SampleTooSmall)
	assert.False(t, cmp.Significant)
	assert.Equal(t, 1.0, cmp.PValue)
}

func TestCompareVersions(t *testing.T) {
	issuesA := []models.UXIssue{
		issue("a1", models.IssueRageClick, "https://s/gone", 4.0),
		issue("a2", models.IssueHighBounce, "https://s/stable", 5.0),
	}
	issuesA[1].Severity = models.SeverityCritical
	issuesB := []models.UXIssue{
		issue("b1", models.IssueHighBounce, "https://s/stable", 8.0),
		issue("b2", models.IssueDeadClick, "https://s/fresh", 2.0),
	}
	issuesB[0].Severity = models.SeverityCritical

	cmp := CompareVersions(issuesA, issuesB, nil)

	assert.Equal(t, 2, cmp.IssuesA.Total)
	assert.Equal(t, 1, cmp.IssuesA.Critical)
	assert.Equal(t, 2, cmp.IssuesB.Total)

	require.Len(t, cmp.New, 1)
	assert.Equal(t, "b2", cmp.New[0].ID)
	require.Len(t, cmp.Resolved, 1)
	assert.Equal(t, "a1", cmp.Resolved[0].ID)
	require.Len(t, cmp.Regressed, 1)
	assert.Equal(t, "b1", cmp.Regressed[0].ID, "impact 5→8 crosses the regression threshold")
	assert.Empty(t, cmp.Improved)
}

func TestCompareTraffic(t *testing.T) {
	statsA := []models.DailyStat{
		{TotalSessions: 100, BounceRate: 20, AvgDuration: 60, GoalSessions: 10},
		{TotalSessions: 100, BounceRate: 20, AvgDuration: 80, GoalSessions: 10},
	}
	statsB := []models.DailyStat{
		{TotalSessions: 200, BounceRate: 40, AvgDuration: 50, GoalSessions: 12},
	}

	cmp := CompareTraffic(statsA, statsB)
	assert.Equal(t, 200, cmp.SessionsA)
	assert.Equal(t, 200, cmp.SessionsB)
	assert.InDelta(t, 20.0, cmp.BounceRateA, 1e-9)
	assert.InDelta(t, 40.0, cmp.BounceRateB, 1e-9)
	assert.InDelta(t, 20.0, cmp.BounceDelta, 1e-9)
	assert.True(t, cmp.BounceSig, "40 vs 80 bounces out of 200 is a clear shift")
	assert.InDelta(t, 70.0, cmp.AvgDurationA, 1e-9, "session-weighted average")
	assert.InDelta(t, -20.0, cmp.DurationDelta, 1e-9)
	assert.Equal(t, 20, cmp.GoalSessionsA)
	assert.Equal(t, 12, cmp.GoalSessionsB)
}

func TestCompareTraffic_SmallSample(t *testing.T) {
	statsA := []models.DailyStat{{TotalSessions: 5, BounceRate: 20}}
	statsB := []models.DailyStat{{TotalSessions: 5, BounceRate: 80}}

	cmp := CompareTraffic(statsA, statsB)
	assert.False(t, cmp.BounceSig)
	assert.Equal(t, 1.0, cmp.BouncePValue)
}

func TestComparePages(t *testing.T) {
	pagesA := []models.PageMetrics{
		{URL: "https://s/a", TotalViews: 100, ExitRate: 30, BounceRate: 10, AvgTimeOnPage: 40},
		{URL: "https://s/b", TotalViews: 100, ExitRate: 50},
		{URL: "https://s/tiny", TotalViews: 3, ExitRate: 10},
		{URL: "https://s/removed", TotalViews: 100, ExitRate: 20},
	}
	pagesB := []models.PageMetrics{
		{URL: "https://s/a", TotalViews: 120, ExitRate: 55, BounceRate: 15, AvgTimeOnPage: 20},
		{URL: "https://s/b", TotalViews: 90, ExitRate: 45},
		{URL: "https://s/tiny", TotalViews: 4, ExitRate: 90},
		{URL: "https://s/added", TotalViews: 100, ExitRate: 20},
	}

	diffs := ComparePages(pagesA, pagesB)
	require.Len(t, diffs, 2, "low-traffic and one-sided pages are skipped")
	assert.Equal(t, "https://s/a", diffs[0].URL, "largest exit-rate worsening first")
	assert.InDelta(t, 25.0, diffs[0].ExitDelta, 1e-9)
	assert.InDelta(t, -5.0, diffs[1].ExitDelta, 1e-9)
}

func TestBuildAlerts(t *testing.T) {
	critical := issue("b1", models.IssueHighBounce, "https://s/apply", 9.0)
	critical.Severity = models.SeverityCritical
	cmp := VersionComparison{
		New: []models.UXIssue{critical},
		Traffic: TrafficComparison{
			BounceSig: true, BounceDelta: 12.0, BounceRateA: 20, BounceRateB: 32, BouncePValue: 0.001,
		},
		Funnels: []FunnelComparison{
			{FunnelName: "Landing → Apply", Significant: true, Delta: -15.0, PValue: 0.002},
			{FunnelName: "Improved", Significant: true, Delta: 5.0},
		},
		Pages: []PageComparison{
			{URL: "https://s/a", ExitDelta: 25.0, ExitRateA: 30, ExitRateB: 55},
			{URL: "https://s/b", ExitDelta: 2.0},
		},
	}

	alerts := BuildAlerts(&cmp)
	require.Len(t, alerts, 4)
	assert.Contains(t, alerts[0], "New critical issue")
	assert.Contains(t, alerts[1], "Bounce rate rose 12.0 points")
	assert.Contains(t, alerts[2], "conversion dropped 15.0 points")
	assert.Contains(t, alerts[3], "Exit rate on https://s/a rose 25.0 points")
}

func TestTopPaths(t *testing.T) {
	paths := append(repeatPaths(10, "/a/", "/b/", "/c/"), repeatPaths(3, "/x/", "/y/")...)

	top := TopPaths(paths, TopPathsOptions{Limit: 2})
	require.Len(t, top, 2)
	assert.Equal(t, 10, top[0].Count, "most traveled window first")
}
