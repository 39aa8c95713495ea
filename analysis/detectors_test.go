package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

// stubPages serves fixed page aggregates to the page-level detectors.
type stubPages []models.PageMetrics

func (p stubPages) AllPages() []models.PageMetrics { return p }

func (p stubPages) PageContext(location string) (models.PageMetrics, bool) {
	for _, page := range p {
		if NormalizeURL(page.URL) == location {
			return page, true
		}
	}
	return models.PageMetrics{}, false
}

func runWith(sessions []models.VisitSession, pages PageContextProvider) *RunContext {
	if pages == nil {
		pages = NoPages{}
	}
	return &RunContext{Sessions: sessions, Pages: pages}
}

func TestRageClickDetector(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := models.VisitSession{
		ClientID: "c1",
		Hits: []models.PageHit{
			{ClientID: "c1", Timestamp: start, URL: "https://site.ru/apply"},
			{ClientID: "c1", Timestamp: start.Add(time.Second), URL: "https://site.ru/apply"},
			{ClientID: "c1", Timestamp: start.Add(1500 * time.Millisecond), URL: "https://site.ru/apply"},
			{ClientID: "c1", Timestamp: start.Add(10 * time.Second), URL: "https://site.ru/apply"},
		},
	}

	drafts := (&RageClickDetector{}).Detect(runWith([]models.VisitSession{session}, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, models.IssueRageClick, drafts[0].Type)
	assert.Equal(t, "https://site.ru/apply", drafts[0].Location)
	assert.Equal(t, 2, drafts[0].AffectedSessions, "two gaps under the threshold, the 10s gap does not count")
	assert.InDelta(t, 0.2, drafts[0].ImpactScore, 1e-9)
}

func TestNavLoopDetector(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{ClientID: "looper", Hits: repeatHits("looper", start, "https://site.ru/rating", 4)},
		{ClientID: "casual", Hits: repeatHits("casual", start, "https://site.ru/rating", 2)},
	}

	drafts := (&NavLoopDetector{}).Detect(runWith(sessions, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, 1, drafts[0].AffectedSessions, "only the 4-visit client loops")
	assert.InDelta(t, 0.15, drafts[0].ImpactScore, 1e-9)
}

func TestNavLoopDetector_VisitsSpanSessions(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{ClientID: "c1", Hits: repeatHits("c1", start, "https://site.ru/rating", 2)},
		{ClientID: "c1", Hits: repeatHits("c1", start.Add(time.Hour), "https://site.ru/rating", 3)},
	}

	drafts := (&NavLoopDetector{}).Detect(runWith(sessions, nil))
	require.Len(t, drafts, 1, "five visits across two sessions exceed the loop threshold")
	assert.Equal(t, "https://site.ru/rating", drafts[0].Location)
	assert.Equal(t, 1, drafts[0].AffectedSessions)
}

func TestRageClickDetector_GapStraddlesSessions(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{ClientID: "c1", Hits: []models.PageHit{
			{ClientID: "c1", Timestamp: start, URL: "https://site.ru/apply"},
		}},
		{ClientID: "c1", Hits: []models.PageHit{
			{ClientID: "c1", Timestamp: start.Add(time.Second), URL: "https://site.ru/apply"},
		}},
	}

	drafts := (&RageClickDetector{}).Detect(runWith(sessions, nil))
	require.Len(t, drafts, 1, "the rapid pair is only visible once both sessions' hits merge")
	assert.Equal(t, 1, drafts[0].AffectedSessions)
}

func repeatHits(client string, start time.Time, url string, n int) []models.PageHit {
	hits := make([]models.PageHit, n)
	for i := range hits {
		hits[i] = models.PageHit{ClientID: client, Timestamp: start.Add(time.Duration(i) * time.Minute), URL: url}
	}
	return hits
}

func TestBackForthLoopDetector_CanonicalPair(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		sessionWithHits("c1", start, "https://s/a", "https://s/b", "https://s/a"),
		sessionWithHits("c2", start, "https://s/b", "https://s/a", "https://s/b"),
	}

	drafts := (&BackForthLoopDetector{}).Detect(runWith(sessions, nil))
	require.Len(t, drafts, 1, "A→B→A and B→A→B fold into one pattern")
	assert.Equal(t, 2, drafts[0].AffectedSessions)
	assert.InDelta(t, 0.24, drafts[0].ImpactScore, 1e-9)
}

func TestWanderingDetector_SuppressesSmallGroups(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deep := func(client string) models.VisitSession {
		s := sessionWithHits(client, start, "https://s/entry")
		s.PageViews = 12
		s.EntryPage = "https://s/entry"
		return s
	}

	small := []models.VisitSession{deep("c1"), deep("c2"), deep("c3")}
	det := &WanderingDetector{MinSessions: WanderingMinSessions}
	assert.Empty(t, det.Detect(runWith(small, nil)))

	big := append(small, deep("c4"), deep("c5"))
	drafts := det.Detect(runWith(big, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, 5, drafts[0].AffectedSessions)
}

func TestWanderingDetector_IgnoresConverted(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := make([]models.VisitSession, 6)
	for i := range sessions {
		s := sessionWithHits(fmt.Sprintf("c%d", i), start, "https://s/entry")
		s.PageViews = 15
		s.EntryPage = "https://s/entry"
		s.GoalIDs = []int64{1}
		sessions[i] = s
	}

	det := &WanderingDetector{MinSessions: WanderingMinSessions}
	assert.Empty(t, det.Detect(runWith(sessions, nil)), "deep sessions that converted are not wandering")
}

func TestSuite_HighBounceSuppressedOnLoopPages(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := sessionWithHits("c1", start, "https://s/a", "https://s/b", "https://s/a")
	session.DurationSec = 5

	drafts := NewSuite().Run(runWith([]models.VisitSession{session}, nil))

	types := make(map[models.IssueType]bool)
	for _, d := range drafts {
		types[d.Type] = true
	}
	assert.True(t, types[models.IssueBackForthLoop])
	assert.False(t, types[models.IssueHighBounce], "loop endpoints are not re-reported as bounces")
}

func TestHighBounceDetector(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bounced := sessionWithHits("c1", start, "https://s/landing")
	bounced.DurationSec = 5
	engaged := sessionWithHits("c2", start, "https://s/landing")
	engaged.DurationSec = 300

	drafts := (&HighBounceDetector{}).Detect(runWith([]models.VisitSession{bounced, engaged}, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, models.SeverityCritical, drafts[0].Severity)
	assert.Equal(t, 1, drafts[0].AffectedSessions)
}

func TestStalledFormDetector(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stalled := models.VisitSession{
		ClientID: "c1",
		Hits: []models.PageHit{
			{ClientID: "c1", Timestamp: start, URL: "https://s/apply/form"},
			{ClientID: "c1", Timestamp: start.Add(90 * time.Second), URL: "https://s/apply/form"},
		},
	}
	quick := models.VisitSession{
		ClientID: "c2",
		Hits: []models.PageHit{
			{ClientID: "c2", Timestamp: start, URL: "https://s/apply/form"},
			{ClientID: "c2", Timestamp: start.Add(20 * time.Second), URL: "https://s/apply/form"},
		},
	}
	converted := models.VisitSession{
		ClientID: "c3",
		GoalIDs:  []int64{1},
		Hits: []models.PageHit{
			{ClientID: "c3", Timestamp: start, URL: "https://s/apply/form"},
			{ClientID: "c3", Timestamp: start.Add(5 * time.Minute), URL: "https://s/apply/form"},
		},
	}

	drafts := (&StalledFormDetector{}).Detect(runWith([]models.VisitSession{stalled, quick, converted}, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, "https://s/apply/form", drafts[0].Location)
	assert.Equal(t, 1, drafts[0].AffectedSessions, "fast fills and converted clients do not count")
}

func TestFunnelDropoffDetector(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := make([]models.VisitSession, 0, 60)
	for i := 0; i < 60; i++ {
		urls := []string{"https://s/"}
		if i < 10 {
			urls = append(urls, "https://s/lists")
		}
		sessions = append(sessions, sessionWithHits(fmt.Sprintf("c%02d", i), start, urls...))
	}

	det := &FunnelDropoffDetector{Stages: []string{"https://s/", "https://s/lists"}}
	drafts := det.Detect(runWith(sessions, nil))
	require.Len(t, drafts, 1)
	assert.Equal(t, models.SeverityCritical, drafts[0].Severity)
	assert.Equal(t, 50, drafts[0].AffectedSessions)
	assert.Equal(t, MaxImpactScore, drafts[0].ImpactScore, "50 lost * 0.2 caps at the maximum")
}

func TestDeadClickDetector_ImpactCapped(t *testing.T) {
	pages := stubPages{{
		URL:            "https://s/banner",
		TotalViews:     50,
		ExitRate:       100,
		AvgTimeOnPage:  2,
		AvgScrollDepth: -1,
	}}

	drafts := (&DeadClickDetector{MinViews: MinPageViewsForAlert}).Detect(runWith(nil, pages))
	require.Len(t, drafts, 1)
	assert.Equal(t, MaxImpactScore, drafts[0].ImpactScore, "100/8 caps at 10.0")
}

func TestDeadClickDetector_ScrolledPagesExcluded(t *testing.T) {
	pages := stubPages{{
		URL:            "https://s/banner",
		TotalViews:     50,
		ExitRate:       90,
		AvgTimeOnPage:  2,
		AvgScrollDepth: 55,
	}}
	assert.Empty(t, (&DeadClickDetector{MinViews: MinPageViewsForAlert}).Detect(runWith(nil, pages)))
}

func TestScanAndDropDetector(t *testing.T) {
	pages := stubPages{
		{URL: "https://s/longread", TotalViews: 100, ExitRate: 85, AvgTimeOnPage: 12, AvgScrollDepth: 92},
		{URL: "https://s/no-scroll-data", TotalViews: 100, ExitRate: 85, AvgTimeOnPage: 12, AvgScrollDepth: -1},
	}

	drafts := (&ScanAndDropDetector{MinViews: MinPageViewsForAlert}).Detect(runWith(nil, pages))
	require.Len(t, drafts, 1, "pages without scroll data are skipped, not errored on")
	assert.Equal(t, "https://s/longread", drafts[0].Location)
	assert.InDelta(t, 8.5, drafts[0].ImpactScore, 1e-9)
}

func TestSearchFailDetector(t *testing.T) {
	pages := stubPages{
		{URL: "https://s/search?q=math", TotalViews: 100, ExitRate: 80, AvgTimeOnPage: 10, AvgScrollDepth: -1},
		{URL: "https://s/programs", TotalViews: 100, ExitRate: 95, AvgTimeOnPage: 10, AvgScrollDepth: -1},
	}

	drafts := (&SearchFailDetector{MinViews: MinPageViewsForAlert}).Detect(runWith(nil, pages))
	require.Len(t, drafts, 1, "non-search pages never match")
	assert.Equal(t, models.IssueSearchFail, drafts[0].Type)
	assert.InDelta(t, 10.0, drafts[0].ImpactScore, 1e-9)
}

func TestSuite_OneDraftPerTypeAndLocation(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := sessionWithHits("c1", start, "https://s/a", "https://s/b")

	drafts := NewSuite().Run(runWith([]models.VisitSession{session}, nil))
	seen := make(map[string]bool)
	for _, d := range drafts {
		key := string(d.Type) + "|" + d.Location
		assert.False(t, seen[key], "duplicate draft for %s", key)
		seen[key] = true
	}
}
