package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

func TestComputePageMetrics(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{
			ClientID:  "c1",
			EntryPage: "https://s/a",
			Bounced:   true,
			Device:    "mobile",
			Hits: []models.PageHit{
				{ClientID: "c1", Timestamp: start, URL: "https://s/a", Title: "Page A", TimeOnPage: 10, ScrollDepth: 40},
				{ClientID: "c1", Timestamp: start.Add(time.Minute), URL: "https://s/b", IsExit: true},
			},
		},
		{
			ClientID:  "c2",
			EntryPage: "https://s/a",
			Device:    "desktop",
			Hits: []models.PageHit{
				{ClientID: "c2", Timestamp: start, URL: "https://s/a/", TimeOnPage: 30, ScrollDepth: 80},
			},
		},
	}
	cohorts := []models.UserCohort{
		{Name: "Explorers", MemberClientIDs: []string{"c1", "c2"}},
	}

	pages := ComputePageMetrics(7, sessions, cohorts)
	require.Len(t, pages, 2)

	var pageA *models.PageMetrics
	for i := range pages {
		if pages[i].URL == "https://s/a" {
			pageA = &pages[i]
		}
	}
	require.NotNil(t, pageA, "trailing-slash variant folds into one page")
	assert.Equal(t, 7, pageA.VersionID)
	assert.Equal(t, 2, pageA.TotalViews)
	assert.Equal(t, 2, pageA.UniqueVisitors)
	assert.Equal(t, "Page A", pageA.PageTitle)
	assert.InDelta(t, 20.0, pageA.AvgTimeOnPage, 1e-9)
	assert.InDelta(t, 60.0, pageA.AvgScrollDepth, 1e-9)
	assert.InDelta(t, 50.0, pageA.ExitRate, 1e-9, "c2's single hit is a terminal exit")
	assert.InDelta(t, 50.0, pageA.BounceRate, 1e-9, "one of two entries bounced")
	assert.Equal(t, "Explorers", pageA.DominantCohort)
}

func TestComputePageMetrics_NoScrollData(t *testing.T) {
	sessions := []models.VisitSession{
		{ClientID: "c1", Hits: []models.PageHit{{ClientID: "c1", URL: "https://s/a"}}},
	}
	pages := ComputePageMetrics(1, sessions, nil)
	require.Len(t, pages, 1)
	assert.Equal(t, -1.0, pages[0].AvgScrollDepth)
	assert.False(t, pages[0].HasScrollData())
}

func TestComputeDailyStats(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		{ClientID: "c1", StartTime: day1, DurationSec: 100, PageViews: 4, GoalIDs: []int64{1}},
		{ClientID: "c2", StartTime: day1.Add(2 * time.Hour), DurationSec: 20, PageViews: 1, Bounced: true},
		{ClientID: "c1", StartTime: day2, DurationSec: 60, PageViews: 2},
	}

	stats := ComputeDailyStats(3, sessions)
	require.Len(t, stats, 2)

	first := stats[0]
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 2, first.TotalSessions)
	assert.Equal(t, 2, first.Visitors)
	assert.Equal(t, 5, first.PageViews)
	assert.InDelta(t, 50.0, first.BounceRate, 1e-9)
	assert.InDelta(t, 60.0, first.AvgDuration, 1e-9)
	assert.Equal(t, 1, first.GoalSessions)

	assert.True(t, stats[0].Date.Before(stats[1].Date), "days come back in order")
}
