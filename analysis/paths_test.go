package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

// stubGoals is a fixed in-memory GoalResolver for tests.
type stubGoals map[int64]models.Goal

func (g stubGoals) GoalByID(id int64) (models.Goal, bool) {
	goal, ok := g[id]
	return goal, ok
}

func (g stubGoals) GoalByCode(code string) (models.Goal, bool) {
	for _, goal := range g {
		if goal.Code == code {
			return goal, true
		}
	}
	return models.Goal{}, false
}

func sessionWithHits(client string, start time.Time, urls ...string) models.VisitSession {
	hits := make([]models.PageHit, len(urls))
	for i, u := range urls {
		hits[i] = models.PageHit{
			ClientID:  client,
			Timestamp: start.Add(time.Duration(i) * 10 * time.Second),
			URL:       u,
		}
	}
	return models.VisitSession{
		VisitID:   "v-" + client,
		ClientID:  client,
		StartTime: start,
		PageViews: len(urls),
		Hits:      hits,
	}
}

func TestExtractPaths_CollapsesConsecutiveDuplicates(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		sessionWithHits("c1", start, "/a/", "/a", "/b"),
	}

	paths, stats := ExtractPaths(sessions, ExtractOptions{MinSteps: 2, MaxSteps: 10})
	require.Len(t, paths, 1)
	assert.Equal(t, 1, stats.PathsExtracted)
	assert.Equal(t, []PathStep{
		{Kind: StepPage, Value: "/a/"},
		{Kind: StepPage, Value: "/b/"},
	}, paths[0].Steps)
}

func TestExtractPaths_KeepsNonAdjacentRepeats(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		sessionWithHits("c1", start, "/a", "/b", "/a"),
	}

	paths, _ := ExtractPaths(sessions, ExtractOptions{MinSteps: 2, MaxSteps: 10})
	require.Len(t, paths, 1)
	assert.Len(t, paths[0].Steps, 3)
}

func TestExtractPaths_DiscardsOutOfBounds(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []models.VisitSession{
		sessionWithHits("short", start, "/a"),
		sessionWithHits("long", start, "/a", "/b", "/c", "/d", "/e"),
		{VisitID: "empty", ClientID: "empty"},
	}

	paths, stats := ExtractPaths(sessions, ExtractOptions{MinSteps: 2, MaxSteps: 4})
	assert.Empty(t, paths)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 1, stats.EmptySessions)
	assert.Equal(t, 2, stats.DiscardedByBound)
}

func TestExtractPaths_RequiresTwoDistinctPages(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// /a and /a/ normalize to the same page, so the path collapses to one step.
	sessions := []models.VisitSession{
		sessionWithHits("c1", start, "/a", "/a/", "/a"),
	}

	paths, _ := ExtractPaths(sessions, ExtractOptions{MinSteps: 1, MaxSteps: 10})
	assert.Empty(t, paths)
}

func TestExtractPaths_GoalMarkers(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	goals := stubGoals{7: {Code: "signup", Name: "Sign up", YMGoalID: 7}}

	session := sessionWithHits("c1", start, "/a", "/b")
	session.GoalIDs = []int64{7, 7}

	paths, _ := ExtractPaths([]models.VisitSession{session}, ExtractOptions{
		MinSteps:     2,
		MaxSteps:     10,
		IncludeGoals: true,
		Goals:        goals,
	})
	require.Len(t, paths, 1)

	var goalSteps []PathStep
	for _, step := range paths[0].Steps {
		if step.Kind == StepGoal {
			goalSteps = append(goalSteps, step)
		}
	}
	// Duplicate goal IDs contribute one marker.
	require.Len(t, goalSteps, 1)
	assert.Equal(t, "signup", goalSteps[0].Value)
}

func TestExtractPaths_GoalOnlyException(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	goals := stubGoals{7: {Code: "signup", YMGoalID: 7}}

	session := sessionWithHits("c1", start, "/apply")
	session.GoalIDs = []int64{7}

	opts := ExtractOptions{MinSteps: 2, MaxSteps: 10, IncludeGoals: true, Goals: goals}
	paths, _ := ExtractPaths([]models.VisitSession{session}, opts)
	assert.Empty(t, paths, "single-page path is dropped without the exception")

	opts.AllowGoalOnly = true
	paths, _ = ExtractPaths([]models.VisitSession{session}, opts)
	assert.Len(t, paths, 1, "single-page path with a goal survives with AllowGoalOnly")
}

func TestExtractPaths_DoesNotMutateInput(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := sessionWithHits("c1", start, "/b", "/a")
	// Deliberately out of order; extraction sorts its own copy.
	session.Hits[0].Timestamp = start.Add(time.Minute)
	session.Hits[1].Timestamp = start

	before := session.Hits[0].URL
	_, _ = ExtractPaths([]models.VisitSession{session}, ExtractOptions{MinSteps: 2, MaxSteps: 10})
	assert.Equal(t, before, session.Hits[0].URL)
	assert.Equal(t, "/b", session.Hits[0].URL)
}
