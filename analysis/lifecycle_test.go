package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

func issue(id string, issueType models.IssueType, location string, impact float64) models.UXIssue {
	return models.UXIssue{ID: id, IssueType: issueType, Location: location, ImpactScore: impact}
}

func TestDiffIssues_Regressed(t *testing.T) {
	previous := []models.UXIssue{issue("p1", models.IssueRageClick, "https://s/a", 3.0)}
	current := []models.UXIssue{issue("c1", models.IssueRageClick, "https://s/a/", 5.0)}

	records := DiffIssues(current, previous)
	require.Len(t, records, 1)
	assert.Equal(t, models.LifecycleRegressed, records[0].Status)
	assert.InDelta(t, 2.0, records[0].ImpactChange, 1e-9)
	assert.Equal(t, "https://s/a", records[0].Location, "trailing slash does not break the match")
}

func TestDiffIssues_ImprovedAndPersistent(t *testing.T) {
	previous := []models.UXIssue{
		issue("p1", models.IssueHighBounce, "https://s/a", 6.0),
		issue("p2", models.IssueNavLoop, "https://s/b", 2.0),
	}
	current := []models.UXIssue{
		issue("c1", models.IssueHighBounce, "https://s/a", 4.0),
		issue("c2", models.IssueNavLoop, "https://s/b", 2.5),
	}

	byID := map[string]LifecycleRecord{}
	for _, rec := range DiffIssues(current, previous) {
		byID[rec.IssueID] = rec
	}
	assert.Equal(t, models.LifecycleImproved, byID["c1"].Status, "delta -2 crosses the threshold")
	assert.Equal(t, models.LifecyclePersistent, byID["c2"].Status, "delta +0.5 stays within the band")
}

func TestDiffIssues_NewAndResolved(t *testing.T) {
	previous := []models.UXIssue{issue("p1", models.IssueDeadClick, "https://s/old", 4.0)}
	current := []models.UXIssue{issue("c1", models.IssueDeadClick, "https://s/new", 2.0)}

	records := DiffIssues(current, previous)
	require.Len(t, records, 2)

	byStatus := map[models.LifecycleStatus]LifecycleRecord{}
	for _, rec := range records {
		byStatus[rec.Status] = rec
	}
	assert.Equal(t, "c1", byStatus[models.LifecycleNew].IssueID)
	assert.Zero(t, byStatus[models.LifecycleNew].ImpactChange)

	resolved := byStatus[models.LifecycleResolved]
	assert.Equal(t, "p1", resolved.IssueID)
	assert.InDelta(t, -4.0, resolved.ImpactChange, 1e-9, "resolved records the prior impact as negative change")
}

func TestDiffIssues_SameLocationDifferentType(t *testing.T) {
	previous := []models.UXIssue{issue("p1", models.IssueRageClick, "https://s/a", 3.0)}
	current := []models.UXIssue{issue("c1", models.IssueDeadClick, "https://s/a", 3.0)}

	records := DiffIssues(current, previous)
	require.Len(t, records, 2, "type is part of the identity key")
}

func TestTrendFor(t *testing.T) {
	assert.Equal(t, models.TrendNew, TrendFor(models.LifecycleNew))
	assert.Equal(t, models.TrendWorse, TrendFor(models.LifecycleRegressed))
	assert.Equal(t, models.TrendImproved, TrendFor(models.LifecycleImproved))
	assert.Equal(t, models.TrendStable, TrendFor(models.LifecyclePersistent))
	assert.Equal(t, models.TrendStable, TrendFor(models.LifecycleResolved))
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		name  string
		issue models.UXIssue
		want  models.Priority
	}{
		{"critical severity", models.UXIssue{Severity: models.SeverityCritical}, models.PriorityP0},
		{"high impact", models.UXIssue{Severity: models.SeverityInfo, ImpactScore: 8.5}, models.PriorityP0},
		{"wide reach", models.UXIssue{Severity: models.SeverityInfo, AffectedSessions: 150}, models.PriorityP0},
		{"warning severity", models.UXIssue{Severity: models.SeverityWarning, ImpactScore: 1}, models.PriorityP1},
		{"medium impact", models.UXIssue{Severity: models.SeverityInfo, ImpactScore: 5.5}, models.PriorityP1},
		{"quiet info", models.UXIssue{Severity: models.SeverityInfo, ImpactScore: 1, AffectedSessions: 5}, models.PriorityP2},
		{"worsening floors at P1", models.UXIssue{Severity: models.SeverityInfo, ImpactScore: 1, Trend: models.TrendWorse}, models.PriorityP1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PriorityFor(&tc.issue))
		})
	}
}

func TestSpecialistsFor(t *testing.T) {
	roles := SpecialistsFor(models.IssueSearchFail)
	assert.Contains(t, roles, "Search engineer")

	fallback := SpecialistsFor(models.IssueType("SOMETHING_ELSE"))
	assert.Equal(t, []string{"UX designer"}, fallback)

	// Callers may mutate the returned slice without corrupting the table.
	roles[0] = "changed"
	again := SpecialistsFor(models.IssueSearchFail)
	assert.NotEqual(t, "changed", again[0])
}
