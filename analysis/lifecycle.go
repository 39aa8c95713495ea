package analysis

import (
	"sort"

	"uxpulse/api/models"
)

// lifecycleKey identifies an issue across versions. Location is normalized
// so cosmetic URL differences between runs do not break the match.
type lifecycleKey struct {
	issueType models.IssueType
	location  string
}

func keyFor(issueType models.IssueType, location string) lifecycleKey {
	norm := NormalizeURL(location)
	if norm == "" {
		norm = location
	}
	return lifecycleKey{issueType: issueType, location: norm}
}

// LifecycleRecord is one diffed issue state between two consecutive runs.
type LifecycleRecord struct {
	IssueID      string
	IssueType    models.IssueType
	Location     string
	Status       models.LifecycleStatus
	ImpactChange float64
}

// DiffIssues compares the current run's issues against the previous
// version's and classifies each key. Matched issues move by impact delta:
// beyond +LifecycleDelta is REGRESSED, beyond -LifecycleDelta is IMPROVED,
// in between PERSISTENT. Keys present only now are NEW; keys present only
// before are RESOLVED with the prior impact recorded as a negative change.
// The diff is a full recomputation, not an incremental append.
func DiffIssues(current, previous []models.UXIssue) []LifecycleRecord {
	prevByKey := make(map[lifecycleKey]*models.UXIssue, len(previous))
	for i := range previous {
		key := keyFor(previous[i].IssueType, previous[i].Location)
		// Keep the highest-impact prior issue when a key repeats.
		if existing, ok := prevByKey[key]; !ok || previous[i].ImpactScore > existing.ImpactScore {
			prevByKey[key] = &previous[i]
		}
	}

	var records []LifecycleRecord
	matched := make(map[lifecycleKey]struct{})

	for i := range current {
		issue := &current[i]
		key := keyFor(issue.IssueType, issue.Location)
		prior, ok := prevByKey[key]
		if !ok {
			records = append(records, LifecycleRecord{
				IssueID:   issue.ID,
				IssueType: issue.IssueType,
				Location:  key.location,
				Status:    models.LifecycleNew,
			})
			continue
		}
		matched[key] = struct{}{}

		delta := issue.ImpactScore - prior.ImpactScore
		status := models.LifecyclePersistent
		switch {
		case delta > LifecycleDelta:
			status = models.LifecycleRegressed
		case delta < -LifecycleDelta:
			status = models.LifecycleImproved
		}
		records = append(records, LifecycleRecord{
			IssueID:      issue.ID,
			IssueType:    issue.IssueType,
			Location:     key.location,
			Status:       status,
			ImpactChange: delta,
		})
	}

	var resolved []LifecycleRecord
	for key, prior := range prevByKey {
		if _, ok := matched[key]; ok {
			continue
		}
		resolved = append(resolved, LifecycleRecord{
			IssueID:      prior.ID,
			IssueType:    prior.IssueType,
			Location:     key.location,
			Status:       models.LifecycleResolved,
			ImpactChange: -prior.ImpactScore,
		})
	}
	sort.Slice(resolved, func(a, b int) bool {
		if resolved[a].IssueType != resolved[b].IssueType {
			return resolved[a].IssueType < resolved[b].IssueType
		}
		return resolved[a].Location < resolved[b].Location
	})
	return append(records, resolved...)
}

// TrendFor maps a lifecycle status to the per-issue trend annotation.
func TrendFor(status models.LifecycleStatus) models.Trend {
	switch status {
	case models.LifecycleNew:
		return models.TrendNew
	case models.LifecycleRegressed:
		return models.TrendWorse
	case models.LifecycleImproved:
		return models.TrendImproved
	default:
		return models.TrendStable
	}
}

// PriorityFor buckets an issue for triage. A worsening trend never sits
// below P1 regardless of absolute numbers.
func PriorityFor(issue *models.UXIssue) models.Priority {
	priority := models.PriorityP2
	switch {
	case issue.Severity == models.SeverityCritical ||
		issue.ImpactScore >= 8 ||
		issue.AffectedSessions >= 100:
		priority = models.PriorityP0
	case issue.Severity == models.SeverityWarning ||
		issue.ImpactScore >= 5 ||
		issue.AffectedSessions >= 50:
		priority = models.PriorityP1
	}
	if issue.Trend == models.TrendWorse && priority == models.PriorityP2 {
		priority = models.PriorityP1
	}
	return priority
}

var specialistsByType = map[models.IssueType][]string{
	models.IssueRageClick:     {"Frontend developer", "UX designer"},
	models.IssueDeadClick:     {"UX designer", "Frontend developer"},
	models.IssueNavLoop:       {"UX designer", "Information architect"},
	models.IssueBackForthLoop: {"UX designer", "Information architect"},
	models.IssueWandering:     {"Content strategist", "Information architect"},
	models.IssueHighBounce:    {"Marketing analyst", "Content strategist"},
	models.IssueStalledForm:   {"Frontend developer", "UX designer"},
	models.IssueFunnelDropoff: {"Product manager", "UX designer"},
	models.IssueScanAndDrop:   {"Content strategist", "UX designer"},
	models.IssueSearchFail:    {"Backend developer", "Search engineer"},
}

// SpecialistsFor returns the roles best placed to act on an issue type.
func SpecialistsFor(issueType models.IssueType) []string {
	roles, ok := specialistsByType[issueType]
	if !ok {
		return []string{"UX designer"}
	}
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}
