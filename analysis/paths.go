package analysis

import (
	"sort"
	"time"

	"uxpulse/api/models"
)

// PathStepKind distinguishes page steps from goal markers inside a path.
// Steps of different kinds never collide even with identical text.
type PathStepKind string

const (
	StepPage PathStepKind = "url"
	StepGoal PathStepKind = "goal"
)

// PathStep is one element of an extracted session path.
type PathStep struct {
	Kind  PathStepKind
	Value string
}

// Path is the cleaned, ordered step sequence of one session.
type Path struct {
	VisitID  string
	ClientID string
	Steps    []PathStep
}

// UniquePages counts distinct page locations in the path.
func (p Path) UniquePages() int {
	seen := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		if s.Kind == StepPage {
			seen[s.Value] = struct{}{}
		}
	}
	return len(seen)
}

// HasGoalStep reports whether the path carries at least one goal marker.
func (p Path) HasGoalStep() bool {
	for _, s := range p.Steps {
		if s.Kind == StepGoal {
			return true
		}
	}
	return false
}

// ExtractOptions bounds path extraction.
type ExtractOptions struct {
	MinSteps int
	MaxSteps int

	// IncludeGoals merges the session's goal completions into the path as
	// goal markers, ordered by their own timestamp. Goal completions carry
	// no finer timestamp than the visit start, so markers sort at the
	// session start.
	IncludeGoals bool

	// AllowGoalOnly accepts single-page paths that completed at least one
	// goal. Used when mining inside large cohorts where multi-page paths
	// are scarce.
	AllowGoalOnly bool

	Goals GoalResolver
}

// ExtractStats reports what extraction kept and dropped.
type ExtractStats struct {
	TotalSessions    int
	EmptySessions    int
	DiscardedByBound int
	PathsExtracted   int
}

// ExtractPaths turns each session's raw hits into a cleaned path of
// discovery-normalized locations. Hits are sorted by timestamp, empty
// locations dropped, and consecutive duplicates collapsed (only adjacent
// repeats, not global dedup). Sessions whose resulting step count falls
// outside [MinSteps, MaxSteps], or with fewer than two distinct pages,
// are discarded rather than erroring. Pure: returns new slices per
// session and leaves the input untouched.
func ExtractPaths(sessions []models.VisitSession, opts ExtractOptions) ([]Path, ExtractStats) {
	stats := ExtractStats{TotalSessions: len(sessions)}
	paths := make([]Path, 0, len(sessions))

	for i := range sessions {
		session := &sessions[i]
		if len(session.Hits) == 0 {
			stats.EmptySessions++
			continue
		}

		path := extractSessionPath(session, opts)
		if keepPath(path, opts) {
			paths = append(paths, path)
			stats.PathsExtracted++
		} else {
			stats.DiscardedByBound++
		}
	}
	return paths, stats
}

func extractSessionPath(session *models.VisitSession, opts ExtractOptions) Path {
	type timedStep struct {
		at   time.Time
		step PathStep
		seq  int
	}

	hits := make([]models.PageHit, len(session.Hits))
	copy(hits, session.Hits)
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Timestamp.Before(hits[b].Timestamp)
	})

	var events []timedStep
	seq := 0
	for _, hit := range hits {
		loc := NormalizeForDiscovery(hit.URL)
		if loc == "" {
			continue
		}
		events = append(events, timedStep{at: hit.Timestamp, step: PathStep{Kind: StepPage, Value: loc}, seq: seq})
		seq++
	}

	if opts.IncludeGoals && opts.Goals != nil {
		seenCodes := make(map[string]struct{})
		for _, goalID := range session.GoalIDs {
			goal, ok := opts.Goals.GoalByID(goalID)
			if !ok {
				continue
			}
			// A goal contributes at most once per session.
			if _, dup := seenCodes[goal.Code]; dup {
				continue
			}
			seenCodes[goal.Code] = struct{}{}
			events = append(events, timedStep{at: session.StartTime, step: PathStep{Kind: StepGoal, Value: goal.Code}, seq: seq})
			seq++
		}
		sort.SliceStable(events, func(a, b int) bool {
			if events[a].at.Equal(events[b].at) {
				return events[a].seq < events[b].seq
			}
			return events[a].at.Before(events[b].at)
		})
	}

	var steps []PathStep
	for _, ev := range events {
		if len(steps) > 0 && steps[len(steps)-1] == ev.step {
			continue
		}
		steps = append(steps, ev.step)
	}

	return Path{VisitID: session.VisitID, ClientID: session.ClientID, Steps: steps}
}

func keepPath(path Path, opts ExtractOptions) bool {
	pageSteps := 0
	for _, s := range path.Steps {
		if s.Kind == StepPage {
			pageSteps++
		}
	}
	if opts.AllowGoalOnly && pageSteps == 1 && path.HasGoalStep() {
		return true
	}
	if pageSteps < opts.MinSteps || pageSteps > opts.MaxSteps {
		return false
	}
	return path.UniquePages() >= 2
}
