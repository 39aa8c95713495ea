package models

import "time"

// VisitSession is one user session from the analytics export.
type VisitSession struct {
	VersionID   int       `json:"version_id"`
	VisitID     string    `json:"visitId"`
	ClientID    string    `json:"clientId"`
	StartTime   time.Time `json:"startTime"`
	DurationSec int       `json:"durationSec"`
	Device      string    `json:"device"`
	Source      string    `json:"source,omitempty"`
	Bounced     bool      `json:"bounced"`
	PageViews   int       `json:"pageViews"`
	EntryPage   string    `json:"entryPage,omitempty"`
	ExitPage    string    `json:"exitPage,omitempty"`
	GoalIDs     []int64   `json:"goalIds,omitempty"`

	// Hits attached to this session, ordered by timestamp after AttachHits.
	Hits []PageHit `json:"hits,omitempty"`
}

// HasGoals reports whether the session recorded at least one goal completion.
func (s *VisitSession) HasGoals() bool {
	return len(s.GoalIDs) > 0
}

// CompletedGoal reports whether the session recorded the given goal ID.
func (s *VisitSession) CompletedGoal(goalID int64) bool {
	for _, id := range s.GoalIDs {
		if id == goalID {
			return true
		}
	}
	return false
}

// PageHit is a single page view inside a session. Hits are exported keyed
// by client identity and joined to sessions during loading.
type PageHit struct {
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`

	// Per-hit engagement figures when the export carries them; zero or
	// negative means unknown.
	TimeOnPage  float64 `json:"timeOnPage,omitempty"`
	ScrollDepth float64 `json:"scrollDepth,omitempty"`
	IsExit      bool    `json:"isExit,omitempty"`
}
