package models

// GoalMatchKind says how a goal is attributed to a session.
type GoalMatchKind string

const (
	// MatchIdentifier goals are checked against the session's recorded
	// goal-ID set, never against hits.
	MatchIdentifier GoalMatchKind = "identifier"
	// MatchURLPrefix and MatchURLContains goals are attained via hit scanning.
	MatchURLPrefix   GoalMatchKind = "url_prefix"
	MatchURLContains GoalMatchKind = "url_contains"
	// MatchClick goals need client-side instrumentation we do not ingest;
	// they are never attained.
	MatchClick GoalMatchKind = "click"
)

// GoalMatch is the matching rule of a goal.
type GoalMatch struct {
	Type  GoalMatchKind `json:"type" yaml:"type"`
	Value string        `json:"value,omitempty" yaml:"value,omitempty"`
}

// Goal is one configured conversion goal from the goal registry.
type Goal struct {
	Code     string    `json:"code" yaml:"code"`
	Name     string    `json:"name" yaml:"name"`
	YMGoalID int64     `json:"ym_goal_id,omitempty" yaml:"ym_goal_id,omitempty"`
	Match    GoalMatch `json:"match" yaml:"match"`
}
