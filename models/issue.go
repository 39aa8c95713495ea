package models

import "time"

// IssueType identifies one behavioral signature from the detector suite.
type IssueType string

const (
	IssueRageClick     IssueType = "RAGE_CLICK"
	IssueDeadClick     IssueType = "DEAD_CLICK"
	IssueNavLoop       IssueType = "LOOPING"
	IssueBackForthLoop IssueType = "NAVIGATION_BACK"
	IssueWandering     IssueType = "WANDERING"
	IssueHighBounce    IssueType = "HIGH_BOUNCE"
	IssueStalledForm   IssueType = "FORM_FIELD_ERRORS"
	IssueFunnelDropoff IssueType = "FUNNEL_DROPOFF"
	IssueScanAndDrop   IssueType = "SCAN_AND_DROP"
	IssueSearchFail    IssueType = "SEARCH_FAIL"
)

// Severity levels for detected issues.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Trend classifies how an issue moved since the previous version.
type Trend string

const (
	TrendNew      Trend = "new"
	TrendWorse    Trend = "worse"
	TrendImproved Trend = "improved"
	TrendStable   Trend = "stable"
)

// Priority buckets for triage.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// UXIssue is one detected anomaly, created once per run per
// (type, normalized location) and never mutated afterwards except for
// the lifecycle annotation fields (trend, priority).
type UXIssue struct {
	ID          string    `json:"id"`
	VersionID   int       `json:"version_id"`
	IssueType   IssueType `json:"issue_type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Location    string    `json:"location_url"`

	AffectedSessions int     `json:"affected_sessions"`
	ImpactScore      float64 `json:"impact_score"`

	Hypothesis string `json:"hypothesis,omitempty"`
	Fix        string `json:"fix,omitempty"`

	Trend                  Trend    `json:"trend"`
	Priority               Priority `json:"priority"`
	RecommendedSpecialists []string `json:"recommended_specialists,omitempty"`
	DetectedVersionName    string   `json:"detected_version_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LifecycleStatus classifies an issue's change between two versions.
type LifecycleStatus string

const (
	LifecycleNew        LifecycleStatus = "NEW"
	LifecyclePersistent LifecycleStatus = "PERSISTENT"
	LifecycleImproved   LifecycleStatus = "IMPROVED"
	LifecycleResolved   LifecycleStatus = "RESOLVED"
	LifecycleRegressed  LifecycleStatus = "REGRESSED"
)

// IssueLifecycle is one derived lifecycle record, recomputed fully on
// every run rather than appended incrementally.
type IssueLifecycle struct {
	ID           string          `json:"id"`
	IssueID      string          `json:"issue_id"`
	IssueType    IssueType       `json:"issue_type"`
	Location     string          `json:"location"`
	Status       LifecycleStatus `json:"status"`
	ImpactChange float64         `json:"impact_change"`
	VersionID    int             `json:"version_id"`
	CreatedAt    time.Time       `json:"created_at"`
}
