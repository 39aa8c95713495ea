package analysis

import "time"

// All detection thresholds are fixed, inspectable constants. Nothing in the
// engine learns or adapts them at runtime.
const (
	// RageClickGap is the maximum spacing between two hits on the same URL
	// by the same client for them to count as a rage repeat.
	RageClickGap = 2 * time.Second

	// NavLoopMinVisits is the visit count above which a client revisiting
	// one URL becomes a navigation loop.
	NavLoopMinVisits = 3

	// WanderingMinPageViews marks a session as wandering when it exceeds
	// this depth without a recorded goal.
	WanderingMinPageViews = 10
	// WanderingMinSessions suppresses wandering groups smaller than this.
	WanderingMinSessions = 5

	// BounceMaxDuration is the session duration below which a visit counts
	// as a bounce.
	BounceMaxDuration = 15 // seconds

	// FormSessionGap splits form hits into quasi-sessions; FormMaxDuration
	// rejects corrupt spans; FormStallDuration flags a stalled form.
	FormSessionGap    = 30 * time.Minute
	FormMaxDuration   = 2 * time.Hour
	FormStallDuration = 60 * time.Second

	// DropoffMinEntered and DropoffMinConversion bound the staged-path
	// drop-off detector.
	DropoffMinEntered    = 50
	DropoffMinConversion = 0.3

	// MinPageViewsForAlert gates every page-level detector.
	MinPageViewsForAlert = 30

	// Dead-click page profile.
	DeadClickMinExitRate  = 60.0
	DeadClickMaxAvgTime   = 5.0
	DeadClickMaxScroll    = 20.0

	// Scan-and-drop page profile.
	ScanDropMinScroll   = 80.0
	ScanDropMinExitRate = 70.0
	ScanDropMaxAvgTime  = 30.0

	// Search-failure page profile.
	SearchFailMinExitRate = 70.0

	// MaxImpactScore caps every detector's impact formula.
	MaxImpactScore = 10.0

	// TopLocationsPerDetector bounds how many locations one detector reports.
	TopLocationsPerDetector = 5

	// LifecycleDelta is the impact change beyond which an issue counts as
	// regressed (positive) or improved (negative) between versions.
	LifecycleDelta = 1.0
)

// capImpact applies the shared impact-capping convention.
func capImpact(raw float64) float64 {
	if raw > MaxImpactScore {
		return MaxImpactScore
	}
	return raw
}
