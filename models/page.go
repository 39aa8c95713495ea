package models

import "time"

// PageMetrics is the per-page aggregate consumed by the page-level
// detectors and attached to hypothesis requests. AvgScrollDepth below
// zero means the export carried no scroll data for the page.
type PageMetrics struct {
	VersionID      int     `json:"version_id"`
	URL            string  `json:"url"`
	PageTitle      string  `json:"page_title,omitempty"`
	TotalViews     int     `json:"total_views"`
	UniqueVisitors int     `json:"unique_visitors"`
	AvgTimeOnPage  float64 `json:"avg_time_on_page"`
	BounceRate     float64 `json:"bounce_rate"`
	ExitRate       float64 `json:"exit_rate"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
	DominantCohort string  `json:"dominant_cohort,omitempty"`
	DominantDevice string  `json:"dominant_device,omitempty"`
}

// HasScrollData reports whether scroll depth was observed for the page.
func (m *PageMetrics) HasScrollData() bool {
	return m.AvgScrollDepth >= 0
}

// UserCohort is a labeled group of clients supplied by the external
// clustering collaborator. The engine reads cohorts, it never computes them.
type UserCohort struct {
	ID              string             `json:"id"`
	VersionID       int                `json:"version_id"`
	Name            string             `json:"name"`
	UsersCount      int                `json:"users_count"`
	Percentage      float64            `json:"percentage"`
	AvgBounceRate   float64            `json:"avg_bounce_rate"`
	AvgDuration     float64            `json:"avg_duration"`
	MemberClientIDs []string           `json:"member_client_ids"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// MemberSet returns the cohort's client IDs as a lookup set.
func (c *UserCohort) MemberSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.MemberClientIDs))
	for _, id := range c.MemberClientIDs {
		set[id] = struct{}{}
	}
	return set
}
