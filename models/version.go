package models

import "time"

// ProductVersion is an immutable labeled snapshot of ingested data.
// Ordering by ReleaseDate defines which version is "previous" for diffing.
type ProductVersion struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	ReleaseDate time.Time `json:"release_date"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyStat is a precalculated per-day rollup used by dashboard charts.
type DailyStat struct {
	VersionID     int       `json:"version_id"`
	Date          time.Time `json:"date"`
	TotalSessions int       `json:"total_sessions"`
	Visitors      int       `json:"visitors"`
	PageViews     int       `json:"page_views"`
	BounceRate    float64   `json:"bounce_rate"`
	AvgDuration   float64   `json:"avg_duration"`
	GoalSessions  int       `json:"goal_sessions"`
}
