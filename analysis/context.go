package analysis

import "uxpulse/api/models"

// GoalResolver supplies configured goals to the path extractor and the
// funnel matcher. The goal registry implements it.
type GoalResolver interface {
	GoalByCode(code string) (models.Goal, bool)
	GoalByID(id int64) (models.Goal, bool)
}

// PageContextProvider is the cohort-context collaborator boundary: per-page
// aggregates plus dominant cohort/device labels, queried by normalized
// location. The engine reads these, it never computes cohorts itself.
type PageContextProvider interface {
	PageContext(location string) (models.PageMetrics, bool)
	AllPages() []models.PageMetrics
}

// RunContext is the immutable per-run input threaded through the pipeline
// stages. A run never mutates entities from a prior run; PreviousIssues is
// read-only diffing input.
type RunContext struct {
	Version        models.ProductVersion
	Sessions       []models.VisitSession
	Pages          PageContextProvider
	Goals          GoalResolver
	PreviousIssues []models.UXIssue
}

// NoPages is a PageContextProvider with no data, used when page aggregates
// were not ingested; page-level detectors then emit nothing.
type NoPages struct{}

func (NoPages) PageContext(string) (models.PageMetrics, bool) { return models.PageMetrics{}, false }
func (NoPages) AllPages() []models.PageMetrics                { return nil }
