// Package pipeline wires the analysis stages to the stores: ingest raw
// events, discover and persist funnels, calculate funnel metrics, run the
// detector suite, and diff issue lifecycles across versions.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"uxpulse/api/analysis"
	"uxpulse/api/goals"
	"uxpulse/api/hypothesis"
	"uxpulse/api/models"
	"uxpulse/api/store"
)

// MaxDiscoveredFunnels caps how many auto-discovered funnels one run
// materializes per scope.
const MaxDiscoveredFunnels = 15

type Runner struct {
	Events   *store.EventStore
	Versions *store.VersionStore
	Funnels  *store.FunnelStore
	Issues   *store.IssueStore
	Pages    *store.PageStore
	Cohorts  *store.CohortStore
	Goals    *goals.Registry
	Hypo     *hypothesis.Client

	// BaseURL prefixes discovered funnel step targets.
	BaseURL string
}

// Ingest loads one export batch under the named version: raw events into
// ClickHouse, derived page aggregates and daily rollups into PostgreSQL.
// Re-ingesting a version replaces its data rather than appending.
func (r *Runner) Ingest(ctx context.Context, versionName string, releaseDate time.Time, sessions []models.VisitSession, hits []models.PageHit) (*models.ProductVersion, error) {
	version, err := r.Versions.GetOrCreateVersion(ctx, versionName, releaseDate)
	if err != nil {
		return nil, err
	}

	if err := r.Events.DeleteVersionEvents(ctx, version.ID); err != nil {
		return nil, err
	}
	if err := r.Events.InsertSessions(ctx, version.ID, sessions); err != nil {
		return nil, err
	}
	if err := r.Events.InsertHits(ctx, version.ID, hits); err != nil {
		return nil, err
	}

	store.AttachHits(sessions, hits)
	cohorts, err := r.Cohorts.ListCohorts(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	pages := ComputePageMetrics(version.ID, sessions, cohorts)
	if err := r.Pages.ReplacePageMetrics(ctx, version.ID, pages); err != nil {
		return nil, err
	}

	stats := ComputeDailyStats(version.ID, sessions)
	if err := r.Versions.ReplaceDailyStats(ctx, version.ID, stats); err != nil {
		return nil, err
	}

	log.Printf("Ingested version %q: %d sessions, %d hits, %d pages, %d days.",
		versionName, len(sessions), len(hits), len(pages), len(stats))
	return version, nil
}

// DiscoverOptions tunes one funnel-discovery run. Zero values mean the
// defaults: adaptive support, 1% minimum share, MaxDiscoveredFunnels cap.
type DiscoverOptions struct {
	MinSupport    int
	MinPercentage float64
	MaxFunnels    int

	// DryRun mines and materializes without touching storage.
	DryRun bool
}

// DiscoverFunnels mines a version's paths and persists the surviving
// sequences as funnel definitions. Previously discovered funnels for the
// version are dropped first, so the operation is idempotent. When cohorts
// exist, discovery additionally runs inside each cohort with a relaxed
// adaptive support.
func (r *Runner) DiscoverFunnels(ctx context.Context, version *models.ProductVersion, opts DiscoverOptions) ([]models.ConversionFunnel, error) {
	sessions, err := r.Events.LoadSessions(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		deleted, err := r.Funnels.DeleteDiscoveredFunnels(ctx, version.ID)
		if err != nil {
			return nil, err
		}
		if deleted > 0 {
			log.Printf("Dropped %d previously discovered funnels for version %q.", deleted, version.Name)
		}
	}

	var created []models.ConversionFunnel

	global, err := r.discoverScope(sessions, "", false, opts)
	if err != nil {
		return nil, err
	}
	created = append(created, global...)

	cohorts, err := r.Cohorts.ListCohorts(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	for i := range cohorts {
		cohort := &cohorts[i]
		members := cohort.MemberSet()
		if len(members) == 0 {
			log.Printf("Cohort %q has no members, skipping funnel discovery.", cohort.Name)
			continue
		}
		var scoped []models.VisitSession
		for s := range sessions {
			if _, ok := members[sessions[s].ClientID]; ok {
				scoped = append(scoped, sessions[s])
			}
		}
		perCohort, err := r.discoverScope(scoped, cohort.Name, true, opts)
		if err != nil {
			return nil, err
		}
		created = append(created, perCohort...)
	}

	for i := range created {
		created[i].VersionID = version.ID
		if opts.DryRun {
			continue
		}
		if err := r.Funnels.CreateFunnel(ctx, &created[i]); err != nil {
			return nil, err
		}
	}

	log.Printf("Discovered %d funnels for version %q.", len(created), version.Name)
	return created, nil
}

func (r *Runner) discoverScope(sessions []models.VisitSession, cohortName string, relaxed bool, opts DiscoverOptions) ([]models.ConversionFunnel, error) {
	paths, stats := analysis.ExtractPaths(sessions, analysis.ExtractOptions{
		MinSteps:      2,
		MaxSteps:      20,
		IncludeGoals:  true,
		AllowGoalOnly: relaxed,
		Goals:         r.Goals,
	})
	if stats.PathsExtracted == 0 {
		return nil, nil
	}

	support := opts.MinSupport
	if support <= 0 {
		support = analysis.AdaptiveSupport(len(paths))
	}
	minPercentage := opts.MinPercentage
	if minPercentage <= 0 {
		minPercentage = 1.0
	}
	maxFunnels := opts.MaxFunnels
	if maxFunnels <= 0 {
		maxFunnels = MaxDiscoveredFunnels
	}

	mined := analysis.MineSequences(paths, analysis.MineOptions{
		MinSupport:    support,
		MinPercentage: minPercentage,
		TotalSessions: len(paths),
	})
	kept := analysis.FilterRedundant(mined)
	if len(kept) > maxFunnels {
		kept = kept[:maxFunnels]
	}

	return analysis.MaterializeFunnels(kept, analysis.MaterializeOptions{
		BaseURL:    r.BaseURL,
		CohortName: cohortName,
		Goals:      r.Goals,
	}), nil
}

// CreatePresetFunnels builds one preset funnel per configured URL or
// identifier goal: home page entry followed by the goal. Existing presets
// with the same name are kept, so re-running is additive but not
// duplicating.
func (r *Runner) CreatePresetFunnels(ctx context.Context, version *models.ProductVersion) ([]models.ConversionFunnel, error) {
	existing, err := r.Funnels.ListFunnels(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, funnel := range existing {
		if funnel.IsPreset {
			taken[funnel.Name] = true
		}
	}

	var created []models.ConversionFunnel
	for _, goal := range r.Goals.All() {
		if goal.Match.Type == models.MatchClick {
			continue
		}
		name := "Home → " + goal.Name
		if taken[name] {
			continue
		}
		funnel := models.ConversionFunnel{
			VersionID:   version.ID,
			Name:        name,
			Description: fmt.Sprintf("Preset funnel for goal %q.", goal.Code),
			Steps: models.FunnelSteps{
				models.URLStep{Target: r.BaseURL + "/", Name: "Home page"},
				models.GoalStep{Code: goal.Code, Name: goal.Name},
			},
			IsPreset:        true,
			RequireSequence: true,
		}
		if err := r.Funnels.CreateFunnel(ctx, &funnel); err != nil {
			return nil, err
		}
		created = append(created, funnel)
	}

	log.Printf("Created %d preset funnels for version %q.", len(created), version.Name)
	return created, nil
}

// CalcOptions tunes one metrics calculation: the per-cohort breakdown,
// cache bypass, and an optional single-funnel restriction.
type CalcOptions struct {
	IncludeCohorts bool
	Force          bool
	FunnelID       string
}

// CalculateFunnels computes (or serves cached) metrics for a version's
// funnels.
func (r *Runner) CalculateFunnels(ctx context.Context, version *models.ProductVersion, opts CalcOptions) ([]models.StoredFunnelMetrics, error) {
	includeCohorts, force := opts.IncludeCohorts, opts.Force

	funnels, err := r.Funnels.ListFunnels(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	if opts.FunnelID != "" {
		filtered := funnels[:0]
		for i := range funnels {
			if funnels[i].ID == opts.FunnelID {
				filtered = append(filtered, funnels[i])
			}
		}
		funnels = filtered
		if len(funnels) == 0 {
			return nil, fmt.Errorf("funnel %s not found in version %q", opts.FunnelID, version.Name)
		}
	}
	if len(funnels) == 0 {
		return nil, nil
	}

	sessions, err := r.Events.LoadSessions(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	var cohorts []models.UserCohort
	if includeCohorts {
		cohorts, err = r.Cohorts.ListCohorts(ctx, version.ID)
		if err != nil {
			return nil, err
		}
	}

	calc := &analysis.FunnelCalculator{Goals: r.Goals}
	var results []models.StoredFunnelMetrics

	for i := range funnels {
		funnel := &funnels[i]

		if !force {
			cached, err := r.Funnels.GetFreshMetrics(ctx, funnel.ID)
			if err != nil {
				return nil, err
			}
			if cached != nil && cached.IncludesCohorts == includeCohorts {
				results = append(results, *cached)
				continue
			}
		}

		started := time.Now()
		metrics := calc.Calculate(funnel, sessions, nil)
		metrics.Commentary = r.Hypo.FunnelCommentary(ctx, funnel, &metrics)

		stored := models.StoredFunnelMetrics{
			FunnelID:        funnel.ID,
			VersionID:       version.ID,
			IncludesCohorts: includeCohorts,
			Metrics:         metrics,
			DurationSec:     time.Since(started).Seconds(),
		}
		if includeCohorts {
			breakdown, skipped := calc.CalculateByCohorts(funnel, sessions, cohorts)
			for _, name := range skipped {
				log.Printf("Cohort %q has no members, skipping funnel %q breakdown.", name, funnel.Name)
			}
			stored.CohortBreakdown = breakdown
		}

		if err := r.Funnels.SaveMetrics(ctx, &stored); err != nil {
			return nil, err
		}
		results = append(results, stored)
	}
	return results, nil
}

// Analyze runs the detector suite for a version, enriches the findings
// with hypotheses and lifecycle annotations against the previous version,
// and replaces the stored issues and lifecycle records.
func (r *Runner) Analyze(ctx context.Context, version *models.ProductVersion) ([]models.UXIssue, error) {
	sessions, err := r.Events.LoadSessions(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("version %q has no ingested sessions", version.Name)
	}

	pages, err := r.Pages.LoadSnapshot(ctx, version.ID, analysis.NormalizeURL)
	if err != nil {
		return nil, err
	}

	var previous []models.UXIssue
	prevVersion, err := r.Versions.PreviousVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if prevVersion != nil {
		previous, err = r.Issues.ListIssues(ctx, prevVersion.ID)
		if err != nil {
			return nil, err
		}
	}

	run := &analysis.RunContext{
		Version:        *version,
		Sessions:       sessions,
		Pages:          pages,
		Goals:          r.Goals,
		PreviousIssues: previous,
	}

	drafts := analysis.NewSuite().Run(run)
	issues := r.enrichDrafts(ctx, version, pages, drafts)

	records := analysis.DiffIssues(issues, previous)
	statusByID := make(map[string]models.LifecycleStatus, len(records))
	for _, rec := range records {
		statusByID[rec.IssueID] = rec.Status
	}
	for i := range issues {
		issues[i].Trend = analysis.TrendFor(statusByID[issues[i].ID])
		issues[i].Priority = analysis.PriorityFor(&issues[i])
	}

	if err := r.Issues.ReplaceIssues(ctx, version.ID, issues); err != nil {
		return nil, err
	}

	lifecycles := make([]models.IssueLifecycle, 0, len(records))
	for _, rec := range records {
		lifecycles = append(lifecycles, models.IssueLifecycle{
			IssueID:      rec.IssueID,
			IssueType:    rec.IssueType,
			Location:     rec.Location,
			Status:       rec.Status,
			ImpactChange: rec.ImpactChange,
			VersionID:    version.ID,
		})
	}
	if err := r.Issues.ReplaceLifecycles(ctx, version.ID, lifecycles); err != nil {
		return nil, err
	}

	log.Printf("Analysis of version %q produced %d issues (%d lifecycle records).",
		version.Name, len(issues), len(lifecycles))
	return issues, nil
}

func (r *Runner) enrichDrafts(ctx context.Context, version *models.ProductVersion, pages analysis.PageContextProvider, drafts []analysis.Draft) []models.UXIssue {
	issues := make([]models.UXIssue, 0, len(drafts))
	for _, draft := range drafts {
		issue := models.UXIssue{
			ID:                     uuid.NewString(),
			VersionID:              version.ID,
			IssueType:              draft.Type,
			Severity:               draft.Severity,
			Description:            draft.Description,
			Location:               draft.Location,
			AffectedSessions:       draft.AffectedSessions,
			ImpactScore:            draft.ImpactScore,
			RecommendedSpecialists: analysis.SpecialistsFor(draft.Type),
			DetectedVersionName:    version.Name,
		}

		var pageCtx *models.PageMetrics
		if page, ok := pages.PageContext(draft.Location); ok {
			pageCtx = &page
		}
		result := r.Hypo.ForIssue(ctx, &issue, pageCtx)
		issue.Hypothesis = result.Hypothesis
		issue.Fix = result.Fix

		issues = append(issues, issue)
	}
	return issues
}

// RefreshHypotheses regenerates the hypothesis and fix for a version's
// stored issues, keeping everything else intact.
func (r *Runner) RefreshHypotheses(ctx context.Context, version *models.ProductVersion) (int, error) {
	issues, err := r.Issues.ListIssues(ctx, version.ID)
	if err != nil {
		return 0, err
	}
	if len(issues) == 0 {
		return 0, nil
	}

	pages, err := r.Pages.LoadSnapshot(ctx, version.ID, analysis.NormalizeURL)
	if err != nil {
		return 0, err
	}

	for i := range issues {
		var pageCtx *models.PageMetrics
		if page, ok := pages.PageContext(issues[i].Location); ok {
			pageCtx = &page
		}
		result := r.Hypo.ForIssue(ctx, &issues[i], pageCtx)
		issues[i].Hypothesis = result.Hypothesis
		issues[i].Fix = result.Fix
	}

	if err := r.Issues.ReplaceIssues(ctx, version.ID, issues); err != nil {
		return 0, err
	}
	return len(issues), nil
}

// TopPaths reports a version's most traveled 2-3 step windows.
func (r *Runner) TopPaths(ctx context.Context, version *models.ProductVersion, limit int) ([]analysis.Sequence, error) {
	sessions, err := r.Events.LoadSessions(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	paths, _ := analysis.ExtractPaths(sessions, analysis.ExtractOptions{
		MinSteps: 2,
		MaxSteps: 20,
	})
	return analysis.TopPaths(paths, analysis.TopPathsOptions{Limit: limit}), nil
}
