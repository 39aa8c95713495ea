package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"uxpulse/api/models"
)

// PageStore persists per-page aggregates and user cohorts. A loaded
// PageSnapshot serves the analysis run as its page-context provider.
type PageStore struct {
	db *sql.DB
}

func NewPageStore(db *sql.DB) *PageStore {
	return &PageStore{db: db}
}

// ReplacePageMetrics swaps a version's page aggregates in one transaction.
func (s *PageStore) ReplacePageMetrics(ctx context.Context, versionID int, pages []models.PageMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin page metrics transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_metrics WHERE version_id = $1;`, versionID); err != nil {
		return fmt.Errorf("failed to clear page metrics for version %d: %w", versionID, err)
	}

	for _, page := range pages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO page_metrics (
				version_id, url, page_title, total_views, unique_visitors,
				avg_time_on_page, bounce_rate, exit_rate, avg_scroll_depth,
				dominant_cohort, dominant_device
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
		`, versionID, page.URL, page.PageTitle, page.TotalViews, page.UniqueVisitors,
			page.AvgTimeOnPage, page.BounceRate, page.ExitRate, page.AvgScrollDepth,
			page.DominantCohort, page.DominantDevice)
		if err != nil {
			return fmt.Errorf("failed to insert page metrics for %s: %w", page.URL, err)
		}
	}
	return tx.Commit()
}

func (s *PageStore) ListPageMetrics(ctx context.Context, versionID int) ([]models.PageMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, url, page_title, total_views, unique_visitors,
		       avg_time_on_page, bounce_rate, exit_rate, avg_scroll_depth,
		       dominant_cohort, dominant_device
		FROM page_metrics
		WHERE version_id = $1
		ORDER BY total_views DESC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list page metrics: %w", err)
	}
	defer rows.Close()

	var pages []models.PageMetrics
	for rows.Next() {
		var page models.PageMetrics
		if err := rows.Scan(&page.VersionID, &page.URL, &page.PageTitle, &page.TotalViews,
			&page.UniqueVisitors, &page.AvgTimeOnPage, &page.BounceRate, &page.ExitRate,
			&page.AvgScrollDepth, &page.DominantCohort, &page.DominantDevice); err != nil {
			return nil, fmt.Errorf("failed to scan page metrics row: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// LoadSnapshot reads a version's page aggregates into an in-memory
// snapshot keyed by normalized location.
func (s *PageStore) LoadSnapshot(ctx context.Context, versionID int, normalize func(string) string) (*PageSnapshot, error) {
	pages, err := s.ListPageMetrics(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return NewPageSnapshot(pages, normalize), nil
}

// PageSnapshot is an immutable in-memory page-context provider.
type PageSnapshot struct {
	pages []models.PageMetrics
	byLoc map[string]models.PageMetrics
}

func NewPageSnapshot(pages []models.PageMetrics, normalize func(string) string) *PageSnapshot {
	snap := &PageSnapshot{
		pages: pages,
		byLoc: make(map[string]models.PageMetrics, len(pages)),
	}
	for _, page := range pages {
		loc := page.URL
		if normalize != nil {
			loc = normalize(page.URL)
		}
		if loc == "" {
			continue
		}
		if existing, dup := snap.byLoc[loc]; !dup || page.TotalViews > existing.TotalViews {
			snap.byLoc[loc] = page
		}
	}
	return snap
}

func (p *PageSnapshot) PageContext(location string) (models.PageMetrics, bool) {
	page, ok := p.byLoc[location]
	return page, ok
}

func (p *PageSnapshot) AllPages() []models.PageMetrics {
	out := make([]models.PageMetrics, len(p.pages))
	copy(out, p.pages)
	return out
}

// CohortStore persists the externally computed user cohorts.
type CohortStore struct {
	db *sql.DB
}

func NewCohortStore(db *sql.DB) *CohortStore {
	return &CohortStore{db: db}
}

func (s *CohortStore) ReplaceCohorts(ctx context.Context, versionID int, cohorts []models.UserCohort) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cohorts transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_cohorts WHERE version_id = $1;`, versionID); err != nil {
		return fmt.Errorf("failed to clear cohorts for version %d: %w", versionID, err)
	}

	for i := range cohorts {
		cohort := &cohorts[i]
		if cohort.ID == "" {
			cohort.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_cohorts (id, version_id, name, users_count, percentage, avg_bounce, avg_duration, member_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
		`, cohort.ID, versionID, cohort.Name, cohort.UsersCount, cohort.Percentage,
			cohort.AvgBounceRate, cohort.AvgDuration, pq.Array(cohort.MemberClientIDs))
		if err != nil {
			return fmt.Errorf("failed to insert cohort %q: %w", cohort.Name, err)
		}
	}
	return tx.Commit()
}

func (s *CohortStore) ListCohorts(ctx context.Context, versionID int) ([]models.UserCohort, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version_id, name, users_count, percentage, avg_bounce, avg_duration, member_ids, created_at
		FROM user_cohorts
		WHERE version_id = $1
		ORDER BY users_count DESC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []models.UserCohort
	for rows.Next() {
		var cohort models.UserCohort
		if err := rows.Scan(&cohort.ID, &cohort.VersionID, &cohort.Name, &cohort.UsersCount,
			&cohort.Percentage, &cohort.AvgBounceRate, &cohort.AvgDuration,
			pq.Array(&cohort.MemberClientIDs), &cohort.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cohort row: %w", err)
		}
		cohorts = append(cohorts, cohort)
	}
	return cohorts, rows.Err()
}
