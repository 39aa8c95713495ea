package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"uxpulse/api/models"
)

// VersionStore manages product versions and their daily rollups.
type VersionStore struct {
	db *sql.DB
}

func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

// GetOrCreateVersion returns the version with the given name, creating it
// when absent. Ingest is keyed by version name, so re-running an ingest
// reuses the row.
func (s *VersionStore) GetOrCreateVersion(ctx context.Context, name string, releaseDate time.Time) (*models.ProductVersion, error) {
	version := &models.ProductVersion{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, release_date, is_active, created_at
		FROM product_versions
		WHERE name = $1;
	`, name).Scan(&version.ID, &version.Name, &version.ReleaseDate, &version.IsActive, &version.CreatedAt)
	if err == nil {
		return version, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up version %q: %w", name, err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO product_versions (name, release_date)
		VALUES ($1, $2)
		RETURNING id, name, release_date, is_active, created_at;
	`, name, releaseDate).Scan(&version.ID, &version.Name, &version.ReleaseDate, &version.IsActive, &version.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create version %q: %w", name, err)
	}
	return version, nil
}

func (s *VersionStore) GetVersionByID(ctx context.Context, id int) (*models.ProductVersion, error) {
	version := &models.ProductVersion{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, release_date, is_active, created_at
		FROM product_versions
		WHERE id = $1;
	`, id).Scan(&version.ID, &version.Name, &version.ReleaseDate, &version.IsActive, &version.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("version %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version %d: %w", id, err)
	}
	return version, nil
}

func (s *VersionStore) GetVersionByName(ctx context.Context, name string) (*models.ProductVersion, error) {
	version := &models.ProductVersion{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, release_date, is_active, created_at
		FROM product_versions
		WHERE name = $1;
	`, name).Scan(&version.ID, &version.Name, &version.ReleaseDate, &version.IsActive, &version.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("version %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version %q: %w", name, err)
	}
	return version, nil
}

func (s *VersionStore) ListVersions(ctx context.Context) ([]models.ProductVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, release_date, is_active, created_at
		FROM product_versions
		ORDER BY release_date DESC, id DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.ProductVersion
	for rows.Next() {
		var v models.ProductVersion
		if err := rows.Scan(&v.ID, &v.Name, &v.ReleaseDate, &v.IsActive, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// PreviousVersion returns the version released most recently before the
// given one, or nil when it is the first.
func (s *VersionStore) PreviousVersion(ctx context.Context, version *models.ProductVersion) (*models.ProductVersion, error) {
	prev := &models.ProductVersion{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, release_date, is_active, created_at
		FROM product_versions
		WHERE (release_date < $1 OR (release_date = $1 AND id < $2))
		ORDER BY release_date DESC, id DESC
		LIMIT 1;
	`, version.ReleaseDate, version.ID).Scan(&prev.ID, &prev.Name, &prev.ReleaseDate, &prev.IsActive, &prev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous version for %d: %w", version.ID, err)
	}
	return prev, nil
}

// ReplaceDailyStats swaps a version's daily rollups in one transaction.
func (s *VersionStore) ReplaceDailyStats(ctx context.Context, versionID int, stats []models.DailyStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin daily stats transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_stats WHERE version_id = $1;`, versionID); err != nil {
		return fmt.Errorf("failed to clear daily stats: %w", err)
	}

	for _, stat := range stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (version_id, day, sessions, visitors, page_views, bounce_rate, avg_duration, goal_sessions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
		`, versionID, stat.Date, stat.TotalSessions, stat.Visitors, stat.PageViews,
			stat.BounceRate, stat.AvgDuration, stat.GoalSessions)
		if err != nil {
			return fmt.Errorf("failed to insert daily stat for %s: %w", stat.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (s *VersionStore) ListDailyStats(ctx context.Context, versionID int) ([]models.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, day, sessions, visitors, page_views, bounce_rate, avg_duration, goal_sessions
		FROM daily_stats
		WHERE version_id = $1
		ORDER BY day ASC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var stat models.DailyStat
		if err := rows.Scan(&stat.VersionID, &stat.Date, &stat.TotalSessions, &stat.Visitors,
			&stat.PageViews, &stat.BounceRate, &stat.AvgDuration, &stat.GoalSessions); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
