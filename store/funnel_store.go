package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uxpulse/api/models"
)

// FunnelStore persists funnel definitions and their cached metrics in
// PostgreSQL. Steps and metrics are stored as JSONB.
type FunnelStore struct {
	db *sql.DB
}

func NewFunnelStore(db *sql.DB) *FunnelStore {
	return &FunnelStore{db: db}
}

func (s *FunnelStore) CreateFunnel(ctx context.Context, funnel *models.ConversionFunnel) error {
	if funnel.ID == "" {
		funnel.ID = uuid.NewString()
	}
	steps, err := json.Marshal(funnel.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal funnel steps: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO conversion_funnels (
			id, version_id, name, description, steps, is_preset,
			require_sequence, allow_skip_steps, frequency, percentage, cohort_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at;
	`, funnel.ID, funnel.VersionID, funnel.Name, funnel.Description, steps,
		funnel.IsPreset, funnel.RequireSequence, funnel.AllowSkipSteps,
		funnel.Frequency, funnel.Percentage, funnel.CohortName,
	).Scan(&funnel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create funnel %q: %w", funnel.Name, err)
	}
	return nil
}

func (s *FunnelStore) GetFunnel(ctx context.Context, id string) (*models.ConversionFunnel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version_id, name, description, steps, is_preset,
		       require_sequence, allow_skip_steps, frequency, percentage, cohort_name, created_at
		FROM conversion_funnels
		WHERE id = $1;
	`, id)

	funnel, err := scanFunnel(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("funnel %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get funnel %s: %w", id, err)
	}
	return funnel, nil
}

func (s *FunnelStore) ListFunnels(ctx context.Context, versionID int) ([]models.ConversionFunnel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version_id, name, description, steps, is_preset,
		       require_sequence, allow_skip_steps, frequency, percentage, cohort_name, created_at
		FROM conversion_funnels
		WHERE version_id = $1
		ORDER BY is_preset DESC, frequency DESC, created_at ASC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	defer rows.Close()

	var funnels []models.ConversionFunnel
	for rows.Next() {
		funnel, err := scanFunnel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel row: %w", err)
		}
		funnels = append(funnels, *funnel)
	}
	return funnels, rows.Err()
}

// DeleteDiscoveredFunnels removes a version's auto-discovered funnels so
// re-running discovery regenerates rather than accumulates. Preset funnels
// are untouched.
func (s *FunnelStore) DeleteDiscoveredFunnels(ctx context.Context, versionID int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM conversion_funnels
		WHERE version_id = $1 AND is_preset = FALSE;
	`, versionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete discovered funnels: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFunnel(row rowScanner) (*models.ConversionFunnel, error) {
	funnel := &models.ConversionFunnel{}
	var steps []byte
	err := row.Scan(
		&funnel.ID, &funnel.VersionID, &funnel.Name, &funnel.Description, &steps,
		&funnel.IsPreset, &funnel.RequireSequence, &funnel.AllowSkipSteps,
		&funnel.Frequency, &funnel.Percentage, &funnel.CohortName, &funnel.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &funnel.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps for funnel %s: %w", funnel.ID, err)
	}
	return funnel, nil
}

// metricsMaxAge is how long a cached metrics row stays fresh.
const metricsMaxAge = 24 * time.Hour

// SaveMetrics upserts a funnel's cached metrics.
func (s *FunnelStore) SaveMetrics(ctx context.Context, stored *models.StoredFunnelMetrics) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal funnel metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO funnel_metrics (funnel_id, metrics, calculated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (funnel_id) DO UPDATE
		SET metrics = EXCLUDED.metrics, calculated_at = NOW();
	`, stored.FunnelID, payload)
	if err != nil {
		return fmt.Errorf("failed to save metrics for funnel %s: %w", stored.FunnelID, err)
	}
	return nil
}

// GetFreshMetrics returns the cached metrics when present and younger than
// metricsMaxAge; (nil, nil) means the caller should recalculate.
func (s *FunnelStore) GetFreshMetrics(ctx context.Context, funnelID string) (*models.StoredFunnelMetrics, error) {
	var (
		payload      []byte
		calculatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT metrics, calculated_at
		FROM funnel_metrics
		WHERE funnel_id = $1;
	`, funnelID).Scan(&payload, &calculatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics for funnel %s: %w", funnelID, err)
	}
	if time.Since(calculatedAt) > metricsMaxAge {
		return nil, nil
	}

	stored := &models.StoredFunnelMetrics{}
	if err := json.Unmarshal(payload, stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics for funnel %s: %w", funnelID, err)
	}
	stored.CalculatedAt = calculatedAt
	return stored, nil
}
