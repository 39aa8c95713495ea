package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"uxpulse/api/models"
)

// IssueStore persists detected issues and their lifecycle records. Both are
// replaced wholesale per version on each analysis run.
type IssueStore struct {
	db *sql.DB
}

func NewIssueStore(db *sql.DB) *IssueStore {
	return &IssueStore{db: db}
}

// ReplaceIssues swaps a version's issues in one transaction so a re-run
// never duplicates or half-updates.
func (s *IssueStore) ReplaceIssues(ctx context.Context, versionID int, issues []models.UXIssue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin issues transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ux_issues WHERE version_id = $1;`, versionID); err != nil {
		return fmt.Errorf("failed to clear issues for version %d: %w", versionID, err)
	}

	for i := range issues {
		issue := &issues[i]
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ux_issues (
				id, version_id, issue_type, severity, description, location_url,
				affected_sessions, impact_score, hypothesis, fix, trend, priority, specialists
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
		`, issue.ID, versionID, issue.IssueType, issue.Severity, issue.Description,
			issue.Location, issue.AffectedSessions, issue.ImpactScore,
			issue.Hypothesis, issue.Fix, issue.Trend, issue.Priority,
			pq.Array(issue.RecommendedSpecialists))
		if err != nil {
			return fmt.Errorf("failed to insert issue %s at %s: %w", issue.IssueType, issue.Location, err)
		}
	}
	return tx.Commit()
}

func (s *IssueStore) ListIssues(ctx context.Context, versionID int) ([]models.UXIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version_id, issue_type, severity, description, location_url,
		       affected_sessions, impact_score, hypothesis, fix, trend, priority, specialists, created_at
		FROM ux_issues
		WHERE version_id = $1
		ORDER BY impact_score DESC, affected_sessions DESC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []models.UXIssue
	for rows.Next() {
		var issue models.UXIssue
		if err := rows.Scan(
			&issue.ID, &issue.VersionID, &issue.IssueType, &issue.Severity,
			&issue.Description, &issue.Location, &issue.AffectedSessions,
			&issue.ImpactScore, &issue.Hypothesis, &issue.Fix, &issue.Trend,
			&issue.Priority, pq.Array(&issue.RecommendedSpecialists), &issue.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// ReplaceLifecycles swaps a version's lifecycle records, mirroring the
// full-recompute contract of the diff.
func (s *IssueStore) ReplaceLifecycles(ctx context.Context, versionID int, records []models.IssueLifecycle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lifecycles transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_lifecycles WHERE version_id = $1;`, versionID); err != nil {
		return fmt.Errorf("failed to clear lifecycles for version %d: %w", versionID, err)
	}

	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issue_lifecycles (id, issue_id, issue_type, location, status, impact_change, version_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7);
		`, rec.ID, rec.IssueID, rec.IssueType, rec.Location, rec.Status, rec.ImpactChange, versionID)
		if err != nil {
			return fmt.Errorf("failed to insert lifecycle record for %s: %w", rec.Location, err)
		}
	}
	return tx.Commit()
}

func (s *IssueStore) ListLifecycles(ctx context.Context, versionID int) ([]models.IssueLifecycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, issue_type, location, status, impact_change, version_id, created_at
		FROM issue_lifecycles
		WHERE version_id = $1
		ORDER BY status ASC, location ASC;
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lifecycles: %w", err)
	}
	defer rows.Close()

	var records []models.IssueLifecycle
	for rows.Next() {
		var rec models.IssueLifecycle
		if err := rows.Scan(&rec.ID, &rec.IssueID, &rec.IssueType, &rec.Location,
			&rec.Status, &rec.ImpactChange, &rec.VersionID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lifecycle row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IssueHistory returns every lifecycle record for one (type, location) key
// across versions, oldest first.
func (s *IssueStore) IssueHistory(ctx context.Context, issueType models.IssueType, location string) ([]models.IssueLifecycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, issue_type, location, status, impact_change, version_id, created_at
		FROM issue_lifecycles
		WHERE issue_type = $1 AND location = $2
		ORDER BY version_id ASC;
	`, issueType, location)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue history: %w", err)
	}
	defer rows.Close()

	var records []models.IssueLifecycle
	for rows.Next() {
		var rec models.IssueLifecycle
		if err := rows.Scan(&rec.ID, &rec.IssueID, &rec.IssueType, &rec.Location,
			&rec.Status, &rec.ImpactChange, &rec.VersionID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
