package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"uxpulse/api/database"
	"uxpulse/api/models"
)

// EventStore owns the raw analytics events in ClickHouse: visit sessions
// and page hits, both immutable per version once ingested.
type EventStore struct {
	DB *database.ClickHouseClient
}

func NewEventStore(chClient *database.ClickHouseClient) *EventStore {
	return &EventStore{DB: chClient}
}

func (s *EventStore) InsertSessions(ctx context.Context, versionID int, sessions []models.VisitSession) error {
	if len(sessions) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO visit_sessions (
			version_id, visit_id, client_id, start_time, duration_sec, device,
			source, bounced, page_views, entry_page, exit_page, goal_ids
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sessions batch: %w", err)
	}

	for _, session := range sessions {
		err := batch.Append(
			int32(versionID),
			session.VisitID,
			session.ClientID,
			session.StartTime,
			int32(session.DurationSec),
			session.Device,
			session.Source,
			boolToUInt8(session.Bounced),
			int32(session.PageViews),
			session.EntryPage,
			session.ExitPage,
			session.GoalIDs,
		)
		if err != nil {
			log.Printf("Error appending session to batch (VisitID: %s): %v", session.VisitID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send sessions batch: %w", err)
	}

	log.Printf("Inserted %d visit sessions for version %d.", len(sessions), versionID)
	return nil
}

func (s *EventStore) InsertHits(ctx context.Context, versionID int, hits []models.PageHit) error {
	if len(hits) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO page_hits (
			version_id, client_id, timestamp, url, title, time_on_page, scroll_depth, is_exit
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare hits batch: %w", err)
	}

	for _, hit := range hits {
		err := batch.Append(
			int32(versionID),
			hit.ClientID,
			hit.Timestamp,
			hit.URL,
			hit.Title,
			hit.TimeOnPage,
			hit.ScrollDepth,
			boolToUInt8(hit.IsExit),
		)
		if err != nil {
			log.Printf("Error appending hit to batch (ClientID: %s): %v", hit.ClientID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send hits batch: %w", err)
	}

	log.Printf("Inserted %d page hits for version %d.", len(hits), versionID)
	return nil
}

// LoadSessions reads a version's sessions with their hits attached.
func (s *EventStore) LoadSessions(ctx context.Context, versionID int) ([]models.VisitSession, error) {
	sessions, err := s.loadSessionRows(ctx, versionID)
	if err != nil {
		return nil, err
	}
	hits, err := s.loadHitRows(ctx, versionID)
	if err != nil {
		return nil, err
	}
	AttachHits(sessions, hits)
	return sessions, nil
}

func (s *EventStore) loadSessionRows(ctx context.Context, versionID int) ([]models.VisitSession, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT visit_id, client_id, start_time, duration_sec, device, source,
		       bounced, page_views, entry_page, exit_page, goal_ids
		FROM visit_sessions
		WHERE version_id = ?
		ORDER BY start_time ASC
	`, int32(versionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query visit sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.VisitSession
	for rows.Next() {
		var (
			session     models.VisitSession
			durationSec int32
			bounced     uint8
			pageViews   int32
		)
		if err := rows.Scan(
			&session.VisitID, &session.ClientID, &session.StartTime, &durationSec,
			&session.Device, &session.Source, &bounced, &pageViews,
			&session.EntryPage, &session.ExitPage, &session.GoalIDs,
		); err != nil {
			log.Printf("Error scanning visit session row: %v", err)
			continue
		}
		session.VersionID = versionID
		session.DurationSec = int(durationSec)
		session.Bounced = bounced != 0
		session.PageViews = int(pageViews)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during visit sessions query: %w", err)
	}
	return sessions, nil
}

func (s *EventStore) loadHitRows(ctx context.Context, versionID int) ([]models.PageHit, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT client_id, timestamp, url, title, time_on_page, scroll_depth, is_exit
		FROM page_hits
		WHERE version_id = ?
		ORDER BY client_id, timestamp ASC
	`, int32(versionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query page hits: %w", err)
	}
	defer rows.Close()

	var hits []models.PageHit
	for rows.Next() {
		var (
			hit    models.PageHit
			isExit uint8
		)
		if err := rows.Scan(
			&hit.ClientID, &hit.Timestamp, &hit.URL, &hit.Title,
			&hit.TimeOnPage, &hit.ScrollDepth, &isExit,
		); err != nil {
			log.Printf("Error scanning page hit row: %v", err)
			continue
		}
		hit.IsExit = isExit != 0
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page hits query: %w", err)
	}
	return hits, nil
}

// CountSessions returns the number of stored sessions for a version.
func (s *EventStore) CountSessions(ctx context.Context, versionID int) (uint64, error) {
	var count uint64
	err := s.DB.Conn.QueryRow(ctx,
		`SELECT count() FROM visit_sessions WHERE version_id = ?`, int32(versionID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visit sessions: %w", err)
	}
	return count, nil
}

// DeleteVersionEvents drops a version's raw events so a re-ingest starts
// clean.
func (s *EventStore) DeleteVersionEvents(ctx context.Context, versionID int) error {
	for _, table := range []string{"visit_sessions", "page_hits"} {
		query := fmt.Sprintf(`ALTER TABLE %s DELETE WHERE version_id = ?`, table)
		if err := s.DB.Conn.Exec(ctx, query, int32(versionID)); err != nil {
			return fmt.Errorf("failed to delete %s for version %d: %w", table, versionID, err)
		}
	}
	return nil
}

// AttachHits joins hits onto sessions. The export keys hits by client
// identity only, so when a client has several sessions each hit goes to
// the latest session that started at or before the hit; hits preceding
// every session go to the client's first one.
func AttachHits(sessions []models.VisitSession, hits []models.PageHit) {
	byClient := make(map[string][]*models.VisitSession)
	for i := range sessions {
		sessions[i].Hits = nil
		byClient[sessions[i].ClientID] = append(byClient[sessions[i].ClientID], &sessions[i])
	}
	for _, list := range byClient {
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].StartTime.Before(list[b].StartTime)
		})
	}

	for _, hit := range hits {
		list := byClient[hit.ClientID]
		if len(list) == 0 {
			continue
		}
		target := list[0]
		for _, candidate := range list {
			if candidate.StartTime.After(hit.Timestamp) {
				break
			}
			target = candidate
		}
		target.Hits = append(target.Hits, hit)
	}

	for i := range sessions {
		sort.SliceStable(sessions[i].Hits, func(a, b int) bool {
			return sessions[i].Hits[a].Timestamp.Before(sessions[i].Hits[b].Timestamp)
		})
	}
}

// SessionWindow reports the time span covered by a version's sessions.
func (s *EventStore) SessionWindow(ctx context.Context, versionID int) (start, end time.Time, err error) {
	err = s.DB.Conn.QueryRow(ctx, `
		SELECT min(start_time), max(start_time)
		FROM visit_sessions
		WHERE version_id = ?
	`, int32(versionID)).Scan(&start, &end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query session window: %w", err)
	}
	return start, end, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
