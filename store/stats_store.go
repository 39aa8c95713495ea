package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"uxpulse/api/database"
	"uxpulse/api/utils"
)

// StatsStore answers dashboard chart queries straight from the raw events
// in ClickHouse.
type StatsStore struct {
	DB *database.ClickHouseClient
}

type CountByTime struct {
	Time  time.Time `json:"time"`
	Count uint64    `json:"count"`
}

type PageViewCount struct {
	URL   string `json:"url"`
	Count uint64 `json:"count"`
}

func NewStatsStore(chClient *database.ClickHouseClient) *StatsStore {
	return &StatsStore{DB: chClient}
}

// SessionCountsOverTime buckets a version's sessions by the given interval
// (Minute, Hour, Day, Week, Month, Quarter, Year).
func (s *StatsStore) SessionCountsOverTime(ctx context.Context, versionID int, interval string) ([]CountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(start_time) AS time_bucket, count() AS total
		FROM visit_sessions
		WHERE version_id = ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	return s.queryCounts(ctx, query, int32(versionID))
}

// UniqueVisitorsOverTime buckets a version's distinct clients by interval.
func (s *StatsStore) UniqueVisitorsOverTime(ctx context.Context, versionID int, interval string) ([]CountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(start_time) AS time_bucket, uniq(client_id) AS visitors
		FROM visit_sessions
		WHERE version_id = ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	return s.queryCounts(ctx, query, int32(versionID))
}

func (s *StatsStore) queryCounts(ctx context.Context, query string, args ...interface{}) ([]CountByTime, error) {
	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time buckets: %w", err)
	}
	defer rows.Close()

	var results []CountByTime
	for rows.Next() {
		var (
			timeBucket time.Time
			count      uint64
		)
		if err := rows.Scan(&timeBucket, &count); err != nil {
			log.Printf("Error scanning time bucket row: %v", err)
			continue
		}
		results = append(results, CountByTime{Time: timeBucket, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during time bucket query: %w", err)
	}
	return results, nil
}

// TopPageURLs returns a version's most viewed raw URLs.
func (s *StatsStore) TopPageURLs(ctx context.Context, versionID int, limit uint64) ([]PageViewCount, error) {
	if limit == 0 {
		limit = 10
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT url, count() AS view_count
		FROM page_hits
		WHERE version_id = ?
		GROUP BY url
		ORDER BY view_count DESC
		LIMIT ?
	`, int32(versionID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page urls: %w", err)
	}
	defer rows.Close()

	var results []PageViewCount
	for rows.Next() {
		var row PageViewCount
		if err := rows.Scan(&row.URL, &row.Count); err != nil {
			log.Printf("Error scanning top page row: %v", err)
			continue
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during top page query: %w", err)
	}
	return results, nil
}
