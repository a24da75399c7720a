package capture

import (
	"context"
	"fmt"
)

// ReplaceRouteStat overwrites the materialized rollup for one route. Stats
// are derived data; recomputation is idempotent and intentionally runs
// outside the ingest transaction.
func (s *Store) ReplaceRouteStat(ctx context.Context, stat *RouteStat) error {
	if stat == nil {
		return fmt.Errorf("route stat is nil")
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO route_stats (session_id, route, keys_total, new_keys_count, text_changed_count, last_seen_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(session_id, route) DO UPDATE SET
             keys_total = excluded.keys_total,
             new_keys_count = excluded.new_keys_count,
             text_changed_count = excluded.text_changed_count,
             last_seen_at = excluded.last_seen_at`,
		stat.SessionID,
		stat.Route,
		stat.KeysTotal,
		stat.NewKeysCount,
		stat.TextChangedCount,
		formatTime(stat.LastSeenAt),
	); err != nil {
		return fmt.Errorf("replace route stat: %w", err)
	}
	return nil
}

// RouteStats returns the rollups for a session in route order.
func (s *Store) RouteStats(ctx context.Context, sessionID string) ([]*RouteStat, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, route, keys_total, new_keys_count, text_changed_count, last_seen_at
         FROM route_stats WHERE session_id = ? ORDER BY route`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("route stats: %w", err)
	}
	defer rows.Close()

	var stats []*RouteStat
	for rows.Next() {
		var (
			stat        RouteStat
			lastSeenRaw string
		)
		if err := rows.Scan(
			&stat.SessionID,
			&stat.Route,
			&stat.KeysTotal,
			&stat.NewKeysCount,
			&stat.TextChangedCount,
			&lastSeenRaw,
		); err != nil {
			return nil, err
		}
		if lastSeen, err := parseTimeString(lastSeenRaw); err == nil {
			stat.LastSeenAt = lastSeen
		}
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}
