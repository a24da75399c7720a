package capture

import (
	"context"
	"database/sql"
	"fmt"
)

const itemColumns = "session_id, route, key, last_source_text, source_text_hash, seen_count, first_seen_at, last_seen_at"

// ItemsBySession returns every aggregate for a session ordered by route then key.
func (s *Store) ItemsBySession(ctx context.Context, sessionID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM capture_items WHERE session_id = ? ORDER BY route, key`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("items by session: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ItemsByRoute returns the aggregates for one route of a session in key order.
func (s *Store) ItemsByRoute(ctx context.Context, sessionID, route string) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM capture_items WHERE session_id = ? AND route = ? ORDER BY key`,
		sessionID, route,
	)
	if err != nil {
		return nil, fmt.Errorf("items by route: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// GetItem fetches one aggregate, or nil when the pair was never captured.
func (s *Store) GetItem(ctx context.Context, sessionID, route, key string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM capture_items WHERE session_id = ? AND route = ? AND key = ?`,
		sessionID, route, key,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// CountItems returns the number of distinct (route, key) aggregates for a session.
func (s *Store) CountItems(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM capture_items WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// RoutesForSession returns the distinct routes captured in a session.
func (s *Store) RoutesForSession(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT route FROM capture_items WHERE session_id = ? ORDER BY route`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("routes for session: %w", err)
	}
	defer rows.Close()

	var routes []string
	for rows.Next() {
		var route string
		if err := rows.Scan(&route); err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// GetBatch fetches one batch record, or nil when absent.
func (s *Store) GetBatch(ctx context.Context, sessionID, batchID string) (*Batch, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT session_id, batch_id, sdk_identity, received_count, received_at
         FROM capture_batches WHERE session_id = ? AND batch_id = ?`,
		sessionID, batchID,
	)
	var (
		batch       Batch
		receivedRaw string
	)
	err := row.Scan(&batch.SessionID, &batch.BatchID, &batch.SDKIdentity, &batch.ReceivedCount, &receivedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if received, err := parseTimeString(receivedRaw); err == nil {
		batch.ReceivedAt = received
	}
	return &batch, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item         Item
		firstSeenRaw string
		lastSeenRaw  string
	)
	if err := scanner.Scan(
		&item.SessionID,
		&item.Route,
		&item.Key,
		&item.LastSourceText,
		&item.SourceTextHash,
		&item.SeenCount,
		&firstSeenRaw,
		&lastSeenRaw,
	); err != nil {
		return nil, err
	}
	if first, err := parseTimeString(firstSeenRaw); err == nil {
		item.FirstSeenAt = first
	}
	if last, err := parseTimeString(lastSeenRaw); err == nil {
		item.LastSeenAt = last
	}
	return &item, nil
}
