package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = "id, project_id, sdk_identity, env, requested_locale, status, started_at, last_seen_at, closed_at, close_reason"

// CreateSession inserts a new active session. The partial unique index on
// live sessions rejects a second active session for the same project; that
// surfaces as ErrUniqueConflict so callers can re-read the winner.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO capture_sessions (
            id, project_id, sdk_identity, env, requested_locale, status,
            started_at, last_seen_at, closed_at, close_reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.ProjectID,
		session.SDKIdentity,
		session.Env,
		session.RequestedLocale,
		session.Status,
		formatTime(session.StartedAt),
		formatTime(session.LastSeenAt),
		nullableTime(session.ClosedAt),
		nullableString(session.CloseReason),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create session: %w", ErrUniqueConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM capture_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ActiveSessionForProject returns the live (active or closing) session for a
// project, or nil when none exists.
func (s *Store) ActiveSessionForProject(ctx context.Context, projectID int64) (*Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM capture_sessions
         WHERE project_id = ? AND status IN (?, ?) LIMIT 1`,
		projectID, SessionActive, SessionClosing,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session for project: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions filtered by project (0 for all), newest first.
func (s *Store) ListSessions(ctx context.Context, projectID int64, statuses ...SessionStatus) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM capture_sessions`
	var clauses []string
	var args []any
	if projectID != 0 {
		clauses = append(clauses, "project_id = ?")
		args = append(args, projectID)
	}
	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// TouchSession bumps last_seen_at for a session.
func (s *Store) TouchSession(ctx context.Context, id string, now time.Time) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE capture_sessions SET last_seen_at = ? WHERE id = ?`,
		formatTime(now), id,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// TransitionSession moves a session from one status to another, guarded by
// the current status. Returns false when the session was not in the expected
// state, which callers map to their own conflict errors.
func (s *Store) TransitionSession(ctx context.Context, id string, from, to SessionStatus, closeReason string, closedAt *time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE capture_sessions
         SET status = ?, closed_at = ?, close_reason = ?
         WHERE id = ? AND status = ?`,
		to,
		nullableTime(closedAt),
		nullableString(closeReason),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition session %s -> %s: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DiscardSession transitions an active session to discarded and frees all
// session-scoped rows (batches, items, route stats, drafts) in one
// transaction. The session row itself is kept as a record.
func (s *Store) DiscardSession(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin discard tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE capture_sessions
         SET status = ?, closed_at = ?, close_reason = ?
         WHERE id = ? AND status = ?`,
		SessionDiscarded,
		formatTime(now),
		CloseReasonDiscarded,
		id,
		SessionActive,
	)
	if err != nil {
		return false, fmt.Errorf("discard session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	for _, table := range []string{"capture_batches", "capture_items", "route_stats", "draft_ops"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, id); err != nil {
			return false, fmt.Errorf("free %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit discard: %w", err)
	}
	return true, nil
}

// SessionCountsByStatus aggregates session totals for status reporting.
func (s *Store) SessionCountsByStatus(ctx context.Context) (SessionCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM capture_sessions GROUP BY status`)
	if err != nil {
		return SessionCounts{}, fmt.Errorf("session counts: %w", err)
	}
	defer rows.Close()

	counts := SessionCounts{}
	for rows.Next() {
		var status SessionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return SessionCounts{}, err
		}
		counts.Total += count
		switch status {
		case SessionActive:
			counts.Active += count
		case SessionClosing:
			counts.Closing += count
		case SessionApplied:
			counts.Applied += count
		case SessionDiscarded:
			counts.Discarded += count
		case SessionExpired:
			counts.Expired += count
		}
	}
	return counts, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id          string
		projectID   int64
		sdkIdentity string
		env         sql.NullString
		locale      sql.NullString
		statusStr   string
		startedRaw  sql.NullString
		lastSeenRaw sql.NullString
		closedRaw   sql.NullString
		closeReason sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&sdkIdentity,
		&env,
		&locale,
		&statusStr,
		&startedRaw,
		&lastSeenRaw,
		&closedRaw,
		&closeReason,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:              id,
		ProjectID:       projectID,
		SDKIdentity:     sdkIdentity,
		Env:             env.String,
		RequestedLocale: locale.String,
		Status:          SessionStatus(statusStr),
		CloseReason:     closeReason.String,
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		session.StartedAt = started
	}
	if lastSeen, err := parseTimeString(lastSeenRaw.String); err == nil {
		session.LastSeenAt = lastSeen
	}
	if closedRaw.Valid {
		if closed, err := parseTimeString(closedRaw.String); err == nil {
			session.ClosedAt = &closed
		}
	}
	return session, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
