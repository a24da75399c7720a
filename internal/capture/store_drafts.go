package capture

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertDraft stages or overwrites one reconciliation decision.
func (s *Store) UpsertDraft(ctx context.Context, draft *DraftOp) error {
	if draft == nil {
		return fmt.Errorf("draft is nil")
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO draft_ops (session_id, route, key, action, target_page_id, target_module_id, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(session_id, route, key) DO UPDATE SET
             action = excluded.action,
             target_page_id = excluded.target_page_id,
             target_module_id = excluded.target_module_id,
             updated_at = excluded.updated_at`,
		draft.SessionID,
		draft.Route,
		draft.Key,
		draft.Action,
		nullableInt64(draft.TargetPageID),
		nullableInt64(draft.TargetModuleID),
		formatTime(draft.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// DraftsBySession returns staged decisions ordered by route then key.
func (s *Store) DraftsBySession(ctx context.Context, sessionID string) ([]*DraftOp, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, route, key, action, target_page_id, target_module_id, updated_at
         FROM draft_ops WHERE session_id = ? ORDER BY route, key`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("drafts by session: %w", err)
	}
	defer rows.Close()

	var drafts []*DraftOp
	for rows.Next() {
		var (
			draft      DraftOp
			actionStr  string
			pageID     sql.NullInt64
			moduleID   sql.NullInt64
			updatedRaw string
		)
		if err := rows.Scan(
			&draft.SessionID,
			&draft.Route,
			&draft.Key,
			&actionStr,
			&pageID,
			&moduleID,
			&updatedRaw,
		); err != nil {
			return nil, err
		}
		draft.Action = DraftAction(actionStr)
		draft.TargetPageID = pageID.Int64
		draft.TargetModuleID = moduleID.Int64
		if updated, err := parseTimeString(updatedRaw); err == nil {
			draft.UpdatedAt = updated
		}
		drafts = append(drafts, &draft)
	}
	return drafts, rows.Err()
}

// DeleteDrafts frees every staged decision for a session; called once apply
// succeeds.
func (s *Store) DeleteDrafts(ctx context.Context, sessionID string) error {
	if _, err := s.execWithRetry(
		ctx,
		`DELETE FROM draft_ops WHERE session_id = ?`,
		sessionID,
	); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	return nil
}
