package capture

import (
	"context"
	"fmt"
	"time"
)

// IngestOutcome reports what an ingest transaction did.
type IngestOutcome struct {
	// Deduped is true when the batch id was already recorded for the
	// session; nothing else was written.
	Deduped bool
	// Saved is the number of distinct (route, key) pairs upserted.
	Saved int
	// Collected is the session's unique pair count after the batch (or the
	// pre-batch count when the batch was rejected over limit).
	Collected int
}

// Item timestamps use a fixed-width layout so the SQL CASE comparisons in the
// upsert order correctly as strings. RFC3339Nano trims trailing zeros and is
// not lexicographically ordered across fraction lengths.
const itemTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatItemTime(value time.Time) string {
	return value.UTC().Format(itemTimeLayout)
}

// IngestBatch records one SDK batch in a single transaction: replay detection
// via the (session_id, batch_id) primary key, capacity enforcement against
// hardLimit, per-pair aggregate upsert, and the status-guarded session touch.
// The capacity check runs inside the write transaction, so concurrent batches
// for one session cannot jointly overshoot the limit; the guarded touch
// rejects batches for sessions discarded or closed after the caller's
// writability check.
func (s *Store) IngestBatch(ctx context.Context, batch *Batch, deltas []ItemDelta, hardLimit int) (IngestOutcome, error) {
	ctx = ensureContext(ctx)
	var outcome IngestOutcome
	err := retryOnBusy(ctx, func() error {
		var txErr error
		outcome, txErr = s.ingestBatchOnce(ctx, batch, deltas, hardLimit)
		return txErr
	})
	return outcome, err
}

func (s *Store) ingestBatchOnce(ctx context.Context, batch *Batch, deltas []ItemDelta, hardLimit int) (IngestOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestOutcome{}, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM capture_items WHERE session_id = ?`,
		batch.SessionID,
	).Scan(&current); err != nil {
		return IngestOutcome{}, fmt.Errorf("count items: %w", err)
	}

	newUnique := 0
	for _, delta := range deltas {
		var exists int
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(1) FROM capture_items WHERE session_id = ? AND route = ? AND key = ?`,
			batch.SessionID, delta.Route, delta.Key,
		).Scan(&exists); err != nil {
			return IngestOutcome{}, fmt.Errorf("check item: %w", err)
		}
		if exists == 0 {
			newUnique++
		}
	}

	if hardLimit > 0 && current+newUnique > hardLimit {
		return IngestOutcome{Collected: current}, fmt.Errorf("%w: %d collected, %d new", ErrOverLimit, current, newUnique)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO capture_batches (session_id, batch_id, sdk_identity, received_count, received_at)
         VALUES (?, ?, ?, ?, ?)`,
		batch.SessionID,
		batch.BatchID,
		batch.SDKIdentity,
		batch.ReceivedCount,
		formatTime(batch.ReceivedAt),
	); err != nil {
		if isUniqueViolation(err) {
			// Replay: the whole call is a no-op.
			return IngestOutcome{Deduped: true, Collected: current}, nil
		}
		return IngestOutcome{}, fmt.Errorf("insert batch: %w", err)
	}

	for _, delta := range deltas {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO capture_items (
                session_id, route, key, last_source_text, source_text_hash,
                seen_count, first_seen_at, last_seen_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(session_id, route, key) DO UPDATE SET
                seen_count = seen_count + excluded.seen_count,
                last_source_text = CASE
                    WHEN excluded.last_seen_at >= capture_items.last_seen_at
                    THEN excluded.last_source_text ELSE capture_items.last_source_text END,
                source_text_hash = CASE
                    WHEN excluded.last_seen_at >= capture_items.last_seen_at
                    THEN excluded.source_text_hash ELSE capture_items.source_text_hash END,
                last_seen_at = CASE
                    WHEN excluded.last_seen_at >= capture_items.last_seen_at
                    THEN excluded.last_seen_at ELSE capture_items.last_seen_at END,
                first_seen_at = CASE
                    WHEN excluded.first_seen_at < capture_items.first_seen_at
                    THEN excluded.first_seen_at ELSE capture_items.first_seen_at END`,
			batch.SessionID,
			delta.Route,
			delta.Key,
			delta.SourceText,
			delta.SourceTextHash,
			delta.SeenCount,
			formatItemTime(delta.FirstSeenAt),
			formatItemTime(delta.LastSeenAt),
		); err != nil {
			return IngestOutcome{}, fmt.Errorf("upsert item %s %s: %w", delta.Route, delta.Key, err)
		}
	}

	// The touch doubles as the in-tx status guard: a session discarded or
	// moved to closing after the caller's writability check must not gain
	// rows, so a miss here rolls the whole batch back.
	res, err := tx.ExecContext(
		ctx,
		`UPDATE capture_sessions SET last_seen_at = ? WHERE id = ? AND status = ?`,
		formatTime(batch.ReceivedAt),
		batch.SessionID,
		SessionActive,
	)
	if err != nil {
		return IngestOutcome{}, fmt.Errorf("touch session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return IngestOutcome{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return IngestOutcome{}, fmt.Errorf("session %s: %w", batch.SessionID, ErrSessionNotActive)
	}

	if err := tx.Commit(); err != nil {
		return IngestOutcome{}, fmt.Errorf("commit ingest: %w", err)
	}
	return IngestOutcome{Saved: len(deltas), Collected: current + newUnique}, nil
}
