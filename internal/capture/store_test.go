package capture_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"weft/internal/capture"
	"weft/internal/testsupport"
)

func newTestStore(t *testing.T) *capture.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenCapture(t, cfg)
}

func seedSession(t *testing.T, store *capture.Store, id string, projectID int64) *capture.Session {
	t.Helper()
	now := time.Now().UTC()
	session := &capture.Session{
		ID:          id,
		ProjectID:   projectID,
		SDKIdentity: "sdk-test",
		Env:         "dev",
		Status:      capture.SessionActive,
		StartedAt:   now,
		LastSeenAt:  now,
	}
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func delta(route, key, text string, seen int64, at time.Time) capture.ItemDelta {
	return capture.ItemDelta{
		Route:          route,
		Key:            key,
		SourceText:     text,
		SourceTextHash: "hash-" + text,
		SeenCount:      seen,
		FirstSeenAt:    at,
		LastSeenAt:     at,
	}
}

func batch(sessionID, batchID string, count int) *capture.Batch {
	return &capture.Batch{
		SessionID:     sessionID,
		BatchID:       batchID,
		SDKIdentity:   "sdk-test",
		ReceivedCount: count,
		ReceivedAt:    time.Now().UTC(),
	}
}

func TestCreateSessionRejectsSecondLiveSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-a", 1)

	second := &capture.Session{
		ID:          "sess-b",
		ProjectID:   1,
		SDKIdentity: "other",
		Status:      capture.SessionActive,
		StartedAt:   time.Now().UTC(),
		LastSeenAt:  time.Now().UTC(),
	}
	if err := store.CreateSession(ctx, second); !errors.Is(err, capture.ErrUniqueConflict) {
		t.Fatalf("expected ErrUniqueConflict, got %v", err)
	}

	// A different project is unaffected.
	other := &capture.Session{
		ID:          "sess-c",
		ProjectID:   2,
		SDKIdentity: "other",
		Status:      capture.SessionActive,
		StartedAt:   time.Now().UTC(),
		LastSeenAt:  time.Now().UTC(),
	}
	if err := store.CreateSession(ctx, other); err != nil {
		t.Fatalf("create session for other project: %v", err)
	}
}

func TestActiveSessionForProjectIncludesClosing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)

	found, err := store.ActiveSessionForProject(ctx, 1)
	if err != nil {
		t.Fatalf("active session lookup: %v", err)
	}
	if found == nil || found.ID != session.ID {
		t.Fatalf("expected live session, got %#v", found)
	}

	ok, err := store.TransitionSession(ctx, session.ID, capture.SessionActive, capture.SessionClosing, "", nil)
	if err != nil || !ok {
		t.Fatalf("transition to closing: ok=%v err=%v", ok, err)
	}

	found, err = store.ActiveSessionForProject(ctx, 1)
	if err != nil {
		t.Fatalf("active session lookup: %v", err)
	}
	if found == nil || found.Status != capture.SessionClosing {
		t.Fatalf("closing session should still count as live, got %#v", found)
	}
}

func TestTransitionSessionGuardsOnCurrentStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)

	ok, err := store.TransitionSession(ctx, session.ID, capture.SessionActive, capture.SessionClosing, "", nil)
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}

	// Repeating the same guarded transition must not match.
	ok, err = store.TransitionSession(ctx, session.ID, capture.SessionActive, capture.SessionClosing, "", nil)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatal("transition from stale status should report false")
	}

	closedAt := time.Now().UTC()
	ok, err = store.TransitionSession(ctx, session.ID, capture.SessionClosing, capture.SessionApplied, capture.CloseReasonApplied, &closedAt)
	if err != nil || !ok {
		t.Fatalf("apply transition: ok=%v err=%v", ok, err)
	}

	fetched, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if fetched.Status != capture.SessionApplied || fetched.CloseReason != capture.CloseReasonApplied {
		t.Fatalf("unexpected terminal session: %#v", fetched)
	}
	if fetched.ClosedAt == nil {
		t.Fatal("expected closed_at to be recorded")
	}
}

func TestIngestBatchReplayIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	outcome, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 2), []capture.ItemDelta{
		delta("/checkout", "checkout.title", "Checkout", 1, now),
		delta("/checkout", "checkout.cta", "Pay now", 1, now),
	}, 0)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if outcome.Deduped || outcome.Saved != 2 || outcome.Collected != 2 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	// Same batch id again, even with different content, changes nothing.
	replay, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 5), []capture.ItemDelta{
		delta("/checkout", "checkout.other", "Other", 5, now),
	}, 0)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}
	if !replay.Deduped || replay.Collected != 2 {
		t.Fatalf("expected dedupe with unchanged count, got %#v", replay)
	}

	count, err := store.CountItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 2 {
		t.Fatalf("replay must not add items, have %d", count)
	}
}

func TestIngestBatchKeepsLatestTextAcrossBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	base := time.Now().UTC()

	if _, err := store.IngestBatch(ctx, batch(session.ID, "batch-newer", 1), []capture.ItemDelta{
		delta("/home", "home.title", "Welcome back", 1, base.Add(time.Minute)),
	}, 0); err != nil {
		t.Fatalf("newer batch: %v", err)
	}

	// An older batch arriving late still counts sightings but must not win
	// the text.
	if _, err := store.IngestBatch(ctx, batch(session.ID, "batch-older", 3), []capture.ItemDelta{
		delta("/home", "home.title", "Welcome", 3, base),
	}, 0); err != nil {
		t.Fatalf("older batch: %v", err)
	}

	item, err := store.GetItem(ctx, session.ID, "/home", "home.title")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item == nil {
		t.Fatal("expected item")
	}
	if item.LastSourceText != "Welcome back" {
		t.Fatalf("older batch overwrote text: %q", item.LastSourceText)
	}
	if item.SeenCount != 4 {
		t.Fatalf("seen counts must accumulate, got %d", item.SeenCount)
	}
	if item.FirstSeenAt.After(base) {
		t.Fatalf("first seen should track the earliest sighting, got %v", item.FirstSeenAt)
	}
}

func TestIngestBatchOverLimitWritesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	_, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 3), []capture.ItemDelta{
		delta("/a", "a.one", "1", 1, now),
		delta("/a", "a.two", "2", 1, now),
		delta("/a", "a.three", "3", 1, now),
	}, 2)
	if !errors.Is(err, capture.ErrOverLimit) {
		t.Fatalf("expected ErrOverLimit, got %v", err)
	}

	count, err := store.CountItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected batch must write nothing, have %d items", count)
	}

	// The batch row must not exist either, so a trimmed retry with the same
	// id is not mistaken for a replay.
	recorded, err := store.GetBatch(ctx, session.ID, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if recorded != nil {
		t.Fatalf("rejected batch should not be recorded: %#v", recorded)
	}

	outcome, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 2), []capture.ItemDelta{
		delta("/a", "a.one", "1", 1, now),
		delta("/a", "a.two", "2", 1, now),
	}, 2)
	if err != nil {
		t.Fatalf("retry within limit: %v", err)
	}
	if outcome.Deduped || outcome.Collected != 2 {
		t.Fatalf("retry should ingest normally, got %#v", outcome)
	}
}

func TestIngestBatchRevisitingExistingPairsFitsAtLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	if _, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 2), []capture.ItemDelta{
		delta("/a", "a.one", "1", 1, now),
		delta("/a", "a.two", "2", 1, now),
	}, 2); err != nil {
		t.Fatalf("fill to limit: %v", err)
	}

	// At the limit, revisiting known pairs adds no new rows and must pass.
	outcome, err := store.IngestBatch(ctx, batch(session.ID, "batch-2", 2), []capture.ItemDelta{
		delta("/a", "a.one", "1b", 2, now.Add(time.Second)),
		delta("/a", "a.two", "2b", 2, now.Add(time.Second)),
	}, 2)
	if err != nil {
		t.Fatalf("revisit at limit: %v", err)
	}
	if outcome.Collected != 2 {
		t.Fatalf("unexpected collected count: %#v", outcome)
	}
}

func TestIngestBatchRejectsNonActiveSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	// Discard between the caller's writability check and the ingest tx.
	if ok, err := store.DiscardSession(ctx, session.ID, now); err != nil || !ok {
		t.Fatalf("discard: ok=%v err=%v", ok, err)
	}

	_, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 1), []capture.ItemDelta{
		delta("/home", "home.title", "Welcome", 1, now),
	}, 0)
	if !errors.Is(err, capture.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	count, err := store.CountItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("discarded session must not gain items, have %d", count)
	}

	// Same for a session mid-apply.
	closing := seedSession(t, store, "sess-b", 2)
	if ok, err := store.TransitionSession(ctx, closing.ID, capture.SessionActive, capture.SessionClosing, "", nil); err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}
	_, err = store.IngestBatch(ctx, batch(closing.ID, "batch-1", 1), []capture.ItemDelta{
		delta("/home", "home.title", "Welcome", 1, now),
	}, 0)
	if !errors.Is(err, capture.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive for closing session, got %v", err)
	}
}

func TestDiscardSessionFreesSessionScopedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	if _, err := store.IngestBatch(ctx, batch(session.ID, "batch-1", 1), []capture.ItemDelta{
		delta("/home", "home.title", "Welcome", 1, now),
	}, 0); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := store.ReplaceRouteStat(ctx, &capture.RouteStat{
		SessionID:  session.ID,
		Route:      "/home",
		KeysTotal:  1,
		LastSeenAt: now,
	}); err != nil {
		t.Fatalf("route stat: %v", err)
	}
	if err := store.UpsertDraft(ctx, &capture.DraftOp{
		SessionID: session.ID,
		Route:     "/home",
		Key:       "home.title",
		Action:    capture.DraftIgnore,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("draft: %v", err)
	}

	ok, err := store.DiscardSession(ctx, session.ID, now)
	if err != nil || !ok {
		t.Fatalf("discard: ok=%v err=%v", ok, err)
	}

	count, err := store.CountItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("items should be freed, have %d", count)
	}
	stats, err := store.RouteStats(ctx, session.ID)
	if err != nil {
		t.Fatalf("route stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("route stats should be freed, have %d", len(stats))
	}
	drafts, err := store.DraftsBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("drafts: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("drafts should be freed, have %d", len(drafts))
	}

	// The session row survives as a record.
	fetched, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if fetched == nil || fetched.Status != capture.SessionDiscarded {
		t.Fatalf("unexpected session after discard: %#v", fetched)
	}

	// Only active sessions can be discarded.
	ok, err = store.DiscardSession(ctx, session.ID, now)
	if err != nil {
		t.Fatalf("second discard: %v", err)
	}
	if ok {
		t.Fatal("second discard should report false")
	}
}

func TestUpsertDraftOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := seedSession(t, store, "sess-a", 1)
	now := time.Now().UTC()

	if err := store.UpsertDraft(ctx, &capture.DraftOp{
		SessionID: session.ID,
		Route:     "/home",
		Key:       "home.title",
		Action:    capture.DraftIgnore,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("first draft: %v", err)
	}
	if err := store.UpsertDraft(ctx, &capture.DraftOp{
		SessionID:      session.ID,
		Route:          "/home",
		Key:            "home.title",
		Action:         capture.DraftBind,
		TargetPageID:   7,
		TargetModuleID: 9,
		UpdatedAt:      now.Add(time.Second),
	}); err != nil {
		t.Fatalf("second draft: %v", err)
	}

	drafts, err := store.DraftsBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("drafts: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected one draft per pair, got %d", len(drafts))
	}
	if drafts[0].Action != capture.DraftBind || drafts[0].TargetPageID != 7 || drafts[0].TargetModuleID != 9 {
		t.Fatalf("second write should win: %#v", drafts[0])
	}
}

func TestSessionCountsByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-a", 1)
	seedSession(t, store, "sess-b", 2)
	now := time.Now().UTC()
	if ok, err := store.DiscardSession(ctx, "sess-b", now); err != nil || !ok {
		t.Fatalf("discard: ok=%v err=%v", ok, err)
	}

	counts, err := store.SessionCountsByStatus(ctx)
	if err != nil {
		t.Fatalf("session counts: %v", err)
	}
	if counts.Total != 2 || counts.Active != 1 || counts.Discarded != 1 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestOpenRejectsSchemaVersionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "capture.db")

	store, err := capture.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := raw.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	if _, err := capture.OpenPath(dbPath); !errors.Is(err, capture.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
