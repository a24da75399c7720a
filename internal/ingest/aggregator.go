package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/logging"
	"weft/internal/session"
)

// EntryFinder resolves captured keys against the catalog. *catalog.Store
// satisfies it.
type EntryFinder interface {
	FindEntriesByKeys(ctx context.Context, projectID int64, keys []string) (map[string]*catalog.Entry, error)
}

// Result reports what an ingest call did.
type Result struct {
	Deduped   bool
	Saved     int
	Collected int
	NearLimit bool
}

// Aggregator turns raw SDK event batches into per-session aggregates. It
// groups events by (route, key), hands the grouped deltas to the store's
// single ingest transaction, and recomputes the touched route rollups after
// commit.
type Aggregator struct {
	sessions       *session.Manager
	store          *capture.Store
	entries        EntryFinder
	guard          Guard
	maxBatchEvents int
	logger         *slog.Logger

	now func() time.Time
}

// NewAggregator constructs an Aggregator.
func NewAggregator(sessions *session.Manager, store *capture.Store, entries EntryFinder, guard Guard, maxBatchEvents int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		sessions:       sessions,
		store:          store,
		entries:        entries,
		guard:          guard,
		maxBatchEvents: maxBatchEvents,
		logger:         logger.With(logging.String(logging.FieldComponent, "ingest")),
		now:            time.Now,
	}
}

// Ingest processes one SDK batch for a session. The batch id is the client's
// idempotency token: a replayed id returns Deduped without writing anything.
func (a *Aggregator) Ingest(ctx context.Context, sessionID, sdkIdentity, batchID string, events []capture.Event) (Result, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return Result{}, fmt.Errorf("batch id is required: %w", capture.ErrValidation)
	}
	if len(events) == 0 {
		return Result{}, fmt.Errorf("batch has no events: %w", capture.ErrValidation)
	}
	if a.maxBatchEvents > 0 && len(events) > a.maxBatchEvents {
		return Result{}, fmt.Errorf("batch has %d events, limit is %d: %w", len(events), a.maxBatchEvents, capture.ErrValidation)
	}
	if err := validateEvents(events); err != nil {
		return Result{}, err
	}

	sess, err := a.sessions.EnsureWritable(ctx, sessionID, sdkIdentity)
	if err != nil {
		return Result{}, err
	}

	deltas := groupEvents(events)
	// ReceivedAt is receipt time, never a client-supplied event timestamp:
	// it also becomes the session's last_seen_at, and an SDK flushing old
	// buffered events must not move the session toward staleness.
	batch := &capture.Batch{
		SessionID:     sessionID,
		BatchID:       batchID,
		SDKIdentity:   sdkIdentity,
		ReceivedCount: len(events),
		ReceivedAt:    a.now().UTC(),
	}

	outcome, err := a.store.IngestBatch(ctx, batch, deltas, a.guard.HardLimit)
	if err != nil {
		return Result{Collected: outcome.Collected}, err
	}
	if outcome.Deduped {
		a.logger.Debug("batch replayed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldBatchID, batchID))
		return Result{Deduped: true, Collected: outcome.Collected}, nil
	}

	if err := a.recomputeRouteStats(ctx, sess, deltas); err != nil {
		// Rollups are derived data; the batch itself is committed.
		a.logger.Warn("route stat recompute failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}

	result := Result{
		Saved:     outcome.Saved,
		Collected: outcome.Collected,
		NearLimit: a.guard.NearLimit(outcome.Collected),
	}
	if result.NearLimit {
		a.logger.Warn("session approaching capture limit",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Int("collected", result.Collected),
			logging.Int("hard_limit", a.guard.HardLimit))
	}
	return result, nil
}

func validateEvents(events []capture.Event) error {
	for i, event := range events {
		if strings.TrimSpace(event.Route) == "" {
			return fmt.Errorf("event %d: route is required: %w", i, capture.ErrValidation)
		}
		if strings.TrimSpace(event.Key) == "" {
			return fmt.Errorf("event %d: key is required: %w", i, capture.ErrValidation)
		}
		if event.Timestamp.IsZero() {
			return fmt.Errorf("event %d: timestamp is required: %w", i, capture.ErrValidation)
		}
		if event.Locale != "" {
			if _, err := language.Parse(event.Locale); err != nil {
				return fmt.Errorf("event %d: locale %q: %w", i, event.Locale, capture.ErrValidation)
			}
		}
	}
	return nil
}

// groupEvents collapses a batch to one delta per (route, key). The event with
// the latest timestamp is the representative for text; counts and the seen
// window aggregate across the group. Output order is route then key so the
// write transaction touches rows deterministically.
func groupEvents(events []capture.Event) []capture.ItemDelta {
	type pair struct{ route, key string }
	grouped := make(map[pair]*capture.ItemDelta)
	for _, event := range events {
		p := pair{event.Route, event.Key}
		delta, ok := grouped[p]
		if !ok {
			grouped[p] = &capture.ItemDelta{
				Route:          event.Route,
				Key:            event.Key,
				SourceText:     event.SourceText,
				SourceTextHash: HashText(event.SourceText),
				SeenCount:      1,
				FirstSeenAt:    event.Timestamp,
				LastSeenAt:     event.Timestamp,
			}
			continue
		}
		delta.SeenCount++
		if event.Timestamp.Before(delta.FirstSeenAt) {
			delta.FirstSeenAt = event.Timestamp
		}
		if !event.Timestamp.Before(delta.LastSeenAt) {
			delta.LastSeenAt = event.Timestamp
			delta.SourceText = event.SourceText
			delta.SourceTextHash = HashText(event.SourceText)
		}
	}

	deltas := make([]capture.ItemDelta, 0, len(grouped))
	for _, delta := range grouped {
		deltas = append(deltas, *delta)
	}
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].Route != deltas[j].Route {
			return deltas[i].Route < deltas[j].Route
		}
		return deltas[i].Key < deltas[j].Key
	})
	return deltas
}

// HashText returns the hex sha256 of a source text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// recomputeRouteStats rebuilds the rollup for every route the batch touched
// from the session's items joined against the catalog.
func (a *Aggregator) recomputeRouteStats(ctx context.Context, sess *capture.Session, deltas []capture.ItemDelta) error {
	routes := make(map[string]struct{})
	for _, delta := range deltas {
		routes[delta.Route] = struct{}{}
	}
	for route := range routes {
		items, err := a.store.ItemsByRoute(ctx, sess.ID, route)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(items))
		for _, item := range items {
			keys = append(keys, item.Key)
		}
		known, err := a.entries.FindEntriesByKeys(ctx, sess.ProjectID, keys)
		if err != nil {
			return err
		}

		stat := &capture.RouteStat{
			SessionID: sess.ID,
			Route:     route,
			KeysTotal: len(items),
		}
		for _, item := range items {
			entry, ok := known[item.Key]
			switch {
			case !ok:
				stat.NewKeysCount++
			case entry.SourceText != item.LastSourceText:
				stat.TextChangedCount++
			}
			if item.LastSeenAt.After(stat.LastSeenAt) {
				stat.LastSeenAt = item.LastSeenAt
			}
		}
		if err := a.store.ReplaceRouteStat(ctx, stat); err != nil {
			return err
		}
	}
	return nil
}
