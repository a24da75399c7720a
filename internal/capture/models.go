package capture

import (
	"strings"
	"time"
)

// SessionStatus represents the lifecycle of a capture session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionClosing   SessionStatus = "closing"
	SessionApplied   SessionStatus = "applied"
	SessionDiscarded SessionStatus = "discarded"
	SessionExpired   SessionStatus = "expired"
)

var allSessionStatuses = []SessionStatus{
	SessionActive,
	SessionClosing,
	SessionApplied,
	SessionDiscarded,
	SessionExpired,
}

var sessionStatusSet = func() map[SessionStatus]struct{} {
	set := make(map[SessionStatus]struct{}, len(allSessionStatuses))
	for _, status := range allSessionStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllSessionStatuses returns the ordered list of known statuses.
func AllSessionStatuses() []SessionStatus {
	cp := make([]SessionStatus, len(allSessionStatuses))
	copy(cp, allSessionStatuses)
	return cp
}

// ParseSessionStatus converts a string into a known SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, bool) {
	normalized := SessionStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := sessionStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can never transition again.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionApplied, SessionDiscarded, SessionExpired:
		return true
	default:
		return false
	}
}

// Close reasons recorded on terminal sessions.
const (
	CloseReasonApplied   = "applied"
	CloseReasonDiscarded = "discarded by operator"
	CloseReasonStale     = "expired after staleness deadline"
)

// Session is one bounded capture unit for a project. At most one session per
// project is active at a time, and a session stays bound to the SDK identity
// that opened it.
type Session struct {
	ID              string
	ProjectID       int64
	SDKIdentity     string
	Env             string
	RequestedLocale string
	Status          SessionStatus
	StartedAt       time.Time
	LastSeenAt      time.Time
	ClosedAt        *time.Time
	CloseReason     string
}

// StaleAt reports whether the session has passed its staleness deadline.
// Staleness is evaluated lazily at the next write; nothing sweeps sessions in
// the background.
func (s *Session) StaleAt(now time.Time, threshold time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.LastSeenAt) > threshold
}

// Batch records one accepted ingest submission. The batch id is a
// client-supplied idempotency token, unique per session; a row exists only to
// detect replays and is never mutated.
type Batch struct {
	SessionID     string
	BatchID       string
	SDKIdentity   string
	ReceivedCount int
	ReceivedAt    time.Time
}

// Item is the per-session aggregate for one (route, key) pair.
type Item struct {
	SessionID      string
	Route          string
	Key            string
	LastSourceText string
	SourceTextHash string
	SeenCount      int64
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
}

// RouteStat is a materialized per-route rollup, recomputed after each batch
// from the route's items joined against the catalog. It is derived data, not
// a source of truth.
type RouteStat struct {
	SessionID        string
	Route            string
	KeysTotal        int
	NewKeysCount     int
	TextChangedCount int
	LastSeenAt       time.Time
}

// DraftAction is an operator reconciliation decision for one captured key.
type DraftAction string

const (
	DraftIgnore DraftAction = "ignore"
	DraftBind   DraftAction = "bind"
	DraftDelete DraftAction = "delete"
)

// ParseDraftAction converts a string into a known DraftAction.
func ParseDraftAction(value string) (DraftAction, bool) {
	normalized := DraftAction(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case DraftIgnore, DraftBind, DraftDelete:
		return normalized, true
	default:
		return "", false
	}
}

// DraftOp is a staged, not-yet-applied reconciliation decision. Drafts are
// overwritten on conflict and consumed when apply succeeds.
type DraftOp struct {
	SessionID      string
	Route          string
	Key            string
	Action         DraftAction
	TargetPageID   int64
	TargetModuleID int64
	UpdatedAt      time.Time
}

// Event is one raw SDK observation inside an ingest batch.
type Event struct {
	Route      string
	Key        string
	SourceText string
	Timestamp  time.Time
	Locale     string
}

// ItemDelta is the grouped form of a batch: one row per distinct
// (route, key) pair with the latest-timestamp event as representative.
type ItemDelta struct {
	Route          string
	Key            string
	SourceText     string
	SourceTextHash string
	SeenCount      int64
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
}

// SessionCounts aggregates session totals per status for status reporting.
type SessionCounts struct {
	Total     int
	Active    int
	Closing   int
	Applied   int
	Discarded int
	Expired   int
}
