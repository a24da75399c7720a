package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"weft/internal/capture"
	"weft/internal/logging"
)

// Applier performs the catalog-side work of an apply. The manager owns the
// session state machine around it; the applier owns the catalog transaction.
type Applier interface {
	ApplySession(ctx context.Context, session *capture.Session) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, session *capture.Session) error

func (f ApplierFunc) ApplySession(ctx context.Context, session *capture.Session) error {
	return f(ctx, session)
}

// Manager drives the capture session lifecycle: open with single-live-session
// enforcement, lazy staleness, SDK identity binding, and the
// active -> closing -> applied walk around an apply.
type Manager struct {
	store          *capture.Store
	logger         *slog.Logger
	staleThreshold time.Duration
	now            func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store *capture.Store, logger *slog.Logger, staleThreshold time.Duration) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:          store,
		logger:         logger.With(logging.String(logging.FieldComponent, "session")),
		staleThreshold: staleThreshold,
		now:            time.Now,
	}
}

// Open starts a capture session for a project, or resumes the live one. The
// second return reports whether an existing session was resumed. A live
// session held by a different SDK identity refuses the open.
func (m *Manager) Open(ctx context.Context, projectID int64, sdkIdentity, env, requestedLocale string) (*capture.Session, bool, error) {
	sdkIdentity = strings.TrimSpace(sdkIdentity)
	if sdkIdentity == "" {
		return nil, false, fmt.Errorf("sdk identity is required: %w", capture.ErrValidation)
	}
	if requestedLocale != "" {
		if _, err := language.Parse(requestedLocale); err != nil {
			return nil, false, fmt.Errorf("requested locale %q: %w", requestedLocale, capture.ErrValidation)
		}
	}

	// Two passes: the second absorbs a lost race on the live-session index.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := m.store.ActiveSessionForProject(ctx, projectID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			session, resumed, err := m.resumeOrExpire(ctx, existing, sdkIdentity)
			if err != nil || session != nil {
				return session, resumed, err
			}
			// fell through: the live session was stale and is now expired
		}

		now := m.now().UTC()
		session := &capture.Session{
			ID:              uuid.NewString(),
			ProjectID:       projectID,
			SDKIdentity:     sdkIdentity,
			Env:             env,
			RequestedLocale: requestedLocale,
			Status:          capture.SessionActive,
			StartedAt:       now,
			LastSeenAt:      now,
		}
		err = m.store.CreateSession(ctx, session)
		if err == nil {
			m.logger.Info("session opened",
				logging.String(logging.FieldSessionID, session.ID),
				logging.Int64(logging.FieldProjectID, projectID))
			return session, false, nil
		}
		if !errors.Is(err, capture.ErrUniqueConflict) {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("open session for project %d: %w", projectID, capture.ErrUniqueConflict)
}

// resumeOrExpire resolves an open against an existing live session. A nil
// session with nil error means the live session just expired and the caller
// should open a fresh one.
func (m *Manager) resumeOrExpire(ctx context.Context, existing *capture.Session, sdkIdentity string) (*capture.Session, bool, error) {
	now := m.now().UTC()
	if existing.Status == capture.SessionActive && existing.StaleAt(now, m.staleThreshold) {
		if err := m.expire(ctx, existing, now); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if existing.Status != capture.SessionActive {
		return nil, false, fmt.Errorf("session %s is %s: %w", existing.ID, existing.Status, capture.ErrSessionNotActive)
	}
	if existing.SDKIdentity != sdkIdentity {
		return nil, false, fmt.Errorf("session %s: %w", existing.ID, capture.ErrSDKConflict)
	}
	if err := m.store.TouchSession(ctx, existing.ID, now); err != nil {
		return nil, false, err
	}
	existing.LastSeenAt = now
	return existing, true, nil
}

// EnsureWritable loads a session and verifies an SDK write may proceed:
// the session exists, is active, has not gone stale, and belongs to the
// caller's identity. Staleness is enforced here, at write time.
func (m *Manager) EnsureWritable(ctx context.Context, sessionID, sdkIdentity string) (*capture.Session, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionNotFound)
	}

	now := m.now().UTC()
	if session.Status == capture.SessionActive && session.StaleAt(now, m.staleThreshold) {
		if err := m.expire(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionExpired)
	}
	if session.Status == capture.SessionExpired {
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionExpired)
	}
	if session.Status != capture.SessionActive {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, capture.ErrSessionNotActive)
	}
	if session.SDKIdentity != sdkIdentity {
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSDKConflict)
	}
	return session, nil
}

// Get loads a session for operator reads. Unlike EnsureWritable it performs
// no staleness flip and no identity check.
func (m *Manager) Get(ctx context.Context, sessionID string) (*capture.Session, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionNotFound)
	}
	return session, nil
}

// Touch records SDK liveness for a session.
func (m *Manager) Touch(ctx context.Context, sessionID, sdkIdentity string) (*capture.Session, error) {
	session, err := m.EnsureWritable(ctx, sessionID, sdkIdentity)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	if err := m.store.TouchSession(ctx, sessionID, now); err != nil {
		return nil, err
	}
	session.LastSeenAt = now
	return session, nil
}

// Discard abandons an active session and frees its captured data. Only
// active sessions can be discarded; a session mid-apply cannot.
func (m *Manager) Discard(ctx context.Context, sessionID string) error {
	ok, err := m.store.DiscardSession(ctx, sessionID, m.now().UTC())
	if err != nil {
		return err
	}
	if ok {
		m.logger.Info("session discarded", logging.String(logging.FieldSessionID, sessionID))
		return nil
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionNotFound)
	}
	return fmt.Errorf("session %s is %s: %w", sessionID, session.Status, capture.ErrSessionNotActive)
}

// Apply walks a session through active -> closing, runs the applier, and
// finishes at applied. A failed apply returns the session to active so the
// operator can fix drafts and retry; the closing state keeps concurrent
// ingests and second applies out.
func (m *Manager) Apply(ctx context.Context, sessionID string, applier Applier) (*capture.Session, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionNotFound)
	}

	now := m.now().UTC()
	if session.Status == capture.SessionActive && session.StaleAt(now, m.staleThreshold) {
		if err := m.expire(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionExpired)
	}

	moved, err := m.store.TransitionSession(ctx, sessionID, capture.SessionActive, capture.SessionClosing, "", nil)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, capture.ErrSessionNotActive)
	}
	session.Status = capture.SessionClosing

	if applyErr := applier.ApplySession(ctx, session); applyErr != nil {
		reverted, revertErr := m.store.TransitionSession(ctx, sessionID, capture.SessionClosing, capture.SessionActive, "", nil)
		if revertErr != nil {
			return nil, errors.Join(applyErr, revertErr)
		}
		if !reverted {
			m.logger.Error("session left closing after failed apply",
				logging.String(logging.FieldSessionID, sessionID))
		}
		session.Status = capture.SessionActive
		return nil, applyErr
	}

	closedAt := m.now().UTC()
	moved, err = m.store.TransitionSession(ctx, sessionID, capture.SessionClosing, capture.SessionApplied, capture.CloseReasonApplied, &closedAt)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("session %s left closing unexpectedly: %w", sessionID, capture.ErrSessionNotActive)
	}
	session.Status = capture.SessionApplied
	session.ClosedAt = &closedAt
	session.CloseReason = capture.CloseReasonApplied

	if err := m.store.DeleteDrafts(ctx, sessionID); err != nil {
		return nil, err
	}
	m.logger.Info("session applied", logging.String(logging.FieldSessionID, sessionID))
	return session, nil
}

func (m *Manager) expire(ctx context.Context, session *capture.Session, now time.Time) error {
	moved, err := m.store.TransitionSession(ctx, session.ID, capture.SessionActive, capture.SessionExpired, capture.CloseReasonStale, &now)
	if err != nil {
		return err
	}
	if moved {
		m.logger.Info("session expired",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Int64(logging.FieldProjectID, session.ProjectID))
		session.Status = capture.SessionExpired
		session.ClosedAt = &now
		session.CloseReason = capture.CloseReasonStale
	}
	return nil
}
