package api

import (
	"context"

	"weft/internal/capture"
	"weft/internal/session"
)

// SessionService exposes session lifecycle operations returning API DTOs.
type SessionService struct {
	manager *session.Manager
	store   *capture.Store
}

// NewSessionService constructs a SessionService.
func NewSessionService(manager *session.Manager, store *capture.Store) *SessionService {
	if manager == nil || store == nil {
		return nil
	}
	return &SessionService{manager: manager, store: store}
}

// Open starts or resumes a capture session for a project.
func (s *SessionService) Open(ctx context.Context, projectID int64, req OpenSessionRequest) (OpenSessionResponse, error) {
	sess, resumed, err := s.manager.Open(ctx, projectID, req.SDKIdentity, req.Env, req.RequestedLocale)
	if err != nil {
		return OpenSessionResponse{}, err
	}
	return OpenSessionResponse{Session: FromSession(sess), Resumed: resumed}, nil
}

// Touch records SDK liveness.
func (s *SessionService) Touch(ctx context.Context, sessionID, sdkIdentity string) (Session, error) {
	sess, err := s.manager.Touch(ctx, sessionID, sdkIdentity)
	if err != nil {
		return Session{}, err
	}
	return FromSession(sess), nil
}

// Describe returns the operator view of a session: the session itself, its
// collected pair count, its route rollups, and staged drafts.
func (s *SessionService) Describe(ctx context.Context, sessionID string) (SessionDetail, error) {
	sess, err := s.manager.Get(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	collected, err := s.store.CountItems(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	stats, err := s.store.RouteStats(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	drafts, err := s.store.DraftsBySession(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{
		Session:    FromSession(sess),
		Collected:  collected,
		RouteStats: FromRouteStats(stats),
		Drafts:     FromDrafts(drafts),
	}, nil
}

// List returns sessions filtered by project (0 for all) and status.
func (s *SessionService) List(ctx context.Context, projectID int64, statuses ...capture.SessionStatus) (SessionListResponse, error) {
	sessions, err := s.store.ListSessions(ctx, projectID, statuses...)
	if err != nil {
		return SessionListResponse{}, err
	}
	return SessionListResponse{Sessions: FromSessions(sessions)}, nil
}

// Discard abandons an active session.
func (s *SessionService) Discard(ctx context.Context, sessionID string) error {
	return s.manager.Discard(ctx, sessionID)
}
