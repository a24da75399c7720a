package api

import (
	"context"
	"fmt"

	"weft/internal/capture"
	"weft/internal/reconcile"
	"weft/internal/session"
)

// ReconcileService exposes diff, draft, and apply operations returning API
// DTOs.
type ReconcileService struct {
	manager *session.Manager
	engine  *reconcile.Engine
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(manager *session.Manager, engine *reconcile.Engine) *ReconcileService {
	if manager == nil || engine == nil {
		return nil
	}
	return &ReconcileService{manager: manager, engine: engine}
}

// Diff computes the full diff for a session.
func (s *ReconcileService) Diff(ctx context.Context, sessionID string) (DiffResponse, error) {
	sess, err := s.manager.Get(ctx, sessionID)
	if err != nil {
		return DiffResponse{}, err
	}
	diffs, err := s.engine.Diff(ctx, sess)
	if err != nil {
		return DiffResponse{}, err
	}
	return DiffResponse{SessionID: sessionID, Routes: FromRouteDiffs(diffs)}, nil
}

// StageDraft validates and stores one reconciliation decision.
func (s *ReconcileService) StageDraft(ctx context.Context, sessionID string, req DraftRequest) (DraftOp, error) {
	sess, err := s.manager.Get(ctx, sessionID)
	if err != nil {
		return DraftOp{}, err
	}
	action, ok := capture.ParseDraftAction(req.Action)
	if !ok {
		return DraftOp{}, fmt.Errorf("unknown action %q: %w", req.Action, capture.ErrValidation)
	}
	draft := &capture.DraftOp{
		Route:          req.Route,
		Key:            req.Key,
		Action:         action,
		TargetPageID:   req.TargetPageID,
		TargetModuleID: req.TargetModuleID,
	}
	if err := s.engine.StageDraft(ctx, sess, draft); err != nil {
		return DraftOp{}, err
	}
	return FromDraft(draft), nil
}

// Drafts lists the staged decisions for a session.
func (s *ReconcileService) Drafts(ctx context.Context, sessionID string) (DraftListResponse, error) {
	if _, err := s.manager.Get(ctx, sessionID); err != nil {
		return DraftListResponse{}, err
	}
	drafts, err := s.engine.Drafts(ctx, sessionID)
	if err != nil {
		return DraftListResponse{}, err
	}
	return DraftListResponse{SessionID: sessionID, Drafts: FromDrafts(drafts)}, nil
}

// Apply executes a session's staged drafts against the catalog and closes the
// session on success.
func (s *ReconcileService) Apply(ctx context.Context, sessionID string) (ApplyResponse, error) {
	var result reconcile.ApplyResult
	sess, err := s.manager.Apply(ctx, sessionID, session.ApplierFunc(func(ctx context.Context, sess *capture.Session) error {
		var applyErr error
		result, applyErr = s.engine.ApplyDrafts(ctx, sess)
		return applyErr
	}))
	if err != nil {
		return ApplyResponse{}, err
	}
	return ApplyResponse{Session: FromSession(sess), Result: FromApplyResult(result)}, nil
}
