package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/diff"
	"weft/internal/logging"
)

// ApplyResult counts what one apply changed.
type ApplyResult struct {
	Bound          int
	Moved          int
	Deleted        int
	Ignored        int
	EntriesCreated int
}

// Engine stages reconciliation drafts and applies them against the catalog.
// Staging writes only the capture database; apply is the single writer of
// catalog placements and runs in one catalog transaction.
type Engine struct {
	capture *capture.Store
	catalog *catalog.Store
	logger  *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(captureStore *capture.Store, catalogStore *catalog.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		capture: captureStore,
		catalog: catalogStore,
		logger:  logger.With(logging.String(logging.FieldComponent, "reconcile")),
	}
}

// Diff assembles the full diff for a session: one RouteDiff per captured
// route, plus delete suggestions from placements on pages whose routes were
// visited. The computation itself is delegated to the pure diff package.
func (e *Engine) Diff(ctx context.Context, session *capture.Session) ([]diff.RouteDiff, error) {
	routes, err := e.capture.RoutesForSession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	diffs := make([]diff.RouteDiff, 0, len(routes))
	for _, route := range routes {
		in, err := e.buildInput(ctx, session, route)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, diff.Compute(in))
	}
	return diffs, nil
}

// DiffRoute diffs a single route of a session.
func (e *Engine) DiffRoute(ctx context.Context, session *capture.Session, route string) (diff.RouteDiff, error) {
	in, err := e.buildInput(ctx, session, route)
	if err != nil {
		return diff.RouteDiff{}, err
	}
	return diff.Compute(in), nil
}

func (e *Engine) buildInput(ctx context.Context, session *capture.Session, route string) (diff.Input, error) {
	items, err := e.capture.ItemsByRoute(ctx, session.ID, route)
	if err != nil {
		return diff.Input{}, err
	}

	in := diff.Input{Route: route}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key)
		in.Items = append(in.Items, diff.Item{
			Key:        item.Key,
			SourceText: item.LastSourceText,
			SeenCount:  item.SeenCount,
			LastSeenAt: item.LastSeenAt,
		})
	}

	page, err := e.catalog.PageByRoute(ctx, session.ProjectID, route)
	if err != nil {
		return diff.Input{}, err
	}
	if page != nil {
		in.PageID = page.ID

		placements, err := e.catalog.PlacementsByPage(ctx, page.ID)
		if err != nil {
			return diff.Input{}, err
		}
		entryIDs := make([]int64, 0, len(placements))
		for _, placement := range placements {
			entryIDs = append(entryIDs, placement.EntryID)
		}
		placedEntries, err := e.catalog.EntriesByID(ctx, entryIDs)
		if err != nil {
			return diff.Input{}, err
		}
		modules, err := e.catalog.ModulesByPage(ctx, page.ID)
		if err != nil {
			return diff.Input{}, err
		}
		moduleNames := make(map[int64]string, len(modules))
		for _, module := range modules {
			moduleNames[module.ID] = module.Name
		}

		for _, placement := range placements {
			entry := placedEntries[placement.EntryID]
			if entry == nil {
				continue
			}
			keys = append(keys, entry.Key)
			in.Placements = append(in.Placements, diff.Placement{
				ID:         placement.ID,
				EntryID:    placement.EntryID,
				Key:        entry.Key,
				ModuleID:   placement.ModuleID,
				ModuleName: moduleNames[placement.ModuleID],
			})
		}
	}

	entries, err := e.catalog.FindEntriesByKeys(ctx, session.ProjectID, keys)
	if err != nil {
		return diff.Input{}, err
	}
	in.Entries = make(map[string]diff.Entry, len(entries))
	for key, entry := range entries {
		in.Entries[key] = diff.Entry{ID: entry.ID, Key: key, SourceText: entry.SourceText}
	}
	return in, nil
}

// StageDraft validates and stores one reconciliation decision. Drafts can
// only be staged on an active session and overwrite any earlier decision for
// the same (route, key).
func (e *Engine) StageDraft(ctx context.Context, session *capture.Session, draft *capture.DraftOp) error {
	if session.Status != capture.SessionActive {
		return fmt.Errorf("session %s is %s: %w", session.ID, session.Status, capture.ErrSessionNotActive)
	}
	if strings.TrimSpace(draft.Route) == "" || strings.TrimSpace(draft.Key) == "" {
		return fmt.Errorf("draft needs route and key: %w", capture.ErrValidation)
	}

	switch draft.Action {
	case capture.DraftIgnore:
		// any route/key may be ignored
	case capture.DraftBind:
		if draft.TargetPageID == 0 || draft.TargetModuleID == 0 {
			return fmt.Errorf("bind needs a target page and module: %w", capture.ErrValidation)
		}
		item, err := e.capture.GetItem(ctx, session.ID, draft.Route, draft.Key)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("no captured item for %s %s: %w", draft.Route, draft.Key, capture.ErrValidation)
		}
		page, err := e.catalog.PageByID(ctx, draft.TargetPageID)
		if err != nil {
			return err
		}
		if page == nil || page.ProjectID != session.ProjectID {
			return fmt.Errorf("target page %d not found: %w", draft.TargetPageID, capture.ErrValidation)
		}
		module, err := e.catalog.ModuleByID(ctx, draft.TargetModuleID)
		if err != nil {
			return err
		}
		if module == nil || module.PageID != page.ID {
			return fmt.Errorf("target module %d not on page %d: %w", draft.TargetModuleID, draft.TargetPageID, capture.ErrValidation)
		}
	case capture.DraftDelete:
		page, err := e.catalog.PageByRoute(ctx, session.ProjectID, draft.Route)
		if err != nil {
			return err
		}
		if page == nil {
			return fmt.Errorf("route %s has no page: %w", draft.Route, capture.ErrValidation)
		}
	default:
		return fmt.Errorf("unknown action %q: %w", draft.Action, capture.ErrValidation)
	}

	draft.SessionID = session.ID
	draft.UpdatedAt = time.Now().UTC()
	if err := e.capture.UpsertDraft(ctx, draft); err != nil {
		return err
	}
	e.logger.Debug("draft staged",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("action", string(draft.Action)),
		logging.String("key", draft.Key))
	return nil
}

// Drafts lists the staged decisions for a session.
func (e *Engine) Drafts(ctx context.Context, sessionID string) ([]*capture.DraftOp, error) {
	return e.capture.DraftsBySession(ctx, sessionID)
}

// ApplyDrafts executes every staged draft of a session in one catalog
// transaction. Any failure rolls back the whole catalog side; the caller owns
// the session state walk around this call.
func (e *Engine) ApplyDrafts(ctx context.Context, session *capture.Session) (ApplyResult, error) {
	drafts, err := e.capture.DraftsBySession(ctx, session.ID)
	if err != nil {
		return ApplyResult{}, err
	}

	// Resolve routes to pages and captured text up front; reads need no tx.
	pages := make(map[string]*catalog.Page)
	for _, draft := range drafts {
		if _, seen := pages[draft.Route]; seen {
			continue
		}
		page, err := e.catalog.PageByRoute(ctx, session.ProjectID, draft.Route)
		if err != nil {
			return ApplyResult{}, err
		}
		pages[draft.Route] = page
	}

	var result ApplyResult
	err = e.catalog.WithTx(ctx, func(tx *catalog.Tx) error {
		for _, draft := range drafts {
			switch draft.Action {
			case capture.DraftIgnore:
				result.Ignored++
			case capture.DraftBind:
				if err := e.applyBind(ctx, tx, session, draft, &result); err != nil {
					return err
				}
			case capture.DraftDelete:
				if err := e.applyDelete(ctx, tx, session, pages[draft.Route], draft, &result); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown draft action %q: %w", draft.Action, capture.ErrValidation)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			return ApplyResult{}, fmt.Errorf("apply session %s: %w", session.ID, capture.ErrUniqueConflict)
		}
		return ApplyResult{}, err
	}

	e.logger.Info("drafts applied",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int("bound", result.Bound),
		logging.Int("moved", result.Moved),
		logging.Int("deleted", result.Deleted),
		logging.Int("ignored", result.Ignored))
	return result, nil
}

func (e *Engine) applyBind(ctx context.Context, tx *catalog.Tx, session *capture.Session, draft *capture.DraftOp, result *ApplyResult) error {
	entry, err := tx.EntryByKey(ctx, session.ProjectID, draft.Key)
	if err != nil {
		return err
	}
	if entry == nil {
		item, err := e.capture.GetItem(ctx, session.ID, draft.Route, draft.Key)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("no captured item for %s %s: %w", draft.Route, draft.Key, capture.ErrValidation)
		}
		entry, err = tx.CreateEntry(ctx, session.ProjectID, draft.Key, item.LastSourceText)
		if err != nil {
			return err
		}
		result.EntriesCreated++
	}

	placement, err := tx.PlacementFor(ctx, entry.ID, draft.TargetPageID)
	if err != nil {
		return err
	}
	if placement == nil {
		if _, err := tx.InsertPlacement(ctx, entry.ID, draft.TargetPageID, draft.TargetModuleID); err != nil {
			return err
		}
		result.Bound++
		return nil
	}
	if placement.ModuleID != draft.TargetModuleID {
		if err := tx.UpdatePlacementModule(ctx, placement.ID, draft.TargetModuleID); err != nil {
			return err
		}
		result.Moved++
	}
	return nil
}

func (e *Engine) applyDelete(ctx context.Context, tx *catalog.Tx, session *capture.Session, page *catalog.Page, draft *capture.DraftOp, result *ApplyResult) error {
	if page == nil {
		// route vanished since staging; nothing to remove
		return nil
	}
	entry, err := tx.EntryByKey(ctx, session.ProjectID, draft.Key)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	placement, err := tx.PlacementFor(ctx, entry.ID, page.ID)
	if err != nil {
		return err
	}
	if placement == nil {
		// already gone; delete is a no-op, never an error
		return nil
	}
	if err := tx.DeletePlacement(ctx, entry.ID, page.ID); err != nil {
		return err
	}
	result.Deleted++
	return nil
}
