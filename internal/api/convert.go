package api

import (
	"time"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/diff"
	"weft/internal/reconcile"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

// FromSession converts a domain session to its DTO.
func FromSession(session *capture.Session) Session {
	if session == nil {
		return Session{}
	}
	dto := Session{
		ID:              session.ID,
		ProjectID:       session.ProjectID,
		SDKIdentity:     session.SDKIdentity,
		Env:             session.Env,
		RequestedLocale: session.RequestedLocale,
		Status:          string(session.Status),
		StartedAt:       formatTime(session.StartedAt),
		LastSeenAt:      formatTime(session.LastSeenAt),
		CloseReason:     session.CloseReason,
	}
	if session.ClosedAt != nil {
		dto.ClosedAt = formatTime(*session.ClosedAt)
	}
	return dto
}

// FromSessions converts a slice of domain sessions.
func FromSessions(sessions []*capture.Session) []Session {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, FromSession(session))
	}
	return out
}

// FromRouteStats converts route rollups.
func FromRouteStats(stats []*capture.RouteStat) []RouteStat {
	if len(stats) == 0 {
		return nil
	}
	out := make([]RouteStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, RouteStat{
			Route:            stat.Route,
			KeysTotal:        stat.KeysTotal,
			NewKeysCount:     stat.NewKeysCount,
			TextChangedCount: stat.TextChangedCount,
			LastSeenAt:       formatTime(stat.LastSeenAt),
		})
	}
	return out
}

// FromRouteDiff converts one route diff.
func FromRouteDiff(rd diff.RouteDiff) RouteDiff {
	out := RouteDiff{
		Route:     rd.Route,
		PageID:    rd.PageID,
		PageKnown: rd.PageKnown,
		Unchanged: rd.Unchanged,
	}
	for _, change := range rd.Changes {
		out.Changes = append(out.Changes, DiffChange{
			Kind:            string(change.Kind),
			Key:             change.Key,
			EntryID:         change.EntryID,
			PlacementID:     change.PlacementID,
			CapturedText:    change.CapturedText,
			CatalogText:     change.CatalogText,
			TextChanged:     change.TextChanged,
			CurrentModule:   change.CurrentModule,
			SuggestedModule: change.SuggestedModule,
			SeenCount:       change.SeenCount,
		})
	}
	return out
}

// FromRouteDiffs converts the full diff.
func FromRouteDiffs(diffs []diff.RouteDiff) []RouteDiff {
	if len(diffs) == 0 {
		return nil
	}
	out := make([]RouteDiff, 0, len(diffs))
	for _, rd := range diffs {
		out = append(out, FromRouteDiff(rd))
	}
	return out
}

// FromDraft converts a staged decision.
func FromDraft(draft *capture.DraftOp) DraftOp {
	if draft == nil {
		return DraftOp{}
	}
	return DraftOp{
		Route:          draft.Route,
		Key:            draft.Key,
		Action:         string(draft.Action),
		TargetPageID:   draft.TargetPageID,
		TargetModuleID: draft.TargetModuleID,
		UpdatedAt:      formatTime(draft.UpdatedAt),
	}
}

// FromDrafts converts staged decisions.
func FromDrafts(drafts []*capture.DraftOp) []DraftOp {
	if len(drafts) == 0 {
		return nil
	}
	out := make([]DraftOp, 0, len(drafts))
	for _, draft := range drafts {
		out = append(out, FromDraft(draft))
	}
	return out
}

// FromApplyResult converts apply counts.
func FromApplyResult(result reconcile.ApplyResult) ApplySummary {
	return ApplySummary{
		Bound:          result.Bound,
		Moved:          result.Moved,
		Deleted:        result.Deleted,
		Ignored:        result.Ignored,
		EntriesCreated: result.EntriesCreated,
	}
}

// FromProject converts a catalog project. The SDK token is included only when
// withToken is set; list views omit it.
func FromProject(project *catalog.Project, withToken bool) Project {
	if project == nil {
		return Project{}
	}
	dto := Project{
		ID:        project.ID,
		Slug:      project.Slug,
		Name:      project.Name,
		CreatedAt: formatTime(project.CreatedAt),
	}
	if withToken {
		dto.SDKToken = project.SDKToken
	}
	return dto
}

// FromEntries converts catalog entries.
func FromEntries(entries []*catalog.Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Entry{
			ID:         entry.ID,
			Key:        entry.Key,
			SourceText: entry.SourceText,
			UpdatedAt:  formatTime(entry.UpdatedAt),
		})
	}
	return out
}

// FromDatabaseHealth converts the capture store diagnostic.
func FromDatabaseHealth(health capture.DatabaseHealth) *HealthReport {
	return &HealthReport{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		TablesPresent:    health.TablesPresent,
		MissingTables:    health.MissingTables,
		IntegrityCheck:   health.IntegrityCheck,
		TotalSessions:    health.TotalSessions,
		Error:            health.Error,
	}
}

// FromSessionCounts converts status totals.
func FromSessionCounts(counts capture.SessionCounts) SessionCounts {
	return SessionCounts{
		Total:     counts.Total,
		Active:    counts.Active,
		Closing:   counts.Closing,
		Applied:   counts.Applied,
		Discarded: counts.Discarded,
		Expired:   counts.Expired,
	}
}

// ParseEventPayloads converts wire events into domain events. Timestamp
// parsing failures surface as validation errors downstream by leaving the
// zero time in place.
func ParseEventPayloads(payloads []EventPayload) []capture.Event {
	if len(payloads) == 0 {
		return nil
	}
	events := make([]capture.Event, 0, len(payloads))
	for _, payload := range payloads {
		event := capture.Event{
			Route:      payload.Route,
			Key:        payload.Key,
			SourceText: payload.SourceText,
			Locale:     payload.Locale,
		}
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		}
		events = append(events, event)
	}
	return events
}
