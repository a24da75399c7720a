package diff

import (
	"sort"
	"strings"
	"time"
)

// Kind classifies one reconciliation finding.
type Kind string

const (
	// KindUnregistered marks a captured key the catalog has never seen.
	KindUnregistered Kind = "unregistered"
	// KindAdd marks a known key captured on a page it is not placed on.
	KindAdd Kind = "add"
	// KindMove marks a placed key whose module no longer matches its
	// namespace.
	KindMove Kind = "move"
	// KindDeleteSuggestion marks a placement whose key was never captured
	// during the session.
	KindDeleteSuggestion Kind = "delete_suggestion"
)

var kindOrder = map[Kind]int{
	KindUnregistered:     0,
	KindAdd:              1,
	KindMove:             2,
	KindDeleteSuggestion: 3,
}

// Item is one captured aggregate, stripped to what the diff needs.
type Item struct {
	Key        string
	SourceText string
	SeenCount  int64
	LastSeenAt time.Time
}

// Entry is a catalog entry projected into the diff input.
type Entry struct {
	ID         int64
	Key        string
	SourceText string
}

// Placement is a catalog placement on the input page, denormalized with its
// entry key and module name so the engine never reaches back to a store.
type Placement struct {
	ID         int64
	EntryID    int64
	Key        string
	ModuleID   int64
	ModuleName string
}

// Input is everything the engine looks at for one route. PageID is zero when
// the route is not registered in the catalog.
type Input struct {
	Route      string
	PageID     int64
	Items      []Item
	Entries    map[string]Entry
	Placements []Placement
}

// Change is one finding. Fields not meaningful for a kind stay zero: an
// unregistered key has no EntryID, a delete suggestion has no captured text.
type Change struct {
	Kind            Kind
	Key             string
	EntryID         int64
	PlacementID     int64
	CapturedText    string
	CatalogText     string
	TextChanged     bool
	CurrentModule   string
	SuggestedModule string
	SeenCount       int64
}

// RouteDiff is the engine output for one route.
type RouteDiff struct {
	Route     string
	PageID    int64
	PageKnown bool
	Changes   []Change
	Unchanged int
}

// ModuleForKey suggests a module name from a key's leading namespace
// segment. "checkout.title" suggests "checkout"; a key without a namespace
// falls back to "general".
func ModuleForKey(key string) string {
	if idx := strings.IndexByte(key, '.'); idx > 0 {
		return key[:idx]
	}
	return "general"
}

// Compute diffs one route's captured items against the catalog. It is a pure
// function of its input: same input, same output, in a deterministic order
// (kind, then key).
func Compute(in Input) RouteDiff {
	out := RouteDiff{
		Route:     in.Route,
		PageID:    in.PageID,
		PageKnown: in.PageID != 0,
	}

	placedByKey := make(map[string]Placement, len(in.Placements))
	for _, placement := range in.Placements {
		placedByKey[placement.Key] = placement
	}
	captured := make(map[string]struct{}, len(in.Items))

	for _, item := range in.Items {
		captured[item.Key] = struct{}{}
		suggested := ModuleForKey(item.Key)

		entry, known := in.Entries[item.Key]
		if !known {
			out.Changes = append(out.Changes, Change{
				Kind:            KindUnregistered,
				Key:             item.Key,
				CapturedText:    item.SourceText,
				SuggestedModule: suggested,
				SeenCount:       item.SeenCount,
			})
			continue
		}

		textChanged := entry.SourceText != item.SourceText
		placement, placed := placedByKey[item.Key]
		if !out.PageKnown || !placed {
			out.Changes = append(out.Changes, Change{
				Kind:            KindAdd,
				Key:             item.Key,
				EntryID:         entry.ID,
				CapturedText:    item.SourceText,
				CatalogText:     entry.SourceText,
				TextChanged:     textChanged,
				SuggestedModule: suggested,
				SeenCount:       item.SeenCount,
			})
			continue
		}

		if placement.ModuleName != suggested {
			out.Changes = append(out.Changes, Change{
				Kind:            KindMove,
				Key:             item.Key,
				EntryID:         entry.ID,
				PlacementID:     placement.ID,
				CapturedText:    item.SourceText,
				CatalogText:     entry.SourceText,
				TextChanged:     textChanged,
				CurrentModule:   placement.ModuleName,
				SuggestedModule: suggested,
				SeenCount:       item.SeenCount,
			})
			continue
		}
		out.Unchanged++
	}

	for _, placement := range in.Placements {
		if _, seen := captured[placement.Key]; seen {
			continue
		}
		change := Change{
			Kind:          KindDeleteSuggestion,
			Key:           placement.Key,
			EntryID:       placement.EntryID,
			PlacementID:   placement.ID,
			CurrentModule: placement.ModuleName,
		}
		if entry, known := in.Entries[placement.Key]; known {
			change.CatalogText = entry.SourceText
		}
		out.Changes = append(out.Changes, change)
	}

	sort.SliceStable(out.Changes, func(i, j int) bool {
		if kindOrder[out.Changes[i].Kind] != kindOrder[out.Changes[j].Kind] {
			return kindOrder[out.Changes[i].Kind] < kindOrder[out.Changes[j].Kind]
		}
		return out.Changes[i].Key < out.Changes[j].Key
	})
	return out
}
