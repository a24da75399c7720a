package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func checkoutInput() Input {
	return Input{
		Route:  "/checkout",
		PageID: 7,
		Items: []Item{
			{Key: "checkout.title", SourceText: "Checkout", SeenCount: 4},
			{Key: "checkout.cta", SourceText: "Pay immediately", SeenCount: 2},
			{Key: "promo.banner", SourceText: "Sale!", SeenCount: 1},
			{Key: "checkout.hint", SourceText: "Takes a minute", SeenCount: 1},
		},
		Entries: map[string]Entry{
			"checkout.title":  {ID: 1, Key: "checkout.title", SourceText: "Checkout"},
			"checkout.cta":    {ID: 2, Key: "checkout.cta", SourceText: "Pay now"},
			"checkout.hint":   {ID: 3, Key: "checkout.hint", SourceText: "Takes a minute"},
			"checkout.legacy": {ID: 4, Key: "checkout.legacy", SourceText: "Old text"},
		},
		Placements: []Placement{
			{ID: 11, EntryID: 1, Key: "checkout.title", ModuleID: 21, ModuleName: "checkout"},
			{ID: 12, EntryID: 2, Key: "checkout.cta", ModuleID: 22, ModuleName: "footer"},
			{ID: 13, EntryID: 4, Key: "checkout.legacy", ModuleID: 21, ModuleName: "checkout"},
		},
	}
}

func TestComputeClassifiesAllKinds(t *testing.T) {
	got := Compute(checkoutInput())

	want := RouteDiff{
		Route:     "/checkout",
		PageID:    7,
		PageKnown: true,
		Changes: []Change{
			{
				Kind:            KindUnregistered,
				Key:             "promo.banner",
				CapturedText:    "Sale!",
				SuggestedModule: "promo",
				SeenCount:       1,
			},
			{
				Kind:            KindAdd,
				Key:             "checkout.hint",
				EntryID:         3,
				CapturedText:    "Takes a minute",
				CatalogText:     "Takes a minute",
				SuggestedModule: "checkout",
				SeenCount:       1,
			},
			{
				Kind:            KindMove,
				Key:             "checkout.cta",
				EntryID:         2,
				PlacementID:     12,
				CapturedText:    "Pay immediately",
				CatalogText:     "Pay now",
				TextChanged:     true,
				CurrentModule:   "footer",
				SuggestedModule: "checkout",
				SeenCount:       2,
			},
			{
				Kind:          KindDeleteSuggestion,
				Key:           "checkout.legacy",
				EntryID:       4,
				PlacementID:   13,
				CatalogText:   "Old text",
				CurrentModule: "checkout",
			},
		},
		Unchanged: 1,
	}

	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("diff mismatch (-want +got):\n%s", d)
	}
}

func TestComputeUnknownPage(t *testing.T) {
	got := Compute(Input{
		Route: "/new-route",
		Items: []Item{{Key: "checkout.title", SourceText: "Checkout"}},
		Entries: map[string]Entry{
			"checkout.title": {ID: 1, Key: "checkout.title", SourceText: "Checkout"},
		},
	})

	if got.PageKnown {
		t.Fatal("page should be unknown")
	}
	if len(got.Changes) != 1 || got.Changes[0].Kind != KindAdd {
		t.Fatalf("changes = %+v", got.Changes)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	got := Compute(Input{Route: "/empty", PageID: 3})
	if len(got.Changes) != 0 || got.Unchanged != 0 {
		t.Fatalf("empty input produced %+v", got)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	in := checkoutInput()
	first := Compute(in)
	for i := 0; i < 20; i++ {
		again := Compute(checkoutInput())
		if d := cmp.Diff(first, again); d != "" {
			t.Fatalf("run %d diverged (-first +again):\n%s", i, d)
		}
	}
}

func TestModuleForKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"checkout.title", "checkout"},
		{"checkout.form.label", "checkout"},
		{"standalone", "general"},
		{".weird", "general"},
	}
	for _, tc := range cases {
		if got := ModuleForKey(tc.key); got != tc.want {
			t.Fatalf("ModuleForKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
