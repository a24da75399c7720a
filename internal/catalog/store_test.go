package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProjectLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, err := store.CreateProject(ctx, "storefront", "Storefront", "tok-abc")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if project.ID == 0 {
		t.Fatal("expected assigned project id")
	}

	if _, err := store.CreateProject(ctx, "storefront", "Other", "tok-def"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate slug: expected ErrConflict, got %v", err)
	}

	byToken, err := store.ProjectByToken(ctx, "tok-abc")
	if err != nil {
		t.Fatalf("ProjectByToken: %v", err)
	}
	if byToken == nil || byToken.ID != project.ID {
		t.Fatalf("token lookup returned %+v", byToken)
	}

	unknown, err := store.ProjectByToken(ctx, "tok-missing")
	if err != nil {
		t.Fatalf("ProjectByToken unknown: %v", err)
	}
	if unknown != nil {
		t.Fatalf("unknown token resolved to %+v", unknown)
	}
}

func TestEntryUpsertAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, err := store.CreateProject(ctx, "app", "App", "tok-1")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	first, err := store.UpsertEntry(ctx, project.ID, "checkout.title", "Checkout")
	if err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	second, err := store.UpsertEntry(ctx, project.ID, "checkout.title", "Check out")
	if err != nil {
		t.Fatalf("UpsertEntry update: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	if second.SourceText != "Check out" {
		t.Fatalf("source text not updated: %q", second.SourceText)
	}

	if _, err := store.UpsertEntry(ctx, project.ID, "checkout.cta", "Pay now"); err != nil {
		t.Fatalf("UpsertEntry second key: %v", err)
	}

	found, err := store.FindEntriesByKeys(ctx, project.ID, []string{"checkout.title", "checkout.missing"})
	if err != nil {
		t.Fatalf("FindEntriesByKeys: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found))
	}
	if found["checkout.title"] == nil {
		t.Fatal("checkout.title not found")
	}
}

func TestPagesAndModules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, err := store.CreateProject(ctx, "app", "App", "tok-1")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	page, err := store.CreatePage(ctx, project.ID, "/checkout", "Checkout")
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	if _, err := store.CreatePage(ctx, project.ID, "/checkout", "Duplicate"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate route: expected ErrConflict, got %v", err)
	}

	module, err := store.EnsureModule(ctx, page.ID, "header")
	if err != nil {
		t.Fatalf("EnsureModule: %v", err)
	}
	again, err := store.EnsureModule(ctx, page.ID, "header")
	if err != nil {
		t.Fatalf("EnsureModule repeat: %v", err)
	}
	if again.ID != module.ID {
		t.Fatalf("EnsureModule created duplicate: %d != %d", again.ID, module.ID)
	}

	byRoute, err := store.PageByRoute(ctx, project.ID, "/checkout")
	if err != nil {
		t.Fatalf("PageByRoute: %v", err)
	}
	if byRoute == nil || byRoute.ID != page.ID {
		t.Fatalf("route lookup returned %+v", byRoute)
	}
}

func TestPlacementTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, err := store.CreateProject(ctx, "app", "App", "tok-1")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	page, err := store.CreatePage(ctx, project.ID, "/checkout", "")
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	module, err := store.EnsureModule(ctx, page.ID, "header")
	if err != nil {
		t.Fatalf("EnsureModule: %v", err)
	}
	entry, err := store.UpsertEntry(ctx, project.ID, "checkout.title", "Checkout")
	if err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	err = store.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertPlacement(ctx, entry.ID, page.ID, module.ID); err != nil {
			return err
		}
		_, err := tx.InsertPlacement(ctx, entry.ID, page.ID, module.ID)
		return err
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	placements, err := store.PlacementsByPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("PlacementsByPage: %v", err)
	}
	if len(placements) != 0 {
		t.Fatalf("rollback left %d placements", len(placements))
	}
}

func TestPlacementMoveAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project, err := store.CreateProject(ctx, "app", "App", "tok-1")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	page, err := store.CreatePage(ctx, project.ID, "/checkout", "")
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	header, err := store.EnsureModule(ctx, page.ID, "header")
	if err != nil {
		t.Fatalf("EnsureModule: %v", err)
	}
	footer, err := store.EnsureModule(ctx, page.ID, "footer")
	if err != nil {
		t.Fatalf("EnsureModule: %v", err)
	}
	entry, err := store.UpsertEntry(ctx, project.ID, "checkout.title", "Checkout")
	if err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	err = store.WithTx(ctx, func(tx *Tx) error {
		placement, err := tx.InsertPlacement(ctx, entry.ID, page.ID, header.ID)
		if err != nil {
			return err
		}
		return tx.UpdatePlacementModule(ctx, placement.ID, footer.ID)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	placement, err := store.PlacementFor(ctx, entry.ID, page.ID)
	if err != nil {
		t.Fatalf("PlacementFor: %v", err)
	}
	if placement == nil || placement.ModuleID != footer.ID {
		t.Fatalf("move did not stick: %+v", placement)
	}

	err = store.WithTx(ctx, func(tx *Tx) error {
		if err := tx.DeletePlacement(ctx, entry.ID, page.ID); err != nil {
			return err
		}
		// deleting again is a no-op
		return tx.DeletePlacement(ctx, entry.ID, page.ID)
	})
	if err != nil {
		t.Fatalf("delete tx: %v", err)
	}

	gone, err := store.PlacementFor(ctx, entry.ID, page.ID)
	if err != nil {
		t.Fatalf("PlacementFor after delete: %v", err)
	}
	if gone != nil {
		t.Fatalf("placement survived delete: %+v", gone)
	}

	if _, err := store.EntryByKey(ctx, project.ID, "checkout.title"); err != nil {
		t.Fatalf("entry lookup after delete: %v", err)
	}
}
