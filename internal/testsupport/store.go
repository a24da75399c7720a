package testsupport

import (
	"context"
	"testing"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/config"
)

// MustOpenCapture opens a capture store for the test config and registers
// cleanup.
func MustOpenCapture(t testing.TB, cfg *config.Config) *capture.Store {
	t.Helper()
	store, err := capture.Open(cfg)
	if err != nil {
		t.Fatalf("open capture store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenCatalog opens a catalog store for the test config and registers
// cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedProject creates a project with a fixed SDK token for tests.
func SeedProject(t testing.TB, store *catalog.Store, slug, token string) *catalog.Project {
	t.Helper()
	project, err := store.CreateProject(context.Background(), slug, slug, token)
	if err != nil {
		t.Fatalf("seed project %s: %v", slug, err)
	}
	return project
}
