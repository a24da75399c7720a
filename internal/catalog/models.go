package catalog

import "time"

// Project is the unit of tenancy: a product under translation. The SDK token
// authenticates ingestion for exactly one project.
type Project struct {
	ID        int64
	Slug      string
	Name      string
	SDKToken  string
	CreatedAt time.Time
}

// Entry is a localization key with its canonical source text.
type Entry struct {
	ID         int64
	ProjectID  int64
	Key        string
	SourceText string
	UpdatedAt  time.Time
}

// Page groups placements for one route of the product.
type Page struct {
	ID        int64
	ProjectID int64
	Route     string
	Name      string
}

// Module is a named section within a page.
type Module struct {
	ID     int64
	PageID int64
	Name   string
}

// Placement binds an entry to a module on a page. An entry appears at most
// once per page; moving it means changing the module.
type Placement struct {
	ID        int64
	EntryID   int64
	PageID    int64
	ModuleID  int64
	CreatedAt time.Time
}
