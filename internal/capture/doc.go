// Package capture owns the capture-session domain: the session status state
// machine, idempotent batch records, per-(route, key) aggregates, derived
// route rollups, and staged draft decisions, all persisted in SQLite.
//
// A session and everything keyed under it form one lifetime unit. The catalog
// is a separate store that ingestion never touches; only the apply step
// writes it.
package capture
