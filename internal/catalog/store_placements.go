package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const placementColumns = "id, entry_id, page_id, module_id, created_at"

// PlacementsByPage returns every placement on a page.
func (s *Store) PlacementsByPage(ctx context.Context, pageID int64) ([]*Placement, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+placementColumns+` FROM placements WHERE page_id = ? ORDER BY id`,
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("placements by page: %w", err)
	}
	defer rows.Close()

	var placements []*Placement
	for rows.Next() {
		placement, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		placements = append(placements, placement)
	}
	return placements, rows.Err()
}

// PlacementFor fetches the placement of an entry on a page, or nil when the
// entry is not placed there.
func (s *Store) PlacementFor(ctx context.Context, entryID, pageID int64) (*Placement, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+placementColumns+` FROM placements WHERE entry_id = ? AND page_id = ?`,
		entryID, pageID,
	)
	return scanPlacement(row)
}

// Tx exposes catalog writes inside one transaction. The apply step runs every
// staged draft through a single Tx so a failure leaves the catalog untouched.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a catalog transaction. A non-nil error from fn rolls
// back all of its writes.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

// CreateEntry inserts an entry inside the transaction.
func (t *Tx) CreateEntry(ctx context.Context, projectID int64, key, sourceText string) (*Entry, error) {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO entries (project_id, key, source_text, updated_at) VALUES (?, ?, ?, ?)`,
		projectID, key, sourceText, formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("entry %q: %w", key, ErrConflict)
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Entry{ID: id, ProjectID: projectID, Key: key, SourceText: sourceText, UpdatedAt: now}, nil
}

// EntryByKey fetches an entry inside the transaction.
func (t *Tx) EntryByKey(ctx context.Context, projectID int64, key string) (*Entry, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE project_id = ? AND key = ?`,
		projectID, key,
	)
	return scanEntry(row)
}

// PlacementFor fetches the placement of an entry on a page inside the
// transaction.
func (t *Tx) PlacementFor(ctx context.Context, entryID, pageID int64) (*Placement, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT `+placementColumns+` FROM placements WHERE entry_id = ? AND page_id = ?`,
		entryID, pageID,
	)
	return scanPlacement(row)
}

// InsertPlacement binds an entry to a module on a page. A second placement of
// the same entry on the same page reports ErrConflict.
func (t *Tx) InsertPlacement(ctx context.Context, entryID, pageID, moduleID int64) (*Placement, error) {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO placements (entry_id, page_id, module_id, created_at) VALUES (?, ?, ?, ?)`,
		entryID, pageID, moduleID, formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("placement entry=%d page=%d: %w", entryID, pageID, ErrConflict)
		}
		return nil, fmt.Errorf("insert placement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Placement{ID: id, EntryID: entryID, PageID: pageID, ModuleID: moduleID, CreatedAt: now}, nil
}

// UpdatePlacementModule moves an existing placement to a different module on
// the same page.
func (t *Tx) UpdatePlacementModule(ctx context.Context, placementID, moduleID int64) error {
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE placements SET module_id = ? WHERE id = ?`,
		moduleID, placementID,
	)
	if err != nil {
		return fmt.Errorf("update placement module: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("placement %d not found", placementID)
	}
	return nil
}

// DeletePlacement removes one placement. Deleting an absent placement is a
// no-op; the entry and its translations are never touched.
func (t *Tx) DeletePlacement(ctx context.Context, entryID, pageID int64) error {
	if _, err := t.tx.ExecContext(
		ctx,
		`DELETE FROM placements WHERE entry_id = ? AND page_id = ?`,
		entryID, pageID,
	); err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	return nil
}

func scanPlacement(scanner interface{ Scan(dest ...any) error }) (*Placement, error) {
	var (
		placement  Placement
		createdRaw string
	)
	err := scanner.Scan(&placement.ID, &placement.EntryID, &placement.PageID, &placement.ModuleID, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan placement: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		placement.CreatedAt = created
	}
	return &placement, nil
}
