package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, project_id, key, source_text, updated_at"

// UpsertEntry creates or updates an entry's canonical source text.
func (s *Store) UpsertEntry(ctx context.Context, projectID int64, key, sourceText string) (*Entry, error) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entries (project_id, key, source_text, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(project_id, key) DO UPDATE SET
             source_text = excluded.source_text,
             updated_at = excluded.updated_at`,
		projectID, key, sourceText, formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}
	return s.EntryByKey(ctx, projectID, key)
}

// EntryByKey fetches one entry, or nil when the key is unknown to the catalog.
func (s *Store) EntryByKey(ctx context.Context, projectID int64, key string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE project_id = ? AND key = ?`,
		projectID, key,
	)
	return scanEntry(row)
}

// FindEntriesByKeys returns the subset of keys known to the catalog, keyed by
// entry key.
func (s *Store) FindEntriesByKeys(ctx context.Context, projectID int64, keys []string) (map[string]*Entry, error) {
	result := make(map[string]*Entry, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	placeholders := makePlaceholders(len(keys))
	args := make([]any, 0, len(keys)+1)
	args = append(args, projectID)
	for _, key := range keys {
		args = append(args, key)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE project_id = ? AND key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("find entries by keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result[entry.Key] = entry
	}
	return result, rows.Err()
}

// EntriesByProject returns every entry of a project in key order.
func (s *Store) EntriesByProject(ctx context.Context, projectID int64) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE project_id = ? ORDER BY key`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("entries by project: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// EntriesByID returns entries keyed by identifier.
func (s *Store) EntriesByID(ctx context.Context, ids []int64) (map[int64]*Entry, error) {
	result := make(map[int64]*Entry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("entries by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result[entry.ID] = entry
	}
	return result, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry      Entry
		updatedRaw string
	)
	err := scanner.Scan(&entry.ID, &entry.ProjectID, &entry.Key, &entry.SourceText, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
