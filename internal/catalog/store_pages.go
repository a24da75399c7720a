package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const pageColumns = "id, project_id, route, name"

// CreatePage registers a route for a project.
func (s *Store) CreatePage(ctx context.Context, projectID int64, route, name string) (*Page, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pages (project_id, route, name) VALUES (?, ?, ?)`,
		projectID, route, name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("page %q: %w", route, ErrConflict)
		}
		return nil, fmt.Errorf("insert page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.PageByID(ctx, id)
}

// PageByID fetches a page by identifier.
func (s *Store) PageByID(ctx context.Context, id int64) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	return scanPage(row)
}

// PageByRoute fetches the page registered for a route, or nil when the route
// is unknown.
func (s *Store) PageByRoute(ctx context.Context, projectID int64, route string) (*Page, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+pageColumns+` FROM pages WHERE project_id = ? AND route = ?`,
		projectID, route,
	)
	return scanPage(row)
}

// PagesByProject returns every page of a project in route order.
func (s *Store) PagesByProject(ctx context.Context, projectID int64) ([]*Page, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+pageColumns+` FROM pages WHERE project_id = ? ORDER BY route`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("pages by project: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

const moduleColumns = "id, page_id, name"

// EnsureModule returns the named module on a page, creating it when missing.
func (s *Store) EnsureModule(ctx context.Context, pageID int64, name string) (*Module, error) {
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO modules (page_id, name) VALUES (?, ?) ON CONFLICT(page_id, name) DO NOTHING`,
		pageID, name,
	); err != nil {
		return nil, fmt.Errorf("ensure module: %w", err)
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE page_id = ? AND name = ?`,
		pageID, name,
	)
	return scanModule(row)
}

// ModuleByID fetches a module by identifier.
func (s *Store) ModuleByID(ctx context.Context, id int64) (*Module, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = ?`, id)
	return scanModule(row)
}

// ModulesByPage returns the modules of a page in name order.
func (s *Store) ModulesByPage(ctx context.Context, pageID int64) ([]*Module, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE page_id = ? ORDER BY name`,
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("modules by page: %w", err)
	}
	defer rows.Close()

	var modules []*Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

func scanPage(scanner interface{ Scan(dest ...any) error }) (*Page, error) {
	var page Page
	err := scanner.Scan(&page.ID, &page.ProjectID, &page.Route, &page.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return &page, nil
}

func scanModule(scanner interface{ Scan(dest ...any) error }) (*Module, error) {
	var module Module
	err := scanner.Scan(&module.ID, &module.PageID, &module.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan module: %w", err)
	}
	return &module, nil
}
