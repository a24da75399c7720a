package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const projectColumns = "id, slug, name, sdk_token, created_at"

// CreateProject inserts a project with its SDK token.
func (s *Store) CreateProject(ctx context.Context, slug, name, sdkToken string) (*Project, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (slug, name, sdk_token, created_at) VALUES (?, ?, ?, ?)`,
		slug, name, sdkToken, formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("project %q: %w", slug, ErrConflict)
		}
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.ProjectByID(ctx, id)
}

// ProjectByID fetches a project by identifier.
func (s *Store) ProjectByID(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ProjectBySlug fetches a project by slug.
func (s *Store) ProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug)
	return scanProject(row)
}

// ProjectByToken resolves an SDK token to its project. A nil result means the
// token is not valid for any project.
func (s *Store) ProjectByToken(ctx context.Context, token string) (*Project, error) {
	if token == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE sdk_token = ?`, token)
	return scanProject(row)
}

// ListProjects returns all projects in slug order.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		project    Project
		createdRaw string
	)
	err := scanner.Scan(&project.ID, &project.Slug, &project.Name, &project.SDKToken, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		project.CreatedAt = created
	}
	return &project, nil
}
