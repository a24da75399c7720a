package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"weft/internal/capture"
	"weft/internal/catalog"
)

// ProjectService exposes catalog project and page operations returning API
// DTOs.
type ProjectService struct {
	catalog *catalog.Store
}

// NewProjectService constructs a ProjectService.
func NewProjectService(store *catalog.Store) *ProjectService {
	if store == nil {
		return nil
	}
	return &ProjectService{catalog: store}
}

// Create registers a project and mints its SDK token. The token is returned
// exactly once, in this response.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (Project, error) {
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		return Project{}, fmt.Errorf("slug is required: %w", capture.ErrValidation)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = slug
	}
	token := "wsk_" + uuid.NewString()
	project, err := s.catalog.CreateProject(ctx, slug, name, token)
	if err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			return Project{}, fmt.Errorf("project %q already exists: %w", slug, capture.ErrUniqueConflict)
		}
		return Project{}, err
	}
	return FromProject(project, true), nil
}

// List returns all projects without SDK tokens.
func (s *ProjectService) List(ctx context.Context) (ProjectListResponse, error) {
	projects, err := s.catalog.ListProjects(ctx)
	if err != nil {
		return ProjectListResponse{}, err
	}
	out := ProjectListResponse{}
	for _, project := range projects {
		out.Projects = append(out.Projects, FromProject(project, false))
	}
	return out, nil
}

// CreatePage registers a route for a project so reconciliation binds can
// target it. Routes are unique per project.
func (s *ProjectService) CreatePage(ctx context.Context, projectID int64, req CreatePageRequest) (Page, error) {
	route := strings.TrimSpace(req.Route)
	if route == "" {
		return Page{}, fmt.Errorf("route is required: %w", capture.ErrValidation)
	}
	project, err := s.catalog.ProjectByID(ctx, projectID)
	if err != nil {
		return Page{}, err
	}
	if project == nil {
		return Page{}, fmt.Errorf("project %d not found: %w", projectID, capture.ErrValidation)
	}
	page, err := s.catalog.CreatePage(ctx, projectID, route, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			return Page{}, fmt.Errorf("route %q already registered: %w", route, capture.ErrUniqueConflict)
		}
		return Page{}, err
	}
	return Page{ID: page.ID, Route: page.Route, Name: page.Name}, nil
}

// CreateModule names a section of a page, creating it when missing. The page
// must belong to the project in the request path.
func (s *ProjectService) CreateModule(ctx context.Context, projectID, pageID int64, req CreateModuleRequest) (Module, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Module{}, fmt.Errorf("module name is required: %w", capture.ErrValidation)
	}
	page, err := s.catalog.PageByID(ctx, pageID)
	if err != nil {
		return Module{}, err
	}
	if page == nil || page.ProjectID != projectID {
		return Module{}, fmt.Errorf("page %d not found in project %d: %w", pageID, projectID, capture.ErrValidation)
	}
	module, err := s.catalog.EnsureModule(ctx, pageID, name)
	if err != nil {
		return Module{}, err
	}
	return Module{ID: module.ID, Name: module.Name}, nil
}

// Pages returns a project's pages with their modules, for operator draft
// targeting.
func (s *ProjectService) Pages(ctx context.Context, projectID int64) (PageListResponse, error) {
	pages, err := s.catalog.PagesByProject(ctx, projectID)
	if err != nil {
		return PageListResponse{}, err
	}
	out := PageListResponse{ProjectID: projectID}
	for _, page := range pages {
		modules, err := s.catalog.ModulesByPage(ctx, page.ID)
		if err != nil {
			return PageListResponse{}, err
		}
		dto := Page{ID: page.ID, Route: page.Route, Name: page.Name}
		for _, module := range modules {
			dto.Modules = append(dto.Modules, Module{ID: module.ID, Name: module.Name})
		}
		out.Pages = append(out.Pages, dto)
	}
	return out, nil
}

// Entries returns a project's catalog entries, key order, for operator
// inspection after apply.
func (s *ProjectService) Entries(ctx context.Context, projectID int64) (EntryListResponse, error) {
	entries, err := s.catalog.EntriesByProject(ctx, projectID)
	if err != nil {
		return EntryListResponse{}, err
	}
	return EntryListResponse{ProjectID: projectID, Entries: FromEntries(entries)}, nil
}
