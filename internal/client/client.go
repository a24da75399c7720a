package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weft/internal/api"
	"weft/internal/capture"
)

// APIError is a non-2xx response from the daemon, carrying the wire code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client provides typed access to the daemon's operator API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client for the daemon at baseURL. The token is the
// operator bearer token; it may be empty when the daemon runs without one.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Status retrieves daemon runtime information. With includeHealth set the
// daemon also runs the capture database diagnostic.
func (c *Client) Status(ctx context.Context, includeHealth bool) (*api.DaemonStatus, error) {
	path := "/api/status"
	if includeHealth {
		path += "?health=true"
	}
	var out api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists capture sessions, optionally filtered by project and status.
func (c *Client) Sessions(ctx context.Context, projectID int64, statuses ...capture.SessionStatus) (*api.SessionListResponse, error) {
	query := url.Values{}
	if projectID != 0 {
		query.Set("project", fmt.Sprintf("%d", projectID))
	}
	for _, status := range statuses {
		query.Add("status", string(status))
	}
	path := "/api/v1/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out api.SessionListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session retrieves the operator view of one session.
func (c *Client) Session(ctx context.Context, sessionID string) (*api.SessionDetail, error) {
	var out api.SessionDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Diff retrieves the full reconciliation diff for a session.
func (c *Client) Diff(ctx context.Context, sessionID string) (*api.DiffResponse, error) {
	var out api.DiffResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/diff", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Drafts lists the staged decisions for a session.
func (c *Client) Drafts(ctx context.Context, sessionID string) (*api.DraftListResponse, error) {
	var out api.DraftListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/drafts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StageDraft stages one reconciliation decision.
func (c *Client) StageDraft(ctx context.Context, sessionID string, req api.DraftRequest) (*api.DraftOp, error) {
	var out api.DraftOp
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/drafts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Apply executes a session's staged drafts.
func (c *Client) Apply(ctx context.Context, sessionID string) (*api.ApplyResponse, error) {
	var out api.ApplyResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/apply", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Discard abandons an active session.
func (c *Client) Discard(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/discard", nil, nil)
}

// CreateProject registers a project and returns it with its SDK token.
func (c *Client) CreateProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	var out api.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects lists registered projects.
func (c *Client) Projects(ctx context.Context) (*api.ProjectListResponse, error) {
	var out api.ProjectListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Entries lists a project's catalog entries.
func (c *Client) Entries(ctx context.Context, projectID int64) (*api.EntryListResponse, error) {
	var out api.EntryListResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/entries", projectID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pages lists a project's pages with their modules.
func (c *Client) Pages(ctx context.Context, projectID int64) (*api.PageListResponse, error) {
	var out api.PageListResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/pages", projectID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePage registers a route for a project.
func (c *Client) CreatePage(ctx context.Context, projectID int64, req api.CreatePageRequest) (*api.Page, error) {
	var out api.Page
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/pages", projectID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateModule names a section of a page, creating it when missing.
func (c *Client) CreateModule(ctx context.Context, projectID, pageID int64, req api.CreateModuleRequest) (*api.Module, error) {
	var out api.Module
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/pages/%d/modules", projectID, pageID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool            `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error *api.ErrorBody  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.OK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "INTERNAL_ERROR", Message: "unknown error"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
