package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weft/internal/api"
	"weft/internal/capture"
	"weft/internal/config"
	"weft/internal/logging"
	"weft/internal/requestctx"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	sessionSvc   *api.SessionService
	ingestSvc    *api.IngestService
	reconcileSvc *api.ReconcileService
	projectSvc   *api.ProjectService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:         bind,
		token:        strings.TrimSpace(cfg.Paths.APIToken),
		logger:       logger,
		daemon:       d,
		sessionSvc:   api.NewSessionService(d.sessions, d.capture),
		ingestSvc:    api.NewIngestService(d.aggregator),
		reconcileSvc: api.NewReconcileService(d.sessions, d.engine),
		projectSvc:   api.NewProjectService(d.catalog),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.operatorAuth(srv.handleStatus))
	mux.HandleFunc("/api/v1/capture/sessions", srv.sdkAuth(srv.handleOpenSession))
	mux.HandleFunc("/api/v1/capture/sessions/", srv.sdkAuth(srv.handleSDKSession))
	mux.HandleFunc("/api/v1/capture/ingest", srv.sdkAuth(srv.handleIngest))
	mux.HandleFunc("/api/v1/sessions", srv.operatorAuth(srv.handleSessions))
	mux.HandleFunc("/api/v1/sessions/", srv.operatorAuth(srv.handleSessionItem))
	mux.HandleFunc("/api/v1/projects", srv.operatorAuth(srv.handleProjects))
	mux.HandleFunc("/api/v1/projects/", srv.operatorAuth(srv.handleProjectItem))

	srv.server = &http.Server{
		Handler:           srv.requestLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}
	status := s.daemon.Status(r.Context())
	resp := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		CaptureDBPath: status.CaptureDBPath,
		CatalogDBPath: status.CatalogDBPath,
		LockFilePath:  status.LockFilePath,
		Sessions:      api.FromSessionCounts(status.Sessions),
	}
	if r.URL.Query().Get("health") == "true" {
		health, err := s.daemon.capture.CheckHealth(r.Context())
		if err != nil && health.Error == "" {
			health.Error = err.Error()
		}
		resp.Health = api.FromDatabaseHealth(health)
	}
	s.writeData(w, http.StatusOK, resp)
}

// handleOpenSession starts or resumes the project's capture session. The
// project comes from the SDK token, never from the payload.
func (s *apiServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	projectID, _ := requestctx.ProjectIDFromContext(r.Context())

	var req api.OpenSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.sessionSvc.Open(r.Context(), projectID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	s.writeData(w, status, resp)
}

// handleSDKSession routes /api/v1/capture/sessions/{id}/touch.
func (s *apiServer) handleSDKSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/capture/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" || action != "touch" {
		s.writeNotFound(w)
		return
	}
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	if !s.sessionBelongsToProject(w, r, sessionID) {
		return
	}
	resp, err := s.sessionSvc.Touch(r.Context(), sessionID, sdkIdentity(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, resp)
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	var req api.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.sessionBelongsToProject(w, r, req.SessionID) {
		return
	}
	resp, err := s.ingestSvc.Ingest(r.Context(), sdkIdentity(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, resp)
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	var projectID int64
	if value := strings.TrimSpace(query.Get("project")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, fmt.Errorf("invalid project id %q: %w", value, capture.ErrValidation))
			return
		}
		projectID = parsed
	}
	var statuses []capture.SessionStatus
	for _, value := range query["status"] {
		status, ok := capture.ParseSessionStatus(value)
		if !ok {
			s.writeError(w, fmt.Errorf("unknown status %q: %w", value, capture.ErrValidation))
			return
		}
		statuses = append(statuses, status)
	}
	resp, err := s.sessionSvc.List(r.Context(), projectID, statuses...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, resp)
}

// handleSessionItem routes /api/v1/sessions/{id} and its sub-resources:
// diff, drafts, apply, discard.
func (s *apiServer) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		s.writeNotFound(w)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeMethodNotAllowed(w)
			return
		}
		resp, err := s.sessionSvc.Describe(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case "diff":
		if r.Method != http.MethodGet {
			s.writeMethodNotAllowed(w)
			return
		}
		resp, err := s.reconcileSvc.Diff(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case "drafts":
		s.handleDrafts(w, r, sessionID)
	case "apply":
		if r.Method != http.MethodPost {
			s.writeMethodNotAllowed(w)
			return
		}
		resp, err := s.reconcileSvc.Apply(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case "discard":
		if r.Method != http.MethodPost {
			s.writeMethodNotAllowed(w)
			return
		}
		if err := s.sessionSvc.Discard(r.Context(), sessionID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, map[string]string{"status": string(capture.SessionDiscarded)})
	default:
		s.writeNotFound(w)
	}
}

func (s *apiServer) handleDrafts(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		resp, err := s.reconcileSvc.Drafts(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case http.MethodPost:
		var req api.DraftRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		resp, err := s.reconcileSvc.StageDraft(r.Context(), sessionID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	default:
		s.writeMethodNotAllowed(w)
	}
}

func (s *apiServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := s.projectSvc.List(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case http.MethodPost:
		var req api.CreateProjectRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		resp, err := s.projectSvc.Create(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusCreated, resp)
	default:
		s.writeMethodNotAllowed(w)
	}
}

// handleProjectItem routes /api/v1/projects/{id}/{pages|entries} plus
// /api/v1/projects/{id}/pages/{pageID}/modules.
func (s *apiServer) handleProjectItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/projects/")
	idStr, action, _ := strings.Cut(rest, "/")
	if idStr == "" {
		s.writeNotFound(w)
		return
	}
	projectID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, fmt.Errorf("invalid project id %q: %w", idStr, capture.ErrValidation))
		return
	}

	resource, sub, _ := strings.Cut(action, "/")
	switch resource {
	case "pages":
		if sub != "" {
			s.handlePageModules(w, r, projectID, sub)
			return
		}
		s.handleProjectPages(w, r, projectID)
	case "entries":
		if sub != "" || r.Method != http.MethodGet {
			s.writeNotFound(w)
			return
		}
		resp, err := s.projectSvc.Entries(r.Context(), projectID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	default:
		s.writeNotFound(w)
	}
}

func (s *apiServer) handleProjectPages(w http.ResponseWriter, r *http.Request, projectID int64) {
	switch r.Method {
	case http.MethodGet:
		resp, err := s.projectSvc.Pages(r.Context(), projectID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusOK, resp)
	case http.MethodPost:
		var req api.CreatePageRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		resp, err := s.projectSvc.CreatePage(r.Context(), projectID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeData(w, http.StatusCreated, resp)
	default:
		s.writeMethodNotAllowed(w)
	}
}

// handlePageModules routes pages/{pageID}/modules under a project.
func (s *apiServer) handlePageModules(w http.ResponseWriter, r *http.Request, projectID int64, rest string) {
	pageStr, tail, _ := strings.Cut(rest, "/")
	if pageStr == "" || tail != "modules" {
		s.writeNotFound(w)
		return
	}
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	pageID, err := strconv.ParseInt(pageStr, 10, 64)
	if err != nil {
		s.writeError(w, fmt.Errorf("invalid page id %q: %w", pageStr, capture.ErrValidation))
		return
	}
	var req api.CreateModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.projectSvc.CreateModule(r.Context(), projectID, pageID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, resp)
}

// sessionBelongsToProject rejects SDK calls against sessions of other
// projects. The miss reads as not-found so token holders cannot enumerate
// foreign session ids.
func (s *apiServer) sessionBelongsToProject(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	projectID, _ := requestctx.ProjectIDFromContext(r.Context())
	sess, err := s.daemon.capture.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if sess == nil || sess.ProjectID != projectID {
		s.writeError(w, fmt.Errorf("session %s: %w", sessionID, capture.ErrSessionNotFound))
		return false
	}
	return true
}

func sdkIdentity(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Weft-SDK-Identity"))
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", capture.ErrValidation)
	}
	return nil
}

func (s *apiServer) writeData(w http.ResponseWriter, status int, payload any) {
	s.writeJSON(w, status, api.Envelope{OK: true, Data: payload})
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	body := api.ErrorBodyFor(err)
	if api.HTTPStatusFor(body.Code) == http.StatusInternalServerError {
		s.log().Error("request failed", logging.Error(err))
	}
	s.writeJSON(w, api.HTTPStatusFor(body.Code), api.Envelope{OK: false, Error: body})
}

func (s *apiServer) writeNotFound(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusNotFound, api.Envelope{OK: false, Error: &api.ErrorBody{
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}})
}

func (s *apiServer) writeMethodNotAllowed(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusMethodNotAllowed, api.Envelope{OK: false, Error: &api.ErrorBody{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "method not allowed",
	}})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
