package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the uniform response wrapper. Success carries Data; failure
// carries Error and OK is false.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries a stable machine code plus a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Session describes a capture session in a transport-friendly format.
type Session struct {
	ID              string `json:"id"`
	ProjectID       int64  `json:"projectId"`
	SDKIdentity     string `json:"sdkIdentity"`
	Env             string `json:"env,omitempty"`
	RequestedLocale string `json:"requestedLocale,omitempty"`
	Status          string `json:"status"`
	StartedAt       string `json:"startedAt,omitempty"`
	LastSeenAt      string `json:"lastSeenAt,omitempty"`
	ClosedAt        string `json:"closedAt,omitempty"`
	CloseReason     string `json:"closeReason,omitempty"`
}

// OpenSessionRequest asks for a new (or resumed) capture session.
type OpenSessionRequest struct {
	SDKIdentity     string `json:"sdkIdentity"`
	Env             string `json:"env,omitempty"`
	RequestedLocale string `json:"requestedLocale,omitempty"`
}

// OpenSessionResponse returns the session plus whether it was resumed.
type OpenSessionResponse struct {
	Session Session `json:"session"`
	Resumed bool    `json:"resumed"`
}

// SessionDetail is the operator view of one session.
type SessionDetail struct {
	Session    Session     `json:"session"`
	Collected  int         `json:"collected"`
	RouteStats []RouteStat `json:"routeStats,omitempty"`
	Drafts     []DraftOp   `json:"drafts,omitempty"`
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// EventPayload is one SDK observation inside an ingest batch.
type EventPayload struct {
	Route      string `json:"route"`
	Key        string `json:"key"`
	SourceText string `json:"sourceText"`
	Timestamp  string `json:"timestamp"`
	Locale     string `json:"locale,omitempty"`
}

// IngestRequest carries one batch of SDK events.
type IngestRequest struct {
	SessionID string         `json:"sessionId"`
	BatchID   string         `json:"batchId"`
	Events    []EventPayload `json:"events"`
}

// IngestResponse reports what the batch did. Received echoes the raw event
// count; Saved is the distinct (route, key) pairs after grouping.
type IngestResponse struct {
	Deduped   bool `json:"deduped"`
	Saved     int  `json:"saved"`
	Received  int  `json:"received"`
	Collected int  `json:"collected"`
	NearLimit bool `json:"nearLimit,omitempty"`
}

// RouteStat is the per-route rollup shown on the dashboard.
type RouteStat struct {
	Route            string `json:"route"`
	KeysTotal        int    `json:"keysTotal"`
	NewKeysCount     int    `json:"newKeysCount"`
	TextChangedCount int    `json:"textChangedCount"`
	LastSeenAt       string `json:"lastSeenAt,omitempty"`
}

// DiffChange is one reconciliation finding.
type DiffChange struct {
	Kind            string `json:"kind"`
	Key             string `json:"key"`
	EntryID         int64  `json:"entryId,omitempty"`
	PlacementID     int64  `json:"placementId,omitempty"`
	CapturedText    string `json:"capturedText,omitempty"`
	CatalogText     string `json:"catalogText,omitempty"`
	TextChanged     bool   `json:"textChanged,omitempty"`
	CurrentModule   string `json:"currentModule,omitempty"`
	SuggestedModule string `json:"suggestedModule,omitempty"`
	SeenCount       int64  `json:"seenCount,omitempty"`
}

// RouteDiff groups findings for one route.
type RouteDiff struct {
	Route     string       `json:"route"`
	PageID    int64        `json:"pageId,omitempty"`
	PageKnown bool         `json:"pageKnown"`
	Changes   []DiffChange `json:"changes"`
	Unchanged int          `json:"unchanged"`
}

// DiffResponse is the full session diff.
type DiffResponse struct {
	SessionID string      `json:"sessionId"`
	Routes    []RouteDiff `json:"routes"`
}

// DraftRequest stages one reconciliation decision.
type DraftRequest struct {
	Route          string `json:"route"`
	Key            string `json:"key"`
	Action         string `json:"action"`
	TargetPageID   int64  `json:"targetPageId,omitempty"`
	TargetModuleID int64  `json:"targetModuleId,omitempty"`
}

// DraftOp is a staged decision in transport form.
type DraftOp struct {
	Route          string `json:"route"`
	Key            string `json:"key"`
	Action         string `json:"action"`
	TargetPageID   int64  `json:"targetPageId,omitempty"`
	TargetModuleID int64  `json:"targetModuleId,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// DraftListResponse wraps staged decisions.
type DraftListResponse struct {
	SessionID string    `json:"sessionId"`
	Drafts    []DraftOp `json:"drafts"`
}

// ApplySummary counts what an apply changed.
type ApplySummary struct {
	Bound          int `json:"bound"`
	Moved          int `json:"moved"`
	Deleted        int `json:"deleted"`
	Ignored        int `json:"ignored"`
	EntriesCreated int `json:"entriesCreated"`
}

// ApplyResponse returns the applied session and the change counts.
type ApplyResponse struct {
	Session Session      `json:"session"`
	Result  ApplySummary `json:"result"`
}

// Project describes a catalog project.
type Project struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	SDKToken  string `json:"sdkToken,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// CreateProjectRequest registers a new project.
type CreateProjectRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

// Page describes a catalog page with its modules.
type Page struct {
	ID      int64    `json:"id"`
	Route   string   `json:"route"`
	Name    string   `json:"name,omitempty"`
	Modules []Module `json:"modules,omitempty"`
}

// Module describes a named section of a page.
type Module struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreatePageRequest registers a route for a project.
type CreatePageRequest struct {
	Route string `json:"route"`
	Name  string `json:"name,omitempty"`
}

// CreateModuleRequest names a section of a page.
type CreateModuleRequest struct {
	Name string `json:"name"`
}

// PageListResponse wraps a project's pages.
type PageListResponse struct {
	ProjectID int64  `json:"projectId"`
	Pages     []Page `json:"pages"`
}

// Entry is a catalog entry in transport form.
type Entry struct {
	ID         int64  `json:"id"`
	Key        string `json:"key"`
	SourceText string `json:"sourceText"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// EntryListResponse wraps a project's catalog entries.
type EntryListResponse struct {
	ProjectID int64   `json:"projectId"`
	Entries   []Entry `json:"entries"`
}

// SessionCounts aggregates session totals for status reporting.
type SessionCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Closing   int `json:"closing"`
	Applied   int `json:"applied"`
	Discarded int `json:"discarded"`
	Expired   int `json:"expired"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	CaptureDBPath string        `json:"captureDbPath"`
	CatalogDBPath string        `json:"catalogDbPath"`
	LockFilePath  string        `json:"lockFilePath"`
	Sessions      SessionCounts `json:"sessions"`
	Health        *HealthReport `json:"health,omitempty"`
}

// HealthReport is the capture database diagnostic, included in DaemonStatus
// on request.
type HealthReport struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	TablesPresent    []string `json:"tablesPresent,omitempty"`
	MissingTables    []string `json:"missingTables,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalSessions    int      `json:"totalSessions"`
	Error            string   `json:"error,omitempty"`
}
