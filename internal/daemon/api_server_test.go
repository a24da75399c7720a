package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"weft/internal/api"
	"weft/internal/logging"
	"weft/internal/testsupport"
)

const (
	testOperatorToken = "op-secret"
	testSDKToken      = "wsk_test"
)

func newTestServer(t *testing.T) (*Daemon, *httptest.Server) {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIToken(testOperatorToken),
		testsupport.WithCaptureLimits(50, 40),
	)
	captureStore := testsupport.MustOpenCapture(t, cfg)
	catalogStore := testsupport.MustOpenCatalog(t, cfg)
	testsupport.SeedProject(t, catalogStore, "app", testSDKToken)

	d, err := New(cfg, captureStore, catalogStore, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(d.api.server.Handler)
	t.Cleanup(ts.Close)
	return d, ts
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *api.ErrorBody  `json:"error"`
}

func doRequest(t *testing.T, method, url string, headers map[string]string, body any) (int, envelope) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func sdkHeaders() map[string]string {
	return map[string]string{
		"X-Weft-SDK-Token":    testSDKToken,
		"X-Weft-SDK-Identity": "sdk-a",
	}
}

func operatorHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testOperatorToken}
}

func openTestSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/capture/sessions", sdkHeaders(),
		api.OpenSessionRequest{SDKIdentity: "sdk-a", Env: "dev"})
	if status != http.StatusCreated {
		t.Fatalf("open session: status %d, error %+v", status, env.Error)
	}
	var resp api.OpenSessionResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	return resp.Session.ID
}

func ingestBatch(t *testing.T, ts *httptest.Server, sessionID, batchID string, events ...api.EventPayload) (int, envelope) {
	t.Helper()
	return doRequest(t, http.MethodPost, ts.URL+"/api/v1/capture/ingest", sdkHeaders(),
		api.IngestRequest{SessionID: sessionID, BatchID: batchID, Events: events})
}

func testEvent(route, key, text string) api.EventPayload {
	return api.EventPayload{
		Route:      route,
		Key:        key,
		SourceText: text,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func TestSDKAuthRequired(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/capture/sessions", bytes.NewBufferString("{}"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestOperatorAuthRequired(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	status, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/sessions", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("authorized status = %d", status)
	}
}

func TestOpenSessionAndResume(t *testing.T) {
	_, ts := newTestServer(t)

	first := openTestSession(t, ts)

	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/capture/sessions", sdkHeaders(),
		api.OpenSessionRequest{SDKIdentity: "sdk-a"})
	if status != http.StatusOK {
		t.Fatalf("resume status = %d", status)
	}
	var resp api.OpenSessionResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Resumed || resp.Session.ID != first {
		t.Fatalf("resume response = %+v", resp)
	}
}

func TestOpenSessionSDKConflict(t *testing.T) {
	_, ts := newTestServer(t)
	openTestSession(t, ts)

	headers := sdkHeaders()
	headers["X-Weft-SDK-Identity"] = "sdk-b"
	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/capture/sessions", headers,
		api.OpenSessionRequest{SDKIdentity: "sdk-b"})
	if status != http.StatusConflict {
		t.Fatalf("status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "SDK_CONFLICT" {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestIngestAndReplay(t *testing.T) {
	_, ts := newTestServer(t)
	sessionID := openTestSession(t, ts)

	status, env := ingestBatch(t, ts, sessionID, "b-1",
		testEvent("/checkout", "checkout.title", "Checkout"),
		testEvent("/checkout", "checkout.cta", "Pay"),
	)
	if status != http.StatusOK {
		t.Fatalf("ingest status = %d, error %+v", status, env.Error)
	}
	var resp api.IngestResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Collected != 2 || resp.Received != 2 || resp.Deduped {
		t.Fatalf("ingest response = %+v", resp)
	}

	status, env = ingestBatch(t, ts, sessionID, "b-1",
		testEvent("/checkout", "checkout.title", "Checkout"),
		testEvent("/checkout", "checkout.cta", "Pay"),
	)
	if status != http.StatusOK {
		t.Fatalf("replay status = %d", status)
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Deduped {
		t.Fatalf("replay response = %+v", resp)
	}
}

func TestIngestForeignSessionReadsAsNotFound(t *testing.T) {
	d, ts := newTestServer(t)
	testsupport.SeedProject(t, d.catalog, "other", "wsk_other")

	headers := map[string]string{
		"X-Weft-SDK-Token":    "wsk_other",
		"X-Weft-SDK-Identity": "sdk-a",
	}
	sessionID := openTestSession(t, ts)
	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/capture/ingest", headers,
		api.IngestRequest{SessionID: sessionID, BatchID: "b-1", Events: []api.EventPayload{
			testEvent("/checkout", "checkout.title", "Checkout"),
		}})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "SESSION_NOT_FOUND" {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestIngestOverLimit(t *testing.T) {
	_, ts := newTestServer(t)
	sessionID := openTestSession(t, ts)

	var events []api.EventPayload
	for i := 0; i < 51; i++ {
		events = append(events, testEvent("/big", fmt.Sprintf("key.%03d", i), "text"))
	}
	status, env := ingestBatch(t, ts, sessionID, "b-1", events...)
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "SESSION_OVER_LIMIT" {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestReconcileFlow(t *testing.T) {
	_, ts := newTestServer(t)
	sessionID := openTestSession(t, ts)

	if _, env := ingestBatch(t, ts, sessionID, "b-1",
		testEvent("/checkout", "promo.banner", "Sale!"),
	); !env.OK {
		t.Fatalf("ingest failed: %+v", env.Error)
	}

	// register the page and module as the operator would, over the API
	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/projects/1/pages", operatorHeaders(),
		api.CreatePageRequest{Route: "/checkout", Name: "Checkout"})
	if status != http.StatusCreated {
		t.Fatalf("create page status = %d, error %+v", status, env.Error)
	}
	var page api.Page
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	status, env = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/projects/1/pages/%d/modules", ts.URL, page.ID), operatorHeaders(),
		api.CreateModuleRequest{Name: "promo"})
	if status != http.StatusCreated {
		t.Fatalf("create module status = %d, error %+v", status, env.Error)
	}
	var module api.Module
	if err := json.Unmarshal(env.Data, &module); err != nil {
		t.Fatalf("decode module: %v", err)
	}

	status, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/sessions/"+sessionID+"/diff", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("diff status = %d", status)
	}
	var diffResp api.DiffResponse
	if err := json.Unmarshal(env.Data, &diffResp); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if len(diffResp.Routes) != 1 || len(diffResp.Routes[0].Changes) != 1 {
		t.Fatalf("diff = %+v", diffResp)
	}
	if diffResp.Routes[0].Changes[0].Kind != "unregistered" {
		t.Fatalf("change = %+v", diffResp.Routes[0].Changes[0])
	}

	status, env = doRequest(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+sessionID+"/drafts", operatorHeaders(),
		api.DraftRequest{
			Route: "/checkout", Key: "promo.banner", Action: "bind",
			TargetPageID: page.ID, TargetModuleID: module.ID,
		})
	if status != http.StatusOK {
		t.Fatalf("stage draft status = %d, error %+v", status, env.Error)
	}

	status, env = doRequest(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+sessionID+"/apply", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("apply status = %d, error %+v", status, env.Error)
	}
	var applyResp api.ApplyResponse
	if err := json.Unmarshal(env.Data, &applyResp); err != nil {
		t.Fatalf("decode apply: %v", err)
	}
	if applyResp.Session.Status != "applied" {
		t.Fatalf("session status = %s", applyResp.Session.Status)
	}
	if applyResp.Result.Bound != 1 || applyResp.Result.EntriesCreated != 1 {
		t.Fatalf("result = %+v", applyResp.Result)
	}

	// apply is terminal; a second apply conflicts
	status, env = doRequest(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+sessionID+"/apply", operatorHeaders(), nil)
	if status != http.StatusConflict {
		t.Fatalf("second apply status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "SESSION_NOT_ACTIVE" {
		t.Fatalf("error = %+v", env.Error)
	}

	// the created entry is visible on the project's entry listing
	status, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/projects/1/entries", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("entries status = %d", status)
	}
	var entries api.EntryListResponse
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries.Entries) != 1 || entries.Entries[0].Key != "promo.banner" || entries.Entries[0].SourceText != "Sale!" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestProjectEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/projects", operatorHeaders(),
		api.CreateProjectRequest{Slug: "storefront", Name: "Storefront"})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, error %+v", status, env.Error)
	}
	var project api.Project
	if err := json.Unmarshal(env.Data, &project); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if project.SDKToken == "" {
		t.Fatal("create response missing sdk token")
	}

	status, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/projects", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var list api.ProjectListResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Projects) != 2 {
		t.Fatalf("got %d projects", len(list.Projects))
	}
	for _, p := range list.Projects {
		if p.SDKToken != "" {
			t.Fatalf("list leaked sdk token for %s", p.Slug)
		}
	}
}

func TestPageAndModuleCreation(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/projects/1/pages", operatorHeaders(),
		api.CreatePageRequest{Route: "/landing", Name: "Landing"})
	if status != http.StatusCreated {
		t.Fatalf("create page status = %d, error %+v", status, env.Error)
	}
	var page api.Page
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.ID == 0 || page.Route != "/landing" {
		t.Fatalf("page = %+v", page)
	}

	// routes are unique per project
	status, env = doRequest(t, http.MethodPost, ts.URL+"/api/v1/projects/1/pages", operatorHeaders(),
		api.CreatePageRequest{Route: "/landing"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate route status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "UNIQUE_CONFLICT" {
		t.Fatalf("error = %+v", env.Error)
	}

	status, env = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/projects/1/pages/%d/modules", ts.URL, page.ID), operatorHeaders(),
		api.CreateModuleRequest{Name: "hero"})
	if status != http.StatusCreated {
		t.Fatalf("create module status = %d, error %+v", status, env.Error)
	}
	var module api.Module
	if err := json.Unmarshal(env.Data, &module); err != nil {
		t.Fatalf("decode module: %v", err)
	}

	// naming the same module again converges on the existing one
	status, env = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/projects/1/pages/%d/modules", ts.URL, page.ID), operatorHeaders(),
		api.CreateModuleRequest{Name: "hero"})
	if status != http.StatusCreated {
		t.Fatalf("repeat module status = %d, error %+v", status, env.Error)
	}
	var again api.Module
	if err := json.Unmarshal(env.Data, &again); err != nil {
		t.Fatalf("decode module: %v", err)
	}
	if again.ID != module.ID {
		t.Fatalf("module ids differ: %d != %d", again.ID, module.ID)
	}

	// the page must belong to the project in the path
	status, env = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/projects/99/pages/%d/modules", ts.URL, page.ID), operatorHeaders(),
		api.CreateModuleRequest{Name: "hero"})
	if status != http.StatusBadRequest {
		t.Fatalf("foreign page status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error = %+v", env.Error)
	}

	// the new page and module show up on the listing
	status, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/projects/1/pages", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("pages status = %d", status)
	}
	var pages api.PageListResponse
	if err := json.Unmarshal(env.Data, &pages); err != nil {
		t.Fatalf("decode pages: %v", err)
	}
	if len(pages.Pages) != 1 || len(pages.Pages[0].Modules) != 1 || pages.Pages[0].Modules[0].Name != "hero" {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	openTestSession(t, ts)

	status, env := doRequest(t, http.MethodGet, ts.URL+"/api/status", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var daemonStatus api.DaemonStatus
	if err := json.Unmarshal(env.Data, &daemonStatus); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if daemonStatus.Sessions.Active != 1 {
		t.Fatalf("sessions = %+v", daemonStatus.Sessions)
	}
	if daemonStatus.Health != nil {
		t.Fatal("health should be omitted unless requested")
	}

	status, env = doRequest(t, http.MethodGet, ts.URL+"/api/status?health=true", operatorHeaders(), nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if err := json.Unmarshal(env.Data, &daemonStatus); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if daemonStatus.Health == nil || !daemonStatus.Health.DatabaseReadable || !daemonStatus.Health.IntegrityCheck {
		t.Fatalf("health = %+v", daemonStatus.Health)
	}
	if len(daemonStatus.Health.MissingTables) != 0 {
		t.Fatalf("missing tables = %v", daemonStatus.Health.MissingTables)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := doRequest(t, http.MethodDelete, ts.URL+"/api/v1/sessions", operatorHeaders(), nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", status)
	}
	if env.Error == nil || env.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("error = %+v", env.Error)
	}
}
