package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/engine"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

const definitionJSON = `{
  "name": "api-test-drill",
  "enableReporting": true,
  "steps": [
    {"id": "inject", "scenario": "latency"},
    {"id": "recover", "scenario": "restore"}
  ]
}`

const definitionYAML = `name: api-test-drill
steps:
  - id: inject
    scenario: latency
`

type apiHarness struct {
	handler  http.Handler
	registry *engine.Registry
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })

	logger := slog.New(slog.DiscardHandler)
	executor := engine.NewExecutor(bus, engine.WithLogger(logger))
	registry := engine.NewRegistry()
	srv := New(logger, executor, registry, bus)
	return &apiHarness{handler: srv.Handler(), registry: registry}
}

func (h *apiHarness) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) createRun(t *testing.T) string {
	t.Helper()
	rec := h.do(http.MethodPost, "/orchestrations", "application/json", definitionJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		RunID  string `json:"runId"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, "idle", resp.Status)
	return resp.RunID
}

func (h *apiHarness) waitForRun(t *testing.T, runID string) {
	t.Helper()
	id, err := types.ParseID(runID)
	require.NoError(t, err)
	run, err := h.registry.Get(id)
	require.NoError(t, err)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestAPI_Healthz(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAPI_CreateAndRun(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	rec := h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "start"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	h.waitForRun(t, runID)

	rec = h.do(http.MethodGet, "/orchestrations/"+runID+"/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status events.StatusUpdate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 2, status.TotalSteps)
	assert.Equal(t, 1.0, status.Progress)
}

func TestAPI_CreateYAML(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(http.MethodPost, "/orchestrations", "application/yaml", definitionYAML)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_CreateRejectsInvalidDefinition(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(http.MethodPost, "/orchestrations", "application/json", `{"name": "no-steps"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/orchestrations", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ControlValidation(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	// Unknown action.
	rec := h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "restart"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Illegal transition: resume before start.
	rec = h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "resume"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown run.
	otherID := types.NewID()
	rec = h.do(http.MethodPost, "/orchestrations/"+otherID.String()+"/control", "application/json", `{"action": "start"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed id.
	rec = h.do(http.MethodGet, "/orchestrations/not-a-uuid/status", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ControlConflictAfterTerminal(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	rec := h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	h.waitForRun(t, runID)

	rec = h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "start"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_Report(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	// No report while idle.
	rec := h.do(http.MethodGet, "/orchestrations/"+runID+"/report", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action": "start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	h.waitForRun(t, runID)

	rec = h.do(http.MethodGet, "/orchestrations/"+runID+"/report", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "api-test-drill", report.OrchestrationName)
	assert.True(t, report.Success)
	assert.Len(t, report.StepResults, 2)
}

func TestAPI_Export(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	rec := h.do(http.MethodGet, "/orchestrations/"+runID+"/export?format=yaml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "name: api-test-drill")

	rec = h.do(http.MethodGet, "/orchestrations/"+runID+"/export", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = h.do(http.MethodGet, "/orchestrations/"+runID+"/export?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_List(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(http.MethodGet, "/orchestrations", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs": []}`, rec.Body.String())

	h.createRun(t)
	rec = h.do(http.MethodGet, "/orchestrations", "", "")
	var resp struct {
		Runs []struct {
			RunID         string `json:"runId"`
			Orchestration string `json:"orchestration"`
			Status        string `json:"status"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "api-test-drill", resp.Runs[0].Orchestration)
}

func TestAPI_EventStreamSendsSnapshot(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/orchestrations/"+runID+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: status_update")
	assert.Contains(t, body, `"status":"idle"`)
}

func TestAPI_EventStreamClosesAfterTerminalSnapshot(t *testing.T) {
	h := newAPIHarness(t)
	runID := h.createRun(t)

	rec := h.do(http.MethodPost, "/orchestrations/"+runID+"/control", "application/json", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	h.waitForRun(t, runID)

	// The run is already terminal, so the handler must return right after
	// the initial snapshot instead of blocking on the stream.
	req := httptest.NewRequest(http.MethodGet, "/orchestrations/"+runID+"/events", nil)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: status_update")
	assert.Contains(t, body, `"status":"completed"`)
}

func TestAPI_RequestIDPropagation(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-Id"))

	rec = h.do(http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
