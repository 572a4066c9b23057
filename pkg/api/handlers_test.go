package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

type handlerTestWorker struct{ name string }

func (w *handlerTestWorker) Name() string { return w.name }
func (w *handlerTestWorker) Fields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "ipmi_address", Schema: map[string]any{"type": "string"}, Required: true},
		{Name: "driver", Schema: map[string]any{"type": "string"}, Default: "ipmi"},
	}
}
func (w *handlerTestWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, details map[string]any) types.WorkerResult {
	return types.Success(nil)
}

type handlerTestHardwareType struct{ name, worker string }

func (h *handlerTestHardwareType) Name() string             { return h.name }
func (h *handlerTestHardwareType) EnabledWorkers() []string { return []string{h.worker} }
func (h *handlerTestHardwareType) DefaultFields() []types.WorkerField {
	return nil
}
func (h *handlerTestHardwareType) WorkerOverrides() map[string]any { return nil }

// newHandlerTestServer wires a full Runtime + Router against a real BoltDB
// store and a handler-test-only hardware type/worker pair, then exposes it
// as an httptest.Server so tests exercise auth, routing, and handlers
// together the way a real client would.
func newHandlerTestServer(t *testing.T, hardwareType, worker string) (*httptest.Server, storage.Store, *runtime.Runtime) {
	t.Helper()

	driver.RegisterWorker(&handlerTestWorker{name: worker})
	driver.RegisterHardwareType(&handlerTestHardwareType{name: hardwareType, worker: worker})

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.New()
	rt := runtime.New(store, driver.Default(), cfg)

	tokens := map[string]AuthContext{
		"admin-token": {UserID: "u-admin", ProjectID: "project-a", Roles: []string{"admin"}},
		"owner-token": {UserID: "u-owner", ProjectID: "project-a", Roles: []string{"member"}},
		"other-token": {UserID: "u-other", ProjectID: "project-b", Roles: []string{"member"}},
	}

	router, err := NewRouter(rt, StaticTokenResolver(tokens))
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store, rt
}

func doRequest(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestEnrollRejectsMissingRequiredWorkerField(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-enroll-reject", "handler-worker-enroll-reject")

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware", "admin-token", map[string]any{
		"name":          "node-1",
		"hardware_type": "handler-type-enroll-reject",
		"properties":    map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestEnrollAppliesDefaultsAndAssignsProjectFromAuth(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-enroll-ok", "handler-worker-enroll-ok")

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware", "admin-token", map[string]any{
		"name":          "node-1",
		"hardware_type": "handler-type-enroll-ok",
		"properties":    map[string]any{"ipmi_address": "10.0.0.5"},
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "project-a", body["project_id"])
	props := body["properties"].(map[string]any)
	assert.Equal(t, "ipmi", props["driver"])

	hw, err := store.GetHardwareByName("node-1")
	require.NoError(t, err)
	assert.Equal(t, "project-a", hw.ProjectID)
}

func TestEnrollRejectsNonAdmin(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-enroll-admin", "handler-worker-enroll-admin")

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware", "owner-token", map[string]any{
		"name":          "node-1",
		"hardware_type": "handler-type-enroll-admin",
		"properties":    map[string]any{"ipmi_address": "10.0.0.5"},
	})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEnrollRejectsUnauthenticatedRequest(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-enroll-noauth", "handler-worker-enroll-noauth")

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware", "", map[string]any{
		"name":          "node-1",
		"hardware_type": "handler-type-enroll-noauth",
	})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEnrollRejectsUnknownHardwareType(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-enroll-unknown", "handler-worker-enroll-unknown")

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware", "admin-token", map[string]any{
		"name":          "node-1",
		"hardware_type": "does-not-exist",
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetReturnsWorkerSummaryForOwner(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-get", "handler-worker-get")

	hw := &types.Hardware{UUID: "hw-get-1", Name: "node-get", ProjectID: "project-a", HardwareType: "handler-type-get", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-get"}, types.WorkerStatePending))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware/hw-get-1", "owner-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	workers := body["workers"].([]any)
	require.Len(t, workers, 1)
	first := workers[0].(map[string]any)
	assert.Equal(t, "handler-worker-get", first["worker_type"])
	assert.Equal(t, "PENDING", first["state"])
}

func TestGetRejectsRequestFromOtherProject(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-get-deny", "handler-worker-get-deny")

	hw := &types.Hardware{UUID: "hw-get-2", Name: "node-get-2", ProjectID: "project-a", HardwareType: "handler-type-get-deny", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-get-deny"}, types.WorkerStatePending))

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware/hw-get-2", "other-token", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetNotFound(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-get-404", "handler-worker-get-404")

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware/does-not-exist", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListFiltersByProjectUnlessAdminRequestsAllProjects(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-list", "handler-worker-list")

	hwA := &types.Hardware{UUID: "hw-list-a", Name: "node-list-a", ProjectID: "project-a", HardwareType: "handler-type-list", Properties: map[string]any{}}
	hwB := &types.Hardware{UUID: "hw-list-b", Name: "node-list-b", ProjectID: "project-b", HardwareType: "handler-type-list", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hwA, []string{"handler-worker-list"}, types.WorkerStatePending))
	require.NoError(t, store.CreateHardware(hwB, []string{"handler-worker-list"}, types.WorkerStatePending))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware", "owner-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["hardware"].([]any)
	assert.Len(t, items, 1)

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/v1/hardware?all_projects=true", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items = body["hardware"].([]any)
	assert.Len(t, items, 2)
}

func TestListRejectsAllProjectsForNonAdmin(t *testing.T) {
	srv, _, _ := newHandlerTestServer(t, "handler-type-list-deny", "handler-worker-list-deny")

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware?all_projects=true", "owner-token", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExportIsUnauthenticatedAndListsHardware(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-export", "handler-worker-export")

	hw := &types.Hardware{UUID: "hw-export-1", Name: "node-export", ProjectID: "project-a", HardwareType: "handler-type-export", Properties: map[string]any{"ipmi_address": "10.0.0.9"}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-export"}, types.WorkerStatePending))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	items := body["hardware"].([]any)
	require.Len(t, items, 1)
}

func TestPatchRejectsHardwareTypeChange(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-patch", "handler-worker-patch")

	hw := &types.Hardware{UUID: "hw-patch-1", Name: "node-patch", ProjectID: "project-a", HardwareType: "handler-type-patch", Properties: map[string]any{"ipmi_address": "10.0.0.1"}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-patch"}, types.WorkerStatePending))

	resp, _ := doRequest(t, http.MethodPatch, srv.URL+"/v1/hardware/hw-patch-1", "owner-token", []map[string]any{
		{"op": "replace", "path": "/hardware_type", "value": "something-else"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatchCommitsRenameAndRequeuesTasks(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-patch-ok", "handler-worker-patch-ok")

	hw := &types.Hardware{UUID: "hw-patch-2", Name: "node-patch-2", ProjectID: "project-a", HardwareType: "handler-type-patch-ok", Properties: map[string]any{"ipmi_address": "10.0.0.1"}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-patch-ok"}, types.WorkerStateSteady))

	resp, body := doRequest(t, http.MethodPatch, srv.URL+"/v1/hardware/hw-patch-2", "owner-token", []map[string]any{
		{"op": "replace", "path": "/name", "value": "node-patch-renamed"},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "node-patch-renamed", body["name"])

	tasks, err := store.ListWorkerTasksForHardware("hw-patch-2")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, types.WorkerStatePending, tasks[0].State)
}

func TestDestroySoftDeletesHardware(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-destroy", "handler-worker-destroy")

	hw := &types.Hardware{UUID: "hw-destroy-1", Name: "node-destroy", ProjectID: "project-a", HardwareType: "handler-type-destroy", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-destroy"}, types.WorkerStatePending))

	resp, body := doRequest(t, http.MethodDelete, srv.URL+"/v1/hardware/hw-destroy-1", "owner-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", body["status"])

	got, err := store.GetHardwareByUUID("hw-destroy-1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestSyncRequeuesViaReconciler(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-sync", "handler-worker-sync")

	hw := &types.Hardware{UUID: "hw-sync-1", Name: "node-sync", ProjectID: "project-a", HardwareType: "handler-type-sync", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-sync"}, types.WorkerStateError))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/hardware/hw-sync-1/sync", "owner-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "syncing", body["status"])

	tasks, err := store.ListWorkerTasksForHardware("hw-sync-1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerStatePending, tasks[0].State)
}

func TestAvailabilityListsWindowsForOwner(t *testing.T) {
	srv, store, _ := newHandlerTestServer(t, "handler-type-avail", "handler-worker-avail")

	hw := &types.Hardware{UUID: "hw-avail-1", Name: "node-avail", ProjectID: "project-a", HardwareType: "handler-type-avail", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"handler-worker-avail"}, types.WorkerStatePending))
	require.NoError(t, store.CreateAvailabilityWindow(&types.AvailabilityWindow{UUID: "aw-1", HardwareUUID: "hw-avail-1"}))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/v1/hardware/hw-avail-1/availability", "owner-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	windows := body["availability"].([]any)
	assert.Len(t, windows, 1)
}
