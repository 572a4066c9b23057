package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/patch"
	"github.com/cuemby/hardwared/pkg/reconciler"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
	"github.com/cuemby/hardwared/pkg/validation"
)

// API holds the dependencies every /v1/hardware handler needs, following
// the teacher's server-struct-with-methods handler idiom.
type API struct {
	rt     *runtime.Runtime
	schema *validation.Schema
}

// New builds an API bound to rt, with an enrollment schema composed from
// rt's currently-enabled hardware types and workers (spec §4.5).
func New(rt *runtime.Runtime) (*API, error) {
	schema, err := validation.BuildEnrollSchema(rt.EnabledHardwareTypes(), func(name string) (driver.Worker, bool) {
		return rt.Registry.Worker(name)
	})
	if err != nil {
		return nil, err
	}
	return &API{rt: rt, schema: schema}, nil
}

func isEnabledHardwareType(rt *runtime.Runtime, name string) bool {
	for _, ht := range rt.EnabledHardwareTypes() {
		if ht.Name() == name {
			return true
		}
	}
	return false
}

func fieldsFor(rt *runtime.Runtime, hardwareType string) []types.WorkerField {
	ht, ok := rt.Registry.HardwareType(hardwareType)
	if !ok {
		return nil
	}
	fields := append([]types.WorkerField{}, ht.DefaultFields()...)
	for _, name := range ht.EnabledWorkers() {
		if w, ok := rt.Registry.Worker(name); ok {
			fields = append(fields, w.Fields()...)
		}
	}
	return fields
}

// hardwareView is the response document for a Hardware row; Workers is
// populated only by Get (spec §6: "includes worker task summary").
type hardwareView struct {
	UUID         string         `json:"uuid"`
	Name         string         `json:"name"`
	ProjectID    string         `json:"project_id"`
	HardwareType string         `json:"hardware_type"`
	Properties   map[string]any `json:"properties"`
	Deleted      bool           `json:"deleted"`
	Workers      []workerView   `json:"workers,omitempty"`
}

type workerView struct {
	WorkerType string `json:"worker_type"`
	State      string `json:"state"`
}

func toHardwareView(rt *runtime.Runtime, hw *types.Hardware, includePrivate bool) hardwareView {
	fields := fieldsFor(rt, hw.HardwareType)
	return hardwareView{
		UUID:         hw.UUID,
		Name:         hw.Name,
		ProjectID:    hw.ProjectID,
		HardwareType: hw.HardwareType,
		Properties:   validation.MaskSensitive(hw.Properties, fields, includePrivate),
		Deleted:      hw.Deleted,
	}
}

// List implements GET /v1/hardware (spec §6).
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	q := r.URL.Query()

	allProjects := q.Get("all_projects") == "true"
	if allProjects {
		if err := requireAdmin(auth, "list hardware across all projects"); err != nil {
			writeError(w, err)
			return
		}
	}

	limit := a.rt.Config.API.MaxLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= a.rt.Config.API.MaxLimit {
			limit = n
		}
	}

	opts := storage.ListOptions{
		Limit:          limit,
		Marker:         q.Get("marker"),
		SortKey:        q.Get("sort_key"),
		SortDir:        q.Get("sort_dir"),
		ProjectID:      auth.ProjectID,
		AllProjects:    allProjects,
		IncludeDeleted: q.Get("include_deleted") == "true",
	}

	items, err := a.rt.Store.ListHardware(opts)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]hardwareView, 0, len(items))
	for _, hw := range items {
		views = append(views, toHardwareView(a.rt, hw, auth.IsAdmin()))
	}

	var links []string
	if limit > 0 && len(items) == limit {
		links = append(links, "?marker="+items[len(items)-1].UUID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"hardware": views, "links": links})
}

// Export implements GET /v1/hardware/export: unauthenticated, private
// fields omitted, sensitive fields masked (spec §6).
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	items, err := a.rt.Store.ListHardware(storage.ListOptions{AllProjects: true})
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]hardwareView, 0, len(items))
	for _, hw := range items {
		views = append(views, toHardwareView(a.rt, hw, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"hardware": views})
}

// Get implements GET /v1/hardware/<uuid>, including a worker task summary.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	hwUUID := mux.Vars(r)["uuid"]

	hw, err := a.rt.Store.GetHardwareByUUID(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireAdminOrOwner(auth, hw.ProjectID, "get hardware details"); err != nil {
		writeError(w, err)
		return
	}

	tasks, err := a.rt.Store.ListWorkerTasksForHardware(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	view := toHardwareView(a.rt, hw, auth.IsAdmin())
	for _, t := range tasks {
		view.Workers = append(view.Workers, workerView{WorkerType: t.WorkerType, State: string(t.State)})
	}

	writeJSON(w, http.StatusOK, view)
}

// enrollRequest is the POST /v1/hardware payload; project_id is
// deliberately absent because the spec (§9 Open Question) assigns it from
// the authenticated context, never the client.
type enrollRequest struct {
	Name         string         `json:"name"`
	HardwareType string         `json:"hardware_type"`
	Properties   map[string]any `json:"properties"`
}

// Enroll implements POST /v1/hardware (spec §6, §4.6 CreateHardware).
func (a *API) Enroll(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	if err := requireAdmin(auth, "enroll a hardware"); err != nil {
		writeError(w, err)
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.InvalidParameterValue("malformed request body: %v", err))
		return
	}

	ht, ok := a.rt.Registry.HardwareType(req.HardwareType)
	if !ok || !isEnabledHardwareType(a.rt, req.HardwareType) {
		writeError(w, errs.DriverNotFound(req.HardwareType))
		return
	}

	fields := fieldsFor(a.rt, req.HardwareType)
	properties := validation.ApplyDefaults(req.Properties, fields, ht.WorkerOverrides())

	payload := map[string]any{
		"name":          req.Name,
		"hardware_type": req.HardwareType,
		"properties":    properties,
	}
	if err := a.schema.Validate(payload); err != nil {
		writeError(w, err)
		return
	}

	hw := &types.Hardware{
		UUID:         uuid.NewString(),
		Name:         req.Name,
		ProjectID:    auth.ProjectID,
		HardwareType: req.HardwareType,
		Properties:   properties,
	}

	enabled := a.rt.EnabledWorkerNames()
	var enabledWorkers []string
	for _, name := range ht.EnabledWorkers() {
		if enabled[name] {
			enabledWorkers = append(enabledWorkers, name)
		}
	}

	if err := a.rt.Store.CreateHardware(hw, enabledWorkers, types.WorkerStatePending); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHardwareView(a.rt, hw, auth.IsAdmin()))
}

// patchRequest is the PATCH /v1/hardware/<uuid> payload: a raw RFC-6902
// document decoded into patch.Op values.
type patchRequest []patch.Op

// Patch implements PATCH /v1/hardware/<uuid> (spec §4.4).
func (a *API) Patch(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	hwUUID := mux.Vars(r)["uuid"]

	hw, err := a.rt.Store.GetHardwareByUUID(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireAdminOrOwner(auth, hw.ProjectID, "update hardware"); err != nil {
		writeError(w, err)
		return
	}

	var ops patchRequest
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		writeError(w, errs.InvalidParameterValue("malformed patch document: %v", err))
		return
	}

	windows, err := a.rt.Store.ListAvailabilityForHardware(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := patch.Apply(hw, windows, ops)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.HardwareType != hw.HardwareType {
		writeError(w, errs.InvalidParameterValue("hardware_type is immutable"))
		return
	}

	payload := map[string]any{
		"name":          result.Name,
		"hardware_type": result.HardwareType,
		"properties":    result.Properties,
	}
	if err := a.schema.Validate(payload); err != nil {
		writeError(w, err)
		return
	}

	updated := hw.Clone()
	updated.Name = result.Name
	updated.Properties = result.Properties

	if err := a.rt.Store.ApplyPatch(updated, result.ToAdd, result.ToUpdate, result.ToRemove); err != nil {
		writeError(w, err)
		return
	}
	if err := a.rt.Store.RequeuePendingForHardware(hwUUID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHardwareView(a.rt, updated, auth.IsAdmin()))
}

// Destroy implements DELETE /v1/hardware/<uuid>: soft delete plus cascade
// of pending tasks (spec §6, §3 cascade rule).
func (a *API) Destroy(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	hwUUID := mux.Vars(r)["uuid"]

	hw, err := a.rt.Store.GetHardwareByUUID(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireAdminOrOwner(auth, hw.ProjectID, "delete hardware"); err != nil {
		writeError(w, err)
		return
	}

	if err := a.rt.Store.DestroyHardware(hwUUID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"uuid": hwUUID, "status": "deleted"})
}

// Sync implements POST /v1/hardware/<uuid>/sync: force all non-IN_PROGRESS
// tasks to PENDING (spec §6, §4.6 RequeuePendingForHardware).
func (a *API) Sync(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	hwUUID := mux.Vars(r)["uuid"]

	hw, err := a.rt.Store.GetHardwareByUUID(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireAdminOrOwner(auth, hw.ProjectID, "sync hardware"); err != nil {
		writeError(w, err)
		return
	}

	if err := reconciler.Sync(a.rt.Store, hwUUID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"uuid": hwUUID, "status": "syncing"})
}

// Availability implements GET /v1/hardware/<uuid>/availability.
func (a *API) Availability(w http.ResponseWriter, r *http.Request) {
	auth, _ := AuthFromContext(r.Context())
	hwUUID := mux.Vars(r)["uuid"]

	hw, err := a.rt.Store.GetHardwareByUUID(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireAdminOrOwner(auth, hw.ProjectID, "get hardware availability"); err != nil {
		writeError(w, err)
		return
	}

	windows, err := a.rt.Store.ListAvailabilityForHardware(hwUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"availability": windows})
}
