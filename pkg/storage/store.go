package storage

import (
	"github.com/cuemby/hardwared/pkg/types"
)

// ListOptions controls keyset pagination and filtering for Store.ListHardware.
type ListOptions struct {
	Limit          int
	Marker         string // UUID of the last row seen by the caller
	SortKey        string // defaults to "id" when empty
	SortDir        string // "asc" (default) or "desc"
	ProjectID      string // filter; ignored when AllProjects is true
	AllProjects    bool
	IncludeDeleted bool
}

// Store is the durable persistence interface for Hardware, AvailabilityWindow,
// and WorkerTask (spec §4.6). One logical transaction per call; multi-entity
// writes (CreateHardware, ApplyPatch) commit atomically or not at all.
type Store interface {
	// CreateHardware inserts hw and one WorkerTask per worker enabled for
	// hw.HardwareType, each created in initialState.
	CreateHardware(hw *types.Hardware, enabledWorkers []string, initialState types.WorkerState) error
	UpdateHardware(hw *types.Hardware) error
	DestroyHardware(uuid string) error
	GetHardwareByUUID(uuid string) (*types.Hardware, error)
	GetHardwareByName(name string) (*types.Hardware, error)
	ListHardware(opts ListOptions) ([]*types.Hardware, error)

	CreateAvailabilityWindow(w *types.AvailabilityWindow) error
	UpdateAvailabilityWindow(w *types.AvailabilityWindow) error
	DestroyAvailabilityWindow(uuid string) error
	ListAvailabilityForHardware(hardwareUUID string) ([]*types.AvailabilityWindow, error)
	ListAvailabilityAll() ([]*types.AvailabilityWindow, error)

	// ApplyPatch commits a Hardware field update plus availability window
	// adds/updates/removes and the resulting task requeue in one
	// transaction (spec §4.4, invariant I4).
	ApplyPatch(hw *types.Hardware, toAdd, toUpdate []*types.AvailabilityWindow, toRemove []string) error

	CreateWorkerTask(t *types.WorkerTask) error
	UpdateWorkerTask(t *types.WorkerTask) error
	GetWorkerTask(uuid string) (*types.WorkerTask, error)
	// GetWorkerTasksInState returns tasks in the given state whose
	// WorkerType is currently enabled; tasks for disabled workers are
	// silently skipped (spec §4.6).
	GetWorkerTasksInState(state types.WorkerState, enabledWorkers map[string]bool) ([]*types.WorkerTask, error)
	ListWorkerTasksForHardware(hardwareUUID string) ([]*types.WorkerTask, error)
	// RequeuePendingForHardware sets every WorkerTask for hardwareUUID that
	// is not IN_PROGRESS to PENDING. Used by sync and destroy/patch cascades.
	RequeuePendingForHardware(hardwareUUID string) error

	Close() error
}
