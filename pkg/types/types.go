package types

import "time"

// Hardware represents a managed compute unit under inventory: a bare-metal
// server, edge device, or other specialty node enrolled with the service.
type Hardware struct {
	ID           int64          `json:"id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name"`
	ProjectID    string         `json:"project_id"`
	HardwareType string         `json:"hardware_type"`
	Properties   map[string]any `json:"properties"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Deleted      bool           `json:"deleted"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty"`
}

// Clone returns a copy of the Hardware with its own Properties map, so a
// worker handed this snapshot cannot mutate the reconciler's state.
func (h *Hardware) Clone() *Hardware {
	if h == nil {
		return nil
	}
	clone := *h
	clone.Properties = cloneMap(h.Properties)
	return &clone
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AvailabilityWindow is a `[Start, End)` interval during which a Hardware
// item is bookable downstream. Windows exist only for non-deleted hardware
// and are removed outright when the owning hardware is destroyed.
type AvailabilityWindow struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	HardwareUUID string    `json:"hardware_uuid"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// WorkerState is the reconciliation state of a WorkerTask.
type WorkerState string

const (
	WorkerStatePending    WorkerState = "PENDING"
	WorkerStateInProgress WorkerState = "IN_PROGRESS"
	WorkerStateSteady     WorkerState = "STEADY"
	WorkerStateError      WorkerState = "ERROR"
)

// allowedTransitions is the WorkerTask state machine. IN_PROGRESS is only
// ever entered by the reconciler's claim step, never by an external write.
var allowedTransitions = map[WorkerState]map[WorkerState]bool{
	WorkerStateSteady: {
		WorkerStatePending: true,
	},
	WorkerStatePending: {
		WorkerStateInProgress: true,
	},
	WorkerStateInProgress: {
		WorkerStatePending: true,
		WorkerStateSteady:  true,
		WorkerStateError:   true,
	},
	WorkerStateError: {
		WorkerStatePending: true,
	},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the WorkerTask state machine. A state is never its own successor here;
// callers must skip the write entirely rather than rely on this returning
// true for a no-op transition.
func CanTransition(from, to WorkerState) bool {
	if from == to {
		return false
	}
	return allowedTransitions[from][to]
}

// Reconciler-owned state_details keys. These never survive a transition
// back to STEADY.
const (
	StateDetailLastError   = "last_error"
	StateDetailDeferCount  = "defer_count"
	StateDetailDeferReason = "defer_reason"
)

// TransientStateDetailKeys lists every reconciler-owned key that must be
// cleared once a WorkerTask reaches STEADY.
var TransientStateDetailKeys = [...]string{
	StateDetailLastError,
	StateDetailDeferCount,
	StateDetailDeferReason,
}

// WorkerTask is the per-(hardware, worker type) reconciliation row.
type WorkerTask struct {
	ID           int64          `json:"id"`
	UUID         string         `json:"uuid"`
	HardwareUUID string         `json:"hardware_uuid"`
	WorkerType   string         `json:"worker_type"`
	State        WorkerState    `json:"state"`
	StateDetails map[string]any `json:"state_details"`
	// UpdatedAt is the last time this row's State was written; the
	// reconciler uses it to measure how long a task waited PENDING
	// before being claimed (spec §7 SchedulingLatency).
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of the WorkerTask with its own state_details map.
func (t *WorkerTask) Clone() *WorkerTask {
	if t == nil {
		return nil
	}
	clone := *t
	clone.StateDetails = cloneMap(t.StateDetails)
	return &clone
}

// ResultKind tags the variant held by a WorkerResult.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultDefer   ResultKind = "defer"
	ResultError   ResultKind = "error"
)

// WorkerResult is the tagged-variant return value of Worker.Process (spec
// §9 Design Notes): a worker reports outcome through this struct instead of
// using panics or sentinel errors as control flow. Exactly one of the
// variant-specific fields is meaningful, selected by Kind.
type WorkerResult struct {
	Kind WorkerState
	// StateDetails is merged into the task's state_details regardless of
	// Kind; it is the worker's one channel for attaching diagnostic or
	// provisioning-progress data.
	StateDetails map[string]any
	// DeferReason explains a Defer result; ignored otherwise.
	DeferReason string
	// Err carries the failure for an Error result; ignored otherwise.
	Err error
}

// Success builds a WorkerResult that moves the task to STEADY.
func Success(details map[string]any) WorkerResult {
	return WorkerResult{Kind: WorkerStateSteady, StateDetails: details}
}

// Defer builds a WorkerResult that leaves the task in PENDING with a
// recorded reason, for work that is not yet actionable (e.g. waiting on an
// external system).
func Defer(reason string, details map[string]any) WorkerResult {
	return WorkerResult{Kind: WorkerStatePending, DeferReason: reason, StateDetails: details}
}

// Failure builds a WorkerResult that moves the task to ERROR.
func Failure(err error, details map[string]any) WorkerResult {
	return WorkerResult{Kind: WorkerStateError, Err: err, StateDetails: details}
}

// WorkerField describes one configurable property a worker contributes to
// a hardware type's JSON-Schema document (spec §4.3, §4.5).
type WorkerField struct {
	Name        string
	Schema      map[string]any
	Default     any
	Required    bool
	Private     bool // never echoed back in GET/export responses
	Sensitive   bool // accepted on write, masked on read
	Description string
}
