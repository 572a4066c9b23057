/*
Package types defines the core data structures shared across the
reconciliation service: Hardware, AvailabilityWindow, WorkerTask, and the
Worker contract's result and field-descriptor types.

# Core Types

Inventory:
  - Hardware: a managed compute unit (bare-metal server, edge device, or
    other specialty node) with a hardware_type and a free-form Properties
    document validated against that type's JSON Schema.
  - AvailabilityWindow: a [Start, End) interval during which a Hardware
    item is bookable downstream.

Reconciliation:
  - WorkerTask: the per-(hardware, worker type) row the reconciler drives
    through its state machine.
  - WorkerState: PENDING, IN_PROGRESS, STEADY, ERROR.
  - WorkerResult: the tagged-variant value a Worker.Process call returns —
    Success, Defer, or Failure — used instead of panics or sentinel errors
    as control flow.
  - WorkerField: one configurable property a worker contributes to its
    hardware type's JSON-Schema document, with Private/Sensitive masking
    flags honored by the API layer.

# State Machine

WorkerTask state transitions:

	STEADY  → PENDING      (user edit or explicit sync request)
	PENDING → IN_PROGRESS  (reconciler claims the task)
	IN_PROGRESS → PENDING  (worker defers)
	IN_PROGRESS → STEADY   (worker reports success)
	IN_PROGRESS → ERROR    (worker reports failure)
	ERROR   → PENDING      (user edit or explicit sync request)

IN_PROGRESS is reachable only through the reconciler's claim step; no
external write ever targets it directly. CanTransition encodes this table;
the reconciler consults it before persisting a worker's result and the
store's requeue path consults it before moving a task to PENDING.
UpdateWorkerTask itself does not check it.

# Integration Points

  - pkg/storage persists these types as JSON, one bbolt bucket per entity.
  - pkg/driver and pkg/worker implement the Worker contract against
    WorkerResult and WorkerField.
  - pkg/reconciler drives WorkerTask.State through the table above.
  - pkg/api serializes Hardware/AvailabilityWindow for the REST surface,
    honoring WorkerField.Private/Sensitive when building responses.

# Thread Safety

Values are read-safe for concurrent use; callers that hand a Hardware or
WorkerTask to a worker goroutine should call Clone first so mutations by
the worker cannot leak back into the reconciler's snapshot.
*/
package types
