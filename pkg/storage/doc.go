/*
Package storage provides BoltDB-backed persistence for Hardware,
AvailabilityWindow, and WorkerTask rows.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│  BoltStore                                                │
	│  - File: <dataDir>/hardwared.db                           │
	│  - Buckets: hardware, availability_windows, worker_tasks  │
	│  - Secondary indices (name, task key, id counters) held   │
	│    in memory, rebuilt on open, updated inside the same    │
	│    transaction that mutates the primary bucket            │
	└────────────────────────────────────────────────────────────┘

Rows are JSON-marshaled and keyed by UUID. name uniqueness is scoped to
non-deleted Hardware rows; (hardware_uuid, worker_type) uniqueness is
enforced for WorkerTask. ApplyPatch commits a Hardware update plus window
adds/updates/removes and a task requeue as one bbolt transaction, so a
caller never observes a partially-applied patch.

# Thread Safety

All Store methods are safe for concurrent use; writes that touch the
in-memory indices additionally take BoltStore.mu for the duration of the
bbolt transaction.
*/
package storage
