/*
Package reconciler implements the single operation that drives every
downstream mutation in this system: ProcessPending (spec §4.2).

# Algorithm

Each tick:

	1. Snapshot non-deleted Hardware, AvailabilityWindow (grouped by
	   hardware_uuid), and PENDING WorkerTask rows.
	2. Group PENDING tasks by hardware_uuid, preserving insertion order.
	3. Build batches by taking the nth task of every group, so a batch
	   never contains two tasks for the same hardware.
	4. Split each batch into chunks of at most task_concurrency tasks;
	   dispatch a chunk's tasks concurrently, bounded by a semaphore sized
	   task_pool_size, and wait for the chunk to finish before the next.
	5. For each task: claim it (PENDING -> IN_PROGRESS), call
	   Worker.Process, interpret the WorkerResult, and persist.

# Ordering and isolation

Tasks belonging to one hardware never run concurrently with each other,
guaranteeing no two workers race to mutate the same downstream resource
for that device. Tasks for different hardware carry no ordering
guarantee. One task's panic or error never prevents its batch siblings
from completing (each task execution is its own failure domain).

# State machine contract

A successful result writes state_details before state, and only assigns
state when it actually changed, since STEADY -> STEADY is a forbidden
self-transition. See pkg/types for the full table.
*/
package reconciler
