/*
Package metrics defines and registers the Prometheus metrics exposed by
hardwared, and the HTTP health/readiness/liveness handlers that accompany
them.

Gauges describe current inventory shape: HardwareTotal by hardware_type,
WorkerTasksTotal by worker_type and state, AvailabilityWindowsTotal.
Collector polls the Store on an interval to keep these current. Counters
and histograms describe activity: APIRequestsTotal/APIRequestDuration per
request, WorkerTaskResultsTotal/WorkerTaskDuration per Worker.Process
call, and ReconciliationCyclesTotal/ReconciliationDuration per
reconciler tick.

HealthChecker tracks a small set of named components (store, api) and
backs the /health, /ready, and /live HTTP handlers.
*/
package metrics
