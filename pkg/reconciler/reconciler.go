// Package reconciler implements the periodic ProcessPending scan (spec
// §4.2): it loads a snapshot of Hardware, AvailabilityWindow, and PENDING
// WorkerTask rows, groups tasks by hardware so no two tasks for the same
// hardware ever run concurrently, and dispatches the resulting waves to a
// bounded worker pool, interpreting each Worker.Process result per §4.1.
// Grounded on the teacher's pkg/reconciler ticker-driven loop
// (NewReconciler/Start/Stop/run), restructured around
// worker/manager.py's process_pending algorithm.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/metrics"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

// Reconciler owns the single process-wide ProcessPending loop (spec §1
// Non-goals: "a single reconciler process owns the work pool" — no
// leader election or cross-process locking).
type Reconciler struct {
	rt     *runtime.Runtime
	logger zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Reconciler bound to rt's Store, Registry, and Config.
func New(rt *runtime.Runtime) *Reconciler {
	return &Reconciler{
		rt:     rt,
		logger: log.WithComponent("reconciler"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs ProcessPending once immediately, then on a ticker spaced by
// `process_pending_task_interval` (spec §4.2), until Stop is called or ctx
// is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the run loop to exit and blocks until the current tick (if
// any) finishes, mirroring the teacher's drain-on-shutdown contract
// (spec §5 "on shutdown the pool is drained").
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := time.Duration(r.rt.Config.Worker.ProcessPendingTaskInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler context cancelled")
			return
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if err := r.ProcessPending(ctx); err != nil {
		r.logger.Error().Err(err).Msg("reconciliation cycle failed")
	}
}

// ProcessPending runs exactly one reconciliation cycle (spec §4.2). It is
// exported so tests (and an administrative "sync now" trigger) can invoke
// it synchronously.
func (r *Reconciler) ProcessPending(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	store := r.rt.Store

	hardwareTable, err := loadHardwareTable(store)
	if err != nil {
		return fmt.Errorf("load hardware snapshot: %w", err)
	}

	availabilityTable, err := loadAvailabilityTable(store)
	if err != nil {
		return fmt.Errorf("load availability snapshot: %w", err)
	}

	enabledWorkers := r.rt.EnabledWorkerNames()
	pending, err := store.GetWorkerTasksInState(types.WorkerStatePending, enabledWorkers)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}

	batches := batchByHardware(pending)

	taskPoolSize := r.rt.Config.Worker.TaskPoolSize
	taskConcurrency := r.rt.Config.Worker.TaskConcurrency
	if taskPoolSize <= 0 {
		taskPoolSize = 1000
	}
	if taskConcurrency <= 0 {
		taskConcurrency = 1000
	}
	sem := semaphore.NewWeighted(int64(taskPoolSize))

	for i, batch := range batches {
		for _, chunk := range chunk(batch, taskConcurrency) {
			if err := r.runChunk(ctx, chunk, hardwareTable, availabilityTable, sem); err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
		}
	}
	return nil
}

// loadHardwareTable returns every non-deleted Hardware keyed by UUID (spec
// §4.2 step 1).
func loadHardwareTable(store storage.Store) (map[string]*types.Hardware, error) {
	rows, err := store.ListHardware(storage.ListOptions{AllProjects: true})
	if err != nil {
		return nil, err
	}
	table := make(map[string]*types.Hardware, len(rows))
	for _, hw := range rows {
		table[hw.UUID] = hw
	}
	return table, nil
}

// loadAvailabilityTable groups every AvailabilityWindow by hardware_uuid
// (spec §4.2 step 1).
func loadAvailabilityTable(store storage.Store) (map[string][]*types.AvailabilityWindow, error) {
	rows, err := store.ListAvailabilityAll()
	if err != nil {
		return nil, err
	}
	table := make(map[string][]*types.AvailabilityWindow)
	for _, w := range rows {
		table[w.HardwareUUID] = append(table[w.HardwareUUID], w)
	}
	return table, nil
}

// batchByHardware groups tasks by hardware_uuid, preserving each group's
// insertion order, then takes the nth element of every group for
// n = 0, 1, 2, ... so that a batch never contains two tasks for the same
// hardware (spec §4.2 steps 2-3).
func batchByHardware(tasks []*types.WorkerTask) [][]*types.WorkerTask {
	var order []string
	grouped := make(map[string][]*types.WorkerTask)
	for _, t := range tasks {
		if _, seen := grouped[t.HardwareUUID]; !seen {
			order = append(order, t.HardwareUUID)
		}
		grouped[t.HardwareUUID] = append(grouped[t.HardwareUUID], t)
	}

	maxLen := 0
	for _, g := range grouped {
		if len(g) > maxLen {
			maxLen = len(g)
		}
	}

	batches := make([][]*types.WorkerTask, 0, maxLen)
	for n := 0; n < maxLen; n++ {
		var batch []*types.WorkerTask
		for _, uuid := range order {
			group := grouped[uuid]
			if n < len(group) {
				batch = append(batch, group[n])
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

// chunk splits tasks into pieces of at most size elements (spec §4.2 step
// 4), mirroring worker/manager.py's _chunks helper.
func chunk(tasks []*types.WorkerTask, size int) [][]*types.WorkerTask {
	if size <= 0 || len(tasks) == 0 {
		if len(tasks) == 0 {
			return nil
		}
		size = len(tasks)
	}
	var chunks [][]*types.WorkerTask
	for i := 0; i < len(tasks); i += size {
		end := i + size
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[i:end])
	}
	return chunks
}

// runChunk dispatches every task in chunk concurrently, bounded by sem,
// and waits for all of them to finish before returning (spec §4.2 step 4
// "wait for the entire chunk to complete before starting the next").
// Exception isolation (spec §4.2): one task's failure must not prevent
// its siblings from running, so task execution errors are logged, not
// propagated through the errgroup.
func (r *Reconciler) runChunk(
	ctx context.Context,
	chunk []*types.WorkerTask,
	hardwareTable map[string]*types.Hardware,
	availabilityTable map[string][]*types.AvailabilityWindow,
	sem *semaphore.Weighted,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range chunk {
		task := task
		if err := sem.Acquire(ctx, 1); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			r.processTask(gctx, task, hardwareTable, availabilityTable)
			return nil
		})
	}
	return g.Wait()
}

// processTask executes one WorkerTask's claim-process-persist cycle (spec
// §4.1, §4.2 step 5). Errors are logged and recorded on the task itself
// (as an ERROR state); processTask never returns an error to its caller,
// so that one task's failure is isolated from its batch siblings.
func (r *Reconciler) processTask(
	ctx context.Context,
	task *types.WorkerTask,
	hardwareTable map[string]*types.Hardware,
	availabilityTable map[string][]*types.AvailabilityWindow,
) {
	logger := r.logger.With().Str("task_uuid", task.UUID).Str("worker_type", task.WorkerType).Str("hardware_uuid", task.HardwareUUID).Logger()

	if !task.UpdatedAt.IsZero() {
		metrics.SchedulingLatency.Observe(time.Since(task.UpdatedAt).Seconds())
	}

	claimed := task.Clone()
	claimed.State = types.WorkerStateInProgress
	if err := r.rt.Store.UpdateWorkerTask(claimed); err != nil {
		logger.Error().Err(err).Msg("failed to claim task")
		return
	}

	stateDetails := cloneDetails(task.StateDetails)
	timer := metrics.NewTimer()
	result := r.invokeWorker(ctx, claimed, hardwareTable, availabilityTable, stateDetails)
	timer.ObserveDurationVec(metrics.WorkerTaskDuration, task.WorkerType, string(result.Kind))
	metrics.WorkerTaskResultsTotal.WithLabelValues(task.WorkerType, string(result.Kind)).Inc()
	if result.Kind == types.WorkerStateError {
		logger.Error().Err(result.Err).Msg("worker returned an error result")
	}

	final := claimed.Clone()
	applyResult(final, stateDetails, result)

	if err := r.rt.Store.UpdateWorkerTask(final); err != nil {
		logger.Error().Err(err).Msg("failed to persist task result")
	}
}

// invokeWorker resolves the registered worker and calls Process, turning
// a missing hardware row or missing worker into a Failure result rather
// than panicking, mirroring worker/manager.py's _process_task try/except.
func (r *Reconciler) invokeWorker(
	ctx context.Context,
	task *types.WorkerTask,
	hardwareTable map[string]*types.Hardware,
	availabilityTable map[string][]*types.AvailabilityWindow,
	stateDetails map[string]any,
) (result types.WorkerResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("task_uuid", task.UUID).Msg("unhandled panic in worker")
			result = types.Failure(fmt.Errorf("unhandled error"), stateDetails)
		}
	}()

	w, ok := r.rt.Registry.Worker(task.WorkerType)
	if !ok {
		return types.Failure(errs.DriverNotFound(task.WorkerType), stateDetails)
	}

	hw := hardwareTable[task.HardwareUUID]
	if hw == nil {
		// Hardware was soft-deleted; it is not present in the non-deleted
		// snapshot but the task must still see it (with Deleted=true) so
		// the worker can tear down external state (spec §3 cascade rule).
		fetched, err := r.rt.Store.GetHardwareByUUID(task.HardwareUUID)
		if err != nil {
			return types.Failure(errs.HardwareNotFound(task.HardwareUUID), stateDetails)
		}
		hw = fetched
	}

	windows := availabilityTable[task.HardwareUUID]
	return w.Process(ctx, hw.Clone(), windows, stateDetails)
}

// applyResult interprets a WorkerResult and mutates task in place,
// following spec §4.1's result-interpretation table exactly, including
// the STEADY→STEADY write-order contract: state is only assigned when it
// actually changes, and never written before state_details.
func applyResult(task *types.WorkerTask, stateDetails map[string]any, result types.WorkerResult) {
	switch result.Kind {
	case types.WorkerStateSteady:
		merge(stateDetails, result.StateDetails)
		clearTransientKeys(stateDetails)
	case types.WorkerStatePending:
		stateDetails[types.StateDetailDeferCount] = deferCount(stateDetails) + 1
		if result.DeferReason != "" {
			stateDetails[types.StateDetailDeferReason] = result.DeferReason
		}
		merge(stateDetails, result.StateDetails)
	case types.WorkerStateError:
		merge(stateDetails, result.StateDetails)
		stateDetails[types.StateDetailLastError] = formatWorkerError(result.Err)
	default:
		// Unexpected Kind: treat as Success with the raw result recorded,
		// per spec §4.1 "unexpected return value" handling.
		merge(stateDetails, result.StateDetails)
		stateDetails["result"] = fmt.Sprintf("%v", result)
		clearTransientKeys(stateDetails)
		result.Kind = types.WorkerStateSteady
	}

	task.StateDetails = stateDetails
	if types.CanTransition(task.State, result.Kind) {
		task.State = result.Kind
	}
}

// deferCount reads state_details.defer_count tolerant of both its
// in-process type (int, set by this function's own caller) and its
// round-tripped-through-JSON type (float64, once the task has gone
// through a Store read), since BoltDB marshals state_details as JSON.
func deferCount(details map[string]any) int {
	switch v := details[types.StateDetailDeferCount].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func formatWorkerError(err error) string {
	if err == nil {
		return "Unhandled error"
	}
	if _, ok := err.(*errs.Error); ok {
		return err.Error()
	}
	return "Unhandled error"
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func clearTransientKeys(details map[string]any) {
	for _, key := range types.TransientStateDetailKeys {
		delete(details, key)
	}
}

func cloneDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// syncMu serializes administrative sync triggers (spec §4.8 "sync") with
// one another; the periodic tick does not take it.
var syncMu sync.Mutex

// Sync requeues every non-IN_PROGRESS WorkerTask for hardwareUUID to
// PENDING, for the administrative "sync" trigger (spec §4.1 "ERROR -
// user edit/sync -> PENDING", §4.6 RequeuePendingForHardware).
func Sync(store storage.Store, hardwareUUID string) error {
	syncMu.Lock()
	defer syncMu.Unlock()
	return store.RequeuePendingForHardware(hardwareUUID)
}
