package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/metrics"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

func TestBatchByHardwareNeverGroupsSameHardwareTwice(t *testing.T) {
	tasks := []*types.WorkerTask{
		{UUID: "t1", HardwareUUID: "hw-1", WorkerType: "a"},
		{UUID: "t2", HardwareUUID: "hw-1", WorkerType: "b"},
		{UUID: "t3", HardwareUUID: "hw-2", WorkerType: "a"},
	}

	batches := batchByHardware(tasks)
	require.Len(t, batches, 2, "hw-1 contributes two waves, hw-2 contributes one")

	for _, batch := range batches {
		seen := map[string]bool{}
		for _, task := range batch {
			assert.False(t, seen[task.HardwareUUID], "no batch may contain two tasks for the same hardware")
			seen[task.HardwareUUID] = true
		}
	}

	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	assert.Equal(t, len(tasks), total)
}

func TestChunkSplitsIntoBoundedPieces(t *testing.T) {
	tasks := make([]*types.WorkerTask, 5)
	for i := range tasks {
		tasks[i] = &types.WorkerTask{UUID: string(rune('a' + i))}
	}

	chunks := chunk(tasks, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 1)
}

func TestChunkEmptyInputYieldsNoChunks(t *testing.T) {
	assert.Nil(t, chunk(nil, 5))
}

func TestChunkNonPositiveSizeYieldsOneChunk(t *testing.T) {
	tasks := []*types.WorkerTask{{UUID: "a"}, {UUID: "b"}}
	chunks := chunk(tasks, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 2)
}

func TestApplyResultSuccessClearsTransientKeys(t *testing.T) {
	task := &types.WorkerTask{State: types.WorkerStateInProgress}
	details := map[string]any{
		types.StateDetailLastError:   "old failure",
		types.StateDetailDeferCount:  3,
		types.StateDetailDeferReason: "waiting",
	}

	applyResult(task, details, types.Success(map[string]any{"ip": "10.0.0.1"}))

	assert.Equal(t, types.WorkerStateSteady, task.State)
	assert.Equal(t, "10.0.0.1", task.StateDetails["ip"])
	_, hasError := task.StateDetails[types.StateDetailLastError]
	assert.False(t, hasError)
	_, hasDefer := task.StateDetails[types.StateDetailDeferCount]
	assert.False(t, hasDefer)
}

func TestApplyResultDeferIncrementsCount(t *testing.T) {
	task := &types.WorkerTask{State: types.WorkerStateInProgress}
	details := map[string]any{types.StateDetailDeferCount: 1}

	applyResult(task, details, types.Defer("waiting on power", nil))

	assert.Equal(t, types.WorkerStatePending, task.State)
	assert.Equal(t, 2, task.StateDetails[types.StateDetailDeferCount])
	assert.Equal(t, "waiting on power", task.StateDetails[types.StateDetailDeferReason])
}

func TestApplyResultDeferCountTolerantOfJSONFloat(t *testing.T) {
	task := &types.WorkerTask{State: types.WorkerStateInProgress}
	details := map[string]any{types.StateDetailDeferCount: float64(4)}

	applyResult(task, details, types.Defer("still waiting", nil))

	assert.Equal(t, 5, task.StateDetails[types.StateDetailDeferCount])
}

func TestApplyResultErrorRecordsLastError(t *testing.T) {
	task := &types.WorkerTask{State: types.WorkerStateInProgress}
	details := map[string]any{}

	applyResult(task, details, types.Failure(errs.New(errs.KindInvalid, "bad ipmi credentials"), nil))

	assert.Equal(t, types.WorkerStateError, task.State)
	assert.Contains(t, task.StateDetails[types.StateDetailLastError], "bad ipmi credentials")
}

func TestApplyResultNeverRegressesAnIllegalTransition(t *testing.T) {
	task := &types.WorkerTask{State: types.WorkerStateSteady}
	details := map[string]any{}

	// STEADY -> ERROR is not a legal edge; applyResult must leave State
	// alone when the target isn't reachable from the current one.
	applyResult(task, details, types.Failure(errors.New("boom"), nil))

	assert.Equal(t, types.WorkerStateSteady, task.State)
}

// --- ProcessPending integration, against a real BoltStore and a fake worker ---

type countingWorker struct {
	name  string
	calls int32
	fn    func(hw *types.Hardware) types.WorkerResult
}

func (w *countingWorker) Name() string                  { return w.name }
func (w *countingWorker) Fields() []types.WorkerField    { return nil }
func (w *countingWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, details map[string]any) types.WorkerResult {
	atomic.AddInt32(&w.calls, 1)
	if w.fn != nil {
		return w.fn(hw)
	}
	return types.Success(nil)
}

func newTestRuntime(t *testing.T, registry *driver.Registry) (*runtime.Runtime, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.New()
	rt := runtime.New(store, registry, cfg)
	return rt, store
}

func TestProcessPendingDispatchesToRegisteredWorker(t *testing.T) {
	worker := &countingWorker{name: "reconciler-test-worker"}
	driver.RegisterWorker(worker)

	rt, store := newTestRuntime(t, driver.Default())

	hw := &types.Hardware{UUID: "hw-1", Name: "node-1", HardwareType: "baremetal", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"reconciler-test-worker"}, types.WorkerStatePending))

	r := New(rt)
	require.NoError(t, r.ProcessPending(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&worker.calls))

	tasks, err := store.ListWorkerTasksForHardware("hw-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, types.WorkerStateSteady, tasks[0].State)
}

func TestProcessPendingIsolatesOneTaskFailureFromItsSiblings(t *testing.T) {
	failing := &countingWorker{
		name: "reconciler-test-failing-worker",
		fn:   func(hw *types.Hardware) types.WorkerResult { return types.Failure(errors.New("boom"), nil) },
	}
	succeeding := &countingWorker{name: "reconciler-test-succeeding-worker"}
	driver.RegisterWorker(failing)
	driver.RegisterWorker(succeeding)

	rt, store := newTestRuntime(t, driver.Default())

	hwFail := &types.Hardware{UUID: "hw-fail", Name: "node-fail", HardwareType: "baremetal", Properties: map[string]any{}}
	hwOK := &types.Hardware{UUID: "hw-ok", Name: "node-ok", HardwareType: "baremetal", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hwFail, []string{"reconciler-test-failing-worker"}, types.WorkerStatePending))
	require.NoError(t, store.CreateHardware(hwOK, []string{"reconciler-test-succeeding-worker"}, types.WorkerStatePending))

	r := New(rt)
	require.NoError(t, r.ProcessPending(context.Background()))

	failTasks, err := store.ListWorkerTasksForHardware("hw-fail")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerStateError, failTasks[0].State)

	okTasks, err := store.ListWorkerTasksForHardware("hw-ok")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerStateSteady, okTasks[0].State)
}

func TestProcessPendingSkipsTasksForDisabledWorkers(t *testing.T) {
	worker := &countingWorker{name: "reconciler-test-disabled-worker"}
	driver.RegisterWorker(worker)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.New()
	cfg.EnabledWorkerTypes = []string{"some-other-worker"}
	rt := runtime.New(store, driver.Default(), cfg)

	hw := &types.Hardware{UUID: "hw-1", Name: "node-1", HardwareType: "baremetal", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"reconciler-test-disabled-worker"}, types.WorkerStatePending))

	r := New(rt)
	require.NoError(t, r.ProcessPending(context.Background()))

	assert.Equal(t, int32(0), atomic.LoadInt32(&worker.calls))
}

func TestProcessPendingObservesWorkerTaskMetrics(t *testing.T) {
	worker := &countingWorker{name: "reconciler-test-metrics-worker"}
	driver.RegisterWorker(worker)

	rt, store := newTestRuntime(t, driver.Default())

	hw := &types.Hardware{UUID: "hw-metrics", Name: "node-metrics", HardwareType: "baremetal", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"reconciler-test-metrics-worker"}, types.WorkerStatePending))

	latencySamplesBefore := schedulingLatencySamples(t)

	r := New(rt)
	require.NoError(t, r.ProcessPending(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WorkerTaskResultsTotal.WithLabelValues("reconciler-test-metrics-worker", string(types.WorkerStateSteady))))
	assert.Greater(t, schedulingLatencySamples(t), latencySamplesBefore)
}

func schedulingLatencySamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.SchedulingLatency.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestSyncRequeuesNonInProgressTasks(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hw := &types.Hardware{UUID: "hw-1", Name: "node-1", HardwareType: "baremetal", Properties: map[string]any{}}
	require.NoError(t, store.CreateHardware(hw, []string{"provisioner"}, types.WorkerStateError))

	require.NoError(t, Sync(store, "hw-1"))

	tasks, err := store.ListWorkerTasksForHardware("hw-1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerStatePending, tasks[0].State)
}
