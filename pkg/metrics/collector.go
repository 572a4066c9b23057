package metrics

import (
	"time"

	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

// pollStates enumerates every WorkerState the collector reports a gauge
// for, including empty states (so a state that drains to zero still
// reports 0 instead of vanishing from the metric).
var pollStates = []types.WorkerState{
	types.WorkerStatePending,
	types.WorkerStateInProgress,
	types.WorkerStateSteady,
	types.WorkerStateError,
}

// Collector periodically polls the Store and publishes gauge metrics
// describing the current inventory shape, following the teacher's
// pkg/metrics Collector poll-loop idiom.
type Collector struct {
	rt     *runtime.Runtime
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector bound to rt's Store.
func NewCollector(rt *runtime.Runtime) *Collector {
	return &Collector{
		rt:     rt,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s interval, polling immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectHardwareMetrics()
	c.collectWorkerTaskMetrics()
	c.collectAvailabilityMetrics()
}

func (c *Collector) collectHardwareMetrics() {
	hw, err := c.rt.Store.ListHardware(storage.ListOptions{AllProjects: true})
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, h := range hw {
		counts[h.HardwareType]++
	}
	for hwType, count := range counts {
		HardwareTotal.WithLabelValues(hwType).Set(float64(count))
	}
}

func (c *Collector) collectWorkerTaskMetrics() {
	allWorkers := make(map[string]bool)
	for _, name := range c.rt.Registry.WorkerNames() {
		allWorkers[name] = true
	}

	for _, state := range pollStates {
		tasks, err := c.rt.Store.GetWorkerTasksInState(state, allWorkers)
		if err != nil {
			continue
		}

		counts := make(map[string]int)
		for _, t := range tasks {
			counts[t.WorkerType]++
		}
		for workerType := range allWorkers {
			WorkerTasksTotal.WithLabelValues(workerType, string(state)).Set(float64(counts[workerType]))
		}
	}
}

func (c *Collector) collectAvailabilityMetrics() {
	windows, err := c.rt.Store.ListAvailabilityAll()
	if err != nil {
		return
	}
	AvailabilityWindowsTotal.Set(float64(len(windows)))
}
