package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHardwareClone(t *testing.T) {
	hw := &Hardware{
		UUID:       "hw-1",
		Name:       "node-1",
		Properties: map[string]any{"cpu": "64"},
	}

	clone := hw.Clone()
	clone.Properties["cpu"] = "128"

	assert.Equal(t, "64", hw.Properties["cpu"], "mutating the clone must not affect the original")
	assert.Equal(t, "128", clone.Properties["cpu"])
	assert.Equal(t, hw.UUID, clone.UUID)
}

func TestHardwareCloneNil(t *testing.T) {
	var hw *Hardware
	assert.Nil(t, hw.Clone())
}

func TestWorkerTaskClone(t *testing.T) {
	task := &WorkerTask{
		UUID:         "task-1",
		State:        WorkerStatePending,
		StateDetails: map[string]any{"defer_count": 1},
	}

	clone := task.Clone()
	clone.StateDetails["defer_count"] = 2

	assert.Equal(t, 1, task.StateDetails["defer_count"])
	assert.Equal(t, 2, clone.StateDetails["defer_count"])
}

func TestWorkerTaskCloneNil(t *testing.T) {
	var task *WorkerTask
	assert.Nil(t, task.Clone())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from WorkerState
		to   WorkerState
		want bool
	}{
		{"steady to pending", WorkerStateSteady, WorkerStatePending, true},
		{"pending to in-progress", WorkerStatePending, WorkerStateInProgress, true},
		{"in-progress to steady", WorkerStateInProgress, WorkerStateSteady, true},
		{"in-progress to error", WorkerStateInProgress, WorkerStateError, true},
		{"error to pending", WorkerStateError, WorkerStatePending, true},
		{"same state is never a transition", WorkerStateSteady, WorkerStateSteady, false},
		{"pending cannot skip to steady", WorkerStatePending, WorkerStateSteady, false},
		{"steady cannot jump to error", WorkerStateSteady, WorkerStateError, false},
		{"error cannot jump to steady", WorkerStateError, WorkerStateSteady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestResultConstructors(t *testing.T) {
	success := Success(map[string]any{"ip": "10.0.0.1"})
	assert.Equal(t, WorkerStateSteady, success.Kind)
	assert.Equal(t, "10.0.0.1", success.StateDetails["ip"])

	deferred := Defer("waiting on power-on", nil)
	assert.Equal(t, WorkerStatePending, deferred.Kind)
	assert.Equal(t, "waiting on power-on", deferred.DeferReason)

	failErr := errors.New("downstream unreachable")
	failure := Failure(failErr, nil)
	assert.Equal(t, WorkerStateError, failure.Kind)
	assert.Equal(t, failErr, failure.Err)
}

func TestTransientStateDetailKeysCoverage(t *testing.T) {
	keys := map[string]bool{}
	for _, k := range TransientStateDetailKeys {
		keys[k] = true
	}
	assert.True(t, keys[StateDetailLastError])
	assert.True(t, keys[StateDetailDeferCount])
	assert.True(t, keys[StateDetailDeferReason])
}
