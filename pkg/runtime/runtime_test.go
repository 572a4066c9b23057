package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

type runtimeTestWorker struct{ name string }

func (w *runtimeTestWorker) Name() string               { return w.name }
func (w *runtimeTestWorker) Fields() []types.WorkerField { return nil }
func (w *runtimeTestWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, details map[string]any) types.WorkerResult {
	return types.Success(nil)
}

type runtimeTestHardwareType struct{ name string }

func (h *runtimeTestHardwareType) Name() string                     { return h.name }
func (h *runtimeTestHardwareType) EnabledWorkers() []string          { return nil }
func (h *runtimeTestHardwareType) DefaultFields() []types.WorkerField { return nil }
func (h *runtimeTestHardwareType) WorkerOverrides() map[string]any    { return nil }

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnabledHardwareTypesDefaultsToAllRegistered(t *testing.T) {
	driver.RegisterHardwareType(&runtimeTestHardwareType{name: "runtime-test-type-a"})
	driver.RegisterHardwareType(&runtimeTestHardwareType{name: "runtime-test-type-b"})

	cfg := config.New()
	rt := New(newTestStore(t), driver.Default(), cfg)

	names := map[string]bool{}
	for _, ht := range rt.EnabledHardwareTypes() {
		names[ht.Name()] = true
	}
	assert.True(t, names["runtime-test-type-a"])
	assert.True(t, names["runtime-test-type-b"])
}

func TestEnabledHardwareTypesFiltersToConfiguredList(t *testing.T) {
	driver.RegisterHardwareType(&runtimeTestHardwareType{name: "runtime-test-type-c"})
	driver.RegisterHardwareType(&runtimeTestHardwareType{name: "runtime-test-type-d"})

	cfg := config.New()
	cfg.EnabledHardwareTypes = []string{"runtime-test-type-c"}
	rt := New(newTestStore(t), driver.Default(), cfg)

	names := map[string]bool{}
	for _, ht := range rt.EnabledHardwareTypes() {
		names[ht.Name()] = true
	}
	assert.True(t, names["runtime-test-type-c"])
	assert.False(t, names["runtime-test-type-d"])
}

func TestEnabledWorkerNames(t *testing.T) {
	driver.RegisterWorker(&runtimeTestWorker{name: "runtime-test-worker-a"})

	cfg := config.New()
	cfg.EnabledWorkerTypes = []string{"runtime-test-worker-a"}
	rt := New(newTestStore(t), driver.Default(), cfg)

	enabled := rt.EnabledWorkerNames()
	assert.True(t, enabled["runtime-test-worker-a"])
}
