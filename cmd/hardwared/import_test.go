package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"
	"github.com/cuemby/hardwared/pkg/types"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

func TestIntersectKeepsOnlyEnabledNames(t *testing.T) {
	enabled := map[string]bool{"a": true, "c": true}
	got := intersect([]string{"a", "b", "c"}, enabled)
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestIntersectEmptyEnabledYieldsNil(t *testing.T) {
	assert.Nil(t, intersect([]string{"a"}, map[string]bool{}))
}

type importTestWorker struct {
	name  string
	items []driver.ImportedItem
}

func (w *importTestWorker) Name() string               { return w.name }
func (w *importTestWorker) Fields() []types.WorkerField { return nil }
func (w *importTestWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, details map[string]any) types.WorkerResult {
	return types.Success(nil)
}
func (w *importTestWorker) ImportExisting(ctx context.Context) ([]driver.ImportedItem, error) {
	return w.items, nil
}

type importTestHardwareType struct {
	name    string
	workers []string
}

func (h *importTestHardwareType) Name() string                       { return h.name }
func (h *importTestHardwareType) EnabledWorkers() []string           { return h.workers }
func (h *importTestHardwareType) DefaultFields() []types.WorkerField { return nil }
func (h *importTestHardwareType) WorkerOverrides() map[string]any    { return nil }

func TestDiscoverExistingMergesPropertiesAcrossWorkersByUUID(t *testing.T) {
	first := &importTestWorker{
		name: "import-test-worker-first",
		items: []driver.ImportedItem{
			{UUID: "host-1", Name: "host-1.example", Properties: map[string]any{"a": 1}},
		},
	}
	second := &importTestWorker{
		name: "import-test-worker-second",
		items: []driver.ImportedItem{
			{UUID: "host-1", Properties: map[string]any{"b": 2}},
		},
	}
	driver.RegisterWorker(first)
	driver.RegisterWorker(second)
	ht := &importTestHardwareType{name: "import-test-type", workers: []string{"import-test-worker-first", "import-test-worker-second"}}
	driver.RegisterHardwareType(ht)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.New()
	rt := runtime.New(store, driver.Default(), cfg)

	discovered, err := discoverExisting(context.Background(), rt, noopLogger())
	require.NoError(t, err)

	require.Contains(t, discovered, "host-1")
	item := discovered["host-1"]
	assert.Equal(t, "host-1.example", item.name)
	assert.Equal(t, "import-test-type", item.hardwareType)
	assert.Equal(t, 1, item.properties["a"])
	assert.Equal(t, 2, item.properties["b"])
}

func TestDiscoverExistingSkipsWorkersNotEnabledInConfig(t *testing.T) {
	w := &importTestWorker{
		name:  "import-test-worker-disabled",
		items: []driver.ImportedItem{{UUID: "host-2"}},
	}
	driver.RegisterWorker(w)
	ht := &importTestHardwareType{name: "import-test-type-disabled", workers: []string{"import-test-worker-disabled"}}
	driver.RegisterHardwareType(ht)

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.New()
	cfg.EnabledWorkerTypes = []string{"some-other-worker"}
	rt := runtime.New(store, driver.Default(), cfg)

	discovered, err := discoverExisting(context.Background(), rt, noopLogger())
	require.NoError(t, err)
	assert.Empty(t, discovered)
}
