package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

func TestNewPopulatesSectionDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, 1000, cfg.Worker.TaskPoolSize)
	assert.Equal(t, 1000, cfg.Worker.TaskConcurrency)
	assert.Equal(t, 60, cfg.Worker.ProcessPendingTaskInterval)
	assert.Equal(t, 6385, cfg.API.Port)
	assert.Equal(t, "./hardwared-data", cfg.Database.Connection)
}

func TestWorkerOptionsValidateRejectsNonPositive(t *testing.T) {
	opts := &WorkerOptions{TaskPoolSize: 0, TaskConcurrency: -1, ProcessPendingTaskInterval: 0}
	errs := opts.Validate()
	assert.Len(t, errs, 3)
}

func TestAPIOptionsValidateRejectsBadAddress(t *testing.T) {
	opts := NewAPIOptions()
	opts.HostIP = "not a host"
	opts.Port = -1
	errs := opts.Validate()
	assert.NotEmpty(t, errs)
}

func TestDatabaseOptionsValidateRejectsEmptyConnection(t *testing.T) {
	opts := &DatabaseOptions{Connection: "   "}
	errs := opts.Validate()
	require.Len(t, errs, 1)
}

func TestLoadAppliesFlagDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := New()
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse(nil))

	loaded, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 1000, loaded.Worker.TaskPoolSize)
	assert.Equal(t, 6385, loaded.API.Port)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := New()
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--worker.task-pool-size=0"}))

	_, err := Load("", fs)
	assert.Error(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9999\n"), 0600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := New()
	cfg.AddFlags(fs)
	require.NoError(t, fs.Parse(nil))

	loaded, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.API.Port)
}

type optsAwareWorker struct {
	name     string
	group    string
	applied  map[string]any
	configFn func(map[string]any) error
}

func (w *optsAwareWorker) Name() string               { return w.name }
func (w *optsAwareWorker) Fields() []types.WorkerField { return nil }
func (w *optsAwareWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, details map[string]any) types.WorkerResult {
	return types.Success(nil)
}
func (w *optsAwareWorker) OptGroup() string { return w.group }
func (w *optsAwareWorker) Configure(values map[string]any) error {
	w.applied = values
	if w.configFn != nil {
		return w.configFn(values)
	}
	return nil
}

func TestApplyDriverOptsDispatchesToOptsAwareWorkers(t *testing.T) {
	worker := &optsAwareWorker{name: "config-test-worker", group: "config_test_group"}
	driver.RegisterWorker(worker)

	cfg := New()
	cfg.driverGroups = map[string]map[string]any{
		"config_test_group": {"endpoint": "http://example.invalid"},
	}

	require.NoError(t, ApplyDriverOpts(cfg, driver.Default()))
	assert.Equal(t, "http://example.invalid", worker.applied["endpoint"])
}

func TestApplyDriverOptsSkipsWorkersWithNoSection(t *testing.T) {
	worker := &optsAwareWorker{name: "config-test-worker-no-section", group: "config_test_group_unused"}
	driver.RegisterWorker(worker)

	cfg := New()
	require.NoError(t, ApplyDriverOpts(cfg, driver.Default()))
	assert.Nil(t, worker.applied)
}

func TestApplyDriverOptsPropagatesConfigureError(t *testing.T) {
	worker := &optsAwareWorker{
		name:  "config-test-worker-error",
		group: "config_test_group_error",
		configFn: func(map[string]any) error {
			return assert.AnError
		},
	}
	driver.RegisterWorker(worker)

	cfg := New()
	cfg.driverGroups = map[string]map[string]any{
		"config_test_group_error": {"x": 1},
	}

	err := ApplyDriverOpts(cfg, driver.Default())
	assert.Error(t, err)
}
