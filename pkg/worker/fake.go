package worker

import (
	"context"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// FakeHardwareType is a hardware type with no external dependencies,
// useful for development, tests, and the spec §8 scenarios. Grounded on
// driver/hardware_type/fake.py.
type FakeHardwareType struct{}

func (FakeHardwareType) Name() string { return "fake-hardware" }

func (FakeHardwareType) DefaultFields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "default_field", Schema: map[string]any{"type": "string"}},
		{Name: "default_required_field", Schema: map[string]any{"type": "string"}, Required: true},
	}
}

func (FakeHardwareType) WorkerOverrides() map[string]any { return nil }

// EnabledWorkers lists which workers apply to fake-hardware; consulted by
// CreateHardware to decide which WorkerTasks to seed.
func (FakeHardwareType) EnabledWorkers() []string { return []string{"fake-worker"} }

// FakeWorker always succeeds immediately; it models the source system's
// fake worker used throughout its own test suite.
type FakeWorker struct{}

func (FakeWorker) Name() string { return "fake-worker" }

func (FakeWorker) Fields() []types.WorkerField { return nil }

func (FakeWorker) Process(_ context.Context, hw *types.Hardware, _ []*types.AvailabilityWindow, _ map[string]any) types.WorkerResult {
	if hw.Deleted {
		return types.Success(map[string]any{})
	}
	return types.Success(map[string]any{"synced": true})
}

func init() {
	driver.RegisterHardwareType(FakeHardwareType{})
	driver.RegisterWorker(FakeWorker{})
}
