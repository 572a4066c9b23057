package worker

import (
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// BaremetalHardwareType is a server provisionable through the provisioner
// and leases workers, grounded on driver/hardware_type/baremetal.py.
type BaremetalHardwareType struct{}

func (BaremetalHardwareType) Name() string { return "baremetal" }

func (BaremetalHardwareType) EnabledWorkers() []string {
	return []string{"provisioner", "leases"}
}

func (BaremetalHardwareType) DefaultFields() []types.WorkerField {
	return []types.WorkerField{
		{
			Name:        "interfaces",
			Schema:      map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": "object"}},
			Required:    true,
			Description: "Network interfaces installed on the node.",
		},
		{
			Name:        "cpu_arch",
			Schema:      map[string]any{"type": "string"},
			Default:     "x86_64",
			Required:    true,
			Description: "The CPU architecture.",
		},
	}
}

func (BaremetalHardwareType) WorkerOverrides() map[string]any { return nil }

// EdgeDeviceHardwareType is a small network-attached device reachable only
// through a reverse tunnel and registered with the orchestrator, grounded
// on driver/hardware_type/device.py.
type EdgeDeviceHardwareType struct{}

func (EdgeDeviceHardwareType) Name() string { return "edge-device" }

func (EdgeDeviceHardwareType) EnabledWorkers() []string {
	return []string{"tunnel", "orchestrator"}
}

func (EdgeDeviceHardwareType) DefaultFields() []types.WorkerField {
	return []types.WorkerField{
		{
			Name:        "machine_name",
			Schema:      map[string]any{"type": "string"},
			Required:    true,
			Description: "The device model identifier.",
		},
		{
			Name:        "contact_email",
			Schema:      map[string]any{"type": "string", "format": "email"},
			Required:    true,
			Private:     true,
			Description: "Contact email for enrollment communication about this device.",
		},
	}
}

func (EdgeDeviceHardwareType) WorkerOverrides() map[string]any { return nil }

func init() {
	driver.RegisterHardwareType(BaremetalHardwareType{})
	driver.RegisterHardwareType(EdgeDeviceHardwareType{})
}
