// Package driver defines the HardwareType and Worker plugin contract and
// the compile-time registry that replaces the source system's runtime
// entrypoint discovery (spec §9 Design Notes), grounded on doni's
// common.driver_factory module and the package-level registration idiom in
// cloupeer's examples/stepregister/registry.go.
package driver

import (
	"context"

	"github.com/cuemby/hardwared/pkg/types"
)

// HardwareType names a class of Hardware: which workers apply to it, what
// default property fields it contributes, and which of those fields are
// forced (worker_overrides) rather than user-settable.
type HardwareType interface {
	Name() string
	// EnabledWorkers lists the worker names that apply to this hardware
	// type; CreateHardware seeds exactly one WorkerTask per name here
	// that is also enabled in configuration (invariant I1).
	EnabledWorkers() []string
	// DefaultFields lists the type's own property schema contributions,
	// independent of any worker.
	DefaultFields() []types.WorkerField
	// WorkerOverrides are property values forced onto every Hardware of
	// this type when it is enrolled. UpdateHardware and the patch path do
	// not check them, so a later update can change these values.
	WorkerOverrides() map[string]any
}

// ImportedItem is one row discovered by a Worker's ImportExisting hook.
type ImportedItem struct {
	UUID       string
	Name       string
	Properties map[string]any
}

// OptsAware is implemented by workers that expose a configuration group
// (spec §6 "per-driver config groups declared by the driver via
// RegisterOpts"). The config package calls Configure once at startup,
// after flags and config files are parsed, with that worker's section of
// the parsed configuration.
type OptsAware interface {
	OptGroup() string
	Configure(values map[string]any) error
}

// Importer is implemented by workers that can discover pre-existing
// external resources for the `import` CLI command (spec §4.8).
type Importer interface {
	ImportExisting(ctx context.Context) ([]ImportedItem, error)
}

// Worker is the reconciliation actor contract (spec §4.3). A Process call
// must be idempotent: invoking it twice with the same hardware and
// state_details snapshot must not produce observable drift beyond the
// first call.
type Worker interface {
	Name() string
	// Fields lists this worker's contribution to the composed hardware
	// schema, in the order they should appear.
	Fields() []types.WorkerField
	Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, stateDetails map[string]any) types.WorkerResult
}

// JSONSchema derives a `{type: object, properties, required}` fragment
// from a field list (spec §4.3's `JsonSchema()`), shared by hardware types
// and workers alike so the validation package composes them uniformly.
func JSONSchema(fields []types.WorkerField) map[string]any {
	properties := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		schema := f.Schema
		if schema == nil {
			schema = map[string]any{"type": "string"}
		}
		properties[f.Name] = schema
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}
