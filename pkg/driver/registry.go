package driver

import "fmt"

// Registry holds every compiled-in HardwareType and Worker, keyed by name.
// Registration happens once, from package init() functions, and the
// registry is treated as immutable and process-global thereafter (spec §5
// Shared-resource policy); all registration must complete before any
// reconciler tick starts.
type Registry struct {
	hardwareTypes map[string]HardwareType
	workers       map[string]Worker
}

var defaultRegistry = &Registry{
	hardwareTypes: make(map[string]HardwareType),
	workers:       make(map[string]Worker),
}

// RegisterHardwareType adds ht to the default registry. It panics on a
// duplicate name: a collision between two compiled-in drivers is a
// programmer error, not a runtime condition to recover from.
func RegisterHardwareType(ht HardwareType) {
	if _, exists := defaultRegistry.hardwareTypes[ht.Name()]; exists {
		panic(fmt.Sprintf("driver: duplicate hardware type %q", ht.Name()))
	}
	defaultRegistry.hardwareTypes[ht.Name()] = ht
}

// RegisterWorker adds w to the default registry. Panics on a duplicate
// name, mirroring RegisterHardwareType.
func RegisterWorker(w Worker) {
	if _, exists := defaultRegistry.workers[w.Name()]; exists {
		panic(fmt.Sprintf("driver: duplicate worker %q", w.Name()))
	}
	defaultRegistry.workers[w.Name()] = w
}

// Default returns the process-global registry populated by init()
// functions in the concrete driver packages imported (blank or otherwise)
// by cmd/hardwared.
func Default() *Registry { return defaultRegistry }

// HardwareType looks up a compiled-in hardware type by name.
func (r *Registry) HardwareType(name string) (HardwareType, bool) {
	ht, ok := r.hardwareTypes[name]
	return ht, ok
}

// Worker looks up a compiled-in worker by name.
func (r *Registry) Worker(name string) (Worker, bool) {
	w, ok := r.workers[name]
	return w, ok
}

// HardwareTypeNames returns every compiled-in hardware type name.
func (r *Registry) HardwareTypeNames() []string {
	names := make([]string, 0, len(r.hardwareTypes))
	for name := range r.hardwareTypes {
		names = append(names, name)
	}
	return names
}

// WorkerNames returns every compiled-in worker name.
func (r *Registry) WorkerNames() []string {
	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	return names
}

// Enabled filters names against a configured allow-list; an empty or nil
// list means "all compiled-in names are enabled" (the typical dev/test
// configuration).
func Enabled(configured []string, available []string) map[string]bool {
	enabled := make(map[string]bool, len(available))
	if len(configured) == 0 {
		for _, name := range available {
			enabled[name] = true
		}
		return enabled
	}
	allowed := make(map[string]bool, len(configured))
	for _, name := range configured {
		allowed[name] = true
	}
	for _, name := range available {
		if allowed[name] {
			enabled[name] = true
		}
	}
	return enabled
}
