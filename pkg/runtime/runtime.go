// Package runtime provides the explicit service-locator struct that
// replaces the source system's global singletons (driver registry, DB
// engine, config) per spec §9 Design Notes: a single Runtime is built once
// at process start and passed explicitly into every constructor that needs
// Store, driver, or config access.
package runtime

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/storage"
)

// Runtime bundles the process-wide dependencies every component needs.
// It is built once in cmd/hardwared and is safe for concurrent use: Store
// is internally synchronized, Registry is immutable after driver
// registration, and Config is read-only after load.
type Runtime struct {
	Store    storage.Store
	Registry *driver.Registry
	Config   *config.Config
	Logger   zerolog.Logger
}

// New assembles a Runtime from its already-constructed parts.
func New(store storage.Store, registry *driver.Registry, cfg *config.Config) *Runtime {
	return &Runtime{
		Store:    store,
		Registry: registry,
		Config:   cfg,
		Logger:   log.WithComponent("runtime"),
	}
}

// EnabledHardwareTypes returns the compiled-in hardware types whose names
// are enabled by configuration (spec §6 `enabled_hardware_types[]`).
func (rt *Runtime) EnabledHardwareTypes() []driver.HardwareType {
	enabled := driver.Enabled(rt.Config.EnabledHardwareTypes, rt.Registry.HardwareTypeNames())
	var out []driver.HardwareType
	for name := range enabled {
		if ht, ok := rt.Registry.HardwareType(name); ok {
			out = append(out, ht)
		}
	}
	return out
}

// EnabledWorkerNames returns the set of worker names enabled by
// configuration (spec §6 `enabled_worker_types[]`).
func (rt *Runtime) EnabledWorkerNames() map[string]bool {
	return driver.Enabled(rt.Config.EnabledWorkerTypes, rt.Registry.WorkerNames())
}
