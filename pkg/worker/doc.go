/*
Package worker provides the compiled-in HardwareType and Worker
implementations dispatched by the reconciler.

# Hardware Types

	fake-hardware  - no external dependencies; used in tests and dev runs
	baremetal      - provisioner + leases
	edge-device    - tunnel + orchestrator

# Workers

	fake-worker   - always succeeds; models driver/hardware_type/fake.py
	provisioner   - bare-metal provisioning controller stand-in (Ironic)
	leases        - reservation service stand-in (Blazar)
	orchestrator  - container orchestrator stand-in (Kubernetes)
	tunnel        - tunnel/overlay service stand-in (Tunelo)

Each non-fake worker is a thin, idiomatic HTTP client (httpclient.go) over a
configurable endpoint; none of the downstream services themselves are
implemented here, per the scoping in spec §1. Every worker registers itself
from an init() function into the pkg/driver registry; workers that expose a
config group also implement driver.OptsAware so the config package can
point them at a real endpoint.

All Process implementations honor the Worker contract's idempotence
requirement: calling Process twice with the same Hardware/state_details
snapshot must not produce observable drift beyond the first call, and
hw.Deleted is always treated as "tear down, not sync".
*/
package worker
