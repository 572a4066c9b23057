package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// LeasesConfig configures the leases worker's downstream client.
type LeasesConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// LeasesWorker stands in for a reservation service (Blazar in the source
// system). It turns a Hardware's AvailabilityWindow rows into reservation
// leases, grounded on driver/worker/blazar.py.
type LeasesWorker struct {
	cfg    LeasesConfig
	client *httpClient
}

func NewLeasesWorker(cfg LeasesConfig) *LeasesWorker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LeasesWorker{cfg: cfg, client: newHTTPClient(cfg.Endpoint, timeout)}
}

func (w *LeasesWorker) Name() string { return "leases" }

func (w *LeasesWorker) OptGroup() string { return "leases" }

func (w *LeasesWorker) Configure(values map[string]any) error {
	if endpoint, ok := values["endpoint"].(string); ok && endpoint != "" {
		w.cfg.Endpoint = endpoint
		w.client = newHTTPClient(endpoint, w.client.client.Timeout)
	}
	return nil
}

func (w *LeasesWorker) Fields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "lease_resource_id", Schema: map[string]any{"type": "string"}, Private: true},
	}
}

type leaseSyncRequest struct {
	HardwareUUID string            `json:"hardware_uuid"`
	Windows      []leaseWindowSpec `json:"windows"`
}

type leaseWindowSpec struct {
	UUID  string    `json:"uuid"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w *LeasesWorker) Process(ctx context.Context, hw *types.Hardware, windows []*types.AvailabilityWindow, stateDetails map[string]any) types.WorkerResult {
	if hw.Deleted || len(windows) == 0 {
		if err := w.client.doJSON(ctx, "DELETE", "/leases/"+hw.UUID, nil, nil); err != nil {
			return types.Failure(fmt.Errorf("releasing leases: %w", err), stateDetails)
		}
		return types.Success(map[string]any{})
	}

	req := leaseSyncRequest{HardwareUUID: hw.UUID}
	for _, win := range windows {
		req.Windows = append(req.Windows, leaseWindowSpec{UUID: win.UUID, Start: win.Start, End: win.End})
	}

	if err := w.client.doJSON(ctx, "PUT", "/leases/"+hw.UUID, req, nil); err != nil {
		return types.Failure(fmt.Errorf("syncing leases: %w", err), stateDetails)
	}
	return types.Success(map[string]any{"lease_count": len(windows)})
}

type leaseHost struct {
	HypervisorHostname string         `json:"hypervisor_hostname"`
	NodeName            string         `json:"node_name"`
	NodeType            string         `json:"node_type"`
	Placement           map[string]any `json:"placement"`
	SUFactor            any            `json:"su_factor"`
}

// ImportExisting lists the reservation service's known hosts, mirroring
// driver/worker/blazar/physical_host.py's import_existing, which is the
// only worker in the source system that implements this hook: the
// reservation service is itself authoritative over a hypervisor_hostname
// inventory, so it can seed Hardware rows rather than waiting on enroll.
func (w *LeasesWorker) ImportExisting(ctx context.Context) ([]driver.ImportedItem, error) {
	var hosts []leaseHost
	if err := w.client.doJSON(ctx, "GET", "/os-hosts", nil, &hosts); err != nil {
		return nil, fmt.Errorf("listing reservation hosts: %w", err)
	}

	items := make([]driver.ImportedItem, 0, len(hosts))
	for _, h := range hosts {
		items = append(items, driver.ImportedItem{
			UUID: h.HypervisorHostname,
			Name: h.NodeName,
			Properties: map[string]any{
				"node_type": h.NodeType,
				"placement": h.Placement,
				"su_factor": h.SUFactor,
			},
		})
	}
	return items, nil
}

func init() {
	driver.RegisterWorker(NewLeasesWorker(LeasesConfig{Endpoint: "http://127.0.0.1:1234"}))
}
