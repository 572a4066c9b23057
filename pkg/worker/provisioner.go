package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// provisionStateTimeout is the provisioner worker's default per-request HTTP
// timeout, mirroring PROVISION_STATE_TIMEOUT in driver/worker/ironic.py. A
// request that exceeds it fails the task; a node that has not yet converged
// is deferred without waiting.
const provisionStateTimeout = 60 * time.Second

// ProvisionerConfig configures the provisioner worker's downstream client.
type ProvisionerConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// ProvisionerWorker stands in for the bare-metal provisioning controller
// (Ironic in the source system). Each Process call pushes a node's declared
// properties to the endpoint once and defers until a later call sees the
// provision_state converged, grounded on driver/worker/ironic.py.
type ProvisionerWorker struct {
	cfg    ProvisionerConfig
	client *httpClient
}

// NewProvisionerWorker builds a ProvisionerWorker bound to cfg.Endpoint.
func NewProvisionerWorker(cfg ProvisionerConfig) *ProvisionerWorker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = provisionStateTimeout
	}
	return &ProvisionerWorker{cfg: cfg, client: newHTTPClient(cfg.Endpoint, timeout)}
}

func (w *ProvisionerWorker) Name() string { return "provisioner" }

func (w *ProvisionerWorker) OptGroup() string { return "provisioner" }

// Configure applies the [provisioner] config group, allowing the
// downstream endpoint to be pointed at a real service instead of the
// package-default localhost address.
func (w *ProvisionerWorker) Configure(values map[string]any) error {
	if endpoint, ok := values["endpoint"].(string); ok && endpoint != "" {
		w.cfg.Endpoint = endpoint
		w.client = newHTTPClient(endpoint, w.client.client.Timeout)
	}
	return nil
}

func (w *ProvisionerWorker) Fields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "provisioner_driver", Schema: map[string]any{"type": "string", "enum": []string{"ipmi"}}, Default: "ipmi", Private: true},
		{Name: "management_address", Schema: map[string]any{"type": "string"}, Required: true},
		{Name: "management_credential", Schema: map[string]any{"type": "string"}, Sensitive: true},
	}
}

type provisionNodeRequest struct {
	UUID       string         `json:"uuid"`
	Properties map[string]any `json:"properties"`
}

type provisionNodeResponse struct {
	ProvisionState string `json:"provision_state"`
}

func (w *ProvisionerWorker) Process(ctx context.Context, hw *types.Hardware, _ []*types.AvailabilityWindow, stateDetails map[string]any) types.WorkerResult {
	if hw.Deleted {
		if err := w.client.doJSON(ctx, "DELETE", "/nodes/"+hw.UUID, nil, nil); err != nil {
			return types.Failure(fmt.Errorf("deprovisioning node: %w", err), stateDetails)
		}
		return types.Success(map[string]any{})
	}

	var resp provisionNodeResponse
	err := w.client.doJSON(ctx, "PUT", "/nodes/"+hw.UUID, provisionNodeRequest{
		UUID:       hw.UUID,
		Properties: hw.Properties,
	}, &resp)
	if err != nil {
		return types.Failure(fmt.Errorf("provisioning node: %w", err), stateDetails)
	}

	switch resp.ProvisionState {
	case "available", "active":
		return types.Success(map[string]any{"provision_state": resp.ProvisionState})
	case "":
		return types.Defer("node has no provision_state yet", stateDetails)
	default:
		return types.Defer(fmt.Sprintf("waiting for provision_state %q to converge", resp.ProvisionState), stateDetails)
	}
}

func init() {
	driver.RegisterWorker(NewProvisionerWorker(ProvisionerConfig{Endpoint: "http://127.0.0.1:6385"}))
}
