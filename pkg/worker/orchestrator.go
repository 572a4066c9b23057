package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// OrchestratorConfig configures the orchestrator worker's downstream client.
type OrchestratorConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// OrchestratorWorker stands in for a container orchestrator (Kubernetes in
// the source system), registering a Hardware item as a labeled node,
// grounded on driver/worker/k8s.py.
type OrchestratorWorker struct {
	cfg    OrchestratorConfig
	client *httpClient
}

func NewOrchestratorWorker(cfg OrchestratorConfig) *OrchestratorWorker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OrchestratorWorker{cfg: cfg, client: newHTTPClient(cfg.Endpoint, timeout)}
}

func (w *OrchestratorWorker) Name() string { return "orchestrator" }

func (w *OrchestratorWorker) OptGroup() string { return "orchestrator" }

func (w *OrchestratorWorker) Configure(values map[string]any) error {
	if endpoint, ok := values["endpoint"].(string); ok && endpoint != "" {
		w.cfg.Endpoint = endpoint
		w.client = newHTTPClient(endpoint, w.client.client.Timeout)
	}
	return nil
}

func (w *OrchestratorWorker) Fields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "node_labels", Schema: map[string]any{"type": "object"}},
	}
}

type orchestratorNodeRequest struct {
	Name       string         `json:"name"`
	Labels     map[string]any `json:"labels"`
	Properties map[string]any `json:"properties"`
}

func (w *OrchestratorWorker) Process(ctx context.Context, hw *types.Hardware, _ []*types.AvailabilityWindow, stateDetails map[string]any) types.WorkerResult {
	if hw.Deleted {
		if err := w.client.doJSON(ctx, "DELETE", "/nodes/"+hw.Name, nil, nil); err != nil {
			return types.Failure(fmt.Errorf("removing orchestrator node: %w", err), stateDetails)
		}
		return types.Success(map[string]any{})
	}

	labels, _ := hw.Properties["node_labels"].(map[string]any)
	err := w.client.doJSON(ctx, "PUT", "/nodes/"+hw.Name, orchestratorNodeRequest{
		Name:       hw.Name,
		Labels:     labels,
		Properties: hw.Properties,
	}, nil)
	if err != nil {
		return types.Failure(fmt.Errorf("registering orchestrator node: %w", err), stateDetails)
	}
	return types.Success(map[string]any{"registered": true})
}

func init() {
	driver.RegisterWorker(NewOrchestratorWorker(OrchestratorConfig{Endpoint: "http://127.0.0.1:8443"}))
}
