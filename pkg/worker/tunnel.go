package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/types"
)

// TunnelConfig configures the tunnel worker's downstream client.
type TunnelConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// TunnelWorker stands in for a tunnel/overlay service (Tunelo in the
// source system), provisioning a reachability tunnel to the hardware item,
// grounded on driver/worker/tunelo.py.
type TunnelWorker struct {
	cfg    TunnelConfig
	client *httpClient
}

func NewTunnelWorker(cfg TunnelConfig) *TunnelWorker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TunnelWorker{cfg: cfg, client: newHTTPClient(cfg.Endpoint, timeout)}
}

func (w *TunnelWorker) Name() string { return "tunnel" }

func (w *TunnelWorker) OptGroup() string { return "tunnel" }

func (w *TunnelWorker) Configure(values map[string]any) error {
	if endpoint, ok := values["endpoint"].(string); ok && endpoint != "" {
		w.cfg.Endpoint = endpoint
		w.client = newHTTPClient(endpoint, w.client.client.Timeout)
	}
	return nil
}

func (w *TunnelWorker) Fields() []types.WorkerField {
	return []types.WorkerField{
		{Name: "tunnel_public_key", Schema: map[string]any{"type": "string"}, Sensitive: true},
	}
}

type tunnelRequest struct {
	HardwareUUID string `json:"hardware_uuid"`
	PublicKey    string `json:"public_key,omitempty"`
}

type tunnelResponse struct {
	Address string `json:"address"`
}

func (w *TunnelWorker) Process(ctx context.Context, hw *types.Hardware, _ []*types.AvailabilityWindow, stateDetails map[string]any) types.WorkerResult {
	if hw.Deleted {
		if err := w.client.doJSON(ctx, "DELETE", "/tunnels/"+hw.UUID, nil, nil); err != nil {
			return types.Failure(fmt.Errorf("tearing down tunnel: %w", err), stateDetails)
		}
		return types.Success(map[string]any{})
	}

	publicKey, _ := hw.Properties["tunnel_public_key"].(string)
	var resp tunnelResponse
	err := w.client.doJSON(ctx, "PUT", "/tunnels/"+hw.UUID, tunnelRequest{
		HardwareUUID: hw.UUID,
		PublicKey:    publicKey,
	}, &resp)
	if err != nil {
		return types.Failure(fmt.Errorf("provisioning tunnel: %w", err), stateDetails)
	}
	if resp.Address == "" {
		return types.Defer("tunnel address not yet assigned", stateDetails)
	}
	return types.Success(map[string]any{"tunnel_address": resp.Address})
}

func init() {
	driver.RegisterWorker(NewTunnelWorker(TunnelConfig{Endpoint: "http://127.0.0.1:9191"}))
}
