package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is the shared, minimal HTTP idiom used by every downstream
// driver stub (provisioner, leases, orchestrator, tunnel): a bounded-
// timeout client plus a small do-JSON helper. Grounded on the
// wait_for_provision_state / keystone adapter pattern in
// driver/worker/ironic.py, simplified since authentication against the
// downstream services is out of scope (spec §1).
type httpClient struct {
	base   string
	client *http.Client
}

func newHTTPClient(base string, timeout time.Duration) *httpClient {
	return &httpClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// doJSON issues method against path with an optional JSON body, decoding a
// 2xx JSON response into out (when out is non-nil). Non-2xx responses are
// returned as an error carrying the response body.
func (c *httpClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
