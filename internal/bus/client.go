package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is a small JSON-over-HTTP RPC client, grounded on the teacher's
// pkg/client/client.go (net/http.Client with a timeout, typed request/
// response marshaling). One Client instance addresses one RPC surface: the
// host's (mounted under /guillotine) or one node's (mounted under
// /guillotine-node-<name>).
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. "http://host:8080/guillotine").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Call POSTs req to baseURL/fn and decodes the JSON response into resp.
// Every call gets a fresh correlation id (spec.md §9 deferred guidance:
// "Global singletons ... replace with an explicit command channel" — here
// the analogous fix is that the id travels in the payload, not a shared
// mutable slot).
func (c *Client) Call(ctx context.Context, fn string, req, resp any) error {
	id := uuid.NewString()
	if env, ok := req.(interface{ setCorrelationID(string) }); ok {
		env.setCorrelationID(id)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bus: marshal %s request: %w", fn, err)
	}
	url := c.baseURL + "/" + fn
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bus: build %s request: %w", fn, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-Id", id)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error sending command: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("error sending command: read response: %w", err)
	}
	if httpResp.StatusCode >= 500 {
		return fmt.Errorf("error sending command: %s returned %d: %s", fn, httpResp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return fmt.Errorf("bus: decode %s response: %w", fn, err)
	}
	return nil
}

// Reachable reports whether the RPC surface responds at all, used by the
// CLI to fail fast with a clear message when no host is listening (mirrors
// the teacher's APIClient.IsReachable in cmd/provisr/client.go).
func (c *Client) Reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}

func (e *Envelope) setCorrelationID(id string) { e.CorrelationID = id }
