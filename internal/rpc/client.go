// client.go - JSON-RPC client for the remote network endpoint.
//
// The engine only needs a health probe: a getVersion round-trip proves the
// endpoint is alive and speaking the protocol. The client satisfies
// connection.Prober.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks JSON-RPC 2.0 to a single endpoint URL.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round-trip and returns the raw result.
func (c *Client) call(ctx context.Context, method string) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc %s: endpoint returned %s", method, resp.Status)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("rpc %s: decoding response: %w", method, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, decoded.Error)
	}
	return decoded.Result, nil
}

// Version asks the endpoint for its software version.
func (c *Client) Version(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "getVersion")
	if err != nil {
		return "", err
	}
	var version struct {
		Core string `json:"solana-core"`
	}
	if err := json.Unmarshal(result, &version); err != nil || version.Core == "" {
		// Not all endpoints report the field; the raw result is still a
		// successful health signal.
		return string(result), nil
	}
	return version.Core, nil
}

// Probe performs one health check: a successful getVersion round-trip.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}
