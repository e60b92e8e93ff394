// ipfs.go - IPFS HTTP API client implementing the Store boundary.
//
// Talks to a Kubo-compatible node: /api/v0/add for uploads, /api/v0/cat for
// downloads. The returned CID is treated as the opaque content address.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// IPFSClient is a Store backed by an IPFS node's HTTP API.
type IPFSClient struct {
	apiURL     string
	gatewayURL string
	http       *http.Client
}

// NewIPFSClient creates a client for the node at apiURL (e.g.
// "http://localhost:5001"). gatewayURL (e.g. "http://localhost:8080") is
// only used to derive browse URLs and may be empty.
func NewIPFSClient(apiURL, gatewayURL string) *IPFSClient {
	return &IPFSClient{
		apiURL:     apiURL,
		gatewayURL: gatewayURL,
		http:       &http.Client{Timeout: 60 * time.Second},
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload pins the content and returns its CID.
func (c *IPFSClient) Upload(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/add?cid-version=1", &body)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("store upload: node returned %s", resp.Status)
	}

	var added addResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("store upload: decoding response: %w", err)
	}
	if added.Hash == "" {
		return "", fmt.Errorf("store upload: node returned no CID")
	}
	return added.Hash, nil
}

// Download resolves a CID to its content bytes.
func (c *IPFSClient) Download(ctx context.Context, address string) ([]byte, error) {
	u := c.apiURL + "/api/v0/cat?arg=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("store download: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store download: node returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store download: %w", err)
	}
	return data, nil
}

// Ping checks that the node's API answers. Used by daemon health checks.
func (c *IPFSClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store ping: node returned %s", resp.Status)
	}
	return nil
}

// GatewayURL returns the public browse URL for an address, or the bare
// address when no gateway is configured.
func (c *IPFSClient) GatewayURL(address string) string {
	if c.gatewayURL == "" {
		return address
	}
	return c.gatewayURL + "/ipfs/" + address
}
