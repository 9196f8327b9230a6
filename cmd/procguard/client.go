package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loykin/procguard/internal/server"
)

// APIClient talks to the status API of a running procguard daemon.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the daemon at baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable reports whether the daemon answers its health endpoint.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// GetStatus fetches the full daemon status snapshot.
func (c *APIClient) GetStatus() (server.DaemonStatus, error) {
	var st server.DaemonStatus
	resp, err := c.client.Get(c.baseURL + "/status")
	if err != nil {
		return st, fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return st, fmt.Errorf("status request failed with code %d", resp.StatusCode)
		}
		return st, fmt.Errorf("API error: %s", errorResp.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status response: %w", err)
	}
	return st, nil
}
