// Package probe issues the HTTP health check against the coordinator
// service and decodes the server status from its response.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps the health response read. The server_status payload is a
// small JSON object; anything larger indicates the wrong endpoint.
const maxBodyBytes = 1 << 20

// Client issues health probes against coordinator endpoints.
type Client struct {
	http *http.Client
}

// NewClient creates a probe client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a probe client around an existing http.Client.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{http: hc}
}

// Response is the outcome of a successful health probe. The body is retained
// so the status assertion can reuse it without a second request.
type Response struct {
	StatusCode int
	Body       []byte
}

// serverStatus is the JSON shape of /api/v3/server_status.
type serverStatus struct {
	Status string `json:"status"`
}

// Fetch performs a single GET against the health endpoint. A connection
// error or a non-2xx response is reported as an error; the body of a 2xx
// response is returned for later inspection.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read probe response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("probe of %s returned HTTP %d", url, resp.StatusCode)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// ServerStatus extracts the status field from the probe response body.
func (r *Response) ServerStatus() (string, error) {
	var status serverStatus
	if err := json.Unmarshal(r.Body, &status); err != nil {
		return "", fmt.Errorf("health response is not valid JSON: %w", err)
	}
	if status.Status == "" {
		return "", fmt.Errorf("health response has no status field")
	}
	return status.Status, nil
}
