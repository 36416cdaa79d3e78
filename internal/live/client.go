// Package live talks to the collaborator service over JSON HTTP: director
// proposals and evaluations, artifact generation, and quality scoring.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lmarceau/cutroom/internal/executor"
)

// #region client-struct
// Client wraps the HTTP connection to the collaborator service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// #endregion client-struct

// #region constructor
// NewClient builds a client for the collaborator service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a Client with an injected http.Client.
// Used for testing against httptest servers.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// #endregion constructor

// #region post
// post sends one JSON request and decodes the JSON response. HTTP 408, 429
// and 5xx map to retryable collaborator errors, other non-2xx statuses to
// permanent ones.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &executor.CollabError{Op: path, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		retryable := resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500
		return &executor.CollabError{Op: path, Retryable: retryable, Err: err}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &executor.CollabError{Op: path, Retryable: false, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// #endregion post
