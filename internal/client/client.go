// Package client talks to the document backend: it dispatches prepared
// documents for OCR/indexing and reads back the failure feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lkoehler/docintake-go/internal/models"
)

// Client is an HTTP client for the document backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client. If baseURL is empty, DOCINTAKE_SERVER_URL
// or the localhost default is used. The timeout covers one dispatch batch
// and is configurable via DOCINTAKE_CLIENT_TIMEOUT.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCINTAKE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8710"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("DOCINTAKE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// dispatchRequest is the payload for a dispatch batch. The request id lets
// the backend deduplicate retried batches.
type dispatchRequest struct {
	RequestID string                    `json:"requestId"`
	Documents []models.PreparedDocument `json:"documents"`
}

// dispatchResponse is the backend's acknowledgement.
type dispatchResponse struct {
	Accepted int     `json:"accepted"`
	Error    *string `json:"error,omitempty"`
}

// Dispatch hands one batch of prepared documents to the backend. The
// backend deduplicates by its own identity scheme, so repeated calls with
// overlapping content are safe.
func (c *Client) Dispatch(ctx context.Context, docs []models.PreparedDocument) error {
	var resp dispatchResponse
	err := c.post(ctx, "/api/documents", dispatchRequest{
		RequestID: uuid.New().String(),
		Documents: docs,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("backend rejected batch: %s", *resp.Error)
	}
	return nil
}

// ListFailures fetches the current failure items from the backend.
func (c *Client) ListFailures(ctx context.Context) ([]models.FailureItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/failures", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	var items []models.FailureItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	return items, nil
}

// actionResponse is the backend's answer to retry/remove calls.
type actionResponse struct {
	OK bool `json:"ok"`
}

// RetryFailedDocument asks the backend to reprocess a failed document.
func (c *Client) RetryFailedDocument(ctx context.Context, id string) (bool, error) {
	var resp actionResponse
	if err := c.post(ctx, "/api/failures/"+id+"/retry", nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// RemoveFailedDocument asks the backend to drop a failed document.
func (c *Client) RemoveFailedDocument(ctx context.Context, id string) (bool, error) {
	var resp actionResponse
	if err := c.post(ctx, "/api/failures/"+id+"/remove", nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

// post sends a JSON request and decodes the JSON response into result.
func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
