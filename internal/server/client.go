package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

// DefaultClientTimeout covers a full extraction, model call included.
const DefaultClientTimeout = 2 * time.Minute

// Client talks to a running ops server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
	}
}

// RemoteError is a non-2xx answer from the server.
type RemoteError struct {
	Status  int
	Message string
	// Class is the pipeline failure class, when the server reported one.
	Class pipeline.Class
}

func (e *RemoteError) Error() string {
	if e.Class != pipeline.ClassNone {
		return fmt.Sprintf("server error (%d, %s): %s", e.Status, e.Class, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// Health reports whether the server is serving.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready runs the server's readiness checks.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/ready", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract asks the server to process ref.
func (c *Client) Extract(ctx context.Context, ref storage.ObjectRef) (*pipeline.Result, error) {
	var out pipeline.Result
	if err := c.do(ctx, http.MethodPost, "/extract", ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &RemoteError{Status: resp.StatusCode, Message: errResp.Error, Class: pipeline.Class(errResp.Class)}
		}
		return &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
