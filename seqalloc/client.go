package seqalloc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowchartsman/retry"
)

// reserveRequest is the wire form of a Reserve call.
type reserveRequest struct {
	Key      string `json:"key"`
	Fallback uint64 `json:"fallback"`
}

// reserveResponse is the wire form of a Reserve result.
type reserveResponse struct {
	Value uint64 `json:"value"`
}

// resetRequest is the wire form of a Reset call.
type resetRequest struct {
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}

// Client talks to a remote sequence allocator over HTTP. Transient failures
// are retried with exponential backoff; 4xx responses are permanent.
type Client struct {
	endpoint string
	http     *http.Client
	retrier  *retry.Retrier
}

// NewClient creates a client for the allocator at endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		retrier:  retry.NewRetrier(5, 100*time.Millisecond, 2*time.Second),
	}
}

// Reserve implements Allocator.
func (c *Client) Reserve(ctx context.Context, key string, fallback uint64) (uint64, error) {
	var resp reserveResponse
	err := c.retrier.RunContext(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/v1/seq/reserve", reserveRequest{Key: key, Fallback: fallback}, &resp)
	})
	if err != nil {
		return 0, fmt.Errorf("reserve %q failed: %w", key, err)
	}
	return resp.Value, nil
}

// Reset implements Allocator.
func (c *Client) Reset(ctx context.Context, key string, value uint64) error {
	err := c.retrier.RunContext(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/v1/seq/reset", resetRequest{Key: key, Value: value}, nil)
	})
	if err != nil {
		return fmt.Errorf("reset %q failed: %w", key, err)
	}
	return nil
}

// post issues one JSON request and decodes the response into out when
// non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return retry.Stop(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return retry.Stop(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Stop(fmt.Errorf("allocator rejected request: %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("allocator returned %s", resp.Status)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
