// Package sink delivers produced chunks to the external embedding service,
// best-effort, per spec §4.5.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oho/chunking-daemon/internal/chunk"
)

// Client posts chunk batches to an embedding service. A zero-value baseURL
// makes the client a no-op that accepts every batch without a network call
// (§4.5 "If unset, the sink is a no-op accept-everything sink").
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

type sendPayload struct {
	Chunks []chunk.Chunk `json:"chunks"`
}

// Send posts one batch of chunks, making up to maxRetries attempts in total
// with exponential backoff (2^n seconds) between them; 4xx responses are not
// retried (§4.5).
// A disabled client always reports success.
func (c *Client) Send(ctx context.Context, chunks []chunk.Chunk) error {
	if !c.Enabled() || len(chunks) == 0 {
		return nil
	}

	body, err := json.Marshal(sendPayload{Chunks: chunks})
	if err != nil {
		return fmt.Errorf("marshaling sink payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/chunks", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building sink request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			slog.Warn("sink request failed", "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("sink returned %d (not retried)", resp.StatusCode)
		}
		lastErr = fmt.Errorf("sink returned %d", resp.StatusCode)
		slog.Warn("sink batch failed, will retry", "attempt", attempt, "status", resp.StatusCode)
	}
	return lastErr
}
