// Package feed is the client SDK for pushing measurements into a
// collector's ingest endpoint. Feeders batch locally and submit in the
// background so a slow network never blocks measurement capture.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hefei93/TowerCollector/pkg/config"
	"github.com/hefei93/TowerCollector/pkg/model"
)

// Sender submits one batch of measurements.
type Sender interface {
	Send(ctx context.Context, measurements []model.Measurement) error
}

// Client posts measurement batches to a collector over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a client for the given ingest endpoint, e.g.
// http://localhost:8080/v1/measurements. The API key is optional.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: config.FeedSendTimeout},
	}
}

// Send posts one batch. An empty batch is a no-op.
func (c *Client) Send(ctx context.Context, measurements []model.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"measurements": measurements})
	if err != nil {
		return fmt.Errorf("feed: marshaling batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("feed: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("feed: sending batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed: collector rejected batch: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
