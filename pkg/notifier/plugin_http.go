package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPPlugin delivers notifications as JSON POSTs. Serves both http and
// https targets.
type HTTPPlugin struct {
	client *http.Client
}

// NewHTTPPlugin creates the HTTP delivery plugin.
func NewHTTPPlugin() *HTTPPlugin {
	return &HTTPPlugin{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Deliver posts the payload to the subscriber URI. Any 2xx answer counts as
// delivered.
func (p *HTTPPlugin) Deliver(ctx context.Context, uri string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber %s answered %d", uri, resp.StatusCode)
	}
	return nil
}
