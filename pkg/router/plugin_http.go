package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
)

// HTTPPlugin forwards request primitives to a remote CSE over HTTP. The
// whole primitive travels as a JSON map in the body, the way the notifier
// and transport adapters encode it.
type HTTPPlugin struct {
	client *http.Client
}

// NewHTTPPlugin creates the HTTP forwarding plugin.
func NewHTTPPlugin() *HTTPPlugin {
	return &HTTPPlugin{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the request primitive to the endpoint and decodes the response
// primitive from the body.
func (p *HTTPPlugin) Send(ctx context.Context, req *primitives.Request, endpoint string) (*primitives.Response, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	body, err := json.Marshal(req.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to encode request primitive: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build forward request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer httpResp.Body.Close()

	var wire map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response primitive from %s: %w", endpoint, err)
	}

	resp := primitives.NewResponse(req)
	resp.Merge(wire)
	if resp.RSC() == "" {
		resp.SetRSC(string(onem2m.StatusInternalServerError),
			"remote response missing status code")
	}
	return resp, nil
}
