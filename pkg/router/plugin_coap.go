package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
)

// CoapPlugin forwards request primitives to a remote CSE over CoAP/UDP.
// The primitive travels as a JSON payload, mirroring the HTTP encoding.
type CoapPlugin struct{}

// NewCoapPlugin creates the CoAP forwarding plugin.
func NewCoapPlugin() *CoapPlugin {
	return &CoapPlugin{}
}

// Send posts the request primitive to a coap:// endpoint and decodes the
// response primitive from the payload.
func (p *CoapPlugin) Send(ctx context.Context, req *primitives.Request, endpoint string) (*primitives.Response, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse coap endpoint %s: %w", endpoint, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	body, err := json.Marshal(req.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to encode request primitive: %w", err)
	}

	conn, err := udp.Dial(u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer conn.Close()

	msg, err := conn.Post(ctx, path, message.AppJSON, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to post to %s: %w", endpoint, err)
	}

	resp := primitives.NewResponse(req)
	if payload, err := msg.ReadBody(); err == nil && len(payload) > 0 {
		var wire map[string]any
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode response primitive from %s: %w", endpoint, err)
		}
		resp.Merge(wire)
	} else if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.RSC() == "" {
		if msg.Code() == codes.Changed || msg.Code() == codes.Content || msg.Code() == codes.Created {
			resp.SetRSC(string(onem2m.StatusOK), "")
		} else {
			resp.SetRSC(string(onem2m.StatusInternalServerError),
				"remote response missing status code")
		}
	}
	return resp, nil
}
