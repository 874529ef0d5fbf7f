package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp"
)

// CoapPlugin delivers notifications as CoAP POSTs over UDP.
type CoapPlugin struct{}

// NewCoapPlugin creates the CoAP delivery plugin.
func NewCoapPlugin() *CoapPlugin {
	return &CoapPlugin{}
}

// Deliver posts the payload to a coap:// subscriber URI.
func (p *CoapPlugin) Deliver(ctx context.Context, uri string, payload []byte) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("failed to parse coap uri %s: %w", uri, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	conn, err := udp.Dial(u.Host)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", uri, err)
	}
	defer conn.Close()

	resp, err := conn.Post(ctx, path, message.AppJSON, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", uri, err)
	}
	switch resp.Code() {
	case codes.Created, codes.Changed, codes.Content, codes.Valid:
		return nil
	}
	return fmt.Errorf("subscriber %s answered %v", uri, resp.Code())
}
