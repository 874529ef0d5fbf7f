package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WsPlugin delivers notifications over a short-lived WebSocket connection:
// dial, send one text message, close.
type WsPlugin struct {
	dialer *websocket.Dialer
}

// NewWsPlugin creates the WebSocket delivery plugin.
func NewWsPlugin() *WsPlugin {
	return &WsPlugin{dialer: websocket.DefaultDialer}
}

// Deliver dials the ws:// or wss:// subscriber URI and writes the payload.
func (p *WsPlugin) Deliver(ctx context.Context, uri string, payload []byte) error {
	conn, _, err := p.dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", uri, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write to %s: %w", uri, err)
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return nil
}

// deadlineIn returns the time left before the context deadline, for APIs
// that take a timeout instead of a context.
func deadlineIn(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 10 * time.Second
}
