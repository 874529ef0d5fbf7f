package notifier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MqttPlugin delivers notifications by publishing to an MQTT broker. The
// target URI carries the broker address and the topic as the path:
// mqtt://broker:1883/onem2m/notifications/ae1.
type MqttPlugin struct{}

// NewMqttPlugin creates the MQTT delivery plugin.
func NewMqttPlugin() *MqttPlugin {
	return &MqttPlugin{}
}

// Deliver connects to the broker named by the URI and publishes the payload
// on the topic from the URI path. Connections are per delivery; subscriber
// brokers are expected to be few and local.
func (p *MqttPlugin) Deliver(ctx context.Context, uri string, payload []byte) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("failed to parse mqtt uri %s: %w", uri, err)
	}
	topic := strings.TrimPrefix(u.Path, "/")
	if topic == "" {
		return fmt.Errorf("mqtt uri %s carries no topic", uri)
	}

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + u.Host).
		SetClientID("onem2m-notifier-" + uuid.NewString()[:8])

	client := mqtt.NewClient(opts)
	if err := waitToken(client.Connect(), deadlineIn(ctx)); err != nil {
		return fmt.Errorf("failed to connect to broker %s: %w", u.Host, err)
	}
	defer client.Disconnect(250)

	if err := waitToken(client.Publish(topic, 1, false, payload), deadlineIn(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s on %s: %w", topic, u.Host, err)
	}
	return nil
}

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}
