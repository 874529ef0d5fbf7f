/*
Package notifier delivers subscription notifications to subscriber endpoints.

The rest processor never talks to the network: it publishes notification
events on the broker and moves on. The notifier subscribes to the broker,
and a small worker pool fans each event out to the notification URIs of the
subscription that produced it.

Delivery is best effort. A target whose scheme has no registered plugin, or
whose URI does not parse, is logged and dropped. A failed delivery is logged
and dropped too; there is no retry queue. Per-target outcomes land in the
onem2m_notifications_total metric.

Plugins exist for http/https (JSON POST), coap (UDP POST), mqtt (publish on
the topic carried in the URI path) and ws/wss (one text frame per
notification).

# Usage

	svc := notifier.NewService(notifier.ServiceConfig{Broker: broker})
	svc.RegisterPlugin("http", notifier.NewHTTPPlugin())
	svc.RegisterPlugin("https", notifier.NewHTTPPlugin())
	svc.RegisterPlugin("coap", notifier.NewCoapPlugin())
	svc.RegisterPlugin("mqtt", notifier.NewMqttPlugin())
	svc.RegisterPlugin("ws", notifier.NewWsPlugin())
	svc.Start()
	defer svc.Stop()
*/
package notifier
