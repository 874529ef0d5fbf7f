/*
Package events provides the in-process event broker that decouples the rest
processor from notification delivery.

When a CREATE, UPDATE or DELETE touches a resource covered by one or more
subscriptions, the notification processor publishes one Event per subscription
on the broker. The notifier service subscribes at startup and fans each event
out to the per-scheme delivery plugins.

Delivery is best-effort by construction: the broker drops events for
subscribers whose buffers are full, and the notifier never reports back to the
request path. A slow or dead notification target can therefore never stall a
CRUD operation.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			deliver(ev.Notification)
		}
	}()

	broker.Publish(&events.Event{
		Type:         events.EventResourceChanged,
		Notification: notif,
	})
*/
package events
