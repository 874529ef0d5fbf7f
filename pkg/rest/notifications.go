package rest

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/resource"
	"github.com/cuemby/onem2m/pkg/tree"
)

// Notifications builds notification primitives for resource changes and
// publishes them on the event broker. Delivery itself is the notifier
// service's job; nothing here blocks on the network.
type Notifications struct {
	broker *events.Broker
	logger zerolog.Logger
}

// NewNotifications creates the notification processor.
func NewNotifications(broker *events.Broker) *Notifications {
	return &Notifications{
		broker: broker,
		logger: log.WithComponent("notifications"),
	}
}

// ResourceChanged publishes one notification per subscription in scope of a
// created or updated resource.
func (n *Notifications) ResourceChanged(req *primitives.Request, res *tree.Resource,
	op onem2m.Operation, subs []*tree.Resource, names Names) {

	if n.broker == nil || len(subs) == 0 {
		return
	}

	for _, sub := range subs {
		uris := sub.AttrSet(onem2m.AttrNotificationURI)
		if len(uris) == 0 {
			continue
		}

		payload := map[string]any{
			onem2m.NotificationEvent: map[string]any{
				onem2m.NotificationOperationMon: map[string]any{
					onem2m.NotificationOperation:  operationInt(op),
					onem2m.NotificationOriginator: req.Attr(primitives.From),
				},
				onem2m.NotificationRep: n.representation(sub, res, names),
			},
		}

		notif := primitives.NewNotification()
		for _, uri := range uris {
			notif.AddMany(primitives.NotificationURI, uri)
		}
		notif.SetAttr(primitives.NotificationContent, marshalContent(payload))

		n.broker.Publish(&events.Event{
			Type:         events.EventResourceChanged,
			Notification: notif,
		})
		logger := log.WithResourceID(res.ID)
		logger.Debug().
			Str("subscription", sub.ID).
			Int("uris", len(uris)).
			Msg("published change notification")
	}
}

// representation renders the notification body per the subscription's
// notification content type: the whole resource, or a reference only.
func (n *Notifications) representation(sub, res *tree.Resource, names Names) map[string]any {
	nct := onem2m.NotificationContentType(sub.Attr(onem2m.AttrNotificationContentType))
	if nct == onem2m.NotificationContentTypeReferenceOnly {
		return map[string]any{onem2m.AttrResourceName: names.Hierarchical}
	}

	rep := resource.ProduceJSON(res)
	rep[onem2m.AttrResourceName] = names.Hierarchical
	rep[onem2m.AttrResourceID] = names.NonHierarchical
	if names.ParentNonHierarchical != "" {
		rep[onem2m.AttrParentID] = names.ParentNonHierarchical
	}
	return rep
}

// DeleteChange is the notification state captured before a delete executes:
// once the subtree is gone neither the subscriptions in scope nor the
// resource's addresses can be resolved any more.
type DeleteChange struct {
	req            *primitives.Request
	res            *tree.Resource
	subs           []*tree.Resource
	isSubscription bool

	Names Names
}

// PrepareDelete captures everything PublishDelete will need, against the
// still-intact tree.
func (n *Notifications) PrepareDelete(store tree.Store, req *primitives.Request, res *tree.Resource) *DeleteChange {
	change := &DeleteChange{
		req:            req,
		res:            res,
		isSubscription: res.Type == string(onem2m.ResourceTypeSubscription),
	}

	change.Names.Hierarchical, _ = store.HierarchicalName(res.ID)
	change.Names.NonHierarchical, _ = store.NonHierarchicalName(res.ID)
	if res.ParentID != onem2m.NullResourceID {
		change.Names.ParentNonHierarchical, _ = store.NonHierarchicalName(res.ParentID)
	}

	if !change.isSubscription {
		if ids, err := store.FindSubscriptionResources(res.ID); err == nil {
			for _, id := range ids {
				if sub, err := store.RetrieveResource(id); err == nil {
					change.subs = append(change.subs, sub)
				}
			}
		}
	}
	return change
}

// PublishDelete publishes the notifications for an executed delete. Deleting
// a subscription notifies its subscriber URI of the removal instead of the
// normal change fan-out.
func (n *Notifications) PublishDelete(change *DeleteChange) {
	if n.broker == nil {
		return
	}
	if change.isSubscription {
		n.subscriptionDeleted(change.res, change.Names.Hierarchical)
		return
	}
	n.ResourceChanged(change.req, change.res, onem2m.OperationDelete,
		change.subs, change.Names)
}

// subscriptionDeleted tells the subscriber its subscription is gone.
func (n *Notifications) subscriptionDeleted(res *tree.Resource, hierName string) {
	uri := res.Attr(onem2m.AttrSubscriberURI)
	if uri == "" {
		return
	}

	payload := map[string]any{
		onem2m.SubscriptionDeletion:  true,
		onem2m.SubscriptionReference: hierName,
	}

	notif := primitives.NewNotification()
	notif.AddMany(primitives.NotificationURI, uri)
	notif.SetAttr(primitives.NotificationContent, marshalContent(payload))

	n.broker.Publish(&events.Event{
		Type:         events.EventSubscriptionDeleted,
		Notification: notif,
	})
}
