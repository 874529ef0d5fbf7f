package notifier

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/metrics"
	"github.com/cuemby/onem2m/pkg/primitives"
)

const (
	defaultWorkers = 8
	defaultTimeout = 10 * time.Second
)

// Plugin delivers one notification payload to one target URI.
type Plugin interface {
	Deliver(ctx context.Context, uri string, payload []byte) error
}

// Service consumes notification events from the broker and delivers them to
// subscriber endpoints. Delivery is best effort: a dead endpoint is logged
// and dropped, never retried and never blocking the request path.
type Service struct {
	broker  *events.Broker
	plugins map[string]Plugin
	timeout time.Duration
	workers int

	sub  events.Subscriber
	quit chan struct{}
	wg   sync.WaitGroup

	logger zerolog.Logger
}

// ServiceConfig wires the notifier's collaborators.
type ServiceConfig struct {
	Broker  *events.Broker
	Workers int
	Timeout time.Duration
}

// NewService creates the notifier. Register plugins, then call Start.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		broker:  cfg.Broker,
		plugins: make(map[string]Plugin),
		timeout: timeout,
		workers: workers,
		quit:    make(chan struct{}),
		logger:  log.WithComponent("notifier"),
	}
}

// RegisterPlugin binds a URI scheme to a delivery plugin.
func (s *Service) RegisterPlugin(scheme string, plugin Plugin) {
	s.plugins[scheme] = plugin
}

// Start subscribes to the broker and launches the delivery workers.
func (s *Service) Start() {
	s.sub = s.broker.Subscribe()
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.logger.Info().Int("workers", s.workers).Msg("notifier started")
}

// Stop unsubscribes and drains the workers.
func (s *Service) Stop() {
	close(s.quit)
	s.broker.Unsubscribe(s.sub)
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case event, ok := <-s.sub:
			if !ok {
				return
			}
			s.handle(event)
		}
	}
}

// handle fans one event out to every target URI of its notification.
func (s *Service) handle(event *events.Event) {
	notif := event.Notification
	if notif == nil {
		return
	}
	payload := []byte(notif.Attr(primitives.NotificationContent))

	for _, uri := range notif.Many(primitives.NotificationURI) {
		s.deliver(uri, payload)
	}
}

// deliver resolves the plugin for a target URI and pushes the payload.
// Unroutable URIs are dropped with a log line.
func (s *Service) deliver(uri string, payload []byte) {
	scheme, err := schemeOf(uri)
	if err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("dropping notification, bad target uri")
		metrics.NotificationsTotal.WithLabelValues("invalid", "dropped").Inc()
		return
	}

	plugin, ok := s.plugins[scheme]
	if !ok {
		s.logger.Warn().Str("uri", uri).Str("scheme", scheme).
			Msg("dropping notification, no plugin for scheme")
		metrics.NotificationsTotal.WithLabelValues(scheme, "dropped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := plugin.Deliver(ctx, uri, payload); err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("notification delivery failed")
		metrics.NotificationsTotal.WithLabelValues(scheme, "failed").Inc()
		return
	}
	s.logger.Debug().Str("uri", uri).Msg("notification delivered")
	metrics.NotificationsTotal.WithLabelValues(scheme, "delivered").Inc()
}

// schemeOf extracts the URI scheme, defaulting scheme-less targets to http.
func schemeOf(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "http", nil
	}
	return strings.ToLower(u.Scheme), nil
}
