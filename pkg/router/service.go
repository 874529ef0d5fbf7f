package router

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/metrics"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/tree"
)

const (
	defaultWorkers = 32
	defaultTimeout = 10 * time.Second
)

// Plugin sends one request primitive to a remote CSE endpoint and returns
// its response. A returned error means the endpoint could not be reached;
// protocol-level failures come back as response status codes.
type Plugin interface {
	Send(ctx context.Context, req *primitives.Request, endpoint string) (*primitives.Response, error)
}

type job struct {
	req    *primitives.Request
	cseID  string
	result chan *primitives.Response
}

// Service forwards request primitives to remote CSEs. Next hops are resolved
// from the routing table; delivery runs on a fixed worker pool so a slow or
// dead remote cannot stall the request processors.
type Service struct {
	table   *Table
	store   tree.Store
	plugins map[string]Plugin
	timeout time.Duration

	jobs    chan *job
	quit    chan struct{}
	wg      sync.WaitGroup
	stopMu  sync.RWMutex
	stopped bool

	logger zerolog.Logger
}

// ServiceConfig wires the router's collaborators.
type ServiceConfig struct {
	Store   tree.Store
	Workers int
	Timeout time.Duration
}

// NewService creates the router service with an empty routing table. Register
// plugins, then call Start.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Service{
		table:   NewTable(),
		store:   cfg.Store,
		plugins: make(map[string]Plugin),
		timeout: timeout,
		jobs:    make(chan *job, workers),
		quit:    make(chan struct{}),
		logger:  log.WithComponent("router"),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// RegisterPlugin binds a URI scheme to a forwarding plugin. "http" also
// serves poa entries without a scheme.
func (s *Service) RegisterPlugin(scheme string, plugin Plugin) {
	s.plugins[scheme] = plugin
}

// Table exposes the routing table, used by tests and the rebuild path.
func (s *Service) Table() *Table {
	return s.table
}

// Stop shuts the worker pool down and answers every still-queued forward
// with TARGET_NOT_REACHABLE, so no caller is left blocked on its result.
// Forwards submitted after Stop fail the same way. Safe to call twice.
func (s *Service) Stop() {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return
	}
	s.stopped = true
	s.stopMu.Unlock()

	close(s.quit)
	s.wg.Wait()

	for {
		select {
		case j := <-s.jobs:
			j.result <- s.stoppedResponse(j.req)
		default:
			return
		}
	}
}

func (s *Service) stoppedResponse(req *primitives.Request) *primitives.Response {
	resp := primitives.NewResponse(req)
	resp.SetRSC(string(onem2m.StatusTargetNotReachable), "router stopped")
	return resp
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case j := <-s.jobs:
			j.result <- s.forward(j.req, j.cseID)
		}
	}
}

// Forward routes a request to the CSE identified by targetCseID and blocks
// until a response is available. Never returns nil.
func (s *Service) Forward(req *primitives.Request, targetCseID string) *primitives.Response {
	return <-s.ForwardAsync(req, targetCseID)
}

// ForwardAsync routes a request on the worker pool and returns the channel
// the response will be delivered on.
func (s *Service) ForwardAsync(req *primitives.Request, targetCseID string) <-chan *primitives.Response {
	result := make(chan *primitives.Response, 1)

	// Enqueued under the read lock: Stop cannot drain the queue between
	// the stopped check and the send, so the job is always answered.
	s.stopMu.RLock()
	defer s.stopMu.RUnlock()
	if s.stopped {
		result <- s.stoppedResponse(req)
		return result
	}
	s.jobs <- &job{req: req, cseID: targetCseID, result: result}
	return result
}

// forward resolves the next hop and attempts delivery. An MN-CSE that cannot
// reach the target directly retries once through its registrar.
func (s *Service) forward(req *primitives.Request, targetCseID string) (resp *primitives.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).
				Str("target", targetCseID).Msg("panic while forwarding")
			resp = primitives.NewResponse(req)
			resp.SetRSC(string(onem2m.StatusInternalServerError), "forwarding failed")
			metrics.ForwardsTotal.WithLabelValues("panic").Inc()
		}
	}()

	if req.Attr(primitives.RequestIdentifier) == "" {
		resp = primitives.NewResponse(req)
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"REQUEST_IDENTIFIER(rqi) not specified")
		return resp
	}

	remote, base := s.table.FindFirstRemoteCse(targetCseID)
	if remote == nil {
		resp = primitives.NewResponse(req)
		resp.SetRSC(string(onem2m.StatusNotFound),
			"no route to CSE: "+targetCseID)
		metrics.ForwardsTotal.WithLabelValues("no_route").Inc()
		return resp
	}

	if resp = s.attempt(req, remote); resp != nil {
		metrics.ForwardsTotal.WithLabelValues("delivered").Inc()
		return resp
	}

	// An MN-CSE falls back to its registrar once, unless the registrar is
	// the remote that already failed.
	if base.CseType == string(onem2m.CseTypeMN) && base.RegistrarCseID != "" &&
		base.RegistrarCseID != remote.CseID {
		if registrar := s.table.RemoteCse(base.Name, base.RegistrarCseID); registrar != nil {
			s.logger.Info().
				Str("target", targetCseID).
				Str("registrar", base.RegistrarCseID).
				Msg("retrying forward via registrar")
			metrics.RegistrarFallbacks.Inc()
			if resp = s.attempt(req, registrar); resp != nil {
				metrics.ForwardsTotal.WithLabelValues("delivered").Inc()
				return resp
			}
		}
	}

	resp = primitives.NewResponse(req)
	resp.SetRSC(string(onem2m.StatusTargetNotReachable),
		"RemoteCSE unreachable: "+targetCseID)
	metrics.ForwardsTotal.WithLabelValues("unreachable").Inc()
	return resp
}

// attempt tries every point of access of one remote in order. Returns nil
// when none accepted the request, so the caller can try a fallback hop.
func (s *Service) attempt(req *primitives.Request, remote *RemoteCse) *primitives.Response {
	if !remote.RequestReachable {
		if remote.PollingChannel != "" {
			resp := primitives.NewResponse(req)
			resp.SetRSC(string(onem2m.StatusNotImplemented),
				"polling channels not supported")
			return resp
		}
		// Not reachable and no polling channel: let the caller try a
		// fallback hop.
		return nil
	}

	for _, poa := range remote.PointOfAccess {
		plugin := s.pluginFor(poa)
		if plugin == nil {
			s.logger.Warn().Str("poa", poa).Str("cse_id", remote.CseID).
				Msg("no plugin for point of access scheme")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		resp, err := plugin.Send(ctx, req, poa)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("poa", poa).
				Str("cse_id", remote.CseID).Msg("point of access unreachable")
			continue
		}

		switch onem2m.StatusCode(resp.RSC()) {
		case onem2m.StatusTargetNotReachable, onem2m.StatusAccessDenied:
			// The hop answered but could not serve; try the next one.
			continue
		}
		return resp
	}
	return nil
}

// pluginFor resolves the plugin for a point-of-access URL. Entries without a
// scheme default to http.
func (s *Service) pluginFor(poa string) Plugin {
	scheme := "http"
	if u, err := url.Parse(poa); err == nil && u.Scheme != "" {
		scheme = strings.ToLower(u.Scheme)
	}
	return s.plugins[scheme]
}

// SyncCseBase keeps the routing table in step with CSE provisioning.
func (s *Service) SyncCseBase(op onem2m.Operation, cse *tree.Cse) {
	switch op {
	case onem2m.OperationCreate, onem2m.OperationUpdate:
		base := &CseBase{
			Name:       cse.Name,
			ResourceID: cse.ResourceID,
			CseID:      cse.CseID,
			CseType:    cse.CseType,
		}
		if err := s.table.AddCseBase(base); err != nil {
			s.logger.Error().Err(err).Str("cse", cse.Name).
				Msg("cannot add cseBase routing data")
		}
	case onem2m.OperationDelete:
		s.table.DeleteCseBase(cse.Name)
	}
}

// SyncRemoteCse keeps the routing table in step with remoteCSE resource
// mutations under the named CSE base.
func (s *Service) SyncRemoteCse(op onem2m.Operation, baseCseName string, res *tree.Resource) {
	switch op {
	case onem2m.OperationCreate, onem2m.OperationUpdate:
		base := s.table.CseBaseByName(baseCseName)
		if base == nil {
			s.logger.Error().Str("cse", baseCseName).
				Msg("remoteCse references unprovisioned cseBase")
			return
		}
		remote := &RemoteCse{
			ParentBaseName:   base.Name,
			ParentBaseCseID:  base.CseID,
			Name:             res.Name,
			ResourceID:       res.ID,
			CseID:            res.Attr(onem2m.AttrCseID),
			CseType:          res.Attr(onem2m.AttrCseType),
			RequestReachable: res.Attr(onem2m.AttrRequestReachability) == "true",
			PointOfAccess:    res.AttrSet(onem2m.AttrPointOfAccess),
		}
		if err := s.table.AddRemoteCse(remote); err != nil {
			s.logger.Error().Err(err).Str("cse_id", remote.CseID).
				Msg("cannot add remoteCse routing data")
		}
	case onem2m.OperationDelete:
		s.table.DeleteRemoteCse(baseCseName, res.Attr(onem2m.AttrCseID))
	}
}

// Rebuild reloads the routing table from the store: every provisioned CSE
// base plus the remoteCSE resources directly under each root. Malformed
// records are logged and skipped so one bad resource cannot block startup.
func (s *Service) Rebuild() error {
	cses, err := s.store.ListCses()
	if err != nil {
		return err
	}
	for _, cse := range cses {
		s.SyncCseBase(onem2m.OperationCreate, cse)

		root, err := s.store.RetrieveResource(cse.ResourceID)
		if err != nil {
			s.logger.Warn().Err(err).Str("cse", cse.Name).
				Msg("cannot load cse root, skipping remoteCse rebuild")
			continue
		}
		for _, child := range root.Children {
			res, err := s.store.RetrieveResource(child.ResourceID)
			if err != nil || res.Type != string(onem2m.ResourceTypeRemoteCse) {
				continue
			}
			s.SyncRemoteCse(onem2m.OperationCreate, cse.Name, res)
		}
	}
	s.logger.Info().Int("cses", len(cses)).Msg("routing table rebuilt")
	return nil
}
