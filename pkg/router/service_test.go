package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/tree"
)

func remoteCseResource(id, cseID string, poa []string) *tree.Resource {
	res := &tree.Resource{
		ID:   id,
		Name: cseID,
		Type: string(onem2m.ResourceTypeRemoteCse),
	}
	res.SetAttr(onem2m.AttrCseID, cseID)
	res.SetAttr(onem2m.AttrCseType, string(onem2m.CseTypeMN))
	res.SetAttr(onem2m.AttrRequestReachability, "true")
	res.SetAttrSet(onem2m.AttrPointOfAccess, poa)
	return res
}

// fakePlugin answers per endpoint: a canned status code, a transport error,
// or a panic. Every call is recorded.
type fakePlugin struct {
	calls    []string
	statuses map[string]onem2m.StatusCode
	errs     map[string]error
	panics   map[string]bool
}

func newFakePlugin() *fakePlugin {
	return &fakePlugin{
		statuses: make(map[string]onem2m.StatusCode),
		errs:     make(map[string]error),
		panics:   make(map[string]bool),
	}
}

func (p *fakePlugin) Send(ctx context.Context, req *primitives.Request, endpoint string) (*primitives.Response, error) {
	p.calls = append(p.calls, endpoint)
	if p.panics[endpoint] {
		panic("plugin blew up")
	}
	if err := p.errs[endpoint]; err != nil {
		return nil, err
	}
	resp := primitives.NewResponse(req)
	status, ok := p.statuses[endpoint]
	if !ok {
		status = onem2m.StatusOK
	}
	resp.SetRSC(string(status), "")
	return resp, nil
}

func newTestService(t *testing.T, plugin Plugin) *Service {
	t.Helper()
	svc := NewService(ServiceConfig{Workers: 2})
	svc.RegisterPlugin("http", plugin)
	t.Cleanup(svc.Stop)
	return svc
}

func forwardRequest() *primitives.Request {
	req := primitives.NewRequest()
	req.SetAttr(primitives.RequestIdentifier, "rqi-fwd")
	req.SetAttr(primitives.Operation, string(onem2m.OperationRetrieve))
	req.SetAttr(primitives.To, "/far/AE1")
	return req
}

func addBase(t *testing.T, svc *Service, name, cseID string, cseType onem2m.CseType) {
	t.Helper()
	require.NoError(t, svc.Table().AddCseBase(&CseBase{
		Name:       name,
		ResourceID: "10001",
		CseID:      cseID,
		CseType:    string(cseType),
	}))
}

func addRemote(t *testing.T, svc *Service, remote *RemoteCse) {
	t.Helper()
	require.NoError(t, svc.Table().AddRemoteCse(remote))
}

func TestForwardRequiresRequestIdentifier(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	req := forwardRequest()
	req.DeleteAttr(primitives.RequestIdentifier)
	resp := svc.Forward(req, "/far")
	assert.Equal(t, string(onem2m.StatusBadRequest), resp.RSC())
}

func TestForwardNoRoute(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	resp := svc.Forward(forwardRequest(), "/ghost")
	assert.Equal(t, string(onem2m.StatusNotFound), resp.RSC())
	assert.Equal(t, "rqi-fwd", resp.Attr(primitives.RequestIdentifier))
}

func TestForwardPollingChannelNotSupported(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: false, PollingChannel: "pch1",
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusNotImplemented), resp.RSC())
}

func TestForwardUnreachableWithoutPoA(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusTargetNotReachable), resp.RSC())
}

func TestForwardTriesPointsOfAccessInOrder(t *testing.T) {
	plugin := newFakePlugin()
	plugin.errs["http://dead:8282"] = errors.New("connection refused")
	svc := newTestService(t, plugin)

	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"http://dead:8282", "http://alive:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, []string{"http://dead:8282", "http://alive:8282"}, plugin.calls)
}

func TestForwardSkipsUnknownScheme(t *testing.T) {
	plugin := newFakePlugin()
	svc := newTestService(t, plugin)

	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"gopher://old:70", "http://alive:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, []string{"http://alive:8282"}, plugin.calls)
}

func TestForwardRegistrarFallback(t *testing.T) {
	plugin := newFakePlugin()
	plugin.errs["http://far:8282"] = errors.New("no route to host")
	svc := newTestService(t, plugin)

	addBase(t, svc, "mn1", "/mn-1", onem2m.CseTypeMN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "mn1", ParentBaseCseID: "/mn-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"http://far:8282"},
	})
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "mn1", ParentBaseCseID: "/mn-1",
		ResourceID: "20002", CseID: "/in-1",
		CseType:          string(onem2m.CseTypeIN),
		RequestReachable: true,
		PointOfAccess:    []string{"http://registrar:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, []string{"http://far:8282", "http://registrar:8282"}, plugin.calls,
		"exactly one retry, via the registrar")
}

func TestForwardRegistrarNotRetriedForItself(t *testing.T) {
	plugin := newFakePlugin()
	plugin.errs["http://registrar:8282"] = errors.New("no route to host")
	svc := newTestService(t, plugin)

	addBase(t, svc, "mn1", "/mn-1", onem2m.CseTypeMN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "mn1", ParentBaseCseID: "/mn-1",
		ResourceID: "20002", CseID: "/in-1",
		CseType:          string(onem2m.CseTypeIN),
		RequestReachable: true,
		PointOfAccess:    []string{"http://registrar:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/in-1")
	assert.Equal(t, string(onem2m.StatusTargetNotReachable), resp.RSC())
	assert.Len(t, plugin.calls, 1, "the failed registrar is not retried against itself")
}

func TestForwardPanicRecovery(t *testing.T) {
	plugin := newFakePlugin()
	plugin.panics["http://boom:8282"] = true
	svc := newTestService(t, plugin)

	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"http://boom:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusInternalServerError), resp.RSC())

	// The worker survives for the next forward.
	resp = svc.Forward(forwardRequest(), "/ghost")
	assert.Equal(t, string(onem2m.StatusNotFound), resp.RSC())
}

func TestForwardContinuesPastTargetNotReachableAnswer(t *testing.T) {
	plugin := newFakePlugin()
	plugin.statuses["http://busy:8282"] = onem2m.StatusTargetNotReachable
	svc := newTestService(t, plugin)

	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"http://busy:8282", "http://alive:8282"},
	})

	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Len(t, plugin.calls, 2)
}

// blockingPlugin holds every Send until released, to pin a worker down.
type blockingPlugin struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingPlugin) Send(ctx context.Context, req *primitives.Request, endpoint string) (*primitives.Response, error) {
	p.once.Do(func() { close(p.started) })
	<-p.release
	resp := primitives.NewResponse(req)
	resp.SetRSC(string(onem2m.StatusOK), "")
	return resp, nil
}

func TestStopAnswersQueuedForwards(t *testing.T) {
	plugin := &blockingPlugin{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(ServiceConfig{Workers: 1})
	svc.RegisterPlugin("http", plugin)
	t.Cleanup(svc.Stop)
	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)
	addRemote(t, svc, &RemoteCse{
		ParentBaseName: "cse1", ParentBaseCseID: "/in-1",
		ResourceID: "20001", CseID: "/far",
		RequestReachable: true,
		PointOfAccess:    []string{"http://slow:8282"},
	})

	// The single worker is pinned on the first forward; the second sits in
	// the queue when Stop runs.
	first := svc.ForwardAsync(forwardRequest(), "/far")
	<-plugin.started
	second := svc.ForwardAsync(forwardRequest(), "/far")

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()
	close(plugin.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, string(onem2m.StatusOK), (<-first).RSC())
	select {
	case resp := <-second:
		require.NotNil(t, resp, "queued forward must be answered")
	case <-time.After(2 * time.Second):
		t.Fatal("queued forward was never answered")
	}
}

func TestForwardAfterStopFails(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	svc.Stop()
	resp := svc.Forward(forwardRequest(), "/far")
	assert.Equal(t, string(onem2m.StatusTargetNotReachable), resp.RSC())
}

func TestSyncRemoteCse(t *testing.T) {
	svc := newTestService(t, newFakePlugin())
	addBase(t, svc, "cse1", "/in-1", onem2m.CseTypeIN)

	res := remoteCseResource("30001", "/far", []string{"http://far:8282"})
	svc.SyncRemoteCse(onem2m.OperationCreate, "cse1", res)

	remote, _ := svc.Table().FindFirstRemoteCse("/far")
	require.NotNil(t, remote)
	assert.True(t, remote.RequestReachable)
	assert.Equal(t, []string{"http://far:8282"}, remote.PointOfAccess)

	svc.SyncRemoteCse(onem2m.OperationDelete, "cse1", res)
	remote, _ = svc.Table().FindFirstRemoteCse("/far")
	assert.Nil(t, remote)
}
