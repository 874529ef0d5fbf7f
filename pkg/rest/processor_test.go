package rest

import (
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/lock"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/tree"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

type fixture struct {
	processor *Processor
	store     tree.Store
	broker    *events.Broker
}

func newFixture(t *testing.T, router Router) *fixture {
	t.Helper()
	store, err := tree.NewBoltTree(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	processor := NewProcessor(Config{
		Store:  store,
		Locker: lock.NewLocker(),
		Broker: broker,
		Router: router,
	})
	resp := processor.ProvisionCse("cse1", "/in-cse-1", onem2m.CseTypeIN)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())

	return &fixture{processor: processor, store: store, broker: broker}
}

func newRequest(op onem2m.Operation, to string) *primitives.Request {
	req := primitives.NewRequest()
	req.SetAttr(primitives.Protocol, string(onem2m.ProtocolHTTP))
	req.SetAttr(primitives.ContentFormat, string(onem2m.ContentFormatJSON))
	req.SetAttr(primitives.RequestIdentifier, "rqi-1")
	req.SetAttr(primitives.Operation, string(op))
	req.SetAttr(primitives.To, to)
	req.SetAttr(primitives.From, "/admin")
	return req
}

func createRequest(to string, rt onem2m.ResourceType, pc string) *primitives.Request {
	req := newRequest(onem2m.OperationCreate, to)
	req.SetAttr(primitives.ResourceType, string(rt))
	req.SetAttr(primitives.Content, pc)
	return req
}

func body(t *testing.T, resp *primitives.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Attr(primitives.Content)), &out))
	return out
}

func TestMissingRequestIdentifier(t *testing.T) {
	f := newFixture(t, nil)
	req := newRequest(onem2m.OperationRetrieve, "/cse1")
	req.DeleteAttr(primitives.RequestIdentifier)

	resp := f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusBadRequest), resp.RSC())
}

func TestCreateRetrieveDeleteAE(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE,
		`{"m2m:ae":{"rn":"AE1","api":"app1"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())
	assert.Equal(t, "rqi-1", resp.Attr(primitives.RequestIdentifier))

	ae := body(t, resp)["m2m:ae"].(map[string]any)
	assert.Equal(t, "AE1", ae["rn"])
	assert.Equal(t, float64(2), ae["ty"])
	assert.NotEmpty(t, ae["aei"], "AE-ID is CSE-assigned on create")
	assert.NotEmpty(t, ae["ct"])

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/AE1"))
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	got := body(t, resp)["m2m:ae"].(map[string]any)
	assert.Equal(t, "app1", got["api"])

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationDelete, "/cse1/AE1"))
	require.Equal(t, string(onem2m.StatusDeleted), resp.RSC())

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/AE1"))
	assert.Equal(t, string(onem2m.StatusNotFound), resp.RSC())
}

func TestCreateNameCollision(t *testing.T) {
	f := newFixture(t, nil)

	pc := `{"m2m:ae":{"rn":"AE1","api":"app1"}}`
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE, pc))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	resp = f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE, pc))
	assert.Equal(t, string(onem2m.StatusConflict), resp.RSC())
}

func TestCreateCseBaseRejected(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeCseBase,
		`{"m2m:cb":{"rn":"cse2"}}`))
	assert.Equal(t, string(onem2m.StatusBadRequest), resp.RSC())
}

func TestDeleteCseBaseRejected(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(newRequest(onem2m.OperationDelete, "/cse1"))
	assert.Equal(t, string(onem2m.StatusOperationNotAllowed), resp.RSC())
}

func TestUpdateInvalidResultContentCommitsNothing(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont1"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationUpdate, "/cse1/cont1")
	req.SetAttr(primitives.Content, `{"m2m:cnt":{"mni":42}}`)
	req.SetAttr(primitives.ResultContent, "9")
	resp = f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusContentsUnacceptable), resp.RSC())

	res, err := f.store.FindResourceUsingURI("/cse1/cont1")
	require.NoError(t, err)
	assert.Empty(t, res.Attr(onem2m.AttrMaxNrInstances),
		"a rejected update must not persist its attributes")
}

func TestDeleteInvalidResultContentCommitsNothing(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE,
		`{"m2m:ae":{"rn":"AE1","api":"app1"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationDelete, "/cse1/AE1")
	req.SetAttr(primitives.ResultContent, "9")
	resp = f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusContentsUnacceptable), resp.RSC())

	_, err := f.store.FindResourceUsingURI("/cse1/AE1")
	assert.NoError(t, err, "a rejected delete must not remove the resource")
}

func TestUpdateContentInstanceRejected(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())
	resp = f.processor.HandleRequest(createRequest("/cse1/cont", onem2m.ResourceTypeContentInstance,
		`{"m2m:cin":{"con":"22.5"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationUpdate, "/cse1/cont/latest")
	req.SetAttr(primitives.Content, `{"m2m:cin":{"con":"23"}}`)
	resp = f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusOperationNotAllowed), resp.RSC())
}

func TestUpdateContainer(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationUpdate, "/cse1/cont")
	req.SetAttr(primitives.Content, `{"m2m:cnt":{"mni":100}}`)
	resp = f.processor.HandleRequest(req)
	require.Equal(t, string(onem2m.StatusChanged), resp.RSC())

	got := body(t, resp)["m2m:cnt"].(map[string]any)
	assert.Equal(t, float64(100), got["mni"])
}

func TestUpdateWithoutContent(t *testing.T) {
	f := newFixture(t, nil)
	req := newRequest(onem2m.OperationUpdate, "/cse1")
	resp := f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusInsufficientArguments), resp.RSC())
}

func TestDeleteWithContentRejected(t *testing.T) {
	f := newFixture(t, nil)
	req := newRequest(onem2m.OperationDelete, "/cse1")
	req.SetAttr(primitives.Content, `{}`)
	resp := f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusInvalidArguments), resp.RSC())
}

func TestDeleteMissingResource(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(newRequest(onem2m.OperationDelete, "/cse1/ghost"))
	assert.Equal(t, string(onem2m.StatusNotFound), resp.RSC())
}

func TestRetrieveResultContentNothing(t *testing.T) {
	f := newFixture(t, nil)
	req := newRequest(onem2m.OperationRetrieve, "/cse1")
	req.SetAttr(primitives.ResultContent, string(onem2m.ResultContentNothing))
	resp := f.processor.HandleRequest(req)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, "{}", resp.Attr(primitives.Content))
}

func TestRetrieveChildRefs(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE,
		`{"m2m:ae":{"rn":"AE1","api":"app1"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationRetrieve, "/cse1")
	req.SetAttr(primitives.ResultContent, string(onem2m.ResultContentChildResourceRefs))
	resp = f.processor.HandleRequest(req)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())

	refs := body(t, resp)["ch"].([]any)
	require.Len(t, refs, 1)
	ref := refs[0].(map[string]any)
	assert.Equal(t, "/cse1/AE1", ref["val"])
	assert.Equal(t, "AE1", ref["nm"])
	assert.Equal(t, float64(2), ref["typ"])
}

func TestContentInstanceSequence(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	for _, con := range []string{"first", "second", "third"} {
		resp = f.processor.HandleRequest(createRequest("/cse1/cont",
			onem2m.ResourceTypeContentInstance, `{"m2m:cin":{"con":"`+con+`"}}`))
		require.Equal(t, string(onem2m.StatusCreated), resp.RSC())
	}

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/cont/latest"))
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, "third", body(t, resp)["m2m:cin"].(map[string]any)["con"])

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/cont/oldest"))
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, "first", body(t, resp)["m2m:cin"].(map[string]any)["con"])

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/cont"))
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	cnt := body(t, resp)["m2m:cnt"].(map[string]any)
	assert.Equal(t, float64(3), cnt["cni"])
	assert.Equal(t, float64(16), cnt["cbs"])
}

func TestDiscovery(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAE,
		`{"m2m:ae":{"rn":"AE1","api":"app1"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	req := newRequest(onem2m.OperationRetrieve, "/cse1")
	req.SetAttr(primitives.FilterCriteriaFilterUsage, string(onem2m.FilterUsageDiscovery))
	resp = f.processor.HandleRequest(req)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())

	var items []any
	require.NoError(t, json.Unmarshal([]byte(resp.Attr(primitives.Content)), &items))
	assert.Len(t, items, 2) // root plus the AE
}

func TestAccessControl(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeAccessControlPolicy,
		`{"m2m:acp":{"rn":"acp1","pv":{"acr":[{"acor":["/admin"],"acop":63}]}}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	acp, err := f.store.FindResourceUsingURI("/cse1/acp1")
	require.NoError(t, err)

	resp = f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont","acpi":["`+acp.ID+`"]}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	// The policy names /admin only; another originator is refused.
	req := newRequest(onem2m.OperationRetrieve, "/cse1/cont")
	req.SetAttr(primitives.From, "/intruder")
	resp = f.processor.HandleRequest(req)
	assert.Equal(t, string(onem2m.StatusContentsUnacceptable), resp.RSC())

	resp = f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1/cont"))
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
}

func TestNotifyNotImplemented(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.processor.HandleRequest(newRequest(onem2m.OperationNotify, "/cse1"))
	assert.Equal(t, string(onem2m.StatusNotImplemented), resp.RSC())
}

func TestProvisionCse(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.processor.ProvisionCse("cse2", "/mn-cse-2", onem2m.CseTypeMN)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, "cse2", body(t, resp)["rn"])

	resp = f.processor.ProvisionCse("cse2", "/mn-cse-2", onem2m.CseTypeMN)
	assert.Equal(t, string(onem2m.StatusAlreadyExists), resp.RSC())

	resp = f.processor.ProvisionCse("", "", "")
	assert.Equal(t, string(onem2m.StatusInsufficientArguments), resp.RSC())
}

type fakeRouter struct {
	forwarded []string
	resp      *primitives.Response
}

func (r *fakeRouter) Forward(req *primitives.Request, targetCseID string) *primitives.Response {
	r.forwarded = append(r.forwarded, targetCseID)
	return r.resp
}
func (r *fakeRouter) SyncCseBase(op onem2m.Operation, cse *tree.Cse) {}
func (r *fakeRouter) SyncRemoteCse(op onem2m.Operation, baseCseName string, res *tree.Resource) {}

func TestForwardToRemoteCse(t *testing.T) {
	remote := primitives.NewResponse(nil)
	remote.SetRSC(string(onem2m.StatusOK), "")
	router := &fakeRouter{resp: remote}
	f := newFixture(t, router)

	resp := f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/otherCse/AE1"))
	assert.Equal(t, string(onem2m.StatusOK), resp.RSC())
	assert.Equal(t, []string{"otherCse"}, router.forwarded)

	// Local targets never touch the router.
	f.processor.HandleRequest(newRequest(onem2m.OperationRetrieve, "/cse1"))
	assert.Len(t, router.forwarded, 1)
}

func TestSubscriptionNotifications(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.broker.Subscribe()
	defer f.broker.Unsubscribe(sub)

	resp := f.processor.HandleRequest(createRequest("/cse1", onem2m.ResourceTypeContainer,
		`{"m2m:cnt":{"rn":"cont"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	resp = f.processor.HandleRequest(createRequest("/cse1/cont", onem2m.ResourceTypeSubscription,
		`{"m2m:sub":{"rn":"sub1","nu":["http://listener:9999/notify"],"su":"http://listener:9999/notify"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	// The subscription's own creation is in its scope too; drain that event.
	event := waitEvent(t, sub)
	assert.Equal(t, events.EventResourceChanged, event.Type)

	resp = f.processor.HandleRequest(createRequest("/cse1/cont",
		onem2m.ResourceTypeContentInstance, `{"m2m:cin":{"con":"21"}}`))
	require.Equal(t, string(onem2m.StatusCreated), resp.RSC())

	event = waitEvent(t, sub)
	assert.Equal(t, events.EventResourceChanged, event.Type)
	assert.Equal(t, []string{"http://listener:9999/notify"},
		event.Notification.Many(primitives.NotificationURI))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(
		[]byte(event.Notification.Attr(primitives.NotificationContent)), &payload))
	nev := payload["nev"].(map[string]any)
	assert.Equal(t, "21", nev["rep"].(map[string]any)["con"])

	// Deleting the subscription notifies its subscriber URI.
	resp = f.processor.HandleRequest(newRequest(onem2m.OperationDelete, "/cse1/cont/sub1"))
	require.Equal(t, string(onem2m.StatusDeleted), resp.RSC())

	event = waitEvent(t, sub)
	assert.Equal(t, events.EventSubscriptionDeleted, event.Type)
	require.NoError(t, json.Unmarshal(
		[]byte(event.Notification.Attr(primitives.NotificationContent)), &payload))
	assert.Equal(t, true, payload["sud"])
	assert.Equal(t, "/cse1/cont/sub1", payload["sur"])
}

func waitEvent(t *testing.T, sub events.Subscriber) *events.Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}
