package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/lock"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/rest"
	"github.com/cuemby/onem2m/pkg/tree"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := tree.NewBoltTree(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	processor := rest.NewProcessor(rest.Config{
		Store:  store,
		Locker: lock.NewLocker(),
		Broker: broker,
	})
	resp := processor.ProvisionCse("cse1", "/in-cse-1", onem2m.CseTypeIN)
	require.Equal(t, string(onem2m.StatusOK), resp.RSC())

	return NewServer(processor, NewHealth(store, "test"))
}

func do(t *testing.T, server *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateRetrieveDeleteOverHTTP(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/cse1",
		strings.NewReader(`{"m2m:ae":{"rn":"AE1","api":"app1"}}`))
	req.Header.Set("Content-Type", "application/json;ty=2")
	req.Header.Set(HeaderOrigin, "/admin")
	req.Header.Set(HeaderRequestIdentifier, "rqi-http-1")
	rec := do(t, server, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2001", rec.Header().Get(HeaderStatusCode))
	assert.Equal(t, "rqi-http-1", rec.Header().Get(HeaderRequestIdentifier))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "m2m:ae")

	req = httptest.NewRequest(http.MethodGet, "/cse1/AE1", nil)
	req.Header.Set(HeaderOrigin, "/admin")
	rec = do(t, server, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2000", rec.Header().Get(HeaderStatusCode))

	req = httptest.NewRequest(http.MethodDelete, "/cse1/AE1", nil)
	req.Header.Set(HeaderOrigin, "/admin")
	rec = do(t, server, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2002", rec.Header().Get(HeaderStatusCode))

	req = httptest.NewRequest(http.MethodGet, "/cse1/AE1", nil)
	req.Header.Set(HeaderOrigin, "/admin")
	rec = do(t, server, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "4004", rec.Header().Get(HeaderStatusCode))
}

func TestResourceTypeFromQueryParameter(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/cse1?ty=3",
		strings.NewReader(`{"m2m:cnt":{"rn":"cont"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrigin, "/admin")
	rec := do(t, server, req)
	assert.Equal(t, "2001", rec.Header().Get(HeaderStatusCode))
}

func TestCreateWithoutResourceTypeRejected(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/cse1",
		strings.NewReader(`{"m2m:ae":{"api":"app1"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrigin, "/admin")
	rec := do(t, server, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "4000", rec.Header().Get(HeaderStatusCode))
}

func TestQueryParametersBind(t *testing.T) {
	server := newTestServer(t)

	// rcn=0 strips the response body.
	req := httptest.NewRequest(http.MethodGet, "/cse1?rcn=0", nil)
	req.Header.Set(HeaderOrigin, "/admin")
	rec := do(t, server, req)
	assert.Equal(t, "2000", rec.Header().Get(HeaderStatusCode))
	assert.JSONEq(t, `{}`, rec.Body.String())

	// An unparseable filter value is refused by validation.
	req = httptest.NewRequest(http.MethodGet, "/cse1?lim=abc", nil)
	req.Header.Set(HeaderOrigin, "/admin")
	rec = do(t, server, req)
	assert.Equal(t, "4000", rec.Header().Get(HeaderStatusCode))
}

func TestMissingOriginHeaderGetsDefault(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/cse1", nil)
	rec := do(t, server, req)
	// The default originator passes validation and the request succeeds.
	assert.Equal(t, "2000", rec.Header().Get(HeaderStatusCode))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestIdentifier),
		"a request identifier is generated when the client sends none")
}

func TestUnsupportedMethod(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPatch, "/cse1", nil)
	rec := do(t, server, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)

	rec = do(t, server, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var ready ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["storage"])

	rec = do(t, server, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReadyWithoutProvisionedCse(t *testing.T) {
	store, err := tree.NewBoltTree(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	processor := rest.NewProcessor(rest.Config{
		Store:  store,
		Locker: lock.NewLocker(),
		Broker: broker,
	})
	server := NewServer(processor, NewHealth(store, "test"))

	rec := do(t, server, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var ready ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "not ready", ready.Status)
	assert.Equal(t, "No CSE provisioned", ready.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := do(t, server, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onem2m_")
}
