package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseEchoesRequestIdentifier(t *testing.T) {
	req := NewRequest()
	req.SetAttr(RequestIdentifier, "rqi-42")

	resp := NewResponse(req)
	assert.Equal(t, "rqi-42", resp.Attr(RequestIdentifier))

	// No identifier on the request, none on the response.
	assert.False(t, NewResponse(NewRequest()).HasAttr(RequestIdentifier))
	assert.False(t, NewResponse(nil).HasAttr(RequestIdentifier))
}

func TestSetRSC(t *testing.T) {
	resp := NewResponse(nil)
	resp.SetRSC("4004", "resource not found")
	assert.Equal(t, "4004", resp.RSC())
	assert.Equal(t, "resource not found", resp.Attr(Content))
}

func TestAttrAccessors(t *testing.T) {
	req := NewRequest()
	assert.False(t, req.HasAttr(Operation))
	assert.Empty(t, req.Attr(Operation))

	req.SetAttr(Operation, "2")
	assert.True(t, req.HasAttr(Operation))
	assert.Equal(t, "2", req.Attr(Operation))

	req.DeleteAttr(Operation)
	assert.False(t, req.HasAttr(Operation))
}

func TestManyValuedAttrs(t *testing.T) {
	req := NewRequest()
	req.AddMany(FilterCriteriaLabels, "red")
	req.AddMany(FilterCriteriaLabels, "blue")
	assert.Equal(t, []string{"red", "blue"}, req.Many(FilterCriteriaLabels))
	assert.Empty(t, req.Many(FilterCriteriaResourceType))
	assert.ElementsMatch(t, []string{FilterCriteriaLabels}, req.ManyNames())
}

func TestMapMergeRoundTrip(t *testing.T) {
	req := NewRequest()
	req.SetAttr(Operation, "1")
	req.SetAttr(To, "/cse1")
	req.AddMany(FilterCriteriaLabels, "red")

	wire := req.Map()
	assert.Equal(t, "1", wire[Operation])
	assert.Equal(t, []string{"red"}, wire[FilterCriteriaLabels])

	other := NewRequest()
	other.Merge(wire)
	assert.Equal(t, "/cse1", other.Attr(To))
	assert.Equal(t, []string{"red"}, other.Many(FilterCriteriaLabels))
}

func TestMergeFromDecodedJSON(t *testing.T) {
	// json.Unmarshal into map[string]any yields []any for arrays and
	// float64 for numbers; only strings and string arrays are taken.
	req := NewRequest()
	req.Merge(map[string]any{
		Operation:            "2",
		FilterCriteriaLabels: []any{"red", 7, "blue"},
		"count":              float64(3),
	})
	assert.Equal(t, "2", req.Attr(Operation))
	assert.Equal(t, []string{"red", "blue"}, req.Many(FilterCriteriaLabels))
	assert.False(t, req.HasAttr("count"))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, Operation, ShortName("operation"))
	assert.Equal(t, RequestIdentifier, ShortName("requestIdentifier"))
	assert.Equal(t, FilterCriteriaLabels, ShortName("label"))
	// Short names and unknown names pass through.
	assert.Equal(t, "op", ShortName("op"))
	assert.Equal(t, "bogus", ShortName("bogus"))
}

func TestKnownRequestAttribute(t *testing.T) {
	for _, name := range []string{Operation, To, From, RequestIdentifier,
		ResultContent, FilterCriteriaLimit, Protocol} {
		assert.True(t, KnownRequestAttribute(name), name)
	}
	assert.False(t, KnownRequestAttribute("bogus"))
	assert.False(t, KnownRequestAttribute("rsc"), "response keys are not request keys")
}

func TestNotificationPrimitive(t *testing.T) {
	notif := NewNotification()
	notif.AddMany(NotificationURI, "http://a:1/n")
	notif.AddMany(NotificationURI, "coap://b:5683/n")
	notif.SetAttr(NotificationContent, `{"m2m:sgn":{}}`)

	require.Len(t, notif.Many(NotificationURI), 2)
	assert.Equal(t, `{"m2m:sgn":{}}`, notif.Attr(NotificationContent))
}
