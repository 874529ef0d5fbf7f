package resource

import (
	"encoding/json"
	"strconv"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/tree"
)

// numericAttrs are counters and sizes rendered as JSON numbers instead of
// their stored string form.
var numericAttrs = map[string]bool{
	onem2m.AttrStateTag:        true,
	onem2m.AttrCurrNrInstances: true,
	onem2m.AttrCurrByteSize:    true,
	onem2m.AttrContentSize:     true,
	onem2m.AttrMaxNrInstances:  true,
	onem2m.AttrMaxByteSize:     true,
	onem2m.AttrMaxInstanceAge:  true,
}

// boolAttrs are flags rendered as JSON booleans.
var boolAttrs = map[string]bool{
	onem2m.AttrRequestReachability: true,
	onem2m.AttrDisableRetrieval:    true,
}

// jsonAttrs hold canonical JSON stored as a string (the acp privilege
// blocks) and are re-embedded as objects on output.
var jsonAttrs = map[string]bool{
	onem2m.AttrPrivileges:     true,
	onem2m.AttrSelfPrivileges: true,
}

// ProduceJSON renders a stored resource's attributes for a response body.
// The resource type is included as a number; system identity fields (ri, rn,
// pi) are left to the result-content formatter, which owns addressing.
func ProduceJSON(res *tree.Resource) map[string]any {
	out := make(map[string]any)

	if ty, err := strconv.Atoi(res.Type); err == nil {
		out[onem2m.AttrResourceType] = ty
	}

	for name, value := range res.Attrs {
		out[name] = renderAttr(name, value)
	}
	for name, members := range res.AttrSets {
		out[name] = members
	}

	if res.Type == string(onem2m.ResourceTypeContainer) &&
		res.LatestID != onem2m.NullResourceID {
		out[onem2m.AttrLatest] = res.LatestID
		out[onem2m.AttrOldest] = res.OldestID
	}

	return out
}

func renderAttr(name, value string) any {
	switch {
	case numericAttrs[name]:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	case boolAttrs[name]:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	case jsonAttrs[name]:
		var obj any
		if err := json.Unmarshal([]byte(value), &obj); err == nil {
			return obj
		}
	}
	return value
}
