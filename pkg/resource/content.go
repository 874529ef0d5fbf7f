package resource

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cuemby/onem2m/pkg/onem2m"
)

// ContentError is a protocol-level content failure: a status code for the
// response plus a diagnostic message. It is not a Go error; the processor
// copies it straight into the response primitive.
type ContentError struct {
	Status  onem2m.StatusCode
	Message string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func errContent(status onem2m.StatusCode, format string, args ...any) *ContentError {
	return &ContentError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Content is the parsed and validated payload of a CREATE or UPDATE request,
// reduced to the flat attribute form the tree stores.
type Content struct {
	Type     onem2m.ResourceType
	Name     string // rn supplied inside the content, if any
	Attrs    map[string]string
	AttrSets map[string][]string
}

// spec describes the attribute table of one resource type: which
// single-valued and multi-valued attributes a client may supply, and which
// are mandatory on create.
type spec struct {
	single   map[string]bool
	many     map[string]bool
	required []string
}

var commonSingle = []string{
	onem2m.AttrResourceName,
	onem2m.AttrExpirationTime,
}

var commonMany = []string{
	onem2m.AttrLabels,
	onem2m.AttrAccessControlPolicyIDs,
}

var specs = map[onem2m.ResourceType]spec{
	onem2m.ResourceTypeAE: {
		single: attrSet(onem2m.AttrAppName, onem2m.AttrAppID,
			onem2m.AttrOntologyRef, onem2m.AttrNodeLink,
			onem2m.AttrAEID),
		many:     attrSet(),
		required: []string{onem2m.AttrAppID},
	},
	onem2m.ResourceTypeContainer: {
		single: attrSet(onem2m.AttrCreator, onem2m.AttrMaxNrInstances,
			onem2m.AttrMaxByteSize, onem2m.AttrMaxInstanceAge,
			onem2m.AttrOntologyRef, onem2m.AttrDisableRetrieval),
		many: attrSet(),
	},
	onem2m.ResourceTypeContentInstance: {
		single: attrSet(onem2m.AttrContentInfo, onem2m.AttrContent,
			onem2m.AttrOntologyRef, onem2m.AttrCreator),
		many:     attrSet(),
		required: []string{onem2m.AttrContent},
	},
	onem2m.ResourceTypeSubscription: {
		single: attrSet(onem2m.AttrNotificationContentType,
			onem2m.AttrNotificationEventCat, onem2m.AttrSubscriberURI),
		many:     attrSet(onem2m.AttrNotificationURI),
		required: []string{onem2m.AttrNotificationURI},
	},
	onem2m.ResourceTypeCseBase: {
		single: attrSet(onem2m.AttrCseType, onem2m.AttrCseID,
			onem2m.AttrSupportedResourceTypes),
		many: attrSet(onem2m.AttrPointOfAccess),
	},
	onem2m.ResourceTypeRemoteCse: {
		single: attrSet(onem2m.AttrCseType, onem2m.AttrCseID,
			onem2m.AttrCseBase, onem2m.AttrRequestReachability,
			onem2m.AttrNodeLink, onem2m.AttrM2MExtID,
			onem2m.AttrTriggerRecipientID),
		many: attrSet(onem2m.AttrPointOfAccess, onem2m.AttrAnnounceTo,
			onem2m.AttrAnnouncedAttribute),
		required: []string{onem2m.AttrCseID, onem2m.AttrRequestReachability},
	},
	onem2m.ResourceTypeAccessControlPolicy: {
		single:   attrSet(onem2m.AttrPrivileges, onem2m.AttrSelfPrivileges),
		many:     attrSet(),
		required: []string{onem2m.AttrPrivileges},
	},
}

func attrSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// Supported reports whether CREATE of this resource type is implemented.
func Supported(rt onem2m.ResourceType) bool {
	_, ok := specs[rt]
	return ok
}

// ParseContent parses the request content payload for a resource type,
// validates it against the type's attribute table, and reduces it to flat
// attrs/attrSets. isUpdate relaxes the mandatory-attribute check: an update
// supplies only the attributes it changes.
func ParseContent(rt onem2m.ResourceType, payload string, isUpdate bool) (*Content, *ContentError) {
	sp, ok := specs[rt]
	if !ok {
		return nil, errContent(onem2m.StatusNotImplemented,
			"resource type %s not implemented", rt)
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &outer); err != nil {
		return nil, errContent(onem2m.StatusContentsUnacceptable,
			"CONTENT(pc) parser error (%v)", err)
	}

	inner, cerr := unwrap(rt, outer)
	if cerr != nil {
		return nil, cerr
	}

	content := &Content{
		Type:     rt,
		Attrs:    make(map[string]string),
		AttrSets: make(map[string][]string),
	}

	for key, raw := range inner {
		switch {
		case contains(commonSingle, key) || sp.single[key]:
			value, cerr := scalarString(key, raw)
			if cerr != nil {
				return nil, cerr
			}
			if key == onem2m.AttrResourceName {
				content.Name = value
			} else {
				content.Attrs[key] = value
			}
		case contains(commonMany, key) || sp.many[key]:
			members, cerr := memberStrings(key, raw)
			if cerr != nil {
				return nil, cerr
			}
			content.AttrSets[key] = members
		default:
			return nil, errContent(onem2m.StatusContentsUnacceptable,
				"CONTENT(pc) attribute not recognized: %s", key)
		}
	}

	if !isUpdate {
		for _, req := range sp.required {
			if _, ok := content.Attrs[req]; ok {
				continue
			}
			if _, ok := content.AttrSets[req]; ok {
				continue
			}
			return nil, errContent(onem2m.StatusContentsUnacceptable,
				"CONTENT(pc) missing mandatory attribute: %s", req)
		}
		finalize(content)
	}

	return content, nil
}

// unwrap plucks the per-type wrapper object ("m2m:cnt" or bare "cnt") out of
// the content payload.
func unwrap(rt onem2m.ResourceType, outer map[string]json.RawMessage) (map[string]json.RawMessage, *ContentError) {
	raw, ok := outer[rt.WireKey()]
	if !ok {
		raw, ok = outer[rt.ShortName()]
	}
	if !ok {
		// Bare attribute objects are accepted too.
		if len(outer) > 0 {
			return outer, nil
		}
		return map[string]json.RawMessage{}, nil
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, errContent(onem2m.StatusContentsUnacceptable,
			"CONTENT(pc) %s is not an object (%v)", rt.WireKey(), err)
	}
	return inner, nil
}

// finalize applies per-type computed attributes on create.
func finalize(c *Content) {
	switch c.Type {
	case onem2m.ResourceTypeContainer:
		// Aggregate counters start at zero; the tree maintains them.
		c.Attrs[onem2m.AttrCurrNrInstances] = "0"
		c.Attrs[onem2m.AttrCurrByteSize] = "0"
		c.Attrs[onem2m.AttrStateTag] = "0"
	case onem2m.ResourceTypeContentInstance:
		c.Attrs[onem2m.AttrContentSize] =
			strconv.Itoa(len(c.Attrs[onem2m.AttrContent]))
		c.Attrs[onem2m.AttrStateTag] = "0"
	case onem2m.ResourceTypeSubscription:
		if _, ok := c.Attrs[onem2m.AttrNotificationContentType]; !ok {
			c.Attrs[onem2m.AttrNotificationContentType] =
				string(onem2m.NotificationContentTypeWholeResource)
		}
	case onem2m.ResourceTypeAE:
		// The AE-ID is assigned by the CSE, never taken from content.
		delete(c.Attrs, onem2m.AttrAEID)
	}
}

// scalarString converts a scalar JSON value to its wire string form. Nested
// objects are kept as canonical JSON (the acp privileges block).
func scalarString(key string, raw json.RawMessage) (string, *ContentError) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errContent(onem2m.StatusContentsUnacceptable,
			"CONTENT(pc) bad value for %s (%v)", key, err)
	}
	switch value := v.(type) {
	case string:
		return value, nil
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10), nil
		}
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	case map[string]any:
		return string(raw), nil
	default:
		return "", errContent(onem2m.StatusContentsUnacceptable,
			"CONTENT(pc) bad value type for %s", key)
	}
}

// memberStrings converts a JSON array (or a lone scalar) into attribute-set
// members.
func memberStrings(key string, raw json.RawMessage) ([]string, *ContentError) {
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		// A single scalar is accepted as a one-member set.
		value, cerr := scalarString(key, raw)
		if cerr != nil {
			return nil, cerr
		}
		return []string{value}, nil
	}
	members := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, errContent(onem2m.StatusContentsUnacceptable,
				"CONTENT(pc) member of %s is not a string", key)
		}
		members = append(members, s)
	}
	return members, nil
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
