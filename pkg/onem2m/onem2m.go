package onem2m

import (
	"net/url"
	"strings"
	"time"
)

// Protocol-wide limits.
const (
	MaxResources      = 1000000
	MaxDiscoveryLimit = 1000
)

// NullResourceID marks "no resource" in parent/sibling/oldest/latest links.
const NullResourceID = "0"

// Reserved child names resolved through the container's cached pointers
// instead of the child list.
const (
	LatestName = "latest"
	OldestName = "oldest"
)

// Operation values carried in the "op" primitive attribute.
type Operation string

const (
	OperationCreate   Operation = "1"
	OperationRetrieve Operation = "2"
	OperationUpdate   Operation = "3"
	OperationDelete   Operation = "4"
	OperationNotify   Operation = "5"
)

// ResourceType values carried in the "ty" primitive attribute.
type ResourceType string

const (
	ResourceTypeAccessControlPolicy ResourceType = "1"
	ResourceTypeAE                  ResourceType = "2"
	ResourceTypeContainer           ResourceType = "3"
	ResourceTypeContentInstance     ResourceType = "4"
	ResourceTypeCseBase             ResourceType = "5"
	ResourceTypeGroup               ResourceType = "9"
	ResourceTypeNode                ResourceType = "14"
	ResourceTypeRemoteCse           ResourceType = "16"
	ResourceTypeSubscription        ResourceType = "23"
)

// resourceTypeShortNames maps resource type to its TS0004 short name, used
// as the JSON wrapper key for content payloads.
var resourceTypeShortNames = map[ResourceType]string{
	ResourceTypeAccessControlPolicy: "acp",
	ResourceTypeAE:                  "ae",
	ResourceTypeContainer:           "cnt",
	ResourceTypeContentInstance:     "cin",
	ResourceTypeCseBase:             "cb",
	ResourceTypeGroup:               "grp",
	ResourceTypeNode:                "nod",
	ResourceTypeRemoteCse:           "csr",
	ResourceTypeSubscription:        "sub",
}

// M2MPrefix namespaces resource JSON keys on the wire ("m2m:ae", "m2m:cnt").
const M2MPrefix = "m2m:"

// ShortName returns the TS0004 short name for a resource type, or "" when
// the type is unknown.
func (rt ResourceType) ShortName() string {
	return resourceTypeShortNames[rt]
}

// WireKey returns the prefixed JSON key for a resource type ("m2m:cnt").
func (rt ResourceType) WireKey() string {
	sn := rt.ShortName()
	if sn == "" {
		return ""
	}
	return M2MPrefix + sn
}

// ResourceTypeFromWireKey strips an optional m2m: prefix and resolves the
// short name back to its resource type. Returns "" when unknown.
func ResourceTypeFromWireKey(key string) ResourceType {
	key = strings.TrimPrefix(key, M2MPrefix)
	for rt, sn := range resourceTypeShortNames {
		if sn == key {
			return rt
		}
	}
	return ""
}

// StatusCode values carried in the "rsc" response attribute.
type StatusCode string

const (
	StatusOK                             StatusCode = "2000"
	StatusCreated                        StatusCode = "2001"
	StatusDeleted                        StatusCode = "2002"
	StatusChanged                        StatusCode = "2004"
	StatusBadRequest                     StatusCode = "4000"
	StatusNotFound                       StatusCode = "4004"
	StatusOperationNotAllowed            StatusCode = "4005"
	StatusContentsUnacceptable           StatusCode = "4102"
	StatusConflict                       StatusCode = "4105"
	StatusAccessDenied                   StatusCode = "6010"
	StatusInternalServerError            StatusCode = "5000"
	StatusNotImplemented                 StatusCode = "5001"
	StatusTargetNotReachable             StatusCode = "5103"
	StatusAlreadyExists                  StatusCode = "5106"
	StatusNonBlockingRequestNotSupported StatusCode = "5206"
	StatusInvalidArguments               StatusCode = "6023"
	StatusInsufficientArguments          StatusCode = "6024"
)

// ResultContent values carried in the "rcn" primitive attribute.
type ResultContent string

const (
	ResultContentNothing                       ResultContent = "0"
	ResultContentAttributes                    ResultContent = "1"
	ResultContentHierarchicalAddress           ResultContent = "2"
	ResultContentHierarchicalAddressAttributes ResultContent = "3"
	ResultContentAttributesChildResources      ResultContent = "4"
	ResultContentAttributesChildResourceRefs   ResultContent = "5"
	ResultContentChildResourceRefs             ResultContent = "6"
)

// DiscoveryResultType values for the "drt" primitive attribute.
type DiscoveryResultType string

const (
	DiscoveryResultTypeHierarchical    DiscoveryResultType = "1"
	DiscoveryResultTypeNonHierarchical DiscoveryResultType = "2"
)

// ResponseType values for the "rt" primitive attribute. Only the blocking
// request/response exchange is supported.
type ResponseType string

const (
	ResponseTypeNonBlockingSynch  ResponseType = "1"
	ResponseTypeNonBlockingAsynch ResponseType = "2"
	ResponseTypeBlocking          ResponseType = "3"
)

// CseType values for cseBase and remoteCSE resources.
type CseType string

const (
	CseTypeIN CseType = "IN-CSE"
	CseTypeMN CseType = "MN-CSE"
)

// Protocol names set by transport adapters in the "protocol" helper attribute.
type Protocol string

const (
	ProtocolCoap      Protocol = "Coap"
	ProtocolMqtt      Protocol = "Mqtt"
	ProtocolHTTP      Protocol = "Http"
	ProtocolNativeApp Protocol = "NativeApp"
)

// ContentFormat values for the "contentFormat" helper attribute.
type ContentFormat string

const (
	ContentFormatJSON ContentFormat = "json"
	ContentFormatXML  ContentFormat = "xml"
)

// FilterUsage values for the "fu" filter-criteria attribute.
type FilterUsage string

const (
	FilterUsageDiscovery FilterUsage = "1"
)

// NotificationContentType values for the subscription "nct" attribute.
type NotificationContentType string

const (
	NotificationContentTypeModifiedAttributes NotificationContentType = "1"
	NotificationContentTypeWholeResource      NotificationContentType = "2"
	NotificationContentTypeReferenceOnly      NotificationContentType = "3"
)

// TimestampLayout is the compact oneM2M timestamp format.
const TimestampLayout = "20060102T150405"

// Now returns the current UTC time in wire format.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// ParseTimestamp validates and parses a wire-format timestamp.
func ParseTimestamp(ts string) (time.Time, error) {
	return time.Parse(TimestampLayout, ts)
}

// TrimURI strips leading and trailing slashes from a target URI so that
// "/cse1/AE1/" and "cse1/AE1" address the same resource.
func TrimURI(uri string) string {
	uri = strings.TrimSpace(uri)
	uri = strings.TrimPrefix(uri, "/")
	uri = strings.TrimSuffix(uri, "/")
	return uri
}

// ValidURI reports whether a TO/FROM value is syntactically usable as a
// target: parseable and with a non-empty path or host.
func ValidURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.Path != "" || u.Host != ""
}
