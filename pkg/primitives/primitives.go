package primitives

// Request primitive attribute keys, TS0004 section 8.2.2 short names.
const (
	Operation                     = "op"
	To                            = "to"
	From                          = "fr"
	RequestIdentifier             = "rqi"
	ResourceType                  = "ty"
	Name                          = "nm"
	Content                       = "pc"
	OriginatingTimestamp          = "ot"
	RequestExpirationTimestamp    = "rqet"
	ResultExpirationTimestamp     = "rset"
	OperationExecutionTime        = "oet"
	ResponseType                  = "rt"
	ResultPersistence             = "rp"
	ResultContent                 = "rcn"
	EventCategory                 = "ec"
	DeliveryAggregation           = "da"
	GroupRequestIdentifier        = "gid"
	FilterCriteria                = "fc"
	FilterCriteriaCreatedBefore   = "crb"
	FilterCriteriaCreatedAfter    = "cra"
	FilterCriteriaModifiedSince   = "ms"
	FilterCriteriaUnmodifiedSince = "us"
	FilterCriteriaStateTagSmaller = "sts"
	FilterCriteriaStateTagBigger  = "stb"
	FilterCriteriaLabels          = "lbl"
	FilterCriteriaResourceType    = "rty"
	FilterCriteriaSizeAbove       = "sza"
	FilterCriteriaSizeBelow       = "szb"
	FilterCriteriaAttribute       = "atr"
	FilterCriteriaFilterUsage     = "fu"
	FilterCriteriaLimit           = "lim"
	FilterCriteriaOffset          = "off"
	DiscoveryResultType           = "drt"
	Role                          = "rol"

	// Helper attributes filled in by transport adapters, not on the wire.
	Protocol      = "protocol"
	ContentFormat = "contentFormat"
	NativeAppName = "nativeAppName"
)

// Response primitive attribute keys.
const (
	ResponseStatusCode = "rsc"
	// RequestIdentifier, Content, To, From, OriginatingTimestamp,
	// ResultExpirationTimestamp and EventCategory are shared with the
	// request key set above.
	ContentStatus = "cnst"
	ContentOffset = "cnot"
)

// knownRequestAttributes is the closed set of primitive names a transport
// adapter may supply. Anything else fails validation up front.
var knownRequestAttributes = map[string]bool{
	Operation:                     true,
	To:                            true,
	From:                          true,
	RequestIdentifier:             true,
	ResourceType:                  true,
	Name:                          true,
	Content:                       true,
	OriginatingTimestamp:          true,
	RequestExpirationTimestamp:    true,
	ResultExpirationTimestamp:     true,
	OperationExecutionTime:        true,
	ResponseType:                  true,
	ResultPersistence:             true,
	ResultContent:                 true,
	EventCategory:                 true,
	DeliveryAggregation:           true,
	GroupRequestIdentifier:        true,
	FilterCriteria:                true,
	FilterCriteriaCreatedBefore:   true,
	FilterCriteriaCreatedAfter:    true,
	FilterCriteriaModifiedSince:   true,
	FilterCriteriaUnmodifiedSince: true,
	FilterCriteriaStateTagSmaller: true,
	FilterCriteriaStateTagBigger:  true,
	FilterCriteriaLabels:          true,
	FilterCriteriaResourceType:    true,
	FilterCriteriaSizeAbove:       true,
	FilterCriteriaSizeBelow:       true,
	FilterCriteriaAttribute:       true,
	FilterCriteriaFilterUsage:     true,
	FilterCriteriaLimit:           true,
	FilterCriteriaOffset:          true,
	DiscoveryResultType:           true,
	Role:                          true,
	Protocol:                      true,
	ContentFormat:                 true,
	NativeAppName:                 true,
}

// longToShort maps the long-form attribute names some adapters emit onto
// the short names used internally.
var longToShort = map[string]string{
	"operation":                  Operation,
	"to":                         To,
	"from":                       From,
	"requestIdentifier":          RequestIdentifier,
	"resourceType":               ResourceType,
	"name":                       Name,
	"content":                    Content,
	"originatingTimestamp":       OriginatingTimestamp,
	"requestExpirationTimestamp": RequestExpirationTimestamp,
	"resultExpirationTimestamp":  ResultExpirationTimestamp,
	"operationExecutionTime":     OperationExecutionTime,
	"responseType":               ResponseType,
	"resultPersistence":          ResultPersistence,
	"resultContent":              ResultContent,
	"eventCategory":              EventCategory,
	"deliveryAggregation":        DeliveryAggregation,
	"groupRequestIdentifier":     GroupRequestIdentifier,
	"createdBefore":              FilterCriteriaCreatedBefore,
	"createdAfter":               FilterCriteriaCreatedAfter,
	"modifiedSince":              FilterCriteriaModifiedSince,
	"unmodifiedSince":            FilterCriteriaUnmodifiedSince,
	"stateTagSmaller":            FilterCriteriaStateTagSmaller,
	"stateTagBigger":             FilterCriteriaStateTagBigger,
	"label":                      FilterCriteriaLabels,
	"attribute":                  FilterCriteriaAttribute,
	"filterUsage":                FilterCriteriaFilterUsage,
	"limit":                      FilterCriteriaLimit,
	"offset":                     FilterCriteriaOffset,
	"discoveryResultType":        DiscoveryResultType,
	"protocol":                   Protocol,
	"contentFormat":              ContentFormat,
	"nativeAppName":              NativeAppName,
	"role":                       Role,
}

// KnownRequestAttribute reports whether name is a member of the request
// primitive attribute set.
func KnownRequestAttribute(name string) bool {
	return knownRequestAttributes[name]
}

// ShortName resolves a long-form attribute name to its short form. Short
// names pass through unchanged.
func ShortName(name string) string {
	if short, ok := longToShort[name]; ok {
		return short
	}
	return name
}

// primitiveSet is the common single-valued + many-valued attribute container
// underlying request, response and notification primitives.
type primitiveSet struct {
	attrs     map[string]string
	manyAttrs map[string][]string
}

func newPrimitiveSet() primitiveSet {
	return primitiveSet{
		attrs:     make(map[string]string),
		manyAttrs: make(map[string][]string),
	}
}

// SetAttr sets a single-valued attribute.
func (p *primitiveSet) SetAttr(name, value string) {
	p.attrs[name] = value
}

// Attr returns a single-valued attribute, "" when absent.
func (p *primitiveSet) Attr(name string) string {
	return p.attrs[name]
}

// HasAttr reports whether a single-valued attribute was supplied.
func (p *primitiveSet) HasAttr(name string) bool {
	_, ok := p.attrs[name]
	return ok
}

// DeleteAttr removes a single-valued attribute.
func (p *primitiveSet) DeleteAttr(name string) {
	delete(p.attrs, name)
}

// AddMany appends a value to a many-valued attribute (labels, notification
// URIs, filter resource types).
func (p *primitiveSet) AddMany(name, value string) {
	p.manyAttrs[name] = append(p.manyAttrs[name], value)
}

// Many returns all values of a many-valued attribute.
func (p *primitiveSet) Many(name string) []string {
	return p.manyAttrs[name]
}

// Names returns every single-valued attribute name present.
func (p *primitiveSet) Names() []string {
	names := make([]string, 0, len(p.attrs))
	for name := range p.attrs {
		names = append(names, name)
	}
	return names
}

// ManyNames returns every many-valued attribute name present.
func (p *primitiveSet) ManyNames() []string {
	names := make([]string, 0, len(p.manyAttrs))
	for name := range p.manyAttrs {
		names = append(names, name)
	}
	return names
}

// Map returns the wire form of the primitive set: single-valued attributes
// as strings, many-valued ones as string arrays.
func (p *primitiveSet) Map() map[string]any {
	out := make(map[string]any, len(p.attrs)+len(p.manyAttrs))
	for name, value := range p.attrs {
		out[name] = value
	}
	for name, members := range p.manyAttrs {
		out[name] = members
	}
	return out
}

// Merge loads wire-form values into the primitive set: strings become
// single-valued attributes, arrays become many-valued ones. Non-string
// scalars are ignored.
func (p *primitiveSet) Merge(m map[string]any) {
	for name, value := range m {
		switch v := value.(type) {
		case string:
			p.attrs[name] = v
		case []any:
			for _, member := range v {
				if s, ok := member.(string); ok {
					p.manyAttrs[name] = append(p.manyAttrs[name], s)
				}
			}
		case []string:
			p.manyAttrs[name] = append(p.manyAttrs[name], v...)
		}
	}
}

// Request is the protocol-independent form of an inbound operation. Transport
// adapters bind their wire fields into the attribute set; the processors read
// and annotate it.
type Request struct {
	primitiveSet
}

// NewRequest returns an empty request primitive.
func NewRequest() *Request {
	return &Request{primitiveSet: newPrimitiveSet()}
}

// Response carries the outcome of a request back to the transport adapter.
// Every response has a status code; the request identifier is echoed whenever
// the request supplied one.
type Response struct {
	primitiveSet
}

// NewResponse returns a response primed with the request's identifier.
func NewResponse(req *Request) *Response {
	resp := &Response{primitiveSet: newPrimitiveSet()}
	if req != nil && req.HasAttr(RequestIdentifier) {
		resp.SetAttr(RequestIdentifier, req.Attr(RequestIdentifier))
	}
	return resp
}

// SetRSC records the response status code and a diagnostic message. The
// message is for humans; clients dispatch on the code only.
func (r *Response) SetRSC(code string, message string) {
	r.SetAttr(ResponseStatusCode, code)
	r.SetAttr(Content, message)
}

// RSC returns the response status code.
func (r *Response) RSC() string {
	return r.Attr(ResponseStatusCode)
}

// Notification attribute keys.
const (
	NotificationURI     = "uri"
	NotificationContent = "pc"
)

// Notification is the primitive handed to the notifier service: a payload
// plus one or more target URIs from the subscription resource.
type Notification struct {
	primitiveSet
}

// NewNotification returns an empty notification primitive.
func NewNotification() *Notification {
	return &Notification{primitiveSet: newPrimitiveSet()}
}
