package rest

import (
	"strconv"
	"strings"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
)

// validate runs the protocol parameter table over the request, fail-fast.
// Returns false with the response status set on the first violation.
func (p *Processor) validate(req *primitives.Request, resp *primitives.Response) bool {
	// 1. Every supplied primitive name must be a known attribute.
	for _, name := range req.Names() {
		if !primitives.KnownRequestAttribute(name) {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"attribute not recognized: "+name)
			return false
		}
	}
	for _, name := range req.ManyNames() {
		if name != primitives.FilterCriteriaLabels &&
			name != primitives.FilterCriteriaResourceType {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"attribute not recognized: "+name)
			return false
		}
	}

	// 2. Protocol and operation.
	if req.Attr(primitives.Protocol) == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"PROTOCOL(protocol) not specified")
		return false
	}
	op := onem2m.Operation(req.Attr(primitives.Operation))
	switch op {
	case onem2m.OperationCreate, onem2m.OperationRetrieve,
		onem2m.OperationUpdate, onem2m.OperationDelete, onem2m.OperationNotify:
	case "":
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"OPERATION(op) not specified")
		return false
	default:
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"OPERATION(op) not valid: "+string(op))
		return false
	}

	// 3. Target URI.
	to := req.Attr(primitives.To)
	if to == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"TO(to) not specified")
		return false
	}
	if !onem2m.ValidURI(to) {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"TO(to) not a valid URI: "+to)
		return false
	}

	// 4. Originator.
	from := req.Attr(primitives.From)
	if from == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"FROM(fr) not specified")
		return false
	}
	if !onem2m.ValidURI(from) {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"FROM(fr) not a valid URI: "+from)
		return false
	}

	// 5. Resource type is supplied if and only if the operation is CREATE.
	ty := req.Attr(primitives.ResourceType)
	if op == onem2m.OperationCreate && ty == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"RESOURCE_TYPE(ty) not specified for create")
		return false
	}
	if op != onem2m.OperationCreate && ty != "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"RESOURCE_TYPE(ty) only permitted for create")
		return false
	}

	// 6. Only the blocking exchange is supported.
	if rt := req.Attr(primitives.ResponseType); rt != "" &&
		onem2m.ResponseType(rt) != onem2m.ResponseTypeBlocking {
		resp.SetRSC(string(onem2m.StatusNonBlockingRequestNotSupported),
			"RESPONSE_TYPE(rt) not supported: "+rt)
		return false
	}

	// 7. Name restrictions.
	if name := req.Attr(primitives.Name); name != "" {
		if op != onem2m.OperationCreate {
			resp.SetRSC(string(onem2m.StatusInvalidArguments),
				"NAME(nm) only permitted for create")
			return false
		}
		if name == onem2m.LatestName || name == onem2m.OldestName ||
			name == onem2m.NullResourceID {
			resp.SetRSC(string(onem2m.StatusInvalidArguments),
				"NAME(nm) is reserved: "+name)
			return false
		}
		if strings.Contains(name, "/") {
			resp.SetRSC(string(onem2m.StatusInvalidArguments),
				"NAME(nm) must not contain '/': "+name)
			return false
		}
	}

	// 8. Filter criteria: per-field syntax, and only on RETRIEVE.
	if !p.validateFilters(req, resp, op) {
		return false
	}

	// 9. Discovery result type.
	if drt := req.Attr(primitives.DiscoveryResultType); drt != "" {
		if op != onem2m.OperationRetrieve {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"DISCOVERY_RESULT_TYPE(drt) only permitted for retrieve")
			return false
		}
		switch onem2m.DiscoveryResultType(drt) {
		case onem2m.DiscoveryResultTypeHierarchical,
			onem2m.DiscoveryResultTypeNonHierarchical:
		default:
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"DISCOVERY_RESULT_TYPE(drt) not valid: "+drt)
			return false
		}
	}

	return true
}

var filterDateAttrs = []string{
	primitives.FilterCriteriaCreatedBefore,
	primitives.FilterCriteriaCreatedAfter,
	primitives.FilterCriteriaModifiedSince,
	primitives.FilterCriteriaUnmodifiedSince,
}

var filterUintAttrs = []string{
	primitives.FilterCriteriaStateTagSmaller,
	primitives.FilterCriteriaStateTagBigger,
	primitives.FilterCriteriaSizeAbove,
	primitives.FilterCriteriaSizeBelow,
	primitives.FilterCriteriaLimit,
	primitives.FilterCriteriaOffset,
}

func (p *Processor) validateFilters(req *primitives.Request, resp *primitives.Response, op onem2m.Operation) bool {
	hasFilter := false

	for _, name := range filterDateAttrs {
		value := req.Attr(name)
		if value == "" {
			continue
		}
		hasFilter = true
		if _, err := onem2m.ParseTimestamp(value); err != nil {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"FILTER_CRITERIA("+name+") not a valid timestamp: "+value)
			return false
		}
	}

	for _, name := range filterUintAttrs {
		value := req.Attr(name)
		if value == "" {
			continue
		}
		hasFilter = true
		if n, err := strconv.Atoi(value); err != nil || n < 0 {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"FILTER_CRITERIA("+name+") not a valid number: "+value)
			return false
		}
	}

	if fu := req.Attr(primitives.FilterCriteriaFilterUsage); fu != "" {
		hasFilter = true
		if onem2m.FilterUsage(fu) != onem2m.FilterUsageDiscovery {
			resp.SetRSC(string(onem2m.StatusBadRequest),
				"FILTER_CRITERIA(fu) not valid: "+fu)
			return false
		}
	}

	if len(req.Many(primitives.FilterCriteriaLabels)) > 0 ||
		len(req.Many(primitives.FilterCriteriaResourceType)) > 0 {
		hasFilter = true
	}

	if hasFilter && op != onem2m.OperationRetrieve {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"filter criteria only permitted for retrieve")
		return false
	}
	return true
}
