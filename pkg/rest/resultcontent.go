package rest

import (
	"encoding/json"
	"strconv"

	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/resource"
	"github.com/cuemby/onem2m/pkg/tree"
)

// Names carries the resolved addresses of a resource: its hierarchical path,
// its non-hierarchical "/<root>/<id>" form, and the parent's non-hierarchical
// form. Resolved before a delete so the response and notifications can still
// address the removed resource.
type Names struct {
	Hierarchical          string
	NonHierarchical       string
	ParentNonHierarchical string
}

// ResultContent builds the response content body according to the requested
// result-content option and addressing mode.
type ResultContent struct {
	store tree.Store
}

// NewResultContent creates the response formatter.
func NewResultContent(store tree.Store) *ResultContent {
	return &ResultContent{store: store}
}

// FormatRetrieve renders a RETRIEVE response, dispatching to discovery
// formatting when filter usage asks for it.
func (rc *ResultContent) FormatRetrieve(req *primitives.Request, res *tree.Resource, resp *primitives.Response) {
	if onem2m.FilterUsage(req.Attr(primitives.FilterCriteriaFilterUsage)) ==
		onem2m.FilterUsageDiscovery {
		rc.formatDiscovery(req, res, resp)
		return
	}
	if rc.format(req, res, rc.names(res), resp) {
		resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusOK))
	}
}

// FormatCreate renders the body of a successful CREATE. The status code is
// already set; only the content is added here.
func (rc *ResultContent) FormatCreate(req *primitives.Request, res *tree.Resource, resp *primitives.Response) {
	rc.format(req, res, rc.names(res), resp)
}

// FormatUpdate renders the body of a successful UPDATE.
func (rc *ResultContent) FormatUpdate(req *primitives.Request, res *tree.Resource, resp *primitives.Response) {
	rc.format(req, res, rc.names(res), resp)
}

// FormatDelete renders the body of a successful DELETE from the pre-delete
// snapshot and its pre-resolved names.
func (rc *ResultContent) FormatDelete(req *primitives.Request, res *tree.Resource, names Names, resp *primitives.Response) {
	rc.format(req, res, names, resp)
}

// format renders one resource per the rcn option. Returns false (with the
// status set) for an unusable option.
func (rc *ResultContent) format(req *primitives.Request, res *tree.Resource, names Names, resp *primitives.Response) bool {
	rcn := onem2m.ResultContent(req.Attr(primitives.ResultContent))
	if rcn == "" {
		rcn = onem2m.ResultContentAttributes
	}
	drt := rc.drt(req)

	var body any
	switch rcn {
	case onem2m.ResultContentNothing:
		resp.SetAttr(primitives.Content, "{}")
		return true

	case onem2m.ResultContentAttributes:
		body = map[string]any{
			rc.wireKey(res): rc.attrObject(res, names),
		}

	case onem2m.ResultContentHierarchicalAddress:
		body = map[string]any{"uri": names.Hierarchical}

	case onem2m.ResultContentHierarchicalAddressAttributes:
		body = map[string]any{
			"uri":           names.Hierarchical,
			rc.wireKey(res): rc.attrObject(res, names),
		}

	case onem2m.ResultContentAttributesChildResources:
		attrs := rc.attrObject(res, names)
		attrs[onem2m.AttrChildResource] = rc.childObjects(res)
		body = map[string]any{rc.wireKey(res): attrs}

	case onem2m.ResultContentAttributesChildResourceRefs:
		attrs := rc.attrObject(res, names)
		attrs[onem2m.AttrChildResource] = rc.childRefs(res, drt)
		body = map[string]any{rc.wireKey(res): attrs}

	case onem2m.ResultContentChildResourceRefs:
		body = map[string]any{onem2m.AttrChildResource: rc.childRefs(res, drt)}

	default:
		resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
			"RESULT_CONTENT(rcn) not valid: "+string(rcn))
		return false
	}

	resp.SetAttr(primitives.Content, marshalContent(body))
	return true
}

// formatDiscovery renders the discovery variants: arrays over the subtree
// list, capped by the lim filter.
func (rc *ResultContent) formatDiscovery(req *primitives.Request, res *tree.Resource, resp *primitives.Response) {
	limit := onem2m.MaxDiscoveryLimit
	if lim := req.Attr(primitives.FilterCriteriaLimit); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil && n > 0 {
			limit = n
		}
	}
	ids, err := rc.store.HierarchicalResourceList(res.ID, limit)
	if err != nil {
		resp.SetRSC(string(onem2m.StatusInternalServerError),
			"cannot read from data store")
		return
	}

	rcn := onem2m.ResultContent(req.Attr(primitives.ResultContent))
	if rcn == "" {
		rcn = onem2m.ResultContentAttributes
	}
	drt := rc.drt(req)

	var body any
	switch rcn {
	case onem2m.ResultContentAttributes:
		items := make([]any, 0, len(ids))
		for _, id := range ids {
			cur, err := rc.store.RetrieveResource(id)
			if err != nil {
				continue
			}
			items = append(items, map[string]any{
				rc.wireKey(cur): rc.attrObject(cur, rc.names(cur)),
			})
		}
		body = items

	case onem2m.ResultContentChildResourceRefs,
		onem2m.ResultContentAttributesChildResourceRefs:
		refs := make([]any, 0, len(ids))
		for _, id := range ids {
			cur, err := rc.store.RetrieveResource(id)
			if err != nil {
				continue
			}
			refs = append(refs, rc.refObject(cur, drt))
		}
		body = refs

	default:
		resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
			"RESULT_CONTENT(rcn) not valid for discovery: "+string(rcn))
		return
	}

	resp.SetAttr(primitives.Content, marshalContent(body))
	resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusOK))
}

// attrObject renders a resource's attributes plus its identity fields: rn,
// ri as the non-hierarchical address, pi as the parent's.
func (rc *ResultContent) attrObject(res *tree.Resource, names Names) map[string]any {
	out := resource.ProduceJSON(res)
	out[onem2m.AttrResourceName] = res.Name
	if names.NonHierarchical != "" {
		out[onem2m.AttrResourceID] = names.NonHierarchical
	} else {
		out[onem2m.AttrResourceID] = res.ID
	}
	if names.ParentNonHierarchical != "" {
		out[onem2m.AttrParentID] = names.ParentNonHierarchical
	}
	return out
}

// childObjects renders the full attribute object of every child.
func (rc *ResultContent) childObjects(res *tree.Resource) []any {
	out := make([]any, 0, len(res.Children))
	for _, ref := range res.Children {
		child, err := rc.store.RetrieveResource(ref.ResourceID)
		if err != nil {
			continue
		}
		obj := rc.attrObject(child, rc.names(child))
		out = append(out, map[string]any{rc.wireKey(child): obj})
	}
	return out
}

// childRefs renders lightweight {val, rn, typ} refs per child, addressed per
// the discovery result type.
func (rc *ResultContent) childRefs(res *tree.Resource, drt onem2m.DiscoveryResultType) []any {
	out := make([]any, 0, len(res.Children))
	for _, ref := range res.Children {
		child, err := rc.store.RetrieveResource(ref.ResourceID)
		if err != nil {
			continue
		}
		out = append(out, rc.refObject(child, drt))
	}
	return out
}

func (rc *ResultContent) refObject(res *tree.Resource, drt onem2m.DiscoveryResultType) map[string]any {
	var uri string
	if drt == onem2m.DiscoveryResultTypeNonHierarchical {
		uri, _ = rc.store.NonHierarchicalName(res.ID)
	} else {
		uri, _ = rc.store.HierarchicalName(res.ID)
	}
	obj := map[string]any{
		onem2m.AttrMemberURI:  uri,
		onem2m.AttrMemberName: res.Name,
	}
	if ty, err := strconv.Atoi(res.Type); err == nil {
		obj[onem2m.AttrMemberType] = ty
	}
	return obj
}

func (rc *ResultContent) names(res *tree.Resource) Names {
	var names Names
	names.Hierarchical, _ = rc.store.HierarchicalName(res.ID)
	names.NonHierarchical, _ = rc.store.NonHierarchicalName(res.ID)
	if res.ParentID != onem2m.NullResourceID {
		names.ParentNonHierarchical, _ = rc.store.NonHierarchicalName(res.ParentID)
	}
	return names
}

func (rc *ResultContent) drt(req *primitives.Request) onem2m.DiscoveryResultType {
	drt := onem2m.DiscoveryResultType(req.Attr(primitives.DiscoveryResultType))
	if drt == "" {
		drt = onem2m.DiscoveryResultTypeHierarchical
	}
	return drt
}

func (rc *ResultContent) wireKey(res *tree.Resource) string {
	key := onem2m.ResourceType(res.Type).WireKey()
	if key == "" {
		key = onem2m.M2MPrefix + "resource"
	}
	return key
}

func marshalContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
