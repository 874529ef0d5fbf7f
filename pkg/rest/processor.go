package rest

import (
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/events"
	"github.com/cuemby/onem2m/pkg/lock"
	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/metrics"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/resource"
	"github.com/cuemby/onem2m/pkg/tree"
)

// Router is the slice of the router service the processor needs: forwarding
// requests that target another CSE, and keeping the routing table in sync
// when CSE_BASE / REMOTE_CSE resources change.
type Router interface {
	Forward(req *primitives.Request, targetCseID string) *primitives.Response
	SyncCseBase(op onem2m.Operation, cse *tree.Cse)
	SyncRemoteCse(op onem2m.Operation, baseCseName string, res *tree.Resource)
}

// Config wires the processor's collaborators.
type Config struct {
	Store  tree.Store
	Locker *lock.Locker
	Broker *events.Broker
	Router Router // optional; nil disables forwarding
}

// Processor validates inbound request primitives and executes them against
// the resource tree. One processor serves all provisioned CSEs.
type Processor struct {
	store         tree.Store
	locker        *lock.Locker
	router        Router
	accessControl *AccessControl
	notifications *Notifications
	resultContent *ResultContent
	logger        zerolog.Logger
}

// NewProcessor creates a request processor.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		store:         cfg.Store,
		locker:        cfg.Locker,
		router:        cfg.Router,
		accessControl: NewAccessControl(cfg.Store),
		notifications: NewNotifications(cfg.Broker),
		resultContent: NewResultContent(cfg.Store),
		logger:        log.WithComponent("rest"),
	}
}

// HandleRequest runs one request primitive to completion and returns the
// response primitive. The response always carries a status code, and echoes
// the request identifier whenever one was supplied.
func (p *Processor) HandleRequest(req *primitives.Request) *primitives.Response {
	start := time.Now()
	resp := primitives.NewResponse(req)

	// The request identifier is checked first so every later failure can
	// still be correlated by the caller.
	if req.Attr(primitives.RequestIdentifier) == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"REQUEST_IDENTIFIER(rqi) not specified")
		return resp
	}

	op := onem2m.Operation(req.Attr(primitives.Operation))
	if p.validate(req, resp) {
		if remote := p.forwardIfRemote(req); remote != nil {
			return remote
		}
		switch op {
		case onem2m.OperationCreate:
			p.handleCreate(req, resp)
		case onem2m.OperationRetrieve:
			p.handleRetrieve(req, resp)
		case onem2m.OperationUpdate:
			p.handleUpdate(req, resp)
		case onem2m.OperationDelete:
			p.handleDelete(req, resp)
		case onem2m.OperationNotify:
			resp.SetRSC(string(onem2m.StatusNotImplemented),
				"NOTIFY operation not implemented")
		}
	}

	metrics.RequestsTotal.WithLabelValues(string(op), resp.RSC()).Inc()
	metrics.RequestDuration.WithLabelValues(string(op)).
		Observe(time.Since(start).Seconds())
	logger := log.WithRequestID(req.Attr(primitives.RequestIdentifier))
	logger.Debug().
		Str("op", string(op)).
		Str("to", req.Attr(primitives.To)).
		Str("rsc", resp.RSC()).
		Dur("elapsed", time.Since(start)).
		Msg("request handled")
	return resp
}

// forwardIfRemote hands the request to the router when the target's first
// path segment is not a locally provisioned CSE. Returns nil when the
// request is local (or no router is wired).
func (p *Processor) forwardIfRemote(req *primitives.Request) *primitives.Response {
	if p.router == nil {
		return nil
	}
	target := onem2m.TrimURI(req.Attr(primitives.To))
	first := target
	for i := 0; i < len(target); i++ {
		if target[i] == '/' {
			first = target[:i]
			break
		}
	}
	if first == "" {
		return nil
	}
	if _, err := p.store.GetCse(first); err == nil {
		return nil
	}
	p.logger.Debug().
		Str("target_cse", first).
		Str("rqi", req.Attr(primitives.RequestIdentifier)).
		Msg("target is not local, forwarding")
	return p.router.Forward(req, first)
}

// handleCreate implements the CREATE operation: content parse, access
// control, parent resolution, sibling-name collision check, then the atomic
// tree insert under the parent's lock.
func (p *Processor) handleCreate(req *primitives.Request, resp *primitives.Response) {
	if !p.checkContentFormat(req, resp) {
		return
	}
	if req.Attr(primitives.Content) == "" {
		resp.SetRSC(string(onem2m.StatusInsufficientArguments),
			"CONTENT(pc) not specified")
		return
	}

	if rcn := req.Attr(primitives.ResultContent); rcn != "" {
		switch onem2m.ResultContent(rcn) {
		case onem2m.ResultContentNothing, onem2m.ResultContentAttributes,
			onem2m.ResultContentHierarchicalAddress,
			onem2m.ResultContentHierarchicalAddressAttributes:
		default:
			resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
				"RESULT_CONTENT(rcn) not permitted for create: "+rcn)
			return
		}
	}

	rt := onem2m.ResourceType(req.Attr(primitives.ResourceType))
	if rt == onem2m.ResourceTypeCseBase {
		// CSE bases come from the provisioning path only.
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"cannot create cseBase via CREATE, use provisioning")
		return
	}
	if !resource.Supported(rt) {
		resp.SetRSC(string(onem2m.StatusNotImplemented),
			"RESOURCE_TYPE(ty) not implemented: "+string(rt))
		return
	}

	content, cerr := resource.ParseContent(rt, req.Attr(primitives.Content), false)
	if cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	if cerr := p.accessControl.Check(req.Attr(primitives.From),
		onem2m.OperationCreate,
		content.AttrSets[onem2m.AttrAccessControlPolicyIDs]); cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	parent, err := p.store.FindResourceUsingURI(req.Attr(primitives.To))
	if err != nil {
		p.setLookupFailure(resp, req.Attr(primitives.To), err)
		return
	}

	name := req.Attr(primitives.Name)
	if name == "" {
		name = content.Name
	}

	res := &tree.Resource{
		Name:     name,
		Type:     string(rt),
		ParentID: parent.ID,
		Attrs:    content.Attrs,
		AttrSets: content.AttrSets,
	}
	now := onem2m.Now()
	res.SetAttr(onem2m.AttrCreationTime, now)
	res.SetAttr(onem2m.AttrLastModifiedTime, now)

	// The parent is locked for the structural mutation so a concurrent
	// delete of the parent cannot interleave with the child-list edit.
	p.locker.WithLock(parent.ID, func() {
		if name != "" {
			if _, err := p.store.RetrieveChildByName(parent.ID, name); err == nil {
				resp.SetRSC(string(onem2m.StatusConflict),
					"resource already exists: "+name)
				return
			}
		}
		if err := p.store.CreateResource(res); err != nil {
			p.logger.Error().Err(err).Msg("failed to create resource")
			resp.SetRSC(string(onem2m.StatusInternalServerError),
				"cannot write to data store")
			return
		}
		resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusCreated))
	})
	if resp.RSC() != string(onem2m.StatusCreated) {
		return
	}

	// The AE-ID is CSE-assigned: the new resource's id.
	if rt == onem2m.ResourceTypeAE {
		if err := p.store.UpdateAttrs(res.ID,
			map[string]string{onem2m.AttrAEID: res.ID}, nil); err == nil {
			res.SetAttr(onem2m.AttrAEID, res.ID)
		}
	}

	p.resultContent.FormatCreate(req, res, resp)
	p.publishChange(req, res, onem2m.OperationCreate)
	p.syncRouting(onem2m.OperationCreate, req, res)
	p.trackResourceCount()
}

// handleRetrieve implements RETRIEVE, including discovery when filter usage
// is set.
func (p *Processor) handleRetrieve(req *primitives.Request, resp *primitives.Response) {
	if cf := req.Attr(primitives.ContentFormat); cf != "" && !validContentFormat(cf) {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"CONTENT_FORMAT(contentFormat) not accepted: "+cf)
		return
	}
	if rcn := req.Attr(primitives.ResultContent); rcn != "" {
		switch onem2m.ResultContent(rcn) {
		case onem2m.ResultContentNothing, onem2m.ResultContentAttributes,
			onem2m.ResultContentAttributesChildResources,
			onem2m.ResultContentAttributesChildResourceRefs,
			onem2m.ResultContentChildResourceRefs:
		default:
			resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
				"RESULT_CONTENT(rcn) not permitted for retrieve: "+rcn)
			return
		}
	}
	if req.Attr(primitives.DiscoveryResultType) == "" {
		req.SetAttr(primitives.DiscoveryResultType,
			string(onem2m.DiscoveryResultTypeHierarchical))
	}

	res, err := p.store.FindResourceUsingURI(req.Attr(primitives.To))
	if err != nil {
		p.setLookupFailure(resp, req.Attr(primitives.To), err)
		return
	}

	if cerr := p.accessControl.Check(req.Attr(primitives.From),
		onem2m.OperationRetrieve,
		res.AttrSet(onem2m.AttrAccessControlPolicyIDs)); cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	p.resultContent.FormatRetrieve(req, res, resp)
}

// handleUpdate implements UPDATE: attribute merge on the target, forbidden
// for immutable ContentInstances.
func (p *Processor) handleUpdate(req *primitives.Request, resp *primitives.Response) {
	if req.Attr(primitives.ContentFormat) == "" {
		resp.SetRSC(string(onem2m.StatusInsufficientArguments),
			"CONTENT_FORMAT(contentFormat) not specified")
		return
	}
	if !validContentFormat(req.Attr(primitives.ContentFormat)) {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"CONTENT_FORMAT(contentFormat) not accepted: "+req.Attr(primitives.ContentFormat))
		return
	}
	if req.Attr(primitives.Content) == "" {
		resp.SetRSC(string(onem2m.StatusInsufficientArguments),
			"CONTENT(pc) not specified")
		return
	}

	// The rcn option set is checked before anything is written so a bad
	// option cannot reject a request that already changed the tree.
	if rcn := req.Attr(primitives.ResultContent); rcn != "" {
		switch onem2m.ResultContent(rcn) {
		case onem2m.ResultContentNothing, onem2m.ResultContentAttributes,
			onem2m.ResultContentAttributesChildResourceRefs,
			onem2m.ResultContentChildResourceRefs:
		default:
			resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
				"RESULT_CONTENT(rcn) not permitted for update: "+rcn)
			return
		}
	}

	res, err := p.store.FindResourceUsingURI(req.Attr(primitives.To))
	if err != nil {
		p.setLookupFailure(resp, req.Attr(primitives.To), err)
		return
	}

	if res.Type == string(onem2m.ResourceTypeContentInstance) {
		// ContentInstances are immutable once created.
		resp.SetRSC(string(onem2m.StatusOperationNotAllowed),
			"cannot update a contentInstance")
		return
	}

	content, cerr := resource.ParseContent(onem2m.ResourceType(res.Type),
		req.Attr(primitives.Content), true)
	if cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	if cerr := p.accessControl.Check(req.Attr(primitives.From),
		onem2m.OperationUpdate,
		res.AttrSet(onem2m.AttrAccessControlPolicyIDs)); cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	content.Attrs[onem2m.AttrLastModifiedTime] = onem2m.Now()

	p.locker.WithLock(res.ID, func() {
		if err := p.store.UpdateAttrs(res.ID, content.Attrs, content.AttrSets); err != nil {
			p.logger.Error().Err(err).Msg("failed to update resource")
			resp.SetRSC(string(onem2m.StatusInternalServerError),
				"cannot write to data store")
			return
		}
		resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusChanged))
	})
	if resp.RSC() != string(onem2m.StatusChanged) {
		return
	}

	updated, err := p.store.RetrieveResource(res.ID)
	if err != nil {
		updated = res
	}
	p.resultContent.FormatUpdate(req, updated, resp)
	p.publishChange(req, updated, onem2m.OperationUpdate)
	p.syncRouting(onem2m.OperationUpdate, req, updated)
}

// handleDelete implements DELETE: recursive single-commit subtree removal
// under the parent's lock.
func (p *Processor) handleDelete(req *primitives.Request, resp *primitives.Response) {
	if req.HasAttr(primitives.Content) {
		resp.SetRSC(string(onem2m.StatusInvalidArguments),
			"CONTENT(pc) not permitted for delete")
		return
	}

	// Checked before the subtree is touched, same as update.
	if rcn := req.Attr(primitives.ResultContent); rcn != "" {
		switch onem2m.ResultContent(rcn) {
		case onem2m.ResultContentNothing, onem2m.ResultContentAttributes,
			onem2m.ResultContentAttributesChildResourceRefs,
			onem2m.ResultContentChildResourceRefs:
		default:
			resp.SetRSC(string(onem2m.StatusContentsUnacceptable),
				"RESULT_CONTENT(rcn) not permitted for delete: "+rcn)
			return
		}
	}

	res, err := p.store.FindResourceUsingURI(req.Attr(primitives.To))
	if err != nil {
		p.setLookupFailure(resp, req.Attr(primitives.To), err)
		return
	}

	if res.Type == string(onem2m.ResourceTypeCseBase) {
		resp.SetRSC(string(onem2m.StatusOperationNotAllowed),
			"cannot delete a cseBase")
		return
	}

	if cerr := p.accessControl.Check(req.Attr(primitives.From),
		onem2m.OperationDelete,
		res.AttrSet(onem2m.AttrAccessControlPolicyIDs)); cerr != nil {
		resp.SetRSC(string(cerr.Status), cerr.Message)
		return
	}

	// Notification scope and addressing must be captured before the
	// subtree disappears.
	change := p.notifications.PrepareDelete(p.store, req, res)

	p.locker.WithLock(res.ParentID, func() {
		if _, err := p.store.DeleteSubtree(res.ID); err != nil {
			if errors.Is(err, tree.ErrNotFound) {
				resp.SetRSC(string(onem2m.StatusNotFound),
					"resource not found: "+req.Attr(primitives.To))
				return
			}
			p.logger.Error().Err(err).Msg("failed to delete resource")
			resp.SetRSC(string(onem2m.StatusInternalServerError),
				"cannot write to data store")
			return
		}
		resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusDeleted))
	})
	if resp.RSC() != string(onem2m.StatusDeleted) {
		return
	}

	p.resultContent.FormatDelete(req, res, change.Names, resp)
	p.notifications.PublishDelete(change)
	p.syncRouting(onem2m.OperationDelete, req, res)
	p.trackResourceCount()
}

// publishChange fans a create/update out to the subscriptions in scope.
func (p *Processor) publishChange(req *primitives.Request, res *tree.Resource, op onem2m.Operation) {
	subs := p.loadSubscriptions(res.ID)
	names := p.resolveNames(res)
	p.notifications.ResourceChanged(req, res, op, subs, names)
}

func (p *Processor) loadSubscriptions(resourceID string) []*tree.Resource {
	ids, err := p.store.FindSubscriptionResources(resourceID)
	if err != nil {
		return nil
	}
	subs := make([]*tree.Resource, 0, len(ids))
	for _, id := range ids {
		sub, err := p.store.RetrieveResource(id)
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

func (p *Processor) resolveNames(res *tree.Resource) Names {
	var names Names
	names.Hierarchical, _ = p.store.HierarchicalName(res.ID)
	names.NonHierarchical, _ = p.store.NonHierarchicalName(res.ID)
	if res.ParentID != onem2m.NullResourceID {
		names.ParentNonHierarchical, _ = p.store.NonHierarchicalName(res.ParentID)
	}
	return names
}

// syncRouting keeps the routing table in step with remoteCSE mutations.
func (p *Processor) syncRouting(op onem2m.Operation, req *primitives.Request, res *tree.Resource) {
	if p.router == nil || res.Type != string(onem2m.ResourceTypeRemoteCse) {
		return
	}
	target := onem2m.TrimURI(req.Attr(primitives.To))
	baseName := target
	for i := 0; i < len(target); i++ {
		if target[i] == '/' {
			baseName = target[:i]
			break
		}
	}
	p.router.SyncRemoteCse(op, baseName, res)
}

func (p *Processor) trackResourceCount() {
	if count, err := p.store.ResourceCount(); err == nil {
		metrics.ResourcesTotal.Set(float64(count))
	}
}

// setLookupFailure maps a URI resolution error onto the response: absence is
// NOT_FOUND, anything else is a store failure.
func (p *Processor) setLookupFailure(resp *primitives.Response, to string, err error) {
	if errors.Is(err, tree.ErrNotFound) {
		resp.SetRSC(string(onem2m.StatusNotFound), "resource not found: "+to)
		return
	}
	p.logger.Error().Err(err).Str("to", to).Msg("resource lookup failed")
	resp.SetRSC(string(onem2m.StatusInternalServerError), "cannot read from data store")
}

func (p *Processor) checkContentFormat(req *primitives.Request, resp *primitives.Response) bool {
	cf := req.Attr(primitives.ContentFormat)
	if cf == "" {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"CONTENT_FORMAT(contentFormat) not specified")
		return false
	}
	if !validContentFormat(cf) {
		resp.SetRSC(string(onem2m.StatusBadRequest),
			"CONTENT_FORMAT(contentFormat) not accepted: "+cf)
		return false
	}
	if onem2m.ContentFormat(cf) == onem2m.ContentFormatXML {
		resp.SetRSC(string(onem2m.StatusNotImplemented),
			"XML content format not implemented")
		return false
	}
	return true
}

func validContentFormat(cf string) bool {
	switch onem2m.ContentFormat(cf) {
	case onem2m.ContentFormatJSON, onem2m.ContentFormatXML:
		return true
	}
	return false
}

// ProvisionCse creates a new CSE base outside the normal CREATE path. Used
// at startup from the provisioning file and by the provision subcommand.
func (p *Processor) ProvisionCse(name, cseID string, cseType onem2m.CseType) *primitives.Response {
	resp := primitives.NewResponse(nil)

	if name == "" || cseID == "" {
		resp.SetRSC(string(onem2m.StatusInsufficientArguments),
			"CSE name and CSE_ID are required")
		return resp
	}
	if cseType == "" {
		cseType = onem2m.CseTypeIN
	}

	now := onem2m.Now()
	cse := &tree.Cse{Name: name, CseID: cseID, CseType: string(cseType)}
	root, err := p.store.CreateCse(cse, map[string]string{
		onem2m.AttrCreationTime:     now,
		onem2m.AttrLastModifiedTime: now,
		onem2m.AttrCseID:            cseID,
		onem2m.AttrCseType:          string(cseType),
	})
	if err != nil {
		if errors.Is(err, tree.ErrAlreadyExists) {
			resp.SetRSC(string(onem2m.StatusAlreadyExists),
				"cse already provisioned: "+name)
			return resp
		}
		p.logger.Error().Err(err).Str("cse", name).Msg("failed to provision cse")
		resp.SetRSC(string(onem2m.StatusInternalServerError),
			"cannot write to data store")
		return resp
	}

	if p.router != nil {
		p.router.SyncCseBase(onem2m.OperationCreate, cse)
	}
	p.trackResourceCount()
	cseLogger := log.WithCse(name)
	cseLogger.Info().
		Str("cse_id", cseID).
		Str("cse_type", string(cseType)).
		Msg("cse provisioned")

	body := map[string]any{
		onem2m.AttrResourceID:   root.ID,
		onem2m.AttrResourceName: name,
		onem2m.AttrCseID:        cseID,
		onem2m.AttrCseType:      string(cseType),
	}
	resp.SetAttr(primitives.Content, marshalContent(body))
	resp.SetAttr(primitives.ResponseStatusCode, string(onem2m.StatusOK))
	return resp
}

// itoa for operation codes used in notification payloads.
func operationInt(op onem2m.Operation) int {
	n, _ := strconv.Atoi(string(op))
	return n
}
