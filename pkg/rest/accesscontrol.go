package rest

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/resource"
	"github.com/cuemby/onem2m/pkg/tree"
)

// AccessControl evaluates the access-control-policy resources referenced by
// a resource's acpi list against the requesting originator and operation.
type AccessControl struct {
	store  tree.Store
	logger zerolog.Logger
}

// NewAccessControl creates the access-control evaluator.
func NewAccessControl(store tree.Store) *AccessControl {
	return &AccessControl{
		store:  store,
		logger: log.WithComponent("access-control"),
	}
}

// Check evaluates the referenced policies. The request passes when any rule
// of any referenced policy names the originator AND that same rule's
// operation bitmask includes the requested operation. An empty acpi list
// means no restriction.
func (a *AccessControl) Check(from string, op onem2m.Operation, acpIDs []string) *resource.ContentError {
	if len(acpIDs) == 0 {
		// No policy referenced: implicit allow.
		return nil
	}

	for _, acpID := range acpIDs {
		acp, err := a.store.RetrieveResource(acpID)
		if err != nil {
			return &resource.ContentError{
				Status:  onem2m.StatusContentsUnacceptable,
				Message: "accessControlPolicy not found: " + acpID,
			}
		}
		if acp.Type != string(onem2m.ResourceTypeAccessControlPolicy) {
			return &resource.ContentError{
				Status:  onem2m.StatusContentsUnacceptable,
				Message: "resource is not an accessControlPolicy: " + acpID,
			}
		}

		rules, err := resource.ParseRules(acp.Attr(onem2m.AttrPrivileges))
		if err != nil {
			a.logger.Warn().Err(err).Str("acp", acpID).Msg("unparseable privileges block")
			continue
		}
		for _, rule := range rules {
			if rule.AllowsOriginator(from) && rule.AllowsOperation(op) {
				return nil
			}
		}
	}

	return &resource.ContentError{
		Status:  onem2m.StatusContentsUnacceptable,
		Message: "originator not permitted by access control policy: " + from,
	}
}
