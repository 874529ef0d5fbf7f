package resource

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/onem2m/pkg/onem2m"
)

// Rule is one access-control rule of a policy: the originators it applies to
// and the bitmask of operations it grants them.
type Rule struct {
	Originators []string `json:"acor"`
	Operations  int      `json:"acop"`
}

// AllowsOriginator reports whether the rule names the originator. The "*"
// wildcard matches any originator.
func (r Rule) AllowsOriginator(from string) bool {
	for _, o := range r.Originators {
		if o == "*" || o == from {
			return true
		}
	}
	return false
}

// AllowsOperation reports whether the rule's bitmask grants the operation.
func (r Rule) AllowsOperation(op onem2m.Operation) bool {
	mask, ok := operationMasks[op]
	if !ok {
		return false
	}
	return r.Operations&mask != 0
}

var operationMasks = map[onem2m.Operation]int{
	onem2m.OperationCreate:   onem2m.AcopCreate,
	onem2m.OperationRetrieve: onem2m.AcopRetrieve,
	onem2m.OperationUpdate:   onem2m.AcopUpdate,
	onem2m.OperationDelete:   onem2m.AcopDelete,
	onem2m.OperationNotify:   onem2m.AcopNotify,
}

// ParseRules extracts the access-control rules from a policy resource's
// stored privileges attribute (the canonical JSON of the pv block).
func ParseRules(pv string) ([]Rule, error) {
	var block struct {
		Rules []Rule `json:"acr"`
	}
	if err := json.Unmarshal([]byte(pv), &block); err != nil {
		return nil, fmt.Errorf("failed to parse privileges: %w", err)
	}
	return block.Rules, nil
}
