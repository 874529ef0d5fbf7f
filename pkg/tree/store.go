package tree

import "errors"

// ErrNotFound is returned when a CSE or resource does not exist. Callers map
// it to a NOT_FOUND response; any other error is an internal store failure.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when provisioning a CSE whose name or cse-id
// is already taken.
var ErrAlreadyExists = errors.New("already exists")

// Store is the resource tree persistence interface. Every mutating call is
// one atomic commit: the resource write, the parent child-list edit and any
// container pointer fixups succeed or fail together.
type Store interface {
	// CSE provisioning and lookup.
	CreateCse(cse *Cse, rootAttrs map[string]string) (*Resource, error)
	GetCse(name string) (*Cse, error)
	ListCses() ([]*Cse, error)

	// Resource CRUD.
	CreateResource(res *Resource) error
	RetrieveResource(id string) (*Resource, error)
	RetrieveChildByName(parentID, name string) (*Resource, error)
	UpdateAttrs(id string, attrs map[string]string, attrSets map[string][]string) error
	DeleteSubtree(id string) ([]string, error)

	// Addressing.
	FindResourceUsingURI(uri string) (*Resource, error)
	HierarchicalName(id string) (string, error)
	NonHierarchicalName(id string) (string, error)
	HierarchicalResourceList(rootID string, limit int) ([]string, error)

	// Subscription scope resolution: subscriptions directly under the
	// resource, then directly under its parent.
	FindSubscriptionResources(resourceID string) ([]string, error)

	ResourceCount() (int, error)
	Close() error
}
