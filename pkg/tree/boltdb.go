package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
)

var (
	// Bucket names
	bucketCses      = []byte("cses")
	bucketResources = []byte("resources")
)

// BoltTree implements Store using BoltDB
type BoltTree struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// NewBoltTree creates a new BoltDB-backed resource tree
func NewBoltTree(dataDir string) (*BoltTree, error) {
	dbPath := filepath.Join(dataDir, "onem2m.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketCses,
			bucketResources,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltTree{
		db:     db,
		logger: log.WithComponent("tree"),
	}, nil
}

// Close closes the database
func (t *BoltTree) Close() error {
	return t.db.Close()
}

// CreateCse provisions a new CSE: the cse record plus its root resource, in
// one commit. The root resource id is generated here and written back into
// the cse record.
func (t *BoltTree) CreateCse(cse *Cse, rootAttrs map[string]string) (*Resource, error) {
	var root *Resource
	err := t.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketCses).Get([]byte(cse.Name)) != nil {
			return ErrAlreadyExists
		}

		id := generateResourceIDTx(tx)
		cse.ResourceID = id

		root = &Resource{
			ID:       id,
			Name:     cse.Name,
			Type:     string(onem2m.ResourceTypeCseBase),
			ParentID: onem2m.NullResourceID,
			PrevID:   onem2m.NullResourceID,
			NextID:   onem2m.NullResourceID,
			LatestID: onem2m.NullResourceID,
			OldestID: onem2m.NullResourceID,
			Attrs:    rootAttrs,
		}

		if err := putCseTx(tx, cse); err != nil {
			return err
		}
		return putResourceTx(tx, root)
	})
	if err != nil {
		return nil, err
	}
	t.logger.Info().
		Str("cse", cse.Name).
		Str("resource_id", cse.ResourceID).
		Msg("provisioned cse")
	return root, nil
}

// GetCse returns the cse record for a name
func (t *BoltTree) GetCse(name string) (*Cse, error) {
	var cse *Cse
	err := t.db.View(func(tx *bolt.Tx) error {
		var err error
		cse, err = getCseTx(tx, name)
		return err
	})
	return cse, err
}

// ListCses returns every provisioned cse record
func (t *BoltTree) ListCses() ([]*Cse, error) {
	var cses []*Cse
	err := t.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCses).ForEach(func(k, v []byte) error {
			var cse Cse
			if err := json.Unmarshal(v, &cse); err != nil {
				return err
			}
			cses = append(cses, &cse)
			return nil
		})
	})
	return cses, err
}

// CreateResource writes a new resource and links it under its parent. For a
// ContentInstance under a Container the container's oldest/latest pointers,
// the previous latest sibling's next link, and the container's cni/cbs/st
// counters are updated in the same commit.
func (t *BoltTree) CreateResource(res *Resource) error {
	if res.ParentID == "" || res.ParentID == onem2m.NullResourceID {
		return fmt.Errorf("resource must have a parent")
	}

	return t.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketResources).Stats().KeyN >= onem2m.MaxResources {
			return fmt.Errorf("resource limit reached (%d)", onem2m.MaxResources)
		}

		parent, err := getResourceTx(tx, res.ParentID)
		if err != nil {
			return fmt.Errorf("failed to load parent %s: %w", res.ParentID, err)
		}

		if res.ID == "" {
			res.ID = generateResourceIDTx(tx)
		}
		if res.Name == "" {
			res.Name = res.ID
		}
		res.PrevID = onem2m.NullResourceID
		res.NextID = onem2m.NullResourceID
		res.LatestID = onem2m.NullResourceID
		res.OldestID = onem2m.NullResourceID

		if res.Type == string(onem2m.ResourceTypeContentInstance) &&
			parent.Type == string(onem2m.ResourceTypeContainer) {
			if err := linkContentInstanceTx(tx, parent, res); err != nil {
				return err
			}
		}

		parent.Children = append(parent.Children, ChildRef{
			Name:       res.Name,
			ResourceID: res.ID,
		})
		parent.SetAttr(onem2m.AttrLastModifiedTime, onem2m.Now())

		if err := putResourceTx(tx, parent); err != nil {
			return err
		}
		return putResourceTx(tx, res)
	})
}

// linkContentInstanceTx inserts a new ContentInstance at the tail of the
// container's sibling list and bumps the container's aggregate counters.
func linkContentInstanceTx(tx *bolt.Tx, container, res *Resource) error {
	if container.LatestID == onem2m.NullResourceID {
		// First instance: both ends point at it.
		container.LatestID = res.ID
		container.OldestID = res.ID
	} else {
		prev, err := getResourceTx(tx, container.LatestID)
		if err != nil {
			return fmt.Errorf("failed to load latest sibling %s: %w", container.LatestID, err)
		}
		prev.NextID = res.ID
		res.PrevID = prev.ID
		if err := putResourceTx(tx, prev); err != nil {
			return err
		}
		container.LatestID = res.ID
	}

	bumpCounter(container, onem2m.AttrCurrNrInstances, 1)
	bumpCounter(container, onem2m.AttrCurrByteSize, attrInt(res, onem2m.AttrContentSize))
	bumpCounter(container, onem2m.AttrStateTag, 1)
	return nil
}

func attrInt(res *Resource, name string) int {
	n, _ := strconv.Atoi(res.Attr(name))
	return n
}

func bumpCounter(res *Resource, name string, delta int) {
	res.SetAttr(name, strconv.Itoa(attrInt(res, name)+delta))
}

// RetrieveResource returns a resource by id
func (t *BoltTree) RetrieveResource(id string) (*Resource, error) {
	var res *Resource
	err := t.db.View(func(tx *bolt.Tx) error {
		var err error
		res, err = getResourceTx(tx, id)
		return err
	})
	return res, err
}

// RetrieveChildByName returns the named child of a parent resource
func (t *BoltTree) RetrieveChildByName(parentID, name string) (*Resource, error) {
	var res *Resource
	err := t.db.View(func(tx *bolt.Tx) error {
		parent, err := getResourceTx(tx, parentID)
		if err != nil {
			return err
		}
		ref := parent.Child(name)
		if ref == nil {
			return ErrNotFound
		}
		res, err = getResourceTx(tx, ref.ResourceID)
		return err
	})
	return res, err
}

// UpdateAttrs merges flat attributes and replaces the named attribute sets
// of a resource in one commit.
func (t *BoltTree) UpdateAttrs(id string, attrs map[string]string, attrSets map[string][]string) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		res, err := getResourceTx(tx, id)
		if err != nil {
			return err
		}
		for name, value := range attrs {
			res.SetAttr(name, value)
		}
		for name, members := range attrSets {
			res.SetAttrSet(name, members)
		}
		return putResourceTx(tx, res)
	})
}

// DeleteSubtree removes a resource and all its descendants in one commit:
// sibling/pointer fixups on the container, the whole subtree id list, then
// the parent's child-list entry. Returns the deleted ids.
func (t *BoltTree) DeleteSubtree(id string) ([]string, error) {
	var deleted []string
	err := t.db.Update(func(tx *bolt.Tx) error {
		res, err := getResourceTx(tx, id)
		if err != nil {
			return err
		}

		var parent *Resource
		if res.ParentID != onem2m.NullResourceID {
			parent, err = getResourceTx(tx, res.ParentID)
			if err != nil {
				return fmt.Errorf("failed to load parent %s: %w", res.ParentID, err)
			}
		}

		if parent != nil &&
			res.Type == string(onem2m.ResourceTypeContentInstance) &&
			parent.Type == string(onem2m.ResourceTypeContainer) {
			if err := unlinkContentInstanceTx(tx, parent, res); err != nil {
				return err
			}
		}

		// Collect the full subtree id list before deleting anything.
		deleted = []string{res.ID}
		for i := 0; i < len(deleted); i++ {
			cur, err := getResourceTx(tx, deleted[i])
			if err != nil {
				return err
			}
			for _, ref := range cur.Children {
				deleted = append(deleted, ref.ResourceID)
			}
		}
		for _, del := range deleted {
			if err := deleteResourceTx(tx, del); err != nil {
				return err
			}
		}

		if parent != nil {
			children := parent.Children[:0]
			for _, ref := range parent.Children {
				if ref.ResourceID != res.ID {
					children = append(children, ref)
				}
			}
			parent.Children = children
			parent.SetAttr(onem2m.AttrLastModifiedTime, onem2m.Now())
			return putResourceTx(tx, parent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.Debug().
		Str("resource_id", id).
		Int("deleted", len(deleted)).
		Msg("deleted subtree")
	return deleted, nil
}

// unlinkContentInstanceTx removes a ContentInstance from the container's
// sibling list. Four cases: only child, deleting the latest, deleting the
// oldest, deleting from the middle.
func unlinkContentInstanceTx(tx *bolt.Tx, container, res *Resource) error {
	switch {
	case container.LatestID == res.ID && container.OldestID == res.ID:
		container.LatestID = onem2m.NullResourceID
		container.OldestID = onem2m.NullResourceID

	case container.LatestID == res.ID:
		prev, err := getResourceTx(tx, res.PrevID)
		if err != nil {
			return err
		}
		prev.NextID = onem2m.NullResourceID
		if err := putResourceTx(tx, prev); err != nil {
			return err
		}
		container.LatestID = res.PrevID

	case container.OldestID == res.ID:
		next, err := getResourceTx(tx, res.NextID)
		if err != nil {
			return err
		}
		next.PrevID = onem2m.NullResourceID
		if err := putResourceTx(tx, next); err != nil {
			return err
		}
		container.OldestID = res.NextID

	default:
		prev, err := getResourceTx(tx, res.PrevID)
		if err != nil {
			return err
		}
		next, err := getResourceTx(tx, res.NextID)
		if err != nil {
			return err
		}
		prev.NextID = next.ID
		next.PrevID = prev.ID
		if err := putResourceTx(tx, prev); err != nil {
			return err
		}
		if err := putResourceTx(tx, next); err != nil {
			return err
		}
	}

	bumpCounter(container, onem2m.AttrCurrNrInstances, -1)
	bumpCounter(container, onem2m.AttrCurrByteSize, -attrInt(res, onem2m.AttrContentSize))
	bumpCounter(container, onem2m.AttrStateTag, 1)
	return nil
}

// FindResourceUsingURI resolves a target URI to a resource. The first path
// segment must name a known CSE. A two-segment URI is tried first as a raw
// resource id (non-hierarchical addressing), then as a child name under the
// CSE root. Deeper URIs walk child names level by level, with the reserved
// names "latest"/"oldest" resolved through the container's cached pointers.
func (t *BoltTree) FindResourceUsingURI(uri string) (*Resource, error) {
	uri = onem2m.TrimURI(uri)
	if uri == "" {
		return nil, ErrNotFound
	}
	parts := strings.Split(uri, "/")

	cse, err := t.GetCse(parts[0])
	if err != nil {
		return nil, err
	}
	root, err := t.RetrieveResource(cse.ResourceID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return root, nil
	}

	if len(parts) == 2 {
		res, err := t.RetrieveResource(parts[1])
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return t.resolveChild(root, parts[1])
	}

	cur := root
	for _, seg := range parts[1:] {
		cur, err = t.resolveChild(cur, seg)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// resolveChild resolves one path segment under a parent, honoring the
// reserved latest/oldest names for containers.
func (t *BoltTree) resolveChild(parent *Resource, name string) (*Resource, error) {
	switch name {
	case onem2m.LatestName:
		if parent.LatestID == onem2m.NullResourceID {
			return nil, ErrNotFound
		}
		return t.RetrieveResource(parent.LatestID)
	case onem2m.OldestName:
		if parent.OldestID == onem2m.NullResourceID {
			return nil, ErrNotFound
		}
		return t.RetrieveResource(parent.OldestID)
	}
	return t.RetrieveChildByName(parent.ID, name)
}

// HierarchicalName walks parent links to the CSE root, joining resource
// names into the absolute hierarchical address ("/cse1/AE1/cont1").
func (t *BoltTree) HierarchicalName(id string) (string, error) {
	name := ""
	cur := id
	for cur != onem2m.NullResourceID {
		res, err := t.RetrieveResource(cur)
		if err != nil {
			return "", err
		}
		name = "/" + res.Name + name
		cur = res.ParentID
	}
	return name, nil
}

// NonHierarchicalName returns "/<rootName>/<resourceId>": the one-level-deep
// address usable without knowing the resource's position in the tree.
func (t *BoltTree) NonHierarchicalName(id string) (string, error) {
	if id == onem2m.NullResourceID {
		return "", ErrNotFound
	}
	cur := id
	for {
		res, err := t.RetrieveResource(cur)
		if err != nil {
			return "", err
		}
		if res.ParentID == onem2m.NullResourceID {
			return "/" + res.Name + "/" + id, nil
		}
		cur = res.ParentID
	}
}

// HierarchicalResourceList returns the ids of a subtree in breadth-first
// order, root first, capped at limit.
func (t *BoltTree) HierarchicalResourceList(rootID string, limit int) ([]string, error) {
	if limit <= 0 || limit > onem2m.MaxDiscoveryLimit {
		limit = onem2m.MaxDiscoveryLimit
	}
	ids := []string{rootID}
	err := t.db.View(func(tx *bolt.Tx) error {
		for i := 0; i < len(ids) && len(ids) < limit; i++ {
			res, err := getResourceTx(tx, ids[i])
			if err != nil {
				return err
			}
			for _, ref := range res.Children {
				if len(ids) >= limit {
					break
				}
				ids = append(ids, ref.ResourceID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindSubscriptionResources returns the ids of subscription resources in
// scope for a change to the given resource: subscriptions directly under it,
// then subscriptions directly under its parent.
func (t *BoltTree) FindSubscriptionResources(resourceID string) ([]string, error) {
	var subs []string
	err := t.db.View(func(tx *bolt.Tx) error {
		res, err := getResourceTx(tx, resourceID)
		if err != nil {
			return err
		}
		subs = appendSubscriptionsTx(tx, subs, res)
		if res.ParentID != onem2m.NullResourceID {
			parent, err := getResourceTx(tx, res.ParentID)
			if err != nil {
				return err
			}
			subs = appendSubscriptionsTx(tx, subs, parent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func appendSubscriptionsTx(tx *bolt.Tx, subs []string, parent *Resource) []string {
	for _, ref := range parent.Children {
		child, err := getResourceTx(tx, ref.ResourceID)
		if err != nil {
			continue
		}
		if child.Type == string(onem2m.ResourceTypeSubscription) {
			subs = append(subs, child.ID)
		}
	}
	return subs
}

// ResourceCount returns the number of resources across all CSEs
func (t *BoltTree) ResourceCount() (int, error) {
	count := 0
	err := t.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketResources).Stats().KeyN
		return nil
	})
	return count, err
}
