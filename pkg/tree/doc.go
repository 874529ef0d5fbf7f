/*
Package tree implements the persistent oneM2M resource tree on BoltDB.

The tree holds two buckets: "cses" (CSE name to root record) and "resources"
(resource id to node). Every node links to its parent by id, carries an
ordered child list of {name, id} refs, and — for ContentInstances under a
Container — sits in a doubly-linked sibling list whose ends the container
caches as oldest/latest ids. Attributes are a flat name/value map plus named
multi-valued sets (labels, notification URIs, points of access).

# Architecture

	┌──────────────────── RESOURCE TREE ───────────────────────┐
	│                                                           │
	│  cses:       "cse1" → {name, resourceId, cseId, cseType}  │
	│                                                           │
	│  resources:  rootId → cseBase ──children──► aeId, cntId   │
	│              cntId  → container                           │
	│                        oldest ─► cin1                     │
	│                        latest ─► cin3                     │
	│              cin1 ◄─prev/next─► cin2 ◄─────► cin3         │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

# Transactional consistency

Every mutating Store operation is one bolt Update closure. A create writes
the new resource, the parent's child-list entry and any container pointer or
counter fixups together; a delete collects the whole subtree id list first,
then removes every id, the sibling links and the parent's child entry in the
same commit. A failure anywhere rolls the whole operation back; callers see
either the complete new state or the untouched old one.

Resource ids are random 9-digit numeric strings, re-generated until
collision-free, so ids cannot be enumerated by walking a sequence.

# Addressing

FindResourceUsingURI resolves hierarchical addresses ("/cse1/AE1/cont1") by
walking child names, and non-hierarchical addresses ("/cse1/123456789") as a
one-level-deep id lookup. The reserved names "latest" and "oldest" resolve
through the container's cached pointers. HierarchicalName and
NonHierarchicalName invert the mapping for response rendering.

# Usage

	store, err := tree.NewBoltTree(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := store.CreateCse(&tree.Cse{Name: "cse1", CseID: "CSE1", CseType: "IN-CSE"}, attrs)

	res := &tree.Resource{
		Name:     "AE1",
		Type:     string(onem2m.ResourceTypeAE),
		ParentID: root.ID,
		Attrs:    map[string]string{"api": "app-1"},
	}
	err = store.CreateResource(res)
*/
package tree
