package tree

// Cse is the root record of one resource tree. A deployment may host several
// CSEs, each with its own tree, partitioned by name.
type Cse struct {
	Name       string `json:"name"`
	ResourceID string `json:"resource_id"`
	CseID      string `json:"cse_id"`
	CseType    string `json:"cse_type"`
}

// ChildRef is one entry in a parent's ordered child list.
type ChildRef struct {
	Name       string `json:"name"`
	ResourceID string `json:"resource_id"`
}

// Resource is a node in the hierarchical tree. Links are resource ids, never
// pointers: parent via ParentID, ContentInstance siblings via PrevID/NextID,
// and the container's cached ends via LatestID/OldestID.
//
// Attrs holds the flat single-valued protocol attributes (ct, lt, api, cni,
// con, ...); AttrSets holds the multi-valued ones (lbl, nu, poa, acpi).
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parent_id"`

	// Sibling links, used only by ContentInstance resources.
	PrevID string `json:"prev_id"`
	NextID string `json:"next_id"`

	// Cached ends of the ContentInstance sibling list, used only by
	// Container resources. O(1) insert-at-tail and latest/oldest lookup.
	LatestID string `json:"latest_id"`
	OldestID string `json:"oldest_id"`

	Children []ChildRef          `json:"children,omitempty"`
	Attrs    map[string]string   `json:"attrs,omitempty"`
	AttrSets map[string][]string `json:"attr_sets,omitempty"`
}

// Child returns the child ref with the given name, or nil.
func (r *Resource) Child(name string) *ChildRef {
	for i := range r.Children {
		if r.Children[i].Name == name {
			return &r.Children[i]
		}
	}
	return nil
}

// Attr returns a flat attribute value, "" when absent.
func (r *Resource) Attr(name string) string {
	return r.Attrs[name]
}

// SetAttr sets a flat attribute, allocating the map on first use.
func (r *Resource) SetAttr(name, value string) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]string)
	}
	r.Attrs[name] = value
}

// AttrSet returns the members of a multi-valued attribute.
func (r *Resource) AttrSet(name string) []string {
	return r.AttrSets[name]
}

// SetAttrSet replaces the members of a multi-valued attribute.
func (r *Resource) SetAttrSet(name string, members []string) {
	if r.AttrSets == nil {
		r.AttrSets = make(map[string][]string)
	}
	r.AttrSets[name] = members
}
