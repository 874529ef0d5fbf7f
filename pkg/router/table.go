package router

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/onem2m"
)

// CseBase is the routing record of a locally provisioned CSE: identity plus
// the remote CSEs registered under it.
type CseBase struct {
	Name           string
	ResourceID     string
	CseID          string
	CseType        string
	FQDN           string
	RegistrarCseID string

	remotes map[string]*RemoteCse
}

// Verify checks the mandatory fields before the record may enter the table.
// An IN-CSE has no registrar by definition.
func (b *CseBase) Verify() error {
	if b.Name == "" || b.ResourceID == "" || b.CseID == "" || b.CseType == "" {
		return fmt.Errorf("cseBase routing data incomplete: name=%q resourceId=%q cseId=%q cseType=%q",
			b.Name, b.ResourceID, b.CseID, b.CseType)
	}
	if b.CseType == string(onem2m.CseTypeIN) && b.RegistrarCseID != "" {
		return fmt.Errorf("IN-CSE cseBase %s must not have a registrar", b.Name)
	}
	return nil
}

// RemoteCse is the routing record of a remoteCSE resource: reachability and
// the points of access to try when forwarding.
type RemoteCse struct {
	ParentBaseName  string
	ParentBaseCseID string
	Name            string
	ResourceID      string
	CseID           string
	CseType         string

	RequestReachable bool
	PointOfAccess    []string
	PollingChannel   string
}

// Verify checks the mandatory fields before the record may enter the table.
func (r *RemoteCse) Verify() error {
	if r.ParentBaseName == "" || r.ParentBaseCseID == "" {
		return fmt.Errorf("remoteCse routing data missing parent base: %q", r.CseID)
	}
	if r.ResourceID == "" || r.CseID == "" {
		return fmt.Errorf("remoteCse routing data incomplete: resourceId=%q cseId=%q",
			r.ResourceID, r.CseID)
	}
	return nil
}

// Table caches CSE registration data for next-hop resolution: one map by
// CSE base name, one by cseId, both mutated together under one lock.
type Table struct {
	mu      sync.RWMutex
	byName  map[string]*CseBase
	byCseID map[string]*CseBase
	logger  zerolog.Logger
}

// NewTable creates an empty routing table.
func NewTable() *Table {
	return &Table{
		byName:  make(map[string]*CseBase),
		byCseID: make(map[string]*CseBase),
		logger:  log.WithComponent("routing-table"),
	}
}

// AddCseBase verifies and inserts a CSE base record. A duplicate is warned
// about and replaced, keeping its registered remotes.
func (t *Table) AddCseBase(base *CseBase) error {
	if err := base.Verify(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byName[base.Name]; ok {
		t.logger.Warn().Str("cse", base.Name).Msg("replacing existing cseBase routing data")
		base.remotes = old.remotes
		delete(t.byCseID, old.CseID)
	}
	if base.remotes == nil {
		base.remotes = make(map[string]*RemoteCse)
	}
	t.byName[base.Name] = base
	t.byCseID[base.CseID] = base
	return nil
}

// DeleteCseBase removes a CSE base and its remotes from both maps.
func (t *Table) DeleteCseBase(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	base, ok := t.byName[name]
	if !ok {
		return
	}
	delete(t.byName, name)
	delete(t.byCseID, base.CseID)
}

// CseBaseByName returns the base record for a CSE name, nil when unknown.
func (t *Table) CseBaseByName(name string) *CseBase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byName[name]
}

// CseBaseByCseID returns the base record for a cseId, nil when unknown.
func (t *Table) CseBaseByCseID(cseID string) *CseBase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byCseID[cseID]
}

// AddRemoteCse verifies and inserts a remote record under its parent base.
// An IN-CSE-type remote under an MN-CSE base promotes itself to the base's
// registrar. A duplicate cseId is warned about and replaced.
func (t *Table) AddRemoteCse(remote *RemoteCse) error {
	if err := remote.Verify(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	base, ok := t.byName[remote.ParentBaseName]
	if !ok {
		return fmt.Errorf("remoteCse %s references unknown cseBase %s",
			remote.CseID, remote.ParentBaseName)
	}
	if _, dup := base.remotes[remote.CseID]; dup {
		t.logger.Warn().Str("cse_id", remote.CseID).Msg("replacing existing remoteCse routing data")
	}
	base.remotes[remote.CseID] = remote

	// Only an MN-CSE base tracks a registrar; Verify forbids one on an
	// IN-CSE base.
	if base.CseType == string(onem2m.CseTypeMN) &&
		remote.CseType == string(onem2m.CseTypeIN) {
		base.RegistrarCseID = remote.CseID
	}
	return nil
}

// DeleteRemoteCse removes a remote record from its parent base, clearing the
// registrar pointer when it pointed at the removed remote.
func (t *Table) DeleteRemoteCse(baseName, cseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	base, ok := t.byName[baseName]
	if !ok {
		return
	}
	delete(base.remotes, cseID)
	if base.RegistrarCseID == cseID {
		base.RegistrarCseID = ""
	}
}

// FindFirstRemoteCse scans all bases in name order and returns the first
// remote registered with the given cseId, plus its owning base. Matching is
// by cseId only; when the same cseId is registered under several bases the
// first in name order wins.
func (t *Table) FindFirstRemoteCse(cseID string) (*RemoteCse, *CseBase) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		base := t.byName[name]
		if remote, ok := base.remotes[cseID]; ok {
			return remote, base
		}
	}
	return nil, nil
}

// RemoteCse returns the remote registered under a specific base, nil when
// absent.
func (t *Table) RemoteCse(baseName, cseID string) *RemoteCse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	base, ok := t.byName[baseName]
	if !ok {
		return nil
	}
	return base.remotes[cseID]
}
