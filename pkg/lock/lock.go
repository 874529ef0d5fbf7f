package lock

import (
	"sync"
)

// entry is one per-resource lock, reference-counted so the map entry can be
// removed when the last holder or waiter is done.
type entry struct {
	refs int
	mu   sync.Mutex
}

// Locker serializes mutating operations per resource id. Operations on
// disjoint ids proceed concurrently; two operations on the same id execute
// mutually exclusively.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewLocker creates an empty lock manager.
func NewLocker() *Locker {
	return &Locker{
		entries: make(map[string]*entry),
	}
}

// Lock acquires the exclusive lock for a resource id, blocking until any
// current holder releases it. The global map lock is dropped before blocking
// so contention on one id never stalls unrelated ids.
func (l *Locker) Lock(resourceID string) {
	l.mu.Lock()
	e, ok := l.entries[resourceID]
	if !ok {
		e = &entry{refs: 1}
		l.entries[resourceID] = e
	} else {
		e.refs++
	}
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for a resource id. Every Lock must be paired with
// exactly one Unlock; the entry is removed once the last holder releases.
func (l *Locker) Unlock(resourceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[resourceID]
	if !ok {
		return
	}
	e.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, resourceID)
	}
}

// WithLock runs fn while holding the lock for resourceID, releasing it on
// every exit path. Mutating callers should prefer this over Lock/Unlock
// pairs: a missed Unlock leaks the entry permanently.
func (l *Locker) WithLock(resourceID string, fn func()) {
	l.Lock(resourceID)
	defer l.Unlock(resourceID)
	fn()
}

// Held returns the number of ids currently locked or waited on. Used by
// tests to verify entries drain.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
