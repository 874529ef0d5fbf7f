/*
Package lock provides per-resource-id mutual exclusion for the request
processor.

Concurrent mutating requests against the same resource id are serialized;
requests against disjoint ids run concurrently. The manager keeps a
reference-counted lock entry per id inside a map guarded by a short-held
global mutex, releasing the global mutex before blocking on the per-id lock.

Structural mutations (child-list edits during create and subtree delete) lock
the parent id, not just the resource being touched, so a create racing a
delete of the same parent cannot interleave with the child-list rewrite.

Callers should use WithLock, which guarantees release on every exit path.
*/
package lock
