package presentation

import "github.com/niicoooo/libcyphal/internal/debug"

// Shareable is the capability every session implementation provides: shared
// ownership via reference counting, plus a single terminal Destroy that the
// owning Presentation invokes once teardown is decided.
type Shareable interface {
	// Retain increments the reference count. Must not be called on an
	// object already pending destruction.
	Retain()

	// Release decrements the reference count and reports whether the
	// object is no longer referenced. The caller (the owner) decides
	// what to do when true is returned; Release itself never links or
	// destroys.
	Release() bool

	// IsReferenced reports whether at least one reference is held.
	IsReferenced() bool

	// Destroy finalizes the object and returns its memory to the arena.
	// The last operation in an object's life; at most once, must not
	// panic.
	Destroy()
}

// UnrefNode is the intrusive doubly-linked node every shareable session
// object embeds exactly once. A node is either fully linked (both
// neighbors set) or fully unlinked (both nil); partial linkage is never
// observable.
//
// The list encodes pending-destruction order only. It does not own the
// objects; the arena holds true ownership until Destroy runs.
type UnrefNode struct {
	prev, next *UnrefNode

	// owner is the object embedding this node, needed to recover the
	// Shareable during the drain walk. Nil on the sentinel.
	owner Shareable
}

// linkAsUnreferenced appends the node immediately before origin, making it
// the new tail of the chain rooted at origin. Objects therefore drain in
// the order they became unreferenced. No-op if already linked.
func (n *UnrefNode) linkAsUnreferenced(origin *UnrefNode) {
	debug.Assert((n.prev != nil) == (n.next != nil), "node links must be both set or both clear")

	if n.prev == nil && n.next == nil {
		n.next = origin
		n.prev = origin.prev
		origin.prev.next = n
		origin.prev = n
	}
}

// unlinkIfLinked splices the node out of the chain and resets both links.
// No-op if already unlinked.
func (n *UnrefNode) unlinkIfLinked() {
	debug.Assert((n.prev != nil) == (n.next != nil), "node links must be both set or both clear")

	if n.prev != nil && n.next != nil {
		n.prev.next = n.next
		n.next.prev = n.prev

		n.next = nil
		n.prev = nil
	}
}

// isLinked reports whether the node is in the unreferenced chain.
func (n *UnrefNode) isLinked() bool {
	return n.prev != nil
}

// SharedObject is the reference-counting base every session implementation
// embeds. The counter is a plain integer: the execution model is strictly
// single-threaded cooperative, so no atomics or locks are needed. A
// multi-threaded port must re-derive synchronization for every operation
// here.
type SharedObject struct {
	UnrefNode

	refCount uint32
}

// Retain increments the reference count. Retaining an object that is
// already linked as unreferenced is a contract violation: pending
// destruction is terminal, and the owner creates a fresh object instead of
// resurrecting one.
func (o *SharedObject) Retain() {
	debug.Assert(!o.isLinked(), "retain on object pending destruction")

	o.refCount++
}

// Release decrements the reference count and reports whether it reached
// zero. The count must be positive before the call.
func (o *SharedObject) Release() bool {
	debug.Assert(o.refCount > 0, "release on unreferenced object")

	o.refCount--
	return o.refCount == 0
}

// IsReferenced reports whether at least one reference is held.
func (o *SharedObject) IsReferenced() bool {
	return o.refCount > 0
}
