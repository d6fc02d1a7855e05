package mem

import (
	"fmt"
	"reflect"

	"github.com/niicoooo/libcyphal/internal/debug"
)

// Resource is the memory resource contract session objects are constructed
// against. Implemented by *Arena; tests substitute failing fakes.
type Resource interface {
	// Reserve charges size bytes against the budget. Returns a
	// *AllocationError when the request cannot be satisfied.
	Reserve(size uintptr) error

	// Reclaim returns size bytes to the budget. Must be called with the
	// exact size of a prior successful Reserve.
	Reclaim(size uintptr)
}

// AllocationError reports arena exhaustion. It is recoverable: the caller
// that requested the object decides the fallback (reject the new session,
// retry later).
type AllocationError struct {
	// Requested is the size of the failed request in bytes.
	Requested uintptr

	// Capacity is the arena's total budget in bytes.
	Capacity uintptr

	// Used is the number of bytes outstanding when the request failed.
	Used uintptr
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("arena exhausted: requested %d bytes, %d of %d in use",
		e.Requested, e.Used, e.Capacity)
}

// Arena is a fixed-budget memory resource. The zero value is unusable; use
// NewArena.
//
// Arena is not safe for concurrent use. All traffic must come from the
// single executor thread.
type Arena struct {
	capacity uintptr
	used     uintptr
	peak     uintptr
	reserves uint64
	reclaims uint64
}

// ArenaStats is a snapshot of arena usage diagnostics.
type ArenaStats struct {
	// Capacity is the total budget in bytes.
	Capacity uintptr

	// Used is the number of bytes currently outstanding.
	Used uintptr

	// Peak is the high-water mark of Used.
	Peak uintptr

	// Reserves counts successful Reserve calls.
	Reserves uint64

	// Reclaims counts Reclaim calls.
	Reclaims uint64
}

// NewArena creates an arena with the given byte budget.
func NewArena(capacity uintptr) *Arena {
	return &Arena{capacity: capacity}
}

// Reserve charges size bytes against the budget.
func (a *Arena) Reserve(size uintptr) error {
	if a.used+size > a.capacity {
		return &AllocationError{Requested: size, Capacity: a.capacity, Used: a.used}
	}
	a.used += size
	if a.used > a.peak {
		a.peak = a.used
	}
	a.reserves++
	return nil
}

// Reclaim returns size bytes to the budget.
func (a *Arena) Reclaim(size uintptr) {
	debug.Assert(size <= a.used, "reclaim exceeds outstanding bytes")
	a.used -= size
	a.reclaims++
}

// Stats returns a snapshot of usage diagnostics.
func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Capacity: a.capacity,
		Used:     a.used,
		Peak:     a.peak,
		Reserves: a.reserves,
		Reclaims: a.reclaims,
	}
}

// Compile-time interface satisfaction check.
var _ Resource = (*Arena)(nil)

// SizeOf returns the arena charge for values of type T.
func SizeOf[T any]() uintptr {
	return reflect.TypeOf((*T)(nil)).Elem().Size()
}

// New constructs a zero-valued T charged against res. On exhaustion it
// returns the resource's typed error and constructs nothing; no partially
// constructed object ever escapes. The caller owns the result and must end
// its life with exactly one matching Free against the same resource.
func New[T any](res Resource) (*T, error) {
	if err := res.Reserve(SizeOf[T]()); err != nil {
		return nil, err
	}
	return new(T), nil
}

// Free returns the bytes of a value previously produced by New back to the
// same resource. Calling Free twice for one object is a contract violation.
func Free[T any](res Resource, p *T) {
	debug.Assert(p != nil, "free of nil object")
	res.Reclaim(SizeOf[T]())
}
