// Package mem implements the pre-sized memory arena all session objects are
// constructed from.
//
// Embedded deployments of the stack forbid unbounded allocation after
// startup. Every protocol-layer object (publisher, subscriber, RPC client or
// server state) is therefore charged against a caller-supplied Arena with a
// fixed byte budget. Exhaustion is a recoverable, typed error surfaced to
// the call site that asked for the object ("cannot open subscription"),
// never a crash.
//
// # Accounting model
//
// The arena tracks a byte budget rather than owning raw storage: Go's
// runtime performs the actual allocation, while the arena decides whether
// the request fits the budget the deployment configured. Reclaiming a freed
// object's bytes lets a subsequent request of the same size succeed, so the
// reuse guarantees of a pooled allocator hold without unsafe storage reuse.
//
// # Concurrency
//
// The stack's execution model is single-threaded cooperative. Arena state
// is deliberately unsynchronized; all reserve/reclaim traffic must come
// from the executor thread.
package mem
