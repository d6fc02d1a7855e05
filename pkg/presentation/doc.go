// Package presentation implements the session layer of the stack: typed
// publishers, subscribers, RPC clients and servers, and the shared
// lifecycle machinery that destroys them deterministically.
//
// # Session sharing
//
// Session state is expensive (arena-charged, transport-bound), so cooperating
// call sites share one implementation object per port. Handles returned by
// the Presentation owner are cheap references: the first handle constructs
// the implementation, later handles retain it, and closing a handle releases
// it. Reference counts are plain integers; the stack is single-threaded
// cooperative by contract and no other aliasing path exists.
//
// # Deferred, ordered destruction
//
// When the last handle closes, the implementation is not destroyed inline.
// It is unregistered from its port and appended to an intrusive list of
// unreferenced objects. The executor calls FlushUnreferenced between
// iterations — never from inside a callback — which walks the list in FIFO
// order of abandonment and finalizes each object, returning its bytes to
// the arena. FIFO order is load-bearing: an object released before its
// dependency is destroyed before that dependency, so teardown never touches
// a dependency that is already gone.
//
// # Contract violations
//
// Retaining an object already pending destruction, releasing one whose
// count is zero, and destroying twice are programming errors, not runtime
// conditions. They are checked under the "assert" build tag and documented
// as caller obligations otherwise. Arena exhaustion, by contrast, is a
// recoverable error value returned to whoever asked for the session.
package presentation
