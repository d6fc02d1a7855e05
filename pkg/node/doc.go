// Package node implements the application layer: one Node owns an arena, a
// presentation layer and a cooperative executor, publishes the standard
// heartbeat, and serves the standard node-info and register services.
//
// A Node wires the pieces the way every deployment needs them wired: the
// presentation drain runs between executor iterations, the medium is
// polled with the executor's bounded timeout, and pending RPC deadlines
// are swept on a fixed cadence. Applications create their own sessions
// through Presentation() and drive everything from Run.
package node
