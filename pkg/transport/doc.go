// Package transport defines the datagram medium contract and provides two
// media: an in-process loopback bus and a UDP multicast medium.
//
// Media carry opaque datagrams; framing and routing semantics live in
// pkg/wire and pkg/presentation. A medium is unreliable by contract:
// datagrams may be dropped (full queues, lossy networks) and the upper
// layers must tolerate that.
//
// Receive is pull-based with a bounded timeout so the single-threaded
// cooperative executor stays in control: the executor computes the poll
// timeout from its callback schedule and hands it to Receive.
package transport
