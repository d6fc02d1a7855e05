// Package wire implements the CBOR encoding of transfers and the standard
// application-level payloads (heartbeat, node info, register access).
//
// All structures use integer map keys for compactness on constrained media.
// Encoding is deterministic (canonical key order, definite lengths) so that
// two nodes encoding the same transfer produce identical bytes; decoding is
// lenient for forward compatibility with newer peers.
//
// The wire layer is payload-agnostic above the transfer header: session
// payloads are opaque byte strings to the transport, and only the standard
// subjects/services defined here give them a schema.
package wire
