// Package log implements structured event logging for the protocol stack.
//
// Every layer emits Events describing what it did: session lifecycle
// transitions in the presentation layer, transfers crossing the medium,
// allocation failures in the arena. Applications implement Logger (or use
// one of the provided ones) and hand it to the stack; the default is
// NoopLogger, so logging costs nothing unless requested.
//
// Events can be serialized to CBOR for compact capture files and replayed
// with the same codec, and a slog adapter bridges events into a standard
// library *slog.Logger for applications that already have one.
package log
