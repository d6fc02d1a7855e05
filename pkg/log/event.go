package log

import "time"

// Layer identifies the stack layer that produced an event.
type Layer uint8

const (
	// LayerMem is the arena memory resource.
	LayerMem Layer = iota + 1

	// LayerPresentation is the session lifecycle layer.
	LayerPresentation

	// LayerTransport is the datagram medium.
	LayerTransport

	// LayerExecutor is the cooperative executor.
	LayerExecutor

	// LayerApplication is node-level application logic.
	LayerApplication
)

// String returns a human-readable layer name.
func (l Layer) String() string {
	switch l {
	case LayerMem:
		return "MEM"
	case LayerPresentation:
		return "PRESENTATION"
	case LayerTransport:
		return "TRANSPORT"
	case LayerExecutor:
		return "EXECUTOR"
	case LayerApplication:
		return "APPLICATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	// CategorySessionCreated marks construction of a session object.
	CategorySessionCreated Category = iota + 1

	// CategorySessionRetained marks a reference-count increment.
	CategorySessionRetained

	// CategorySessionReleased marks a reference-count decrement.
	CategorySessionReleased

	// CategorySessionPending marks the transition to pending destruction.
	CategorySessionPending

	// CategorySessionDestroyed marks final teardown.
	CategorySessionDestroyed

	// CategoryTransferSent marks a transfer handed to the medium.
	CategoryTransferSent

	// CategoryTransferReceived marks a transfer accepted from the medium.
	CategoryTransferReceived

	// CategoryAllocationFailed marks arena exhaustion.
	CategoryAllocationFailed

	// CategoryError marks any other failure.
	CategoryError
)

// String returns a human-readable category name.
func (c Category) String() string {
	switch c {
	case CategorySessionCreated:
		return "SESSION_CREATED"
	case CategorySessionRetained:
		return "SESSION_RETAINED"
	case CategorySessionReleased:
		return "SESSION_RELEASED"
	case CategorySessionPending:
		return "SESSION_PENDING"
	case CategorySessionDestroyed:
		return "SESSION_DESTROYED"
	case CategoryTransferSent:
		return "TRANSFER_SENT"
	case CategoryTransferReceived:
		return "TRANSFER_RECEIVED"
	case CategoryAllocationFailed:
		return "ALLOCATION_FAILED"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is one structured log record from the stack.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Layer that produced the event.
	Layer Layer `cbor:"2,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// NodeID is the local node, when known (0xFFFF if anonymous).
	NodeID uint16 `cbor:"4,keyasint,omitempty"`

	// Port is the subject or service port involved, if any.
	Port uint16 `cbor:"5,keyasint,omitempty"`

	// TransferID is the transfer involved, if any.
	TransferID uint64 `cbor:"6,keyasint,omitempty"`

	// Detail is a short human-readable description.
	Detail string `cbor:"7,keyasint,omitempty"`

	// Error is the error text for failure events.
	Error string `cbor:"8,keyasint,omitempty"`
}
