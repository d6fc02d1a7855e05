package presentation

import (
	"errors"
	"time"

	"github.com/niicoooo/libcyphal/pkg/wire"
)

// Presentation-layer errors.
var (
	// ErrServiceInUse is returned when a server already exists for the
	// requested service port.
	ErrServiceInUse = errors.New("service port already has a server")

	// ErrTimeout is delivered to a client completion when the response
	// deadline passes.
	ErrTimeout = errors.New("service call timed out")

	// ErrClosed is returned for operations on a closed handle.
	ErrClosed = errors.New("session handle closed")

	// ErrAnonymousNode is returned when an operation requires a concrete
	// local node ID (RPC) but the node is anonymous.
	ErrAnonymousNode = errors.New("operation requires a non-anonymous node ID")
)

// Transfer is a received subject message delivered to subscriber callbacks.
type Transfer struct {
	// Priority the sender assigned.
	Priority wire.Priority

	// Source is the publishing node; wire.NodeIDUnset for anonymous
	// publishers.
	Source wire.NodeID

	// TransferID from the sender's session counter.
	TransferID uint64

	// Payload is the opaque message payload.
	Payload []byte

	// Timestamp is the local reception time.
	Timestamp time.Time
}

// Request is a received service request delivered to a server handler.
type Request struct {
	// Priority the caller assigned; echoed into the response.
	Priority wire.Priority

	// Source is the calling node.
	Source wire.NodeID

	// TransferID matches the response to the caller's pending call.
	TransferID uint64

	// Payload is the opaque request payload.
	Payload []byte

	// Timestamp is the local reception time.
	Timestamp time.Time
}

// Response is a received service response delivered to a client completion.
type Response struct {
	// Source is the responding server node.
	Source wire.NodeID

	// TransferID echoes the request.
	TransferID uint64

	// Payload is the opaque response payload.
	Payload []byte

	// Timestamp is the local reception time.
	Timestamp time.Time
}

// MessageHandler receives subject messages on a subscriber handle.
type MessageHandler func(Transfer)

// RequestHandler produces a response payload for a service request.
// Returning an error suppresses the response; the caller times out.
type RequestHandler func(Request) ([]byte, error)

// ResponseHandler completes a client call: exactly one of response or err
// (ErrTimeout) is meaningful.
type ResponseHandler func(response Response, err error)
