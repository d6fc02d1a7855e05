package transport

import (
	"errors"
	"time"
)

// Transport errors.
var (
	// ErrClosed is returned for operations on a closed medium.
	ErrClosed = errors.New("medium closed")

	// ErrDatagramTooLarge is returned when a datagram exceeds the MTU.
	ErrDatagramTooLarge = errors.New("datagram exceeds medium MTU")
)

// Medium is the contract every datagram medium implements (UDP, CAN,
// serial, in-process loopback). Implemented by *LoopbackEndpoint and
// *UDPMedium.
type Medium interface {
	// Send transmits one datagram to all reachable peers. Delivery is
	// best-effort.
	Send(data []byte) error

	// Receive waits up to timeout for one datagram. It returns ok=false
	// on timeout; err is reserved for medium failure.
	Receive(timeout time.Duration) (data []byte, ok bool, err error)

	// MTU returns the largest datagram the medium accepts.
	MTU() int

	// Close releases the medium. Subsequent operations return ErrClosed.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Medium = (*LoopbackEndpoint)(nil)
	_ Medium = (*UDPMedium)(nil)
)
