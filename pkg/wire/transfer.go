package wire

import "fmt"

// NodeID identifies a node on the network.
type NodeID uint16

// NodeIDUnset marks an anonymous node or a broadcast destination.
const NodeIDUnset NodeID = 0xFFFF

// IsSet reports whether the node ID identifies a concrete node.
func (id NodeID) IsSet() bool {
	return id != NodeIDUnset
}

// PortID identifies a subject (message port) or a service port.
type PortID uint16

// Standard port identifiers.
const (
	// SubjectHeartbeat carries periodic node liveness messages.
	SubjectHeartbeat PortID = 7509

	// ServiceGetInfo answers static node identity queries.
	ServiceGetInfo PortID = 430

	// ServiceRegisterAccess reads and writes named registers.
	ServiceRegisterAccess PortID = 384

	// ServiceRegisterList enumerates register names by index.
	ServiceRegisterList PortID = 385

	// ServiceExecuteCommand runs standard and vendor node commands.
	ServiceExecuteCommand PortID = 435
)

// Priority is the transfer priority level, highest first.
type Priority uint8

// Transfer priority levels.
const (
	PriorityExceptional Priority = iota
	PriorityImmediate
	PriorityFast
	PriorityHigh
	PriorityNominal
	PriorityLow
	PrioritySlow
	PriorityOptional
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityExceptional:
		return "EXCEPTIONAL"
	case PriorityImmediate:
		return "IMMEDIATE"
	case PriorityFast:
		return "FAST"
	case PriorityHigh:
		return "HIGH"
	case PriorityNominal:
		return "NOMINAL"
	case PriorityLow:
		return "LOW"
	case PrioritySlow:
		return "SLOW"
	case PriorityOptional:
		return "OPTIONAL"
	default:
		return fmt.Sprintf("PRIORITY(%d)", uint8(p))
	}
}

// TransferKind distinguishes the three transfer flavors.
type TransferKind uint8

const (
	// KindMessage is a subject broadcast.
	KindMessage TransferKind = iota

	// KindRequest is an RPC request addressed to one server node.
	KindRequest

	// KindResponse is an RPC response addressed back to the caller.
	KindResponse
)

// String returns a human-readable transfer kind name.
func (k TransferKind) String() string {
	switch k {
	case KindMessage:
		return "MESSAGE"
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// ProtocolVersion is the wire protocol version carried in every frame.
const ProtocolVersion = 1

// TransferHeader describes one transfer on the wire.
// CBOR encoding uses integer keys for compactness.
type TransferHeader struct {
	// Version is the wire protocol version (ProtocolVersion).
	Version uint8 `cbor:"1,keyasint"`

	// Kind is the transfer flavor.
	Kind TransferKind `cbor:"2,keyasint"`

	// Priority is the transfer priority level.
	Priority Priority `cbor:"3,keyasint"`

	// Source is the sending node; NodeIDUnset for anonymous transfers.
	Source NodeID `cbor:"4,keyasint"`

	// Destination is the receiving node for requests and responses;
	// NodeIDUnset for subject broadcasts.
	Destination NodeID `cbor:"5,keyasint"`

	// Port is the subject or service port.
	Port PortID `cbor:"6,keyasint"`

	// TransferID increases monotonically per session; responses echo the
	// request's value for matching.
	TransferID uint64 `cbor:"7,keyasint"`
}

// Frame pairs a transfer header with its opaque payload.
type Frame struct {
	Header  TransferHeader `cbor:"1,keyasint"`
	Payload []byte         `cbor:"2,keyasint,omitempty"`
}

// MarshalFrame encodes a frame for transmission.
func MarshalFrame(header TransferHeader, payload []byte) ([]byte, error) {
	return Marshal(Frame{Header: header, Payload: payload})
}

// UnmarshalFrame decodes a received datagram into header and payload.
func UnmarshalFrame(data []byte) (TransferHeader, []byte, error) {
	var f Frame
	if err := Unmarshal(data, &f); err != nil {
		return TransferHeader{}, nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Header.Version != ProtocolVersion {
		return TransferHeader{}, nil, fmt.Errorf("unsupported protocol version %d", f.Header.Version)
	}
	return f.Header, f.Payload, nil
}
