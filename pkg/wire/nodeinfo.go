package wire

// Version is a semantic major/minor pair used for hardware and software
// version reporting.
type Version struct {
	Major uint8 `cbor:"1,keyasint"`
	Minor uint8 `cbor:"2,keyasint"`
}

// NodeInfoRequest queries a node's static identity. It carries no fields;
// the type exists so the GetInfo service has a schema on both sides.
type NodeInfoRequest struct{}

// NodeInfo is the response to a GetInfo request.
type NodeInfo struct {
	// Protocol is the wire protocol version the node speaks.
	Protocol Version `cbor:"1,keyasint"`

	// Hardware is the hardware revision.
	Hardware Version `cbor:"2,keyasint"`

	// Software is the software revision.
	Software Version `cbor:"3,keyasint"`

	// SoftwareVCS is the VCS revision id of the software, if known.
	SoftwareVCS uint64 `cbor:"4,keyasint,omitempty"`

	// UniqueID is a 128-bit identifier that never changes for a given
	// physical node.
	UniqueID [16]byte `cbor:"5,keyasint"`

	// Name is the reversed-DNS node name, e.g. "org.example.thermostat".
	Name string `cbor:"6,keyasint"`
}
