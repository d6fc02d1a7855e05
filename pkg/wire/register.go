package wire

// ValueKind discriminates register value variants.
type ValueKind uint8

const (
	// ValueEmpty is the absent value (read-only probe, missing register).
	ValueEmpty ValueKind = iota

	// ValueInt is a signed 64-bit integer.
	ValueInt

	// ValueFloat is a 64-bit float.
	ValueFloat

	// ValueBool is a boolean.
	ValueBool

	// ValueString is a UTF-8 string.
	ValueString

	// ValueIntList is a list of signed 64-bit integers.
	ValueIntList

	// ValueFloatList is a list of 64-bit floats.
	ValueFloatList
)

// String returns a human-readable value kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueEmpty:
		return "EMPTY"
	case ValueInt:
		return "INT"
	case ValueFloat:
		return "FLOAT"
	case ValueBool:
		return "BOOL"
	case ValueString:
		return "STRING"
	case ValueIntList:
		return "INT_LIST"
	case ValueFloatList:
		return "FLOAT_LIST"
	default:
		return "UNKNOWN"
	}
}

// RegisterValue is the tagged union of register value variants. Exactly the
// field selected by Kind is meaningful.
type RegisterValue struct {
	Kind      ValueKind `cbor:"1,keyasint"`
	Int       int64     `cbor:"2,keyasint,omitempty"`
	Float     float64   `cbor:"3,keyasint,omitempty"`
	Bool      bool      `cbor:"4,keyasint,omitempty"`
	String    string    `cbor:"5,keyasint,omitempty"`
	IntList   []int64   `cbor:"6,keyasint,omitempty"`
	FloatList []float64 `cbor:"7,keyasint,omitempty"`
}

// IsEmpty reports whether the value is absent.
func (v RegisterValue) IsEmpty() bool {
	return v.Kind == ValueEmpty
}

// RegisterAccessRequest reads or writes one named register. A request with
// an empty Value is a read; a non-empty Value asks the server to assign it
// first (servers ignore writes to immutable registers).
type RegisterAccessRequest struct {
	Name  string        `cbor:"1,keyasint"`
	Value RegisterValue `cbor:"2,keyasint,omitempty"`
}

// RegisterAccessResponse reports the register state after the access. An
// empty Value means the register does not exist.
type RegisterAccessResponse struct {
	Value      RegisterValue `cbor:"1,keyasint"`
	Mutable    bool          `cbor:"2,keyasint,omitempty"`
	Persistent bool          `cbor:"3,keyasint,omitempty"`
}

// RegisterListRequest asks for the name of the register at Index. Indices
// are dense from zero; an out-of-range index yields an empty name.
type RegisterListRequest struct {
	Index uint16 `cbor:"1,keyasint"`
}

// RegisterListResponse carries the register name, or "" past the end.
type RegisterListResponse struct {
	Name string `cbor:"1,keyasint,omitempty"`
}
