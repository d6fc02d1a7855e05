package wire

// Health is the node health level carried in heartbeats.
type Health uint8

const (
	// HealthNominal means the node is functioning properly.
	HealthNominal Health = iota

	// HealthAdvisory means a minor failure that does not affect function.
	HealthAdvisory

	// HealthCaution means a major failure with degraded function.
	HealthCaution

	// HealthWarning means the node cannot perform its function.
	HealthWarning
)

// String returns a human-readable health name.
func (h Health) String() string {
	switch h {
	case HealthNominal:
		return "NOMINAL"
	case HealthAdvisory:
		return "ADVISORY"
	case HealthCaution:
		return "CAUTION"
	case HealthWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// Mode is the node operating mode carried in heartbeats.
type Mode uint8

const (
	// ModeOperational means normal operation.
	ModeOperational Mode = iota

	// ModeInitialization means the node is starting up.
	ModeInitialization

	// ModeMaintenance means the node is being serviced.
	ModeMaintenance

	// ModeSoftwareUpdate means a software update is in progress.
	ModeSoftwareUpdate
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeOperational:
		return "OPERATIONAL"
	case ModeInitialization:
		return "INITIALIZATION"
	case ModeMaintenance:
		return "MAINTENANCE"
	case ModeSoftwareUpdate:
		return "SOFTWARE_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Heartbeat is the periodic liveness message every node publishes on
// SubjectHeartbeat.
type Heartbeat struct {
	// Uptime is whole seconds since the node started.
	Uptime uint32 `cbor:"1,keyasint"`

	// Health is the node health level.
	Health Health `cbor:"2,keyasint"`

	// Mode is the node operating mode.
	Mode Mode `cbor:"3,keyasint"`

	// VendorStatus is an opaque vendor-specific status code.
	VendorStatus uint32 `cbor:"4,keyasint,omitempty"`
}
