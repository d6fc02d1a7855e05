package wire

// Standard command codes served on ServiceExecuteCommand. Codes below
// CommandVendorMax are free for vendor-specific use.
const (
	// CommandRestart asks the node to restart.
	CommandRestart uint16 = 65535

	// CommandPowerOff asks the node to power down.
	CommandPowerOff uint16 = 65534

	// CommandBeginSoftwareUpdate asks the node to enter software update
	// mode; the parameter names the image source.
	CommandBeginSoftwareUpdate uint16 = 65533

	// CommandFactoryReset asks the node to restore factory defaults.
	CommandFactoryReset uint16 = 65532

	// CommandEmergencyStop asks the node to cease activity immediately.
	CommandEmergencyStop uint16 = 65531

	// CommandStorePersistentStates asks the node to save its persistent
	// registers to stable storage.
	CommandStorePersistentStates uint16 = 65530

	// CommandVendorMax is the highest vendor-specific command code.
	CommandVendorMax uint16 = 32767
)

// CommandStatus is the outcome of an ExecuteCommand request.
type CommandStatus uint8

const (
	// CommandStatusSuccess means the command completed.
	CommandStatusSuccess CommandStatus = iota

	// CommandStatusFailure means the command ran but did not complete.
	CommandStatusFailure

	// CommandStatusNotAuthorized means the caller may not run the command.
	CommandStatusNotAuthorized

	// CommandStatusBadCommand means the command code is not supported.
	CommandStatusBadCommand

	// CommandStatusBadParameter means the parameter was rejected.
	CommandStatusBadParameter

	// CommandStatusBadState means the node cannot run the command now.
	CommandStatusBadState

	// CommandStatusInternalError means the command failed unexpectedly.
	CommandStatusInternalError
)

// String returns a human-readable status name.
func (s CommandStatus) String() string {
	switch s {
	case CommandStatusSuccess:
		return "SUCCESS"
	case CommandStatusFailure:
		return "FAILURE"
	case CommandStatusNotAuthorized:
		return "NOT_AUTHORIZED"
	case CommandStatusBadCommand:
		return "BAD_COMMAND"
	case CommandStatusBadParameter:
		return "BAD_PARAMETER"
	case CommandStatusBadState:
		return "BAD_STATE"
	case CommandStatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ExecuteCommandRequest asks a node to run one command.
type ExecuteCommandRequest struct {
	// Command is the command code.
	Command uint16 `cbor:"1,keyasint"`

	// Parameter is command-specific; empty for most commands.
	Parameter string `cbor:"2,keyasint,omitempty"`
}

// ExecuteCommandResponse reports the command outcome.
type ExecuteCommandResponse struct {
	Status CommandStatus `cbor:"1,keyasint"`
}
