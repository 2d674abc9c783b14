package wire

import "fmt"

// Status is a 4-byte status code reported by the secondary, carried in RESET
// replies and in PROP_LAST_STATUS notifications. It is little-endian on the
// wire.
type Status uint32

// Status codes.
const (
	StatusOK              Status = 0
	StatusFailure         Status = 1
	StatusUnimplemented   Status = 2
	StatusInvalidArgument Status = 3
	StatusInvalidState    Status = 4
	StatusInvalidCommand  Status = 5
	StatusInternalError   Status = 7
	StatusParseError      Status = 9
	StatusInProgress      Status = 10
	StatusNoMemory        Status = 11
	StatusBusy            Status = 12
	StatusPropNotFound    Status = 13
)

// Reset reasons reported through PROP_LAST_STATUS after a reboot.
const (
	StatusResetPowerOn  Status = 0x70
	StatusResetExternal Status = 0x71
	StatusResetSoftware Status = 0x72
	StatusResetFault    Status = 0x73
	StatusResetCrash    Status = 0x74
	StatusResetAssert   Status = 0x75
	StatusResetOther    Status = 0x76
	StatusResetUnknown  Status = 0x77
	StatusResetWatchdog Status = 0x78
)

// IsReset reports whether the status is a reset reason.
func (s Status) IsReset() bool {
	return s >= StatusResetPowerOn && s <= StatusResetWatchdog
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "STATUS_OK"
	case StatusFailure:
		return "STATUS_FAILURE"
	case StatusUnimplemented:
		return "STATUS_UNIMPLEMENTED"
	case StatusInvalidArgument:
		return "STATUS_INVALID_ARGUMENT"
	case StatusInvalidState:
		return "STATUS_INVALID_STATE"
	case StatusInvalidCommand:
		return "STATUS_INVALID_COMMAND"
	case StatusInternalError:
		return "STATUS_INTERNAL_ERROR"
	case StatusParseError:
		return "STATUS_PARSE_ERROR"
	case StatusInProgress:
		return "STATUS_IN_PROGRESS"
	case StatusNoMemory:
		return "STATUS_NOMEM"
	case StatusBusy:
		return "STATUS_BUSY"
	case StatusPropNotFound:
		return "STATUS_PROP_NOT_FOUND"
	case StatusResetPowerOn:
		return "STATUS_RESET_POWER_ON"
	case StatusResetExternal:
		return "STATUS_RESET_EXTERNAL"
	case StatusResetSoftware:
		return "STATUS_RESET_SOFTWARE"
	case StatusResetFault:
		return "STATUS_RESET_FAULT"
	case StatusResetCrash:
		return "STATUS_RESET_CRASH"
	case StatusResetAssert:
		return "STATUS_RESET_ASSERT"
	case StatusResetOther:
		return "STATUS_RESET_OTHER"
	case StatusResetUnknown:
		return "STATUS_RESET_UNKNOWN"
	case StatusResetWatchdog:
		return "STATUS_RESET_WATCHDOG"
	default:
		return fmt.Sprintf("STATUS_UNKNOWN(0x%08x)", uint32(s))
	}
}
