package system

import "fmt"

// Status is the completion status delivered to a command callback.
type Status uint8

const (
	// StatusOK means the final reply arrived on the first attempt.
	StatusOK Status = iota

	// StatusInProgress means the final reply arrived, but only after at
	// least one retransmission.
	StatusInProgress

	// StatusTimeout means every retry was exhausted without a reply.
	StatusTimeout

	// StatusCancelled means the command was dropped by an endpoint reset
	// before completing.
	StatusCancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// Ok reports whether the command obtained a reply (possibly after retries).
func (s Status) Ok() bool {
	return s == StatusOK || s == StatusInProgress
}
