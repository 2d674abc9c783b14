package trace

import (
	"fmt"
	"time"
)

// MaxFrameDataSize is the largest frame payload recorded verbatim in an
// event. Longer payloads are truncated and flagged.
const MaxFrameDataSize = 4096

// Event is one protocol trace record. CBOR encoding uses integer keys for
// compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// InstanceID identifies the daemon run (UUID).
	InstanceID string `cbor:"2,keyasint"`

	// Direction of the traffic, if the event is directional.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// EndpointID is the CPC endpoint the event relates to, if any.
	EndpointID *uint8 `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (exactly one is set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`
	Command     *CommandEvent     `cbor:"8,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"`
}

// Direction indicates traffic direction.
type Direction uint8

const (
	// DirectionIn is traffic from the secondary.
	DirectionIn Direction = 0
	// DirectionOut is traffic to the secondary.
	DirectionOut Direction = 1
	// DirectionNone marks non-directional events.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(d))
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerLink is the framing layer (raw frames on the wire).
	LayerLink Layer = 0
	// LayerSystem is the system endpoint (decoded commands).
	LayerSystem Layer = 1
	// LayerDaemon is the daemon assembly above the protocol.
	LayerDaemon Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerSystem:
		return "SYSTEM"
	case LayerDaemon:
		return "DAEMON"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(l))
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame is a raw frame on the link.
	CategoryFrame Category = 0
	// CategoryCommand is a system command lifecycle event.
	CategoryCommand Category = 1
	// CategoryState is a state change.
	CategoryState Category = 2
	// CategoryError is an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(c))
	}
}

// FrameEvent captures a raw frame at the link layer.
type FrameEvent struct {
	// Size is the full frame size in bytes, including framing overhead.
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload (possibly truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut at MaxFrameDataSize.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent for a payload, truncating the recorded
// bytes at MaxFrameDataSize.
func NewFrameEvent(size int, payload []byte) *FrameEvent {
	fe := &FrameEvent{Size: size, Data: payload}
	if len(payload) > MaxFrameDataSize {
		fe.Data = payload[:MaxFrameDataSize]
		fe.Truncated = true
	}
	return fe
}

// CommandEvent captures a system command lifecycle event: submission,
// retransmission, completion or drop.
type CommandEvent struct {
	// ID is the wire command id.
	ID uint8 `cbor:"1,keyasint"`

	// Seq is the command sequence number.
	Seq uint8 `cbor:"2,keyasint"`

	// PropertyID is set for property commands.
	PropertyID *uint32 `cbor:"3,keyasint,omitempty"`

	// Attempt counts transmissions of this command so far.
	Attempt uint8 `cbor:"4,keyasint,omitempty"`

	// Status is the completion status, set when the command finishes.
	Status *uint8 `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures endpoint, link and secondary state transitions.
type StateChangeEvent struct {
	// Entity that changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change, if known.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityEndpoint is a CPC endpoint.
	StateEntityEndpoint StateEntity = 0
	// StateEntitySecondary is the attached co-processor.
	StateEntitySecondary StateEntity = 1
	// StateEntityLink is the serial link.
	StateEntityLink StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityEndpoint:
		return "ENDPOINT"
	case StateEntitySecondary:
		return "SECONDARY"
	case StateEntityLink:
		return "LINK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being done.
	Context string `cbor:"3,keyasint,omitempty"`
}
