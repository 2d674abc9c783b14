package system

import (
	"fmt"
	"time"

	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Phase tracks where a command is in its lifecycle.
type Phase uint8

const (
	// PhaseIssued means the command was written but, in the default mode,
	// the poll has not been acknowledged yet.
	PhaseIssued Phase = iota

	// PhasePollAcked means the link layer acknowledged the poll and the
	// retransmission timer is armed.
	PhasePollAcked

	// PhaseFinalizing means a matching reply arrived and the completion
	// callback is running.
	PhaseFinalizing

	// PhaseDead means the command left the table.
	PhaseDead
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIssued:
		return "ISSUED"
	case PhasePollAcked:
		return "POLL_ACKED"
	case PhaseFinalizing:
		return "FINALIZING"
	case PhaseDead:
		return "DEAD"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(p))
	}
}

// NoopCallback completes a Noop command.
type NoopCallback func(cmd *Command, status Status)

// ResetCallback completes a Reboot command. resetStatus is the 4-byte
// status from the reply, decoded to host order; on failure it is
// wire.StatusFailure.
type ResetCallback func(cmd *Command, status Status, resetStatus wire.Status)

// PropertyCallback completes a PropertyGet or PropertySet command. On
// success value holds the property value in native byte order; on failure
// it is nil.
type PropertyCallback func(cmd *Command, propertyID wire.PropertyID, value []byte, status Status)

// finalHandler is a tagged variant over the completion callback kinds.
// Exactly one field is set, matching the command id of the descriptor, so
// a reply can never invoke a handler of the wrong shape.
type finalHandler struct {
	noop     NoopCallback
	reset    ResetCallback
	property PropertyCallback
}

// Command is an in-flight system command descriptor. It is owned by the
// command table from submission until completion, timeout or reset.
type Command struct {
	seq        uint8
	id         wire.CommandID
	propertyID wire.PropertyID // property commands only

	// frame is the serialized command, reused verbatim on retransmit.
	frame []byte

	handler      finalHandler
	retriesLeft  uint8
	retryTimeout time.Duration
	status       Status
	phase        Phase
	attempt      uint8

	// timer is non-nil from the first arming until the descriptor dies.
	// armed tracks whether an expiration is outstanding.
	timer eventloop.Timer
	armed bool
}

// Seq returns the command sequence number.
func (c *Command) Seq() uint8 { return c.seq }

// ID returns the wire command id.
func (c *Command) ID() wire.CommandID { return c.id }

// PropertyID returns the target property of a property command.
func (c *Command) PropertyID() wire.PropertyID { return c.propertyID }

// Phase returns the current lifecycle phase.
func (c *Command) Phase() Phase { return c.phase }

// Attempt returns how many times the command has been transmitted.
func (c *Command) Attempt() uint8 { return c.attempt }
