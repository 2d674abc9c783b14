package system

import (
	"encoding/binary"
	"time"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Close reconciliation parameters used when the secondary reports an
// endpoint closed.
const (
	closeReconcileRetries = 5
	closeReconcileTimeout = 100 * time.Millisecond
)

// onPollAcknowledged starts (or restarts) the retransmission timer once the
// link layer confirms the secondary received the poll. payload is the
// original command frame.
func (e *Endpoint) onPollAcknowledged(_ uint8, payload []byte) {
	if len(payload) < wire.HeaderSize {
		e.log.Warn().Int("len", len(payload)).Msg("poll ack for a short frame")
		return
	}
	seq := payload[1]

	cmd := e.table.findBySeq(seq)
	if cmd == nil {
		e.log.Warn().Uint8("seq", seq).Msg("poll ack with no pending poll")
		return
	}

	e.log.Debug().
		Stringer("command", cmd.id).
		Uint8("seq", cmd.seq).
		Msg("poll acknowledged")

	switch cmd.status {
	case StatusOK, StatusInProgress:
		cmd.phase = PhasePollAcked
		e.armTimer(cmd)
	default:
		e.log.Warn().
			Uint8("seq", seq).
			Stringer("status", cmd.status).
			Msg("poll ack on a command that already completed, ignoring")
	}
}

// onFinal matches a reply to its command, dispatches by command kind and
// retires the descriptor.
func (e *Endpoint) onFinal(_ uint8, payload []byte) {
	reply, err := wire.DecodeCommand(payload)
	if err != nil {
		e.fatalf("malformed system reply: %v", err)
		return
	}

	cmd := e.table.findBySeq(reply.Seq)
	if cmd == nil {
		// A legitimate race around endpoint reset.
		e.log.Warn().
			Uint8("seq", reply.Seq).
			Stringer("command", reply.ID).
			Msg("final reply with no pending command")
		return
	}

	e.disarmTimer(cmd)
	cmd.phase = PhaseFinalizing

	switch reply.ID {
	case wire.CommandNoop:
		if cmd.handler.noop == nil {
			e.fatalf("NOOP reply for a %s command", cmd.id)
			return
		}
		cmd.handler.noop(cmd, cmd.status)

	case wire.CommandReset:
		if cmd.handler.reset == nil {
			e.fatalf("RESET reply for a %s command", cmd.id)
			return
		}
		if len(reply.Payload) != 4 {
			e.fatalf("RESET reply with a %d-byte status", len(reply.Payload))
			return
		}
		e.ignoreResetReason = false
		resetStatus := wire.Status(binary.LittleEndian.Uint32(reply.Payload))
		cmd.handler.reset(cmd, cmd.status, resetStatus)

	case wire.CommandPropertyIs:
		if cmd.handler.property == nil {
			e.fatalf("PROP_VALUE_IS reply for a %s command", cmd.id)
			return
		}
		propertyID, value, err := wire.DecodeProperty(reply.Payload)
		if err != nil {
			e.fatalf("malformed property reply: %v", err)
			return
		}
		cmd.handler.property(cmd, propertyID, value, cmd.status)

	case wire.CommandPropertyGet, wire.CommandPropertySet:
		e.fatalf("%s received from the secondary; only the primary sends it", reply.ID)
		return

	default:
		e.fatalf("unrecognized system command id %s", reply.ID)
		return
	}

	cmd.phase = PhaseDead
	e.table.remove(cmd)
	e.stats.InFlight(e.table.len())
	e.stats.CommandCompleted(cmd.status)
	e.traceCommand(cmd, trace.DirectionIn, &cmd.status)
}

// onUnsolicited handles property-is notifications the secondary sends on
// its own initiative: last-status reports and endpoint-state changes.
func (e *Endpoint) onUnsolicited(_ uint8, payload []byte) {
	notif, err := wire.DecodeCommand(payload)
	if err != nil {
		e.fatalf("malformed unsolicited frame: %v", err)
		return
	}
	if notif.ID != wire.CommandPropertyIs {
		e.fatalf("unsolicited %s on the system endpoint", notif.ID)
		return
	}

	propertyID, _, err := wire.DecodeProperty(notif.Payload)
	if err != nil {
		e.fatalf("malformed unsolicited property: %v", err)
		return
	}

	e.stats.UnsolicitedReceived()

	switch {
	case propertyID == wire.PropLastStatus:
		e.dispatchLastStatus(notif.Payload[wire.PropertyIDSize:])

	case propertyID.IsEndpointState():
		e.reconcileRemoteClose(propertyID)

	default:
		e.fatalf("unsolicited property %s", propertyID)
	}
}

// dispatchLastStatus fans a last-status notification out to the registered
// listeners. wireValue is the value exactly as received. Listeners get both
// the native reinterpretation (the historical behavior) and the
// little-endian decode; which one is authoritative is the integration's
// call.
func (e *Endpoint) dispatchLastStatus(wireValue []byte) {
	if len(wireValue) < 4 {
		e.fatalf("last-status notification with a %d-byte value", len(wireValue))
		return
	}

	raw := wire.Status(binary.NativeEndian.Uint32(wireValue))
	decoded := wire.Status(binary.LittleEndian.Uint32(wireValue))

	e.log.Debug().
		Stringer("status", decoded).
		Msg("secondary reported last status")

	for _, listener := range e.lastStatusListeners {
		listener(raw, decoded)
	}
}

// reconcileRemoteClose reacts to the secondary closing an endpoint: local
// users are failed over to an error state, then the closure is confirmed
// back to the secondary.
func (e *Endpoint) reconcileRemoteClose(propertyID wire.PropertyID) {
	endpointID := propertyID.EndpointID()
	e.log.Debug().
		Uint8("endpoint", endpointID).
		Msg("secondary closed endpoint")

	if e.listeners != nil && e.listeners.HasListeners(endpointID) &&
		e.coreLink.EndpointState(endpointID) == core.StateOpen {
		e.coreLink.SetEndpointInError(endpointID, core.StateErrorDestinationUnreachable)
	}

	closed := wire.U32Bytes(uint32(core.StateClosed))
	e.PropertySet(e.onCloseReconciled, closeReconcileRetries, closeReconcileTimeout, propertyID, closed)
}

// onCloseReconciled completes the property-set confirming a remote endpoint
// close.
func (e *Endpoint) onCloseReconciled(_ *Command, propertyID wire.PropertyID, _ []byte, status Status) {
	if !status.Ok() {
		e.log.Warn().
			Stringer("property", propertyID).
			Stringer("status", status).
			Msg("failed to confirm endpoint close to the secondary")
		return
	}
	e.log.Debug().
		Uint8("endpoint", propertyID.EndpointID()).
		Msg("endpoint close confirmed to the secondary")
}

// completeFailure invokes the completion callback for a command that will
// never get a reply. The tagged handler is checked against the command id
// so a mismatched callback can never run.
func (e *Endpoint) completeFailure(cmd *Command, status Status) {
	switch cmd.id {
	case wire.CommandNoop:
		if cmd.handler.noop == nil {
			e.fatalf("NOOP descriptor without a noop callback")
			return
		}
		cmd.handler.noop(cmd, status)

	case wire.CommandReset:
		if cmd.handler.reset == nil {
			e.fatalf("RESET descriptor without a reset callback")
			return
		}
		cmd.handler.reset(cmd, status, wire.StatusFailure)

	case wire.CommandPropertyGet, wire.CommandPropertySet:
		if cmd.handler.property == nil {
			e.fatalf("property descriptor without a property callback")
			return
		}
		cmd.handler.property(cmd, cmd.propertyID, nil, status)

	default:
		e.fatalf("illegal command id %s in failure completion", cmd.id)
	}
}
