package system

import (
	"time"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Noop sends a liveness probe. onReply is invoked once with the outcome.
func (e *Endpoint) Noop(onReply NoopCallback, retries uint8, timeout time.Duration) {
	e.submit(wire.CommandNoop, nil, 0, finalHandler{noop: onReply}, retries, timeout)
}

// Reboot asks the secondary to reset itself. onReply is invoked once with
// the outcome and the reset status from the reply.
func (e *Endpoint) Reboot(onReply ResetCallback, retries uint8, timeout time.Duration) {
	e.submit(wire.CommandReset, nil, 0, finalHandler{reset: onReply}, retries, timeout)
}

// PropertyGet requests a property value from the secondary.
func (e *Endpoint) PropertyGet(onReply PropertyCallback, propertyID wire.PropertyID, retries uint8, timeout time.Duration) {
	payload := wire.EncodeProperty(propertyID, nil)
	e.submit(wire.CommandPropertyGet, payload, propertyID, finalHandler{property: onReply}, retries, timeout)
}

// PropertySet writes a property value on the secondary. value is in native
// byte order; integer widths are converted to little-endian on the wire.
// An empty value is a programming error and aborts.
func (e *Endpoint) PropertySet(onReply PropertyCallback, retries uint8, timeout time.Duration, propertyID wire.PropertyID, value []byte) {
	if onReply == nil {
		e.fatalf("property-set of %s without a completion callback", propertyID)
		return
	}
	if len(value) == 0 {
		e.fatalf("property-set of %s with a value of length 0", propertyID)
		return
	}
	payload := wire.EncodeProperty(propertyID, value)
	e.submit(wire.CommandPropertySet, payload, propertyID, finalHandler{property: onReply}, retries, timeout)
}

// submit allocates a descriptor, stamps the next sequence number and writes
// the command.
func (e *Endpoint) submit(id wire.CommandID, payload []byte, propertyID wire.PropertyID, handler finalHandler, retries uint8, timeout time.Duration) {
	seq, ok := e.allocSeq()
	if !ok {
		e.fatalf("all 256 command sequence numbers are in flight")
		return
	}

	frame, err := wire.EncodeCommand(wire.Command{ID: id, Seq: seq, Payload: payload})
	if err != nil {
		e.fatalf("encode %s: %v", id, err)
		return
	}

	cmd := &Command{
		seq:          seq,
		id:           id,
		propertyID:   propertyID,
		frame:        frame,
		handler:      handler,
		retriesLeft:  retries,
		retryTimeout: timeout,
		status:       StatusOK,
		phase:        PhaseIssued,
	}

	e.writeCommand(cmd)
	e.stats.CommandSubmitted(id)
	e.log.Debug().
		Stringer("command", id).
		Uint8("seq", seq).
		Msg("command submitted")
}

// allocSeq returns the next free sequence number. The counter post-
// increments and wraps; a value colliding with a live descriptor is skipped
// so sequence numbers stay unique (the table caps at 256 entries).
func (e *Endpoint) allocSeq() (uint8, bool) {
	for i := 0; i < 256; i++ {
		seq := e.nextSeq
		e.nextSeq++
		if e.table.findBySeq(seq) == nil {
			return seq, true
		}
	}
	return 0, false
}

// writeCommand inserts the descriptor at the tail of the table and hands
// the frame to the core. In legacy mode the retransmission timer is armed
// immediately; in the default mode arming waits for the poll ack.
func (e *Endpoint) writeCommand(cmd *Command) {
	cmd.attempt++
	e.table.insertTail(cmd)
	e.stats.InFlight(e.table.len())

	if e.legacyPoll {
		if err := e.coreLink.Write(core.EndpointSystem, cmd.frame, core.WriteUnnumberedPoll); err != nil {
			e.fatalf("write %s seq %d: %v", cmd.id, cmd.seq, err)
			return
		}
		e.armTimer(cmd)
	} else {
		if err := e.coreLink.Write(core.EndpointSystem, cmd.frame, core.WriteInformationPoll); err != nil {
			e.fatalf("write %s seq %d: %v", cmd.id, cmd.seq, err)
			return
		}
	}

	e.traceCommand(cmd, trace.DirectionOut, nil)
}

// armTimer arms (or re-arms) the retransmission timer. The timer callback
// carries only the sequence number; the table lookup happens at expiry.
func (e *Endpoint) armTimer(cmd *Command) {
	if cmd.timer == nil {
		seq := cmd.seq
		cmd.timer = e.timers.AfterFunc(cmd.retryTimeout, func() {
			e.onTimerExpired(seq)
		})
	} else {
		cmd.timer.Reset(cmd.retryTimeout)
	}
	cmd.armed = true
}

// disarmTimer stops the retransmission timer if one is outstanding.
func (e *Endpoint) disarmTimer(cmd *Command) {
	if cmd.timer != nil {
		cmd.timer.Stop()
	}
	cmd.armed = false
}
