package system

import (
	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
)

// onTimerExpired drives the retry state machine when a command's
// retransmission timer fires.
func (e *Endpoint) onTimerExpired(seq uint8) {
	cmd := e.table.findBySeq(seq)
	if cmd == nil {
		// Completed commands disarm their timer, so an expiry must
		// always find its owner.
		e.fatalf("command timer expired but seq %d is not in the table", seq)
		return
	}
	cmd.armed = false

	if cmd.retriesLeft == 0 {
		e.timeOut(cmd)
		return
	}

	cmd.retriesLeft--
	cmd.status = StatusInProgress
	e.stats.CommandRetransmitted(cmd.id)
	e.log.Debug().
		Stringer("command", cmd.id).
		Uint8("seq", cmd.seq).
		Uint8("retries_left", cmd.retriesLeft).
		Msg("command retransmit")

	if e.legacyPoll {
		// The frame goes out again as-is and the timer restarts.
		if err := e.coreLink.Write(core.EndpointSystem, cmd.frame, core.WriteUnnumberedPoll); err != nil {
			e.fatalf("retransmit %s seq %d: %v", cmd.id, cmd.seq, err)
			return
		}
		cmd.attempt++
		e.armTimer(cmd)
		return
	}

	// Default mode: the descriptor goes back through the issuer path so it
	// lands at the tail of the table; the timer re-arms on the next poll
	// ack.
	e.table.remove(cmd)
	cmd.phase = PhaseIssued
	e.writeCommand(cmd)
}

// timeOut terminally fails a command whose retries are exhausted.
func (e *Endpoint) timeOut(cmd *Command) {
	e.disarmTimer(cmd)
	e.table.remove(cmd)
	e.stats.InFlight(e.table.len())

	cmd.status = StatusTimeout
	e.log.Warn().
		Stringer("command", cmd.id).
		Uint8("seq", cmd.seq).
		Msg("command timeout")
	e.traceCommand(cmd, trace.DirectionNone, &cmd.status)

	e.completeFailure(cmd, StatusTimeout)
	cmd.phase = PhaseDead
	e.stats.CommandCompleted(StatusTimeout)
}
