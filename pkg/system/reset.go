package system

import (
	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
)

// ResetEndpoint tears the system endpoint down and back up after the
// secondary is known to have reset: the remote sequence numbers are reset,
// every in-flight command completes with CANCELLED, and the endpoint is
// reopened with fresh hooks.
func (e *Endpoint) ResetEndpoint() {
	e.log.Info().Msg("requesting reset of remote sequence numbers")

	if err := e.coreLink.Write(core.EndpointSystem, nil, core.WriteUnnumberedReset); err != nil {
		e.fatalf("write unnumbered reset: %v", err)
		return
	}
	e.coreLink.ProcessTransmitQueue()

	for _, cmd := range e.table.drain() {
		e.disarmTimer(cmd)
		cmd.status = StatusCancelled

		e.log.Warn().
			Stringer("command", cmd.id).
			Uint8("seq", cmd.seq).
			Msg("dropping in-flight command on endpoint reset")
		e.traceCommand(cmd, trace.DirectionNone, &cmd.status)

		e.completeFailure(cmd, StatusCancelled)
		cmd.phase = PhaseDead
		e.stats.CommandCompleted(StatusCancelled)
	}
	e.stats.InFlight(0)

	if err := e.coreLink.CloseEndpoint(core.EndpointSystem, false, true); err != nil {
		e.log.Warn().Err(err).Msg("closing system endpoint")
	}

	if err := e.open(); err != nil {
		e.fatalf("reopening system endpoint: %v", err)
	}
}
