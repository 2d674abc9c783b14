package system

import "github.com/cpc-protocol/cpcd-go/pkg/wire"

// ListenerRegistry reports whether local applications are attached to an
// endpoint. The unsolicited dispatcher consults it before moving an endpoint
// into error on a remote close. The daemon assembly does not provide one, so
// there no endpoint is considered attached.
type ListenerRegistry interface {
	HasListeners(endpointID uint8) bool
}

// Stats receives command accounting. It is satisfied by *metrics.Metrics.
type Stats interface {
	CommandSubmitted(id wire.CommandID)
	CommandRetransmitted(id wire.CommandID)
	CommandCompleted(status Status)
	UnsolicitedReceived()
	InFlight(n int)
}

// noopStats discards all accounting.
type noopStats struct{}

func (noopStats) CommandSubmitted(wire.CommandID)     {}
func (noopStats) CommandRetransmitted(wire.CommandID) {}
func (noopStats) CommandCompleted(Status)             {}
func (noopStats) UnsolicitedReceived()                {}
func (noopStats) InFlight(int)                        {}

// Compile-time interface satisfaction check.
var _ Stats = noopStats{}
