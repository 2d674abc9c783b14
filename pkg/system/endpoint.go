package system

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Configuration errors.
var (
	ErrNoCore   = errors.New("system endpoint requires a core")
	ErrNoTimers = errors.New("system endpoint requires a timer service")
)

// LastStatusListener receives unsolicited PROP_LAST_STATUS notifications.
// raw is the 4-byte value reinterpreted in native byte order, matching the
// historical behavior some integrations depend on; decoded is the
// little-endian decode, which is almost certainly what new code wants.
type LastStatusListener func(raw, decoded wire.Status)

// Config assembles a system endpoint.
type Config struct {
	// Core is the framing layer. Required.
	Core core.Core

	// Timers provides one-shot timers dispatched on the event loop.
	// Required.
	Timers eventloop.TimerService

	// Listeners reports local application attachment per endpoint.
	// Optional; when nil no endpoint is considered attached.
	Listeners ListenerRegistry

	// Log is the operational logger.
	Log zerolog.Logger

	// Tracer receives protocol trace events. Optional.
	Tracer trace.Logger

	// Stats receives command accounting. Optional.
	Stats Stats

	// LegacyPoll selects the unnumbered-poll mode for early secondaries
	// that lack the poll-ack hook. The default is the information-poll
	// mode.
	LegacyPoll bool

	// InstanceID tags trace events with the daemon run. Optional.
	InstanceID string

	// Fatalf aborts on protocol-integrity violations. Defaults to a
	// fatal log (which exits the process).
	Fatalf func(format string, args ...any)
}

// Endpoint is the system endpoint state: the command table, the sequence
// counter and the unsolicited listeners. All methods must be called on the
// event loop.
type Endpoint struct {
	coreLink   core.Core
	timers     eventloop.TimerService
	listeners  ListenerRegistry
	log        zerolog.Logger
	tracer     trace.Logger
	stats      Stats
	legacyPoll bool
	instanceID string
	fatalf     func(format string, args ...any)

	nextSeq uint8
	table   table

	lastStatusListeners []LastStatusListener

	// ignoreResetReason suppresses reset-reason processing while a
	// host-initiated reboot is pending. Cleared when the reset reply
	// arrives.
	ignoreResetReason bool
}

// New opens the system endpoint on the core and registers its inbound
// hooks.
func New(cfg Config) (*Endpoint, error) {
	if cfg.Core == nil {
		return nil, ErrNoCore
	}
	if cfg.Timers == nil {
		return nil, ErrNoTimers
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.NoopLogger{}
	}
	if cfg.Stats == nil {
		cfg.Stats = noopStats{}
	}
	if cfg.Fatalf == nil {
		logger := cfg.Log
		cfg.Fatalf = func(format string, args ...any) {
			logger.Fatal().Msgf(format, args...)
		}
	}

	e := &Endpoint{
		coreLink:   cfg.Core,
		timers:     cfg.Timers,
		listeners:  cfg.Listeners,
		log:        cfg.Log.With().Str("component", "system").Logger(),
		tracer:     cfg.Tracer,
		stats:      cfg.Stats,
		legacyPoll: cfg.LegacyPoll,
		instanceID: cfg.InstanceID,
		fatalf:     cfg.Fatalf,
	}

	if err := e.open(); err != nil {
		return nil, err
	}
	return e, nil
}

// open opens endpoint 0 and installs the inbound hooks. Also used by the
// reset controller when it reopens the endpoint.
func (e *Endpoint) open() error {
	flags := core.OpenUFrameEnable
	if e.legacyPoll {
		flags |= core.OpenIFrameDisable
	}
	if err := e.coreLink.OpenEndpoint(core.EndpointSystem, flags, 1); err != nil {
		return err
	}

	e.coreLink.SetOnFinal(core.EndpointSystem, e.onFinal)
	e.coreLink.SetOnUframeReceive(core.EndpointSystem, e.onUnsolicited)
	if !e.legacyPoll {
		e.coreLink.SetOnPollAcknowledged(core.EndpointSystem, e.onPollAcknowledged)
	}
	return nil
}

// OnLastStatus registers a listener for unsolicited PROP_LAST_STATUS
// notifications. Listeners are invoked in registration order.
func (e *Endpoint) OnLastStatus(listener LastStatusListener) {
	e.lastStatusListeners = append(e.lastStatusListeners, listener)
}

// SetIgnoreResetReason controls whether reset-reason notifications are
// flagged for suppression. The daemon sets it before a host-initiated
// reboot; the flag clears itself when the reset reply arrives.
func (e *Endpoint) SetIgnoreResetReason(ignore bool) {
	e.ignoreResetReason = ignore
}

// IgnoreResetReason reports the current suppression flag.
func (e *Endpoint) IgnoreResetReason() bool {
	return e.ignoreResetReason
}

// InFlight returns the number of commands awaiting completion.
func (e *Endpoint) InFlight() int {
	return e.table.len()
}

// traceCommand emits a command lifecycle trace event.
func (e *Endpoint) traceCommand(cmd *Command, dir trace.Direction, status *Status) {
	ep := core.EndpointSystem
	ce := &trace.CommandEvent{
		ID:      uint8(cmd.id),
		Seq:     cmd.seq,
		Attempt: cmd.attempt,
	}
	if cmd.id == wire.CommandPropertyGet || cmd.id == wire.CommandPropertySet {
		prop := uint32(cmd.propertyID)
		ce.PropertyID = &prop
	}
	if status != nil {
		s := uint8(*status)
		ce.Status = &s
	}
	e.tracer.Log(trace.Event{
		Timestamp:  time.Now(),
		InstanceID: e.instanceID,
		Direction:  dir,
		Layer:      trace.LayerSystem,
		Category:   trace.CategoryCommand,
		EndpointID: &ep,
		Command:    ce,
	})
}
