package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
)

// Link errors.
var (
	ErrNoPort          = errors.New("link requires a port")
	ErrNoLoop          = errors.New("link requires an event loop")
	ErrEndpointOpen    = errors.New("endpoint already open")
	ErrEndpointNotOpen = errors.New("endpoint not open")
	ErrIframesDisabled = errors.New("information frames disabled on endpoint")
	ErrUframesDisabled = errors.New("unnumbered frames disabled on endpoint")
	ErrResetPayload    = errors.New("unnumbered reset takes no payload")
)

// Poster posts work onto the event loop. Satisfied by *eventloop.Loop.
type Poster interface {
	Post(fn func()) error
}

// Stats receives frame accounting. Satisfied by *metrics.Metrics.
type Stats interface {
	FrameSent(bytes int)
	FrameReceived(bytes int)
	FramesCorrupt(n int)
}

type noopStats struct{}

func (noopStats) FrameSent(int)     {}
func (noopStats) FrameReceived(int) {}
func (noopStats) FramesCorrupt(int) {}

// endpoint is the per-endpoint link state.
type endpoint struct {
	state     core.EndpointState
	flags     core.OpenFlags
	onFinal   core.FinalHandler
	onUframe  core.UframeHandler
	onPollAck core.PollAckHandler

	txSeq uint8

	// pendingPolls maps the seq of an in-flight poll information frame to
	// its payload, surfaced through onPollAck when the ack arrives.
	pendingPolls map[uint8][]byte
}

// Config assembles a link.
type Config struct {
	// Port is the byte stream to the secondary (serial port, or a pipe in
	// tests). Required.
	Port io.ReadWriteCloser

	// Loop receives inbound dispatch. Required.
	Loop Poster

	// Log is the operational logger.
	Log zerolog.Logger

	// Tracer receives frame trace events. Optional.
	Tracer trace.Logger

	// Stats receives frame accounting. Optional.
	Stats Stats

	// InstanceID tags trace events with the daemon run. Optional.
	InstanceID string
}

// Link is the serial implementation of core.Core. Its methods must run on
// the event loop; inbound frames are posted there by the read goroutine.
type Link struct {
	port       io.ReadWriteCloser
	loop       Poster
	log        zerolog.Logger
	tracer     trace.Logger
	stats      Stats
	instanceID string

	endpoints map[uint8]*endpoint
	txQueue   [][]byte
}

// New creates a link over the given port. Call Start to begin reading.
func New(cfg Config) (*Link, error) {
	if cfg.Port == nil {
		return nil, ErrNoPort
	}
	if cfg.Loop == nil {
		return nil, ErrNoLoop
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.NoopLogger{}
	}
	if cfg.Stats == nil {
		cfg.Stats = noopStats{}
	}

	return &Link{
		port:       cfg.Port,
		loop:       cfg.Loop,
		log:        cfg.Log.With().Str("component", "link").Logger(),
		tracer:     cfg.Tracer,
		stats:      cfg.Stats,
		instanceID: cfg.InstanceID,
		endpoints:  make(map[uint8]*endpoint),
	}, nil
}

// Start launches the read goroutine. onDown, if non-nil, runs on the event
// loop when the port read fails (device unplugged, pipe closed).
func (l *Link) Start(onDown func(err error)) {
	go l.readLoop(onDown)
}

// Close closes the underlying port, which also stops the read goroutine.
func (l *Link) Close() error {
	return l.port.Close()
}

// OpenEndpoint opens an endpoint for traffic.
func (l *Link) OpenEndpoint(endpointID uint8, flags core.OpenFlags, _ int) error {
	if ep, ok := l.endpoints[endpointID]; ok && ep.state == core.StateOpen {
		return fmt.Errorf("%w: %d", ErrEndpointOpen, endpointID)
	}

	l.endpoints[endpointID] = &endpoint{
		state:        core.StateOpen,
		flags:        flags,
		pendingPolls: make(map[uint8][]byte),
	}
	l.log.Debug().Uint8("endpoint", endpointID).Msg("endpoint open")
	return nil
}

// CloseEndpoint closes an endpoint, dropping its pending polls and hooks.
func (l *Link) CloseEndpoint(endpointID uint8, _, _ bool) error {
	ep, ok := l.endpoints[endpointID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEndpointNotOpen, endpointID)
	}
	ep.state = core.StateClosed
	ep.onFinal = nil
	ep.onUframe = nil
	ep.onPollAck = nil
	ep.pendingPolls = make(map[uint8][]byte)
	l.log.Debug().Uint8("endpoint", endpointID).Msg("endpoint closed")
	return nil
}

// SetOnFinal installs the final-reply callback.
func (l *Link) SetOnFinal(endpointID uint8, fn core.FinalHandler) {
	if ep, ok := l.endpoints[endpointID]; ok {
		ep.onFinal = fn
	}
}

// SetOnUframeReceive installs the unsolicited-frame callback.
func (l *Link) SetOnUframeReceive(endpointID uint8, fn core.UframeHandler) {
	if ep, ok := l.endpoints[endpointID]; ok {
		ep.onUframe = fn
	}
}

// SetOnPollAcknowledged installs the poll-ack callback.
func (l *Link) SetOnPollAcknowledged(endpointID uint8, fn core.PollAckHandler) {
	if ep, ok := l.endpoints[endpointID]; ok {
		ep.onPollAck = fn
	}
}

// Write queues a frame and schedules a flush.
func (l *Link) Write(endpointID uint8, payload []byte, flags core.WriteFlags) error {
	ep, ok := l.endpoints[endpointID]
	if !ok || ep.state != core.StateOpen {
		return fmt.Errorf("%w: %d", ErrEndpointNotOpen, endpointID)
	}

	f := frame{endpointID: endpointID}
	switch {
	case flags&core.WriteInformationPoll != 0:
		if ep.flags&core.OpenIFrameDisable != 0 {
			return ErrIframesDisabled
		}
		f.typ = frameInformation
		f.pollFinal = true
		f.seq = ep.txSeq
		ep.txSeq = (ep.txSeq + 1) % seqModulo

		pending := make([]byte, len(payload))
		copy(pending, payload)
		ep.pendingPolls[f.seq] = pending

	case flags&core.WriteUnnumberedPoll != 0:
		if ep.flags&core.OpenUFrameEnable == 0 {
			return ErrUframesDisabled
		}
		f.typ = frameUnnumbered
		f.kind = uframeInformation
		f.pollFinal = true

	case flags&core.WriteUnnumberedReset != 0:
		if len(payload) > 0 {
			return ErrResetPayload
		}
		f.typ = frameUnnumbered
		f.kind = uframeResetCommand

	default:
		f.typ = frameInformation
		f.seq = ep.txSeq
		ep.txSeq = (ep.txSeq + 1) % seqModulo
	}

	f.payload = make([]byte, len(payload))
	copy(f.payload, payload)

	buf, err := marshalFrame(f)
	if err != nil {
		return err
	}
	l.txQueue = append(l.txQueue, buf)

	// Flush on the next loop turn; ProcessTransmitQueue forces it now.
	_ = l.loop.Post(l.ProcessTransmitQueue)
	return nil
}

// ProcessTransmitQueue writes every queued frame to the port.
func (l *Link) ProcessTransmitQueue() {
	for _, buf := range l.txQueue {
		if _, err := l.port.Write(buf); err != nil {
			l.log.Error().Err(err).Msg("port write failed, dropping frame")
			continue
		}
		l.stats.FrameSent(len(buf))
		length := int(binary.LittleEndian.Uint16(buf[2:4]))
		l.traceFrame(trace.DirectionOut, buf[1], buf[headerSize:headerSize+length])
	}
	l.txQueue = nil
}

// EndpointState returns the current state of an endpoint.
func (l *Link) EndpointState(endpointID uint8) core.EndpointState {
	ep, ok := l.endpoints[endpointID]
	if !ok {
		return core.StateClosed
	}
	return ep.state
}

// SetEndpointInError moves an endpoint into an error state.
func (l *Link) SetEndpointInError(endpointID uint8, state core.EndpointState) {
	ep, ok := l.endpoints[endpointID]
	if !ok {
		return
	}
	old := ep.state
	ep.state = state

	l.log.Warn().
		Uint8("endpoint", endpointID).
		Stringer("state", state).
		Msg("endpoint in error")
	l.tracer.Log(trace.Event{
		Timestamp:  time.Now(),
		InstanceID: l.instanceID,
		Direction:  trace.DirectionNone,
		Layer:      trace.LayerLink,
		Category:   trace.CategoryState,
		EndpointID: &endpointID,
		StateChange: &trace.StateChangeEvent{
			Entity:   trace.StateEntityEndpoint,
			OldState: old.String(),
			NewState: state.String(),
		},
	})
}

// readLoop reads the port until it fails, posting decoded frames onto the
// event loop.
func (l *Link) readLoop(onDown func(err error)) {
	var dec decoder
	buf := make([]byte, 4096)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			before := dec.corrupt
			frames := dec.feed(buf[:n])
			if dropped := dec.corrupt - before; dropped > 0 {
				l.stats.FramesCorrupt(dropped)
				l.log.Warn().Int("bytes", dropped).Msg("dropped corrupt link bytes")
			}
			for _, f := range frames {
				f := f
				_ = l.loop.Post(func() { l.dispatch(f) })
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.log.Error().Err(err).Msg("port read failed")
			}
			if onDown != nil {
				_ = l.loop.Post(func() { onDown(err) })
			}
			return
		}
	}
}

// dispatch routes one inbound frame. Runs on the event loop.
func (l *Link) dispatch(f frame) {
	l.stats.FrameReceived(len(f.payload) + headerSize)
	l.traceFrame(trace.DirectionIn, f.endpointID, f.payload)

	ep, ok := l.endpoints[f.endpointID]
	if !ok || ep.state != core.StateOpen {
		l.log.Warn().Uint8("endpoint", f.endpointID).Msg("frame for endpoint that is not open")
		return
	}

	switch f.typ {
	case frameSupervisory:
		if pending, ok := ep.pendingPolls[f.ack]; ok {
			delete(ep.pendingPolls, f.ack)
			if ep.onPollAck != nil {
				ep.onPollAck(f.endpointID, pending)
			}
		}

	case frameInformation:
		if !f.pollFinal {
			// No data-plane consumers in this daemon.
			l.log.Debug().Uint8("endpoint", f.endpointID).Msg("dropping plain information frame")
			return
		}
		if ep.onFinal != nil {
			ep.onFinal(f.endpointID, f.payload)
		}

	case frameUnnumbered:
		switch f.kind {
		case uframeInformation:
			if f.pollFinal {
				if ep.onFinal != nil {
					ep.onFinal(f.endpointID, f.payload)
				}
			} else if ep.onUframe != nil {
				ep.onUframe(f.endpointID, f.payload)
			}
		case uframeResetAck:
			l.log.Debug().Msg("remote acknowledged reset")
		case uframeResetCommand:
			l.log.Warn().Msg("unexpected reset command from the secondary")
		}
	}
}

// traceFrame emits a link-layer frame trace event.
func (l *Link) traceFrame(dir trace.Direction, endpointID uint8, payload []byte) {
	l.tracer.Log(trace.Event{
		Timestamp:  time.Now(),
		InstanceID: l.instanceID,
		Direction:  dir,
		Layer:      trace.LayerLink,
		Category:   trace.CategoryFrame,
		EndpointID: &endpointID,
		Frame:      trace.NewFrameEvent(len(payload)+headerSize, payload),
	})
}

// Compile-time interface satisfaction check.
var _ core.Core = (*Link)(nil)
