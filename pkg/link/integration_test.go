package link

// End-to-end: the system endpoint running over a real link, event loop and
// in-memory pipe, against a scripted secondary that acks polls and answers
// system commands.

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpc-protocol/cpcd-go/pkg/core"
	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// fakeSecondary speaks the link framing on the remote end of the pipe: it
// acknowledges every poll and answers NOOP and PROP_VALUE_GET.
type fakeSecondary struct {
	conn       net.Conn
	properties map[wire.PropertyID][]byte
}

func (s *fakeSecondary) run() {
	var dec decoder
	buf := make([]byte, 1024)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		for _, f := range dec.feed(buf[:n]) {
			if f.typ != frameInformation || !f.pollFinal {
				continue
			}
			// Link-layer ack first, then the protocol reply.
			s.send(frame{endpointID: f.endpointID, typ: frameSupervisory, ack: f.seq})
			s.reply(f)
		}
	}
}

func (s *fakeSecondary) reply(f frame) {
	cmd, err := wire.DecodeCommand(f.payload)
	if err != nil {
		return
	}

	switch cmd.ID {
	case wire.CommandNoop:
		s.respond(f.endpointID, wire.Command{ID: wire.CommandNoop, Seq: cmd.Seq})

	case wire.CommandPropertyGet:
		propertyID, _, err := wire.DecodeProperty(cmd.Payload)
		if err != nil {
			return
		}
		value, ok := s.properties[propertyID]
		if !ok {
			return
		}
		s.respond(f.endpointID, wire.Command{
			ID:      wire.CommandPropertyIs,
			Seq:     cmd.Seq,
			Payload: wire.EncodeProperty(propertyID, value),
		})
	}
}

func (s *fakeSecondary) respond(endpointID uint8, cmd wire.Command) {
	payload, err := wire.EncodeCommand(cmd)
	if err != nil {
		return
	}
	s.send(frame{
		endpointID: endpointID,
		typ:        frameUnnumbered,
		kind:       uframeInformation,
		pollFinal:  true,
		payload:    payload,
	})
}

func (s *fakeSecondary) send(f frame) {
	buf, err := marshalFrame(f)
	if err != nil {
		return
	}
	_, _ = s.conn.Write(buf)
}

func TestSystemEndpointOverLink(t *testing.T) {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})

	secondary := &fakeSecondary{
		conn: remote,
		properties: map[wire.PropertyID][]byte{
			wire.PropProtocolVersion: wire.U32Bytes(wire.ProtocolVersion),
			wire.PropCapabilities:    wire.U32Bytes(uint32(wire.CapSecurityEndpoint)),
		},
	}
	go secondary.run()

	loop := eventloop.New()
	l, err := New(Config{Port: local, Loop: loop, Log: zerolog.Nop()})
	require.NoError(t, err)

	sys, err := system.New(system.Config{Core: l, Timers: loop, Log: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)
	l.Start(nil)

	// Liveness probe round trip.
	noopDone := make(chan system.Status, 1)
	require.NoError(t, loop.Post(func() {
		sys.Noop(func(_ *system.Command, status system.Status) {
			noopDone <- status
		}, 3, time.Second)
	}))

	select {
	case status := <-noopDone:
		assert.Equal(t, system.StatusOK, status)
	case <-time.After(5 * time.Second):
		t.Fatal("noop did not complete")
	}

	// Property read round trip.
	type propResult struct {
		id     wire.PropertyID
		value  []byte
		status system.Status
	}
	propDone := make(chan propResult, 1)
	require.NoError(t, loop.Post(func() {
		sys.PropertyGet(func(_ *system.Command, id wire.PropertyID, value []byte, status system.Status) {
			propDone <- propResult{id: id, value: value, status: status}
		}, wire.PropProtocolVersion, 3, time.Second)
	}))

	select {
	case r := <-propDone:
		assert.Equal(t, system.StatusOK, r.status)
		assert.Equal(t, wire.PropProtocolVersion, r.id)
		v, err := wire.Uint32Value(r.value)
		require.NoError(t, err)
		assert.Equal(t, wire.ProtocolVersion, v)
	case <-time.After(5 * time.Second):
		t.Fatal("property get did not complete")
	}

	// No stragglers.
	inFlight := make(chan int, 1)
	require.NoError(t, loop.Post(func() { inFlight <- sys.InFlight() }))
	assert.Zero(t, <-inFlight)
	assert.Equal(t, core.StateOpen, func() core.EndpointState {
		state := make(chan core.EndpointState, 1)
		require.NoError(t, loop.Post(func() { state <- l.EndpointState(core.EndpointSystem) }))
		return <-state
	}())
}
