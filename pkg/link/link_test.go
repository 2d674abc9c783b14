package link

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
)

// testLink wires a link to one side of an in-memory pipe; the test plays
// the secondary on the other side.
type testLink struct {
	link   *Link
	loop   *eventloop.Loop
	remote net.Conn
}

func newTestLink(t *testing.T) *testLink {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})

	loop := eventloop.New()
	l, err := New(Config{Port: local, Loop: loop, Log: zerolog.Nop()})
	require.NoError(t, err)

	return &testLink{link: l, loop: loop, remote: remote}
}

// start opens the system endpoint with hooks, then launches the loop and
// the read goroutine.
func (tl *testLink) start(t *testing.T, final core.FinalHandler, uframe core.UframeHandler, pollAck core.PollAckHandler) {
	t.Helper()

	require.NoError(t, tl.link.OpenEndpoint(core.EndpointSystem, core.OpenUFrameEnable, 1))
	tl.link.SetOnFinal(core.EndpointSystem, final)
	tl.link.SetOnUframeReceive(core.EndpointSystem, uframe)
	tl.link.SetOnPollAcknowledged(core.EndpointSystem, pollAck)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go tl.loop.Run(ctx)
	tl.link.Start(nil)
}

// run executes fn on the event loop and waits for it.
func (tl *testLink) run(t *testing.T, fn func()) {
	t.Helper()

	done := make(chan struct{})
	require.NoError(t, tl.loop.Post(func() {
		fn()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not execute")
	}
}

// readFrame decodes one frame from the remote end of the pipe.
func (tl *testLink) readFrame(t *testing.T) frame {
	t.Helper()

	var dec decoder
	buf := make([]byte, 1024)
	deadline := time.Now().Add(time.Second)
	for {
		require.NoError(t, tl.remote.SetReadDeadline(deadline))
		n, err := tl.remote.Read(buf)
		require.NoError(t, err)
		if frames := dec.feed(buf[:n]); len(frames) > 0 {
			require.Len(t, frames, 1)
			return frames[0]
		}
	}
}

// sendFrame injects a frame on the remote end.
func (tl *testLink) sendFrame(t *testing.T, f frame) {
	t.Helper()

	buf, err := marshalFrame(f)
	require.NoError(t, err)
	require.NoError(t, tl.remote.SetWriteDeadline(time.Now().Add(time.Second)))
	_, err = tl.remote.Write(buf)
	require.NoError(t, err)
}

func TestWriteInformationPollAndAck(t *testing.T) {
	tl := newTestLink(t)
	acks := make(chan []byte, 1)
	tl.start(t, nil, nil, func(_ uint8, payload []byte) {
		acks <- payload
	})

	payload := []byte{0x01, 0x00, 0x00}
	tl.run(t, func() {
		require.NoError(t, tl.link.Write(core.EndpointSystem, payload, core.WriteInformationPoll))
	})

	f := tl.readFrame(t)
	assert.Equal(t, frameInformation, f.typ)
	assert.True(t, f.pollFinal)
	assert.Equal(t, uint8(0), f.seq)
	assert.Equal(t, payload, f.payload)

	// The secondary acks the poll; the original payload surfaces through
	// the poll-ack hook.
	tl.sendFrame(t, frame{endpointID: core.EndpointSystem, typ: frameSupervisory, ack: f.seq})

	select {
	case got := <-acks:
		assert.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("poll ack not delivered")
	}
}

func TestInboundFinalDispatch(t *testing.T) {
	tl := newTestLink(t)
	finals := make(chan []byte, 1)
	tl.start(t, func(_ uint8, payload []byte) {
		finals <- payload
	}, nil, nil)

	tl.sendFrame(t, frame{
		endpointID: core.EndpointSystem,
		typ:        frameUnnumbered,
		kind:       uframeInformation,
		pollFinal:  true,
		payload:    []byte{0x01, 0x00, 0x00},
	})

	select {
	case got := <-finals:
		assert.Equal(t, []byte{0x01, 0x00, 0x00}, got)
	case <-time.After(time.Second):
		t.Fatal("final not delivered")
	}
}

func TestInboundUframeDispatch(t *testing.T) {
	tl := newTestLink(t)
	uframes := make(chan []byte, 1)
	tl.start(t, nil, func(_ uint8, payload []byte) {
		uframes <- payload
	}, nil)

	tl.sendFrame(t, frame{
		endpointID: core.EndpointSystem,
		typ:        frameUnnumbered,
		kind:       uframeInformation,
		payload:    []byte{0x05, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00},
	})

	select {
	case got := <-uframes:
		assert.Len(t, got, 7)
	case <-time.After(time.Second):
		t.Fatal("uframe not delivered")
	}
}

func TestWriteUnnumberedReset(t *testing.T) {
	tl := newTestLink(t)
	tl.start(t, nil, nil, nil)

	tl.run(t, func() {
		require.NoError(t, tl.link.Write(core.EndpointSystem, nil, core.WriteUnnumberedReset))
	})

	f := tl.readFrame(t)
	assert.Equal(t, frameUnnumbered, f.typ)
	assert.Equal(t, uframeResetCommand, f.kind)
	assert.Empty(t, f.payload)
}

func TestWriteRequiresOpenEndpoint(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	l, err := New(Config{Port: local, Loop: eventloop.New(), Log: zerolog.Nop()})
	require.NoError(t, err)

	err = l.Write(5, []byte{1}, core.WriteInformationPoll)
	require.ErrorIs(t, err, ErrEndpointNotOpen)
}

func TestOpenEndpointTwice(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	l, err := New(Config{Port: local, Loop: eventloop.New(), Log: zerolog.Nop()})
	require.NoError(t, err)

	require.NoError(t, l.OpenEndpoint(1, core.OpenUFrameEnable, 1))
	require.ErrorIs(t, l.OpenEndpoint(1, core.OpenUFrameEnable, 1), ErrEndpointOpen)

	// Reopening after close is allowed.
	require.NoError(t, l.CloseEndpoint(1, false, true))
	require.NoError(t, l.OpenEndpoint(1, core.OpenUFrameEnable, 1))
}

func TestEndpointStateTracking(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	l, err := New(Config{Port: local, Loop: eventloop.New(), Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, core.StateClosed, l.EndpointState(3))

	require.NoError(t, l.OpenEndpoint(3, 0, 1))
	assert.Equal(t, core.StateOpen, l.EndpointState(3))

	l.SetEndpointInError(3, core.StateErrorDestinationUnreachable)
	assert.Equal(t, core.StateErrorDestinationUnreachable, l.EndpointState(3))
}
