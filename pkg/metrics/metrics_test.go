package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

func TestCommandAccounting(t *testing.T) {
	m := New(NewRegistry())

	m.CommandSubmitted(wire.CommandNoop)
	m.CommandSubmitted(wire.CommandNoop)
	m.CommandSubmitted(wire.CommandPropertyGet)
	m.CommandRetransmitted(wire.CommandNoop)
	m.CommandCompleted(system.StatusOK)
	m.CommandCompleted(system.StatusTimeout)
	m.InFlight(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("NOOP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("PROP_VALUE_GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetransmitsTotal.WithLabelValues("NOOP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("TIMEOUT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CommandsInFlight))
}

func TestFrameAccounting(t *testing.T) {
	m := New(NewRegistry())

	m.FrameSent(10)
	m.FrameSent(20)
	m.FrameReceived(7)
	m.FramesCorrupt(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSentTotal))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.LinkBytesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceivedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.LinkBytesReceived))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FramesCorruptTotal))
}
