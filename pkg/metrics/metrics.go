package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// NewRegistry creates a registry with the standard process and Go
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds the daemon counters. It satisfies both system.Stats and
// link.Stats.
type Metrics struct {
	FramesSentTotal     prometheus.Counter
	FramesReceivedTotal prometheus.Counter
	FramesCorruptTotal  prometheus.Counter

	CommandsTotal     *prometheus.CounterVec // label: command
	RetransmitsTotal  *prometheus.CounterVec // label: command
	CompletionsTotal  *prometheus.CounterVec // label: status
	UnsolicitedTotal  prometheus.Counter
	CommandsInFlight  prometheus.Gauge
	LinkBytesSent     prometheus.Counter
	LinkBytesReceived prometheus.Counter
}

// New registers and returns the daemon counters.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		FramesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_frames_sent_total",
			Help: "Frames written to the link.",
		}),
		FramesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_frames_received_total",
			Help: "Frames decoded from the link.",
		}),
		FramesCorruptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_frames_corrupt_total",
			Help: "Bytes dropped resynchronizing after corruption.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpcd_system_commands_total",
			Help: "System commands submitted, by command.",
		}, []string{"command"}),
		RetransmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpcd_system_retransmits_total",
			Help: "System command retransmissions, by command.",
		}, []string{"command"}),
		CompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpcd_system_completions_total",
			Help: "System command completions, by status.",
		}, []string{"status"}),
		UnsolicitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_system_unsolicited_total",
			Help: "Unsolicited notifications from the secondary.",
		}),
		CommandsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpcd_system_commands_in_flight",
			Help: "System commands awaiting completion.",
		}),
		LinkBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_link_bytes_sent_total",
			Help: "Bytes written to the link.",
		}),
		LinkBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpcd_link_bytes_received_total",
			Help: "Bytes received from the link.",
		}),
	}
	reg.MustRegister(
		m.FramesSentTotal, m.FramesReceivedTotal, m.FramesCorruptTotal,
		m.CommandsTotal, m.RetransmitsTotal, m.CompletionsTotal,
		m.UnsolicitedTotal, m.CommandsInFlight,
		m.LinkBytesSent, m.LinkBytesReceived,
	)
	return m
}

// CommandSubmitted implements system.Stats.
func (m *Metrics) CommandSubmitted(id wire.CommandID) {
	m.CommandsTotal.WithLabelValues(id.String()).Inc()
}

// CommandRetransmitted implements system.Stats.
func (m *Metrics) CommandRetransmitted(id wire.CommandID) {
	m.RetransmitsTotal.WithLabelValues(id.String()).Inc()
}

// CommandCompleted implements system.Stats.
func (m *Metrics) CommandCompleted(status system.Status) {
	m.CompletionsTotal.WithLabelValues(status.String()).Inc()
}

// UnsolicitedReceived implements system.Stats.
func (m *Metrics) UnsolicitedReceived() {
	m.UnsolicitedTotal.Inc()
}

// InFlight implements system.Stats.
func (m *Metrics) InFlight(n int) {
	m.CommandsInFlight.Set(float64(n))
}

// FrameSent implements link.Stats.
func (m *Metrics) FrameSent(bytes int) {
	m.FramesSentTotal.Inc()
	m.LinkBytesSent.Add(float64(bytes))
}

// FrameReceived implements link.Stats.
func (m *Metrics) FrameReceived(bytes int) {
	m.FramesReceivedTotal.Inc()
	m.LinkBytesReceived.Add(float64(bytes))
}

// FramesCorrupt implements link.Stats.
func (m *Metrics) FramesCorrupt(n int) {
	m.FramesCorruptTotal.Add(float64(n))
}

// Compile-time interface satisfaction check.
var _ system.Stats = (*Metrics)(nil)
