package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cpc-protocol/cpcd-go/pkg/config"
	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
	"github.com/cpc-protocol/cpcd-go/pkg/link"
	"github.com/cpc-protocol/cpcd-go/pkg/metrics"
	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/trace"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

// Daemon is one cpcd process: serial link, event loop, system endpoint and
// the observability around them.
type Daemon struct {
	cfg        config.Config
	log        zerolog.Logger
	instanceID string

	loop   *eventloop.Loop
	link   *link.Link
	sys    *system.Endpoint
	tracer trace.Logger
	stats  *metrics.Metrics

	traceFile *trace.FileLogger
	registry  http.Handler
}

// New assembles a daemon from its configuration. The serial port is opened
// here; protocol traffic starts in Run.
func New(cfg config.Config, log zerolog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:        cfg,
		log:        log,
		instanceID: uuid.NewString(),
		loop:       eventloop.New(),
		tracer:     trace.NoopLogger{},
	}

	if cfg.TraceFile != "" {
		fl, err := trace.NewFileLogger(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		d.traceFile = fl
		d.tracer = fl
	}

	if cfg.MetricsAddress != "" {
		reg := metrics.NewRegistry()
		d.stats = metrics.New(reg)
		d.registry = metrics.Handler(reg)
	}

	port, err := link.OpenSerial(cfg.SerialDevice, cfg.BaudRate)
	if err != nil {
		return nil, err
	}

	linkCfg := link.Config{
		Port:       port,
		Loop:       d.loop,
		Log:        log,
		Tracer:     d.tracer,
		InstanceID: d.instanceID,
	}
	if d.stats != nil {
		linkCfg.Stats = d.stats
	}
	d.link, err = link.New(linkCfg)
	if err != nil {
		return nil, err
	}

	sysCfg := system.Config{
		Core:       d.link,
		Timers:     d.loop,
		Log:        log,
		Tracer:     d.tracer,
		LegacyPoll: cfg.LegacyPoll,
		InstanceID: d.instanceID,
	}
	if d.stats != nil {
		sysCfg.Stats = d.stats
	}
	d.sys, err = system.New(sysCfg)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Run drives the daemon until ctx is cancelled: event loop, link read
// goroutine, startup negotiation, liveness probing, optional metrics
// server.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		d.loop.Run(ctx)
		close(loopDone)
	}()

	d.link.Start(func(err error) {
		d.log.Error().Err(err).Msg("link down")
		cancel()
	})

	if d.registry != nil {
		go d.serveMetrics(ctx)
	}

	// React to the secondary resetting behind our back.
	if err := d.loop.Post(func() {
		d.sys.OnLastStatus(d.onLastStatus)
	}); err != nil {
		return err
	}

	info, err := d.negotiate(ctx)
	if err != nil {
		return err
	}
	d.log.Info().
		Str("instance", d.instanceID).
		Uint32("capabilities", uint32(info.Capabilities)).
		Msg("daemon up")

	if period := d.cfg.LivenessPeriod(); period > 0 {
		if err := d.loop.Post(func() { d.scheduleLiveness(period) }); err != nil {
			return err
		}
	}

	<-ctx.Done()

	if err := d.link.Close(); err != nil {
		d.log.Warn().Err(err).Msg("closing link")
	}
	<-loopDone
	if d.traceFile != nil {
		_ = d.traceFile.Close()
	}
	return ctx.Err()
}

// negotiate runs the startup sequence on the loop and waits for it.
func (d *Daemon) negotiate(ctx context.Context) (SecondaryInfo, error) {
	type result struct {
		info SecondaryInfo
		err  error
	}
	done := make(chan result, 1)

	n := &negotiator{
		sys:     d.sys,
		log:     d.log,
		retries: d.cfg.CommandRetries,
		timeout: d.cfg.CommandTimeout(),
		done: func(info SecondaryInfo, err error) {
			done <- result{info: info, err: err}
		},
	}
	if err := d.loop.Post(n.start); err != nil {
		return SecondaryInfo{}, err
	}

	select {
	case r := <-done:
		return r.info, r.err
	case <-ctx.Done():
		return SecondaryInfo{}, ctx.Err()
	}
}

// onLastStatus handles unsolicited reset reasons from the secondary. Runs
// on the loop.
func (d *Daemon) onLastStatus(_, decoded wire.Status) {
	if d.sys.IgnoreResetReason() {
		d.log.Debug().Stringer("reason", decoded).Msg("ignoring expected reset reason")
		return
	}
	if !decoded.IsReset() {
		d.log.Info().Stringer("status", decoded).Msg("secondary reported status")
		return
	}

	d.log.Warn().Stringer("reason", decoded).Msg("secondary reset unexpectedly")
	d.sys.ResetEndpoint()
}

// scheduleLiveness arms the recurring noop probe. Runs on the loop.
func (d *Daemon) scheduleLiveness(period time.Duration) {
	d.loop.AfterFunc(period, func() {
		d.sys.Noop(func(_ *system.Command, status system.Status) {
			if !status.Ok() {
				d.log.Warn().Stringer("status", status).Msg("liveness probe failed")
				return
			}
			d.log.Debug().Msg("liveness probe ok")
		}, d.cfg.CommandRetries, d.cfg.CommandTimeout())

		d.scheduleLiveness(period)
	})
}

// serveMetrics serves the Prometheus endpoint until ctx is cancelled.
func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.registry)
	srv := &http.Server{Addr: d.cfg.MetricsAddress, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	d.log.Info().Str("addr", d.cfg.MetricsAddress).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		d.log.Error().Err(err).Msg("metrics server failed")
	}
}
