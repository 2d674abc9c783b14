// Command cpcd is the CPC host daemon: it drives the co-processor link
// over a serial port, negotiates capabilities with the secondary and keeps
// the system endpoint alive.
//
// Usage:
//
//	cpcd --config /etc/cpcd.yaml
//	cpcd --device /dev/ttyACM0 --baud 115200
//	cpcd console --device /dev/ttyACM0
//
// The console subcommand opens an interactive prompt for issuing system
// commands (noop, reboot, property get/set, endpoint reset) against the
// attached secondary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cpc-protocol/cpcd-go/internal/daemon"
	"github.com/cpc-protocol/cpcd-go/pkg/config"
)

var flags struct {
	configFile string
	device     string
	baud       int
	legacyPoll bool
	traceFile  string
	metrics    string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "cpcd",
	Short: "CPC host daemon",
	Long: `cpcd bridges a host to a co-processor over the CPC serial protocol.

It negotiates capabilities with the secondary at startup, mirrors endpoint
state, and exposes protocol traces and Prometheus metrics.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		d, err := daemon.New(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = d.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "configuration file path")
	pf.StringVar(&flags.device, "device", "", "serial device (overrides config)")
	pf.IntVar(&flags.baud, "baud", 0, "baud rate (overrides config)")
	pf.BoolVar(&flags.legacyPoll, "legacy-poll", false, "use unnumbered polls for early secondaries")
	pf.StringVar(&flags.traceFile, "trace-file", "", "protocol trace capture path")
	pf.StringVar(&flags.metrics, "metrics", "", "Prometheus listen address")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(consoleCmd)
}

// loadConfig merges the config file (when given) with flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if flags.device != "" {
		cfg.SerialDevice = flags.device
	}
	if flags.baud > 0 {
		cfg.BaudRate = flags.baud
	}
	if flags.legacyPoll {
		cfg.LegacyPoll = true
	}
	if flags.traceFile != "" {
		cfg.TraceFile = flags.traceFile
	}
	if flags.metrics != "" {
		cfg.MetricsAddress = flags.metrics
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	return cfg, cfg.Validate()
}

// newLogger builds the console logger at the configured level.
func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
