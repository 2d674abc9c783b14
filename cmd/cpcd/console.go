package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
	"github.com/cpc-protocol/cpcd-go/pkg/link"
	"github.com/cpc-protocol/cpcd-go/pkg/system"
	"github.com/cpc-protocol/cpcd-go/pkg/wire"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive system endpoint console",
	Long: `console attaches to the secondary and opens a prompt for issuing
system commands directly: liveness probes, reboot, property reads and
writes, and endpoint reset.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		port, err := link.OpenSerial(cfg.SerialDevice, cfg.BaudRate)
		if err != nil {
			return err
		}

		loop := eventloop.New()
		l, err := link.New(link.Config{Port: port, Loop: loop, Log: log})
		if err != nil {
			return err
		}
		sys, err := system.New(system.Config{
			Core:       l,
			Timers:     loop,
			Log:        log,
			LegacyPoll: cfg.LegacyPoll,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go loop.Run(ctx)
		l.Start(func(err error) {
			log.Error().Err(err).Msg("link down")
			cancel()
		})
		defer l.Close()

		c := &console{
			loop:    loop,
			sys:     sys,
			retries: cfg.CommandRetries,
			timeout: cfg.CommandTimeout(),
		}
		return c.run(ctx, cancel)
	},
}

// console is the interactive command loop.
type console struct {
	loop    *eventloop.Loop
	sys     *system.Endpoint
	retries uint8
	timeout time.Duration
	rl      *readline.Instance
}

func (c *console) run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cpc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("creating readline: %w", err)
	}
	defer rl.Close()
	c.rl = rl

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "exiting")
			cancel()
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			c.printHelp()
		case "noop":
			c.noop()
		case "reboot":
			c.reboot()
		case "get":
			c.get(fields[1:])
		case "set":
			c.set(fields[1:])
		case "reset":
			c.reset()
		case "status":
			c.status()
		case "exit", "quit":
			cancel()
			return nil
		default:
			fmt.Fprintf(rl.Stdout(), "unknown command %q; try help\n", fields[0])
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `commands:
  noop                   liveness probe
  reboot                 reboot the secondary
  get <property>         read a property (id as decimal or 0x hex)
  set <property> <u32>   write a 4-byte property value
  reset                  reset the system endpoint
  status                 show in-flight commands
  exit                   leave the console
`)
}

func (c *console) post(fn func()) {
	if err := c.loop.Post(fn); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
	}
}

func (c *console) noop() {
	c.post(func() {
		c.sys.Noop(func(_ *system.Command, status system.Status) {
			fmt.Fprintf(c.rl.Stdout(), "noop: %s\n", status)
		}, c.retries, c.timeout)
	})
}

func (c *console) reboot() {
	c.post(func() {
		c.sys.SetIgnoreResetReason(true)
		c.sys.Reboot(func(_ *system.Command, status system.Status, resetStatus wire.Status) {
			fmt.Fprintf(c.rl.Stdout(), "reboot: %s (reset status %s)\n", status, resetStatus)
		}, c.retries, c.timeout)
	})
}

func (c *console) get(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: get <property>")
		return
	}
	propertyID, err := parsePropertyID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
		return
	}

	c.post(func() {
		c.sys.PropertyGet(func(_ *system.Command, id wire.PropertyID, value []byte, status system.Status) {
			if !status.Ok() {
				fmt.Fprintf(c.rl.Stdout(), "get %s: %s\n", id, status)
				return
			}
			fmt.Fprintf(c.rl.Stdout(), "get %s: %s", id, hex.EncodeToString(value))
			if v, err := wire.Uint32Value(value); err == nil {
				fmt.Fprintf(c.rl.Stdout(), " (u32 %d)", v)
			}
			fmt.Fprintln(c.rl.Stdout())
		}, propertyID, c.retries, c.timeout)
	})
}

func (c *console) set(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.rl.Stdout(), "usage: set <property> <u32>")
		return
	}
	propertyID, err := parsePropertyID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
		return
	}
	v, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
		return
	}

	c.post(func() {
		c.sys.PropertySet(func(_ *system.Command, id wire.PropertyID, _ []byte, status system.Status) {
			fmt.Fprintf(c.rl.Stdout(), "set %s: %s\n", id, status)
		}, c.retries, c.timeout, propertyID, wire.U32Bytes(uint32(v)))
	})
}

func (c *console) reset() {
	c.post(func() {
		c.sys.ResetEndpoint()
		fmt.Fprintln(c.rl.Stdout(), "system endpoint reset")
	})
}

func (c *console) status() {
	c.post(func() {
		fmt.Fprintf(c.rl.Stdout(), "in flight: %d\n", c.sys.InFlight())
	})
}

// parsePropertyID accepts decimal or 0x-prefixed hex.
func parsePropertyID(s string) (wire.PropertyID, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad property id %q", s)
	}
	return wire.PropertyID(v), nil
}
