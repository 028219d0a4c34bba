// Package main runs the pressure cycle controller against a simulated rig, for dry runs of
// a sweep configuration without hardware.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"

	"pressurecycle"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogDir   = "log-dir"
	flagDuration = "duration"
	flagLog      = "log"
	flagFillRate = "fill-rate"
	flagVentRate = "vent-rate"

	exitTripped = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "rigsim",
		Usage: "run pressure cycling against a simulated rig",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load rig configuration from YAML `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.Float64Flag{
				Name:  flagFillRate,
				Usage: "simulated fill rate in psi/s",
				Value: pressurecycle.DefaultSimOptions().FillRate,
			},
			&cli.Float64Flag{
				Name:  flagVentRate,
				Usage: "simulated vent rate in psi/s",
				Value: pressurecycle.DefaultSimOptions().VentRate,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "cycle",
				Usage: "run the full sweep until it completes or the interlock trips",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagLogDir,
						Usage: "directory for the data log (overrides the config)",
					},
				},
				Action: runCycle,
			},
			{
				Name:  "monitor",
				Usage: "print readbacks for a while without actuating anything",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "how long to monitor (defaults to the configured duration)",
					},
					&cli.BoolFlag{
						Name:  flagLog,
						Usage: "also write a data log",
					},
					&cli.StringFlag{
						Name:  flagLogDir,
						Usage: "directory for the data log (overrides the config)",
					},
				},
				Action: runMonitor,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("rigsim")
	}
	return logging.NewLogger("rigsim")
}

// setup loads the config and builds a rig wired to a fresh simulated plant.
func setup(c *cli.Context, logger logging.Logger) (*pressurecycle.Config, *pressurecycle.Rig, error) {
	cfg, err := pressurecycle.LoadConfig(c.String(flagConfig))
	if err != nil {
		return nil, nil, err
	}
	if dir := c.String(flagLogDir); dir != "" {
		cfg.LogDir = dir
	}

	clk := clock.New()
	opts := pressurecycle.DefaultSimOptions()
	opts.FillRate = c.Float64(flagFillRate)
	opts.VentRate = c.Float64(flagVentRate)
	sim := pressurecycle.NewSimRig(cfg, clk, opts)

	if len(cfg.SensorReadbacks) > 0 {
		logger.Warn("sensor_readbacks need a Viam machine and are ignored by the simulator")
		cfg.SensorReadbacks = nil
	}
	rig, err := pressurecycle.BuildRig(cfg, pressurecycle.RigParts{
		DAQ:     sim,
		Clock:   clk,
		Console: os.Stdout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rig, nil
}

func runCycle(c *cli.Context) (err error) {
	logger := newLogger(c)
	cfg, rig, err := setup(c, logger)
	if err != nil {
		return err
	}
	cycle, err := pressurecycle.NewCycle(rig, cfg.CycleParams(), logger)
	if err != nil {
		return err
	}
	if _, err := rig.OpenLog(cfg.LogDir); err != nil {
		return err
	}
	defer func() {
		if closeErr := rig.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	outcome, err := cycle.Run(c.Context)
	if err != nil {
		return err
	}
	if outcome.Tripped {
		return cli.Exit(outcome.Message, exitTripped)
	}
	return nil
}

func runMonitor(c *cli.Context) (err error) {
	logger := newLogger(c)
	cfg, rig, err := setup(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rig.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	d := c.Duration(flagDuration)
	if d <= 0 {
		d = cfg.MonitorDuration()
	}
	if c.Bool(flagLog) {
		if _, err := rig.OpenLog(cfg.LogDir); err != nil {
			return err
		}
	}
	return rig.Monitor(c.Context, d, cfg.MonitorPollInterval(), c.Bool(flagLog))
}
