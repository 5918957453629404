package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/oklog/run"

	"x62fanctl/internal/ec"
	"x62fanctl/internal/pci"
	"x62fanctl/internal/portio"
	"x62fanctl/internal/status"
)

// version can be interpolated with -ldflags at build time.
var version = "dev"

type globalOptions struct {
	Config  string `short:"c" long:"config" description:"path to the yaml configuration file" value-name:"FILE"`
	Verbose bool   `short:"v" long:"verbose" description:"log bring-up and protocol details"`
}

var opts globalOptions

// bringUp performs the full hardware bring-up: PCI unlock, port
// access, Super I/O select, EC wake-up. The returned func releases
// the ports.
func bringUp(log *slog.Logger) (*ec.Controller, func(), error) {
	log.Debug("unlocking EC access through the LPC bridge")
	if err := pci.Unlock(log); err != nil {
		return nil, nil, err
	}

	port, err := portio.Open()
	if err != nil {
		return nil, nil, err
	}

	ctrl := ec.New(port, log)
	if err := ctrl.Init(); err != nil {
		_ = port.Close()
		return nil, nil, err
	}

	return ctrl, func() { _ = port.Close() }, nil
}

type tempCommand struct{}

func (cmd *tempCommand) Execute([]string) error {
	ctrl, release, err := bringUp(newLogger(opts.Verbose))
	if err != nil {
		return err
	}
	defer release()

	temp, err := ctrl.ReadTemperature()
	if err != nil {
		return err
	}
	fmt.Printf("Current temperature: %d\n", temp)
	return nil
}

type setFanSpeedCommand struct {
	Args struct {
		FanSpeed int `positional-arg-name:"fan-speed" description:"raw speed code, 0-255"`
	} `positional-args:"yes" required:"yes"`
}

func (cmd *setFanSpeedCommand) Execute([]string) error {
	// reject before touching any hardware
	if cmd.Args.FanSpeed < 0 || cmd.Args.FanSpeed > 255 {
		return fmt.Errorf("invalid fan speed %d, want 0-255", cmd.Args.FanSpeed)
	}
	code := uint8(cmd.Args.FanSpeed)

	ctrl, release, err := bringUp(newLogger(opts.Verbose))
	if err != nil {
		return err
	}
	defer release()

	fmt.Printf("Setting fan speed to %d (%s)\n", code, describeSpeed(code))
	return ctrl.SetFanSpeed(code)
}

type managerCommand struct{}

func (cmd *managerCommand) Execute([]string) error {
	log := newLogger(opts.Verbose)

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	ctrl, release, err := bringUp(log)
	if err != nil {
		return err
	}
	defer release()

	var metrics *status.Metrics
	if cfg.StatusBind != "" {
		metrics = status.NewMetrics()
	}
	manager := NewManager(ctrl, cfg.Levels, time.Duration(cfg.CheckInterval)*time.Second, log, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	g.Add(func() error {
		return manager.Run(ctx)
	}, func(error) {
		cancel()
	})
	if cfg.StatusBind != "" {
		srv := status.NewServer(cfg.StatusBind, manager.Snapshot, log)
		g.Add(srv.Start, func(error) {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = srv.Stop(stopCtx)
		})
	}
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	log.Info("fan manager starting",
		"interval_s", cfg.CheckInterval, "levels", len(cfg.Levels), "version", version)

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info("received signal", "signal", sig.Signal.String())
		return nil
	}
	return err
}

type versionCommand struct{}

func (cmd *versionCommand) Execute([]string) error {
	fmt.Printf("x62fanctl %s\n", version)
	return nil
}

func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Closed-loop fan control for the 51nb X62 embedded controller.\n" +
		"Every hardware command exits with status 2 on unexpected I/O-port data,\n" +
		"which usually means the EC wants re-initializing after a resume from sleep."

	_, _ = parser.AddCommand("temp", "Display the current temperature",
		"Read one temperature sample from the EC and print it.", &tempCommand{})
	_, _ = parser.AddCommand("set-fan-speed", "Set a raw fan speed",
		"Send one fan-speed code (0-255) to the EC. Its firmware may take the fan "+
			"back after a few seconds; use the manager to hold a speed.", &setFanSpeedCommand{})
	_, _ = parser.AddCommand("manager", "Run the fan control loop",
		"Read the temperature once per interval and drive the fan through the "+
			"hysteresis level table.", &managerCommand{})
	_, _ = parser.AddCommand("version", "Print the program version",
		"Print the version number and exit.", &versionCommand{})

	_, err := parser.ParseArgs(args)
	return exitStatus(err)
}

// exitStatus maps every error onto the process exit contract: 0 for
// success, 2 for a protocol timeout (the EC likely wants a fresh
// initialization, e.g. after a resume), 1 for anything else.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if flags.WroteHelp(err) {
		return 0
	}
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) {
		// go-flags already printed the usage problem
		return 1
	}
	fmt.Fprintf(os.Stderr, "x62fanctl: %v\n", err)
	if errors.Is(err, ec.ErrTimeout) {
		return 2
	}
	return 1
}
