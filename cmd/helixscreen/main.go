// helixscreen is a touchscreen front end for Klipper 3D printers.
// It connects to Moonraker over a WebSocket, mirrors printer state into
// reactive subjects for the UI, and drives the panel directly through
// DRM dumb buffers.
//
// Usage:
//
//	helixscreen -config ~/printer_data/config/helixscreen.json [options]
//
// Options:
//
//	-config string    HelixScreen configuration file (required)
//	-moonraker string Moonraker address, overrides the config file
//	-mock-ams         Use the simulated filament changer backend
//	-loglevel string  Log level: debug, info, warn, error
//	-logfile string   Log file path (default: stderr)
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helixscreen/pkg/ams"
	"helixscreen/pkg/config"
	"helixscreen/pkg/display"
	"helixscreen/pkg/log"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/printer"
	"helixscreen/pkg/subject"
	"helixscreen/pkg/telemetry"
	"helixscreen/pkg/ui"
	"helixscreen/pkg/widgets"
)

const version = "0.9.0"

// tickInterval paces the main loop that drains the update queue.
const tickInterval = 16 * time.Millisecond

func main() {
	configFile := flag.String("config", "", "HelixScreen configuration file (required)")
	moonrakerAddr := flag.String("moonraker", "", "Moonraker address, overrides the config file")
	mockAMS := flag.Bool("mock-ams", false, "Use the simulated filament changer backend")
	logLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("helixscreen %s\n", version)
		return
	}
	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := *logLevel
	if level == "" {
		level = cfg.GetString("/log/level", "info")
	}
	log.SetGlobalLevel(log.ParseLevel(level))

	path := *logFile
	if path == "" {
		path = cfg.GetString("/log/file", "")
	}
	if path != "" {
		w, err := log.NewRotatingWriter(path, 5*1024*1024, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer w.Close()
		log.SetGlobalWriter(w)
	}

	logger := log.New("Main")
	logger.Info("HelixScreen %s starting", version)
	logger.Info("Config: %s", *configFile)

	startedAt := time.Now()
	queue := subject.NewUpdateQueue()
	subjects := subject.NewRegistry()
	teardown := subject.NewTeardownRegistry()

	// Telemetry comes up first so a crash flag from the previous run is
	// reported even if later init fails.
	tm, err := telemetry.NewManager(telemetry.Config{
		Enabled:   cfg.GetBool("/telemetry/enabled", false),
		DataDir:   cfg.GetString("/telemetry/data_dir", dataDir()),
		Endpoint:  cfg.GetString("/telemetry/endpoint", ""),
		AuthToken: cfg.GetString("/telemetry/auth_token", ""),
		Version:   version,
	})
	if err != nil {
		logger.Warn("telemetry disabled: %v", err)
		tm, _ = telemetry.NewManager(telemetry.Config{Enabled: false})
	}
	tm.Start()
	tm.RecordHardwareProfile()
	teardown.Register("telemetry", func() {
		tm.RecordSession(time.Since(startedAt), 1)
		tm.Stop()
	})

	address := *moonrakerAddr
	if address == "" {
		address = cfg.GetString("/moonraker/address", "localhost:7125")
	}
	logger.Info("Moonraker: %s", address)

	client := moonraker.NewClient(moonraker.Config{
		Address: address,
		APIKey:  cfg.GetString("/moonraker/api_key", ""),
		Queue:   queue,
	})
	client.Start()
	teardown.Register("moonraker", client.Stop)

	projector := printer.NewProjector(client, queue)
	if err := projector.RegisterSubjects(subjects); err != nil {
		logger.Error("subject registration: %v", err)
		teardown.Execute()
		os.Exit(1)
	}
	projector.Start()
	teardown.Register("projector", projector.Stop)

	jobs := printer.NewJobQueue(client, queue)
	jobs.Start()
	teardown.Register("jobqueue", jobs.Stop)

	notify := ui.NewNotificationCenter()

	amsType := ams.ParseType(cfg.GetString("/ams/type", "none"))
	backend, err := ams.Create(amsType, client, queue, *mockAMS)
	switch {
	case err != nil:
		logger.Info("no filament changer configured")
	default:
		backend.SetEventHandler(func(ev ams.Event) {
			if ev.Name == ams.EventError || ev.Name == ams.EventAttention {
				notify.Post(ui.LevelError, "ams", string(ev.Name), string(ev.Data))
				tm.RecordError("ams", string(ev.Name), string(ev.Data))
			}
		})
		if err := backend.Start(); err != nil {
			logger.Error("filament changer start: %v", err)
		} else {
			teardown.Register("ams", func() { backend.Stop() })
		}
	}

	width := cfg.GetInt("/display/width", 800)
	height := cfg.GetInt("/display/height", 480)
	rotation := parseRotation(cfg.GetInt("/display/rotation", 0))

	// Page flips are requested by the toolkit's flush callback; until
	// that is wired the shadow rotator gets a no-op.
	noFlip := func(int) error { return nil }
	var disp *display.Backend
	disp, err = display.NewBackend(cfg, uint32(width), uint32(height), rotation, noFlip)
	if err != nil {
		logger.Warn("display unavailable, running headless: %v", err)
		disp = nil
	} else {
		teardown.Register("display", disp.Close)
	}

	defs := widgets.NewDefRegistry()
	widgets.RegisterBuiltins(defs)
	home := widgets.NewManager(defs, cfg, subjects, queue, "home",
		widgets.BreakpointForHeight(height))
	home.Load()
	home.WatchGates()
	teardown.Register("widgets", home.UnwatchGates)

	mainLoop(logger, queue, tm, startedAt)

	logger.Info("shutting down")
	teardown.Execute()
	if err := tm.Persist(); err != nil {
		logger.Warn("telemetry persist: %v", err)
	}
}

// mainLoop drains the update queue until a termination signal arrives.
// Fatal signals additionally leave a crash flag for the next boot.
func mainLoop(logger *log.Logger, queue *subject.UpdateQueue, tm *telemetry.Manager, startedAt time.Time) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM,
		syscall.SIGSEGV, syscall.SIGABRT, syscall.SIGBUS)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queue.Drain()
		case sig := <-sigs:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("received %v", sig)
				return
			default:
				logger.Error("fatal signal %v", sig)
				telemetry.WriteCrashFlag(dataDir(), version,
					sig.String(), time.Since(startedAt))
				os.Exit(1)
			}
		}
	}
}

func parseRotation(degrees int) display.Rotation {
	switch degrees {
	case 90:
		return display.Rotate90
	case 180:
		return display.Rotate180
	case 270:
		return display.Rotate270
	default:
		return display.Rotate0
	}
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.helixscreen"
}
