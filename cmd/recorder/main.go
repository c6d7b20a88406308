// Command recorder connects to a reflector and captures every completed
// voice stream it hears to a DVTool file, indexing each capture in the
// recordings database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dstar-toolkit/pkg/config"
	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/recordingdb"
	"dstar-toolkit/pkg/toolkit"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug output")
	protocol := flag.String("p", "auto", "reflector protocol (dextra, dextraopen, dplus, auto)")
	configFile := flag.String("config", "", "path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] callsign reflector module host\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 4 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: cfg.Logging.Format})

	callsign, err := dstar.NewCallsign(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reflectorCallsign := flag.Arg(1)
	if len(flag.Arg(2)) != 1 {
		fmt.Fprintln(os.Stderr, "module must be a single letter")
		os.Exit(1)
	}
	module, err := dstar.NewModule(flag.Arg(2)[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	host := flag.Arg(3)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind := toolkit.Resolve(toolkit.ProtocolKind(*protocol), reflectorCallsign)
	log.Info("connecting to reflector",
		logger.String("reflector", reflectorCallsign),
		logger.String("host", host),
		logger.String("protocol", string(kind)))

	conn, err := toolkit.Connect(kind, callsign, toolkit.ConnectOptions{
		Host:             host,
		Module:           module,
		HandshakeTimeout: cfg.Timing.HandshakeTimeout,
		WorkerIdleSleep:  cfg.Timing.WorkerIdleSleep,
		Log:              log,
	})
	if err != nil {
		log.Error("connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer conn.Close()

	db, err := recordingdb.Open(recordingdb.Config{Path: cfg.Recorder.DatabasePath}, log.WithComponent("recordingdb"))
	if err != nil {
		log.Error("failed to open recordings database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	rec := toolkit.NewRecorder(conn, ".", reflectorCallsign, db, log.WithComponent("recorder"))
	if err := rec.Run(ctx); err != nil {
		log.Error("recorder failed", logger.Error(err))
		os.Exit(1)
	}
}
