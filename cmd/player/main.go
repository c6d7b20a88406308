// Command player replays a DVTool capture to a reflector under the
// operator's callsign, at live frame pacing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"dstar-toolkit/pkg/config"
	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/recordingdb"
	"dstar-toolkit/pkg/toolkit"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug output")
	protocol := flag.String("p", "auto", "reflector protocol (dextra, dextraopen, dplus, auto)")
	configFile := flag.String("config", "", "path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] callsign reflector module host input\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "input is a DVTool file, or a stream id to look up in the recordings index")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 5 {
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

	input, err := resolveInput(flag.Arg(4), cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s, err := dvtool.Read(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s, err = toolkit.Rewrite(s, callsign, reflectorCallsign, module)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind := toolkit.Resolve(toolkit.ProtocolKind(*protocol), reflectorCallsign)
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

	player := toolkit.NewPlayer(conn, cfg.Timing.FramePacing, log.WithComponent("player"))
	if err := player.Play(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("playback failed", logger.Error(err))
		os.Exit(1)
	}
}

// resolveInput treats input as a DVTool path. When no such file exists and
// input parses as a stream id, the newest matching capture in the
// recordings index is played instead.
func resolveInput(input string, cfg *config.Config, log *logger.Logger) (string, error) {
	if _, err := os.Stat(input); err == nil {
		return input, nil
	}
	id, err := strconv.ParseUint(input, 10, 16)
	if err != nil {
		// Not a stream id; let dvtool.Read report the missing file.
		return input, nil
	}

	db, err := recordingdb.Open(recordingdb.Config{Path: cfg.Recorder.DatabasePath}, log.WithComponent("recordingdb"))
	if err != nil {
		return "", err
	}
	defer db.Close()

	recs, err := db.ByStreamID(uint16(id))
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("no recording indexed for stream id %d", id)
	}
	log.Info("resolved recording from index",
		logger.Uint32("stream_id", uint32(id)),
		logger.String("path", recs[0].FilePath))
	return recs[0].FilePath, nil
}
