// Command transcoder converts a DVTool capture between vocoder families
// by driving a remote AMBEd transcoder service.
package main

import (
	"flag"
	"fmt"
	"os"

	"dstar-toolkit/pkg/ambed"
	"dstar-toolkit/pkg/config"
	"dstar-toolkit/pkg/dstar"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/toolkit"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug output")
	configFile := flag.String("config", "", "path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] callsign host input.dvtool output.dvtool\n", os.Args[0])
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
	host := flag.Arg(1)
	input := flag.Arg(2)
	output := flag.Arg(3)

	s, err := dvtool.Read(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client, err := ambed.NewClient(host, cfg.Ports.AMBEd, cfg.Timing.HandshakeTimeout, log.WithComponent("ambed"))
	if err != nil {
		log.Error("failed to reach transcoder service", logger.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	tc := toolkit.NewTranscoder(client, cfg.Timing.AMBEdFramePacing, cfg.Timing.WorkerIdleSleep, log.WithComponent("transcoder"))
	out, err := tc.Transcode(callsign, s)
	if err != nil {
		log.Error("transcode failed", logger.Error(err))
		os.Exit(1)
	}

	if err := dvtool.Write(output, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Info("wrote transcoded stream",
		logger.String("output", output),
		logger.Int("frames", len(out.Frames)))
}
