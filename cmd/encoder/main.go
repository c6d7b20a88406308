// Command encoder turns a WAV recording into a DVTool stream by running
// each 20ms PCM frame through a Codec2 vocoder, with Golay FEC framing in
// 2400 mode.
package main

import (
	"flag"
	"fmt"
	"os"

	"dstar-toolkit/internal/vocoder"
	"dstar-toolkit/internal/wavio"
	"dstar-toolkit/pkg/config"
	"dstar-toolkit/pkg/dvtool"
	"dstar-toolkit/pkg/logger"
	"dstar-toolkit/pkg/toolkit"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug output")
	mode := flag.Int("m", vocoder.Codec2Mode3200, "codec2 mode (3200 or 2400)")
	configFile := flag.String("config", "", "path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.wav output.dvtool\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	if *mode != vocoder.Codec2Mode3200 && *mode != vocoder.Codec2Mode2400 {
		fmt.Fprintln(os.Stderr, "mode must be 3200 or 2400")
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

	enc, _, err := vocoder.NewCodec2(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	src, err := wavio.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer src.Close()

	s, err := toolkit.EncodeStream(src, enc, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := dvtool.Write(flag.Arg(1), s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Info("encoded stream",
		logger.String("output", flag.Arg(1)),
		logger.Int("frames", len(s.Frames)),
		logger.Int("mode", *mode))
}
