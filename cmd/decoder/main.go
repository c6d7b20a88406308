// Command decoder turns a DVTool capture back into a WAV recording,
// resolving the vocoder from the stream's header hint.
package main

import (
	"flag"
	"fmt"
	"os"

	"dstar-toolkit/internal/vocoder"
	"dstar-toolkit/internal/wavio"
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
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.dvtool output.wav\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
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

	s, err := dvtool.Read(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	dec, err := resolveDecoder(s.Header.Header.Flag3)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sink, err := wavio.Create(flag.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := toolkit.DecodeStream(s, dec, sink); err != nil {
		sink.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := sink.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Info("decoded stream",
		logger.String("output", flag.Arg(1)),
		logger.Int("frames", len(s.Frames)))
}

// resolveDecoder picks the vocoder binding matching the stream header's
// flag_3 hint.
func resolveDecoder(flag3 byte) (vocoder.Decoder, error) {
	if flag3&dstar.Flag3Codec2 == 0 {
		return vocoder.NewAMBE()
	}
	mode := vocoder.Codec2Mode3200
	if flag3&dstar.Flag3Mode2400 != 0 {
		mode = vocoder.Codec2Mode2400
	}
	_, dec, err := vocoder.NewCodec2(mode)
	return dec, err
}
