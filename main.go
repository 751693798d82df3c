package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
)

type SourceFlags struct {
	Format     string  `help:"Sample format: cu8, cs8, cu16, cs16, cf32 or cf64"`
	SampleRate float64 `help:"Sample rate of the recording in Hz"`
	BlockSize  int     `help:"Samples per block handed to the decoder"`
	Realtime   bool    `help:"Pace playback at the sample rate"`
	Output     string  `short:"o" help:"Write recovered dibit buffers to this file"`
	Compress   bool    `help:"zstd compress the dibit recording"`
	Metrics    string  `help:"Serve Prometheus metrics on this address, e.g. :9100"`
}

var cli struct {
	Verbose bool   `help:"Prints debug output by default"`
	Profile bool   `help:"Output a pprof profile"`
	Config  string `help:"HCL config file, searched for in the default locations when empty" type:"path"`
	Decode  struct {
		File string `arg:"" help:"Raw interleaved IQ recording" type:"existingfile"`
		SourceFlags `embed:""`
	} `cmd:"" help:"Decodes a recording and logs channel events"`
	Monitor struct {
		File string `arg:"" help:"Raw interleaved IQ recording" type:"existingfile"`
		SourceFlags `embed:""`
	} `cmd:"" help:"Decodes a recording with the terminal monitor"`
}

func main() {
	log.Info("Starting tetratuner")
	flags := kong.Parse(&cli)
	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(prof)
		defer pprof.StopCPUProfile()
	}

	path := cli.Config
	if path == "" {
		path = config.FindConfigPath()
	}
	k, err := config.Load(path)
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch flags.Command() {
	case "decode <file>":
		applyFlags(k, cli.Decode.SourceFlags)
		err = run(ctx, k, cli.Decode.File, false)
	case "monitor <file>":
		applyFlags(k, cli.Monitor.SourceFlags)
		err = run(ctx, k, cli.Monitor.File, true)
	default:
		log.Info("Command not recognized")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Decoding failed: %v", err)
		stop()
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}
