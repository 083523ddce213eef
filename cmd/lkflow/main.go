package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/esimov/lkflow"
	"github.com/esimov/lkflow/utils"
)

const HelpBanner = `
┬  ┬┌─┌─┐┬  ┌─┐┬ ┬
│  ├┴┐├┤ │  │ ││││
┴─┘┴ ┴└  ┴─┘└─┘└┴┘
Lucas-Kanade optical flow visualizer.
    Version: %s
`

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", "frames_input", "Source directory")
	destination = flag.String("out", "frames_output", "Destination directory")
	inPattern   = flag.String("pattern", lkflow.DefaultInputPattern, "Input frame name pattern")
	outPattern  = flag.String("out-pattern", lkflow.DefaultOutputPattern, "Output image name pattern")
	startIndex  = flag.Int("start", lkflow.DefaultStartIndex, "Index of the first frame")
	maxFrames   = flag.Int("max", lkflow.DefaultMaxFrames, "Maximum number of frames to process (0 means no limit)")
	windowSize  = flag.Int("window", lkflow.DefaultWindowSize, "Lucas-Kanade window size (odd)")
	stride      = flag.Int("stride", lkflow.DefaultStride, "Distance in pixels between the drawn vectors")
	arrowColor  = flag.String("color", lkflow.DefaultArrowColor, "Vector color")
	grayDir     = flag.String("gray", "", "Directory receiving the grayscale intensity of every frame")
	quality     = flag.Int("quality", lkflow.DefaultQuality, "JPEG output quality")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of image rows processed concurrently")
	configFile  = flag.String("config", "", "YAML configuration file")
	dumpConfig  = flag.String("dump-config", "", "Write the resulting configuration into a YAML file and exit")
	showStats   = flag.Bool("stats", false, "Print the flow statistics")
	verbose     = flag.Bool("debug", false, "Verbose output")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := lkflow.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = lkflow.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf(utils.DecorateText("Failed to load the configuration: %v", utils.ErrorMessage), err)
		}
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalf(utils.DecorateText("\n%v", utils.ErrorMessage), err)
	}

	if *dumpConfig != "" {
		if err := lkflow.SaveConfig(cfg, *dumpConfig); err != nil {
			log.Fatalf(utils.DecorateText("Failed to save the configuration: %v", utils.ErrorMessage), err)
		}
		fmt.Fprintf(os.Stderr, "The configuration has been saved as: %s\n",
			utils.DecorateText(*dumpConfig, utils.SuccessMessage))
		return
	}

	// Capture CTRL-C signal and stop after the frame being processed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc := lkflow.NewProcessor(cfg)
	proc.Stats = *showStats

	sum, err := proc.Execute(ctx)
	proc.PrintStatus(sum, err)

	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

// applyFlags overrides the configuration with the explicitly set flags only,
// so the values coming from the configuration file are kept otherwise.
func applyFlags(cfg *lkflow.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			cfg.Input.Dir = *source
		case "out":
			cfg.Output.Dir = *destination
		case "pattern":
			cfg.Input.Pattern = *inPattern
		case "out-pattern":
			cfg.Output.Pattern = *outPattern
		case "start":
			cfg.Input.Start = *startIndex
		case "max":
			cfg.Input.MaxFrames = *maxFrames
		case "window":
			cfg.Flow.WindowSize = *windowSize
		case "stride":
			cfg.Overlay.Stride = *stride
		case "color":
			cfg.Overlay.Color = *arrowColor
		case "gray":
			cfg.Output.GrayDir = *grayDir
		case "quality":
			cfg.Output.Quality = *quality
		case "conc":
			cfg.Flow.Workers = *workers
		case "debug":
			cfg.Verbose = *verbose
		}
	})
}
