package lkflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/esimov/lkflow/utils"
)

// Processor runs the optical flow pipeline from the command line,
// showing the progress and the final status on the standard error.
type Processor struct {
	Config *Config
	// Stats enables the flow statistics report.
	Stats   bool
	Spinner *utils.Spinner
	// Writer receives the status messages. Defaults to os.Stderr.
	Writer io.Writer

	collector *StatsCollector
}

// NewProcessor returns a processor for the given configuration. The progress
// indicator is activated only when the standard error is attached to a terminal.
func NewProcessor(cfg *Config) *Processor {
	p := &Processor{
		Config: cfg,
		Writer: os.Stderr,
	}
	if utils.IsTerminal(os.Stderr) {
		p.Spinner = utils.NewSpinner(p.message("⇢ computing the optical flow..."), time.Millisecond*80, true)
	}
	return p
}

func (p *Processor) message(s string) string {
	return fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ LKFLOW", utils.StatusMessage),
		utils.DecorateText(s, utils.DefaultMessage),
	)
}

// Execute validates the configuration, prepares the output directory and runs the pipeline.
// The pipeline diagnostics are held back while the progress indicator is running
// and printed once it has stopped.
func (p *Processor) Execute(ctx context.Context) (*Summary, error) {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create the destination directory: %w", err)
	}
	if cfg.Output.GrayDir != "" {
		if err := os.MkdirAll(cfg.Output.GrayDir, 0755); err != nil {
			return nil, fmt.Errorf("unable to create the grayscale directory: %w", err)
		}
	}

	var (
		mu    sync.Mutex
		diag  bytes.Buffer
		codec = NewFileCodec()
		src   = NewDirSource(cfg.Input.Dir, cfg.Input.Pattern, cfg.Input.Start, codec)
		pipe  = NewPipeline(cfg, src, codec)
	)
	pipe.Logger = log.New(p.Writer, "", 0)
	if p.Spinner != nil {
		pipe.Logger = log.New(&lockedWriter{mu: &mu, w: &diag}, "", 0)
	}

	if p.Stats {
		p.collector = &StatsCollector{}
	}
	pipe.OnPair = func(index int, field *Field) {
		if p.collector != nil {
			p.collector.Observe(index, field)
		}
		if p.Spinner != nil {
			p.Spinner.SetMessage(p.message(fmt.Sprintf("⇢ computing the optical flow... frame %d", index+1)))
		}
	}

	if p.Spinner != nil {
		p.Spinner.Start()
	}
	sum, err := pipe.Run(ctx)
	if p.Spinner != nil {
		if err != nil {
			p.Spinner.StopMsg = fmt.Sprintf("%s %s\n", p.message("computing the optical flow failed..."),
				utils.DecorateText("✘", utils.ErrorMessage))
		} else {
			p.Spinner.StopMsg = fmt.Sprintf("%s %s\n", p.message("⇢"),
				utils.DecorateText("the optical flow has been computed successfully ✔", utils.SuccessMessage))
		}
		p.Spinner.Stop()

		mu.Lock()
		io.Copy(p.Writer, &diag)
		mu.Unlock()
	}
	return sum, err
}

// PrintStatus displays the relevant information about the finished run.
func (p *Processor) PrintStatus(sum *Summary, err error) {
	if sum != nil {
		fmt.Fprintf(p.Writer, "\nProcessed %s frames, %s flow images saved in %s (%s)\n",
			utils.DecorateText(fmt.Sprint(sum.Frames), utils.SuccessMessage),
			utils.DecorateText(fmt.Sprint(sum.Pairs), utils.SuccessMessage),
			p.Config.Output.Dir,
			sum.Reason,
		)
		if sum.Rejected > 0 {
			fmt.Fprintf(p.Writer, "%s frame(s) read but rejected\n",
				utils.DecorateText(fmt.Sprint(sum.Rejected), utils.ErrorMessage))
		}
	}
	if err != nil {
		fmt.Fprintf(p.Writer, "%s%s\n",
			utils.DecorateText("\nError computing the optical flow: ", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v", err.Error()), utils.DefaultMessage),
		)
	}
	if p.collector != nil && len(p.collector.Pairs) > 0 {
		fmt.Fprintf(p.Writer, "\nMean flow magnitude: %.3f px\n", p.collector.MeanMagnitude())
		if ps, ok := p.collector.Busiest(); ok {
			fmt.Fprintf(p.Writer, "Busiest pair: frame %d (%.1f%% moving, max %.2f px)\n",
				ps.Index, ps.Moving*100, ps.Max)
		}
	}
	if sum != nil {
		fmt.Fprintf(p.Writer, "\nExecution time: %s\n",
			utils.DecorateText(utils.FormatTime(sum.Elapsed), utils.SuccessMessage))
	}
}

// lockedWriter serializes the writes into the diagnostics buffer.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}
