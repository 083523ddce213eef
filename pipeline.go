package lkflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/esimov/lkflow/utils"
	"github.com/looplab/fsm"
)

// Pipeline states and events.
const (
	StateEmpty = "empty" // no previous frame
	StateReady = "ready" // one previous frame held
	StateDone  = "done"

	eventFrame = "frame"
	eventStop  = "stop"
)

// StopReason tells why the pipeline stopped.
type StopReason int

const (
	StopEndOfSequence StopReason = iota
	StopFrameCap
	StopFormat
	StopSizeMismatch
	StopWriteFailed
	StopSourceFailed
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopEndOfSequence:
		return "end of sequence"
	case StopFrameCap:
		return "frame limit reached"
	case StopFormat:
		return "unsupported frame format"
	case StopSizeMismatch:
		return "frame size mismatch"
	case StopWriteFailed:
		return "output write failed"
	case StopSourceFailed:
		return "frame source failed"
	case StopCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Summary holds the outcome of a pipeline run.
type Summary struct {
	// Frames is the number of accepted frames.
	Frames int
	// Rejected counts the frames read but refused because of their size.
	Rejected int
	// Pairs is the number of flow images written.
	Pairs int
	// Outputs holds the written flow image names, in order.
	Outputs []string
	// Reason tells why the run stopped.
	Reason StopReason
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// PairObserver is notified with the flow field of every processed pair,
// index being the index of the earlier frame.
type PairObserver func(index int, field *Field)

// Pipeline walks the frame sequence, computes the flow field of every
// consecutive pair and writes the rendered overlay through the encoder.
type Pipeline struct {
	Source  FrameSource
	Encoder Encoder
	Builder *Builder
	Overlay OverlayOptions

	OutputDir     string
	OutputPattern string
	Quality       int
	// GrayDir receives the intensity image of every accepted frame when not empty.
	GrayDir string
	// MaxFrames caps the number of accepted frames. Zero means no limit.
	MaxFrames int

	Logger  *log.Logger
	Verbose bool
	OnPair  PairObserver

	machine *fsm.FSM
	prev    *Frame
}

// NewPipeline returns a pipeline configured from cfg. The configuration is expected to be valid.
func NewPipeline(cfg *Config, src FrameSource, enc Encoder) *Pipeline {
	overlay := DefaultOverlayOptions()
	overlay.Stride = cfg.Overlay.Stride
	if col, err := utils.HexToNRGBA(cfg.Overlay.Color); err == nil {
		overlay.Color = col
	}

	return &Pipeline{
		Source:        src,
		Encoder:       enc,
		Builder:       &Builder{WindowSize: cfg.Flow.WindowSize, Workers: cfg.Flow.Workers},
		Overlay:       overlay,
		OutputDir:     cfg.Output.Dir,
		OutputPattern: cfg.Output.Pattern,
		GrayDir:       cfg.Output.GrayDir,
		Quality:       cfg.Output.Quality,
		MaxFrames:     cfg.Input.MaxFrames,
		Logger:        log.New(io.Discard, "", 0),
		Verbose:       cfg.Verbose,
	}
}

// State returns the current state of the pipeline.
func (p *Pipeline) State() string {
	if p.machine == nil {
		return StateEmpty
	}
	return p.machine.Current()
}

func (p *Pipeline) newMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateEmpty,
		fsm.Events{
			{Name: eventFrame, Src: []string{StateEmpty, StateReady}, Dst: StateReady},
			{Name: eventStop, Src: []string{StateEmpty, StateReady}, Dst: StateDone},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if p.Verbose {
					p.logf("pipeline: %s -> %s", e.Src, e.Dst)
				}
			},
		},
	)
}

// fire triggers the event. Staying in the ready state is not an error.
func (p *Pipeline) fire(ctx context.Context, event string) error {
	err := p.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

// Run processes the sequence until the source is exhausted, the frame limit is reached
// or a frame is rejected. End of sequence and frame limit are normal terminations and return a nil error.
// The images written before a failure remain valid.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	var (
		start = time.Now()
		sum   = &Summary{}
	)
	p.machine = p.newMachine()
	p.prev = nil

	stop := func(reason StopReason, err error) (*Summary, error) {
		p.prev.release()
		p.prev = nil
		sum.Reason = reason
		sum.Elapsed = time.Since(start)
		if ferr := p.fire(context.WithoutCancel(ctx), eventStop); ferr != nil && err == nil {
			err = ferr
		}
		return sum, err
	}

	for p.MaxFrames <= 0 || sum.Frames < p.MaxFrames {
		if err := ctx.Err(); err != nil {
			return stop(StopCanceled, err)
		}

		curr, err := p.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrEndOfSequence):
				p.logf("no more frames: %v", err)
				return stop(StopEndOfSequence, nil)
			case errors.Is(err, ErrUnsupportedFormat):
				return stop(StopFormat, err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return stop(StopCanceled, err)
			default:
				return stop(StopSourceFailed, err)
			}
		}

		if p.prev != nil && !p.prev.Gray.SameSize(curr.Gray) {
			pw, ph := p.prev.Size()
			cw, ch := curr.Size()
			curr.release()
			sum.Rejected++
			return stop(StopSizeMismatch, fmt.Errorf("%w at frame %d: got %dx%d, expected %dx%d",
				ErrSizeMismatch, curr.Index, cw, ch, pw, ph))
		}
		sum.Frames++

		if p.GrayDir != "" {
			if err := p.writeGray(curr); err != nil {
				curr.release()
				return stop(StopWriteFailed, err)
			}
		}

		if p.State() == StateReady {
			out, err := p.processPair(p.prev, curr)
			if err != nil {
				curr.release()
				return stop(StopWriteFailed, err)
			}
			sum.Pairs++
			sum.Outputs = append(sum.Outputs, out)
		}

		// The current frame takes over the previous slot.
		p.prev.release()
		p.prev = curr

		if err := p.fire(ctx, eventFrame); err != nil {
			return stop(StopCanceled, err)
		}
	}
	return stop(StopFrameCap, nil)
}

// processPair computes the flow between prev and curr and writes the rendered
// overlay of the previous frame. It returns the written file name.
func (p *Pipeline) processPair(prev, curr *Frame) (string, error) {
	field, err := p.Builder.Build(prev.Gray, curr.Gray)
	if err != nil {
		return "", err
	}

	img, err := Overlay(prev.RGB, field, p.Overlay)
	if err != nil {
		return "", err
	}

	out := filepath.Join(p.OutputDir, fmt.Sprintf(p.OutputPattern, prev.Index))
	if err := p.Encoder.Encode(out, img, p.Quality); err != nil {
		return "", fmt.Errorf("unable to write %s: %w", out, err)
	}

	if p.OnPair != nil {
		p.OnPair(prev.Index, field)
	}
	if p.Verbose {
		p.logf("frames %d-%d: flow written to %s", prev.Index, curr.Index, out)
	}
	return out, nil
}

// writeGray writes the intensity plane of the frame, named after its index.
func (p *Pipeline) writeGray(f *Frame) error {
	out := filepath.Join(p.GrayDir, fmt.Sprintf(p.OutputPattern, f.Index))
	if err := p.Encoder.Encode(out, Grayscale(f.Gray), p.Quality); err != nil {
		return fmt.Errorf("unable to write %s: %w", out, err)
	}
	return nil
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}
