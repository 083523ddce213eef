package lkflow

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

func newTestPipeline(src FrameSource, enc Encoder) *Pipeline {
	cfg := DefaultConfig()
	cfg.Output.Dir = "out"
	cfg.Flow.Workers = 1
	cfg.Input.MaxFrames = 0
	return NewPipeline(cfg, src, enc)
}

func TestPipeline_ShouldWriteOneImagePerPair(t *testing.T) {
	assert := assert.New(t)

	src := &memSource{frames: []*Frame{
		newFrame(1, 20, 10, red),
		newFrame(2, 20, 10, red),
		newFrame(3, 20, 10, red),
	}}
	enc := newMemEncoder()
	p := newTestPipeline(src, enc)
	assert.Equal(StateEmpty, p.State())

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(3, sum.Frames)
	assert.Equal(2, sum.Pairs)
	assert.Equal(StopEndOfSequence, sum.Reason)
	assert.Equal([]string{
		filepath.Join("out", "flow_0001.jpg"),
		filepath.Join("out", "flow_0002.jpg"),
	}, enc.names)
	assert.Equal(enc.names, sum.Outputs)
	assert.Equal(StateDone, p.State())
}

func TestPipeline_SingleFrameProducesNoOutput(t *testing.T) {
	src := &memSource{frames: []*Frame{newFrame(1, 8, 8, red)}}
	enc := newMemEncoder()

	sum, err := newTestPipeline(src, enc).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, 0, sum.Pairs)
	assert.Empty(t, enc.names)
}

func TestPipeline_EmptySequence(t *testing.T) {
	sum, err := newTestPipeline(&memSource{}, newMemEncoder()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Frames)
	assert.Equal(t, StopEndOfSequence, sum.Reason)
}

func TestPipeline_SizeMismatchStopsWithError(t *testing.T) {
	src := &memSource{frames: []*Frame{
		newFrame(1, 10, 10, red),
		newFrame(2, 10, 10, red),
		newFrame(3, 20, 20, red),
		newFrame(4, 20, 20, red),
	}}
	enc := newMemEncoder()
	p := newTestPipeline(src, enc)

	sum, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, StopSizeMismatch, sum.Reason)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, sum.Pairs)
	assert.Equal(t, []string{filepath.Join("out", "flow_0001.jpg")}, enc.names)
	assert.Equal(t, StateDone, p.State())
}

func TestPipeline_FrameCap(t *testing.T) {
	src := &memSource{frames: []*Frame{
		newFrame(1, 8, 8, red),
		newFrame(2, 8, 8, red),
		newFrame(3, 8, 8, red),
	}}
	p := newTestPipeline(src, newMemEncoder())
	p.MaxFrames = 2

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrameCap, sum.Reason)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, 1, sum.Pairs)
	assert.Equal(t, 2, src.next)
}

func TestPipeline_SourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason StopReason
	}{
		{"format", fmt.Errorf("frame 2: %w: 4 channels", ErrUnsupportedFormat), StopFormat},
		{"canceled", context.Canceled, StopCanceled},
		{"other", fmt.Errorf("network unreachable"), StopSourceFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &memSource{
				frames: []*Frame{newFrame(1, 8, 8, red), newFrame(2, 8, 8, red)},
				errAt:  1,
				err:    tc.err,
			}
			sum, err := newTestPipeline(src, newMemEncoder()).Run(context.Background())
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.reason, sum.Reason)
			assert.Equal(t, 1, sum.Frames)
			assert.Equal(t, 0, sum.Pairs)
		})
	}
}

func TestPipeline_WriteFailureKeepsEarlierOutputs(t *testing.T) {
	src := &memSource{frames: []*Frame{
		newFrame(1, 8, 8, red),
		newFrame(2, 8, 8, red),
		newFrame(3, 8, 8, red),
	}}
	enc := newMemEncoder()
	enc.failAt = 1

	sum, err := newTestPipeline(src, enc).Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StopWriteFailed, sum.Reason)
	assert.Equal(t, 1, sum.Pairs)
	assert.Len(t, enc.names, 1)
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &memSource{frames: []*Frame{newFrame(1, 8, 8, red)}}
	p := newTestPipeline(src, newMemEncoder())

	sum, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCanceled, sum.Reason)
	assert.Equal(t, 0, sum.Frames)
	assert.Equal(t, StateDone, p.State())
}

func TestPipeline_OverlayIsDrawnOnPreviousFrame(t *testing.T) {
	src := &memSource{frames: []*Frame{
		newFrame(1, 12, 12, red),
		newFrame(2, 12, 12, blue),
	}}
	enc := newMemEncoder()

	var (
		indices []int
		sizes   [][2]int
	)
	p := newTestPipeline(src, enc)
	p.OnPair = func(index int, f *Field) {
		indices = append(indices, index)
		sizes = append(sizes, [2]int{f.Width, f.Height})
	}

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, indices)
	assert.Equal(t, [][2]int{{12, 12}}, sizes)

	img := enc.images[filepath.Join("out", "flow_0001.jpg")]
	require.NotNil(t, img)
	assert.Equal(t, red, color.NRGBAModel.Convert(img.At(3, 3)))
	// Flat frames have zero vectors, drawn as single points on the sampling grid.
	assert.Equal(t, p.Overlay.Color, color.NRGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, p.Overlay.Color, color.NRGBAModel.Convert(img.At(10, 10)))
}

func TestPipeline_VerboseLogsTransitions(t *testing.T) {
	var buf bytes.Buffer

	src := &memSource{frames: []*Frame{newFrame(1, 8, 8, red), newFrame(2, 8, 8, red)}}
	p := newTestPipeline(src, newMemEncoder())
	p.Verbose = true
	p.Logger = log.New(&buf, "", 0)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "pipeline: empty -> ready")
	assert.Contains(t, buf.String(), "pipeline: ready -> done")
	assert.Contains(t, buf.String(), "frames 1-2: flow written to")
	assert.Contains(t, buf.String(), "no more frames")
}

func TestPipeline_GrayDirReceivesEveryFrame(t *testing.T) {
	src := &memSource{frames: []*Frame{
		newFrame(1, 8, 8, red),
		newFrame(2, 8, 8, red),
	}}
	enc := newMemEncoder()
	p := newTestPipeline(src, enc)
	p.GrayDir = "gray"

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Rejected)
	assert.Equal(t, []string{
		filepath.Join("gray", "flow_0001.jpg"),
		filepath.Join("gray", "flow_0002.jpg"),
		filepath.Join("out", "flow_0001.jpg"),
	}, enc.names)
	assert.Equal(t, []string{filepath.Join("out", "flow_0001.jpg")}, sum.Outputs)

	gray, ok := enc.images[filepath.Join("gray", "flow_0002.jpg")].(*image.Gray)
	require.True(t, ok)
	// 0.299 * 255 rounds to 76.
	assert.Equal(t, uint8(76), gray.GrayAt(3, 3).Y)
}

func TestPipeline_GrayWriteFailure(t *testing.T) {
	src := &memSource{frames: []*Frame{newFrame(1, 8, 8, red), newFrame(2, 8, 8, red)}}
	enc := newMemEncoder()
	enc.failAt = 0
	p := newTestPipeline(src, enc)
	p.GrayDir = "gray"

	sum, err := p.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StopWriteFailed, sum.Reason)
	assert.Equal(t, 0, sum.Pairs)
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "end of sequence", StopEndOfSequence.String())
	assert.Equal(t, "frame size mismatch", StopSizeMismatch.String())
	assert.Equal(t, "StopReason(42)", StopReason(42).String())
}
