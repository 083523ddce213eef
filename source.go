package lkflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default input sequence naming.
const (
	DefaultInputPattern = "frame_%04d.jpg"
	DefaultStartIndex   = 1
)

// FrameSource yields the frames of a sequence in order.
// Next returns ErrEndOfSequence once there are no more frames.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
}

// DirSource reads a gap free sequence of sequentially numbered image files from a directory.
// The sequence ends at the first missing or undecodable index.
type DirSource struct {
	Dir     string
	Pattern string
	Decoder Decoder

	next int
}

var _ FrameSource = (*DirSource)(nil)

// NewDirSource returns a source reading dir/pattern, pattern being formatted with
// the frame index, starting at the start index.
func NewDirSource(dir, pattern string, start int, dec Decoder) *DirSource {
	return &DirSource{
		Dir:     dir,
		Pattern: pattern,
		Decoder: dec,
		next:    start,
	}
}

// Path returns the file name of the frame with the given index.
func (s *DirSource) Path(index int) string {
	return filepath.Join(s.Dir, fmt.Sprintf(s.Pattern, index))
}

// Next decodes the next frame of the sequence.
// A missing or undecodable file ends the sequence, while a frame with an
// unsupported channel count is reported with ErrUnsupportedFormat.
func (s *DirSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := s.next
	path := s.Path(index)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", ErrEndOfSequence, index, err)
	}

	frame, err := s.Decoder.DecodeFrame(path)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return nil, fmt.Errorf("frame %d: %w", index, err)
		}
		return nil, fmt.Errorf("%w: frame %d: %v", ErrEndOfSequence, index, err)
	}
	frame.Index = index
	frame.Path = path
	s.next++

	return frame, nil
}
