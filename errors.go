package lkflow

import "errors"

var (
	// ErrEndOfSequence is returned by a frame source once the next frame is missing or cannot be decoded.
	// It marks the normal end of the frame sequence.
	ErrEndOfSequence = errors.New("end of frame sequence")

	// ErrUnsupportedFormat is returned when a decoded frame is neither a one channel (gray)
	// nor a three channel (opaque color) image.
	ErrUnsupportedFormat = errors.New("unsupported channel count")

	// ErrSizeMismatch is returned when two images which should share their dimensions do not.
	ErrSizeMismatch = errors.New("frame size mismatch")

	// ErrInvalidWindow is returned for window sizes which are not positive odd numbers.
	ErrInvalidWindow = errors.New("window size should be a positive odd number")
)
