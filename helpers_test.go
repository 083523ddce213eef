package lkflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"sync"
)

// newIntensityFunc returns an image whose pixels are given by fn.
func newIntensityFunc(width, height int, fn func(x, y int) float32) *Intensity {
	img := NewIntensity(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fn(x, y))
		}
	}
	return img
}

// newNoise returns a reproducible random texture.
func newNoise(width, height int, seed int64) *Intensity {
	rnd := rand.New(rand.NewSource(seed))
	return newIntensityFunc(width, height, func(x, y int) float32 {
		return float32(rnd.Intn(256))
	})
}

// newFrame builds an in memory frame filled with a single color.
func newFrame(index, width, height int, col color.NRGBA) *Frame {
	rgb := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i], rgb.Pix[i+1], rgb.Pix[i+2], rgb.Pix[i+3] = col.R, col.G, col.B, col.A
	}
	gray, _ := toIntensity(rgb)
	return &Frame{
		Index: index,
		Path:  fmt.Sprintf("frame_%04d", index),
		Gray:  gray,
		RGB:   rgb,
	}
}

// memSource serves frames from memory. errAt makes the source fail with err
// instead of returning the frame at that position.
type memSource struct {
	frames []*Frame
	next   int
	errAt  int
	err    error
}

func (s *memSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil && s.next == s.errAt {
		return nil, s.err
	}
	if s.next >= len(s.frames) {
		return nil, fmt.Errorf("%w: frame %d", ErrEndOfSequence, s.next+1)
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

// memEncoder keeps the encoded images in memory.
type memEncoder struct {
	mu      sync.Mutex
	names   []string
	images  map[string]image.Image
	failAt  int
	encoded int
}

func newMemEncoder() *memEncoder {
	return &memEncoder{images: make(map[string]image.Image), failAt: -1}
}

func (e *memEncoder) Encode(path string, img image.Image, quality int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoded == e.failAt {
		return errors.New("disk full")
	}
	e.encoded++
	e.names = append(e.names, path)
	e.images[path] = img
	return nil
}
