package lkflow

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/esimov/lkflow/utils"
)

// Default overlay parameters.
const (
	DefaultStride     = 10
	DefaultArrowColor = "#00ff00"
)

// OverlayOptions controls how the flow field is drawn over a frame.
type OverlayOptions struct {
	// Stride is the distance in pixels between two sampled vectors, on both axes.
	Stride int
	// Color is the color of the drawn vectors.
	Color color.NRGBA
}

// DefaultOverlayOptions returns green vectors sampled at every 10th pixel.
func DefaultOverlayOptions() OverlayOptions {
	col, _ := utils.HexToNRGBA(DefaultArrowColor)
	return OverlayOptions{
		Stride: DefaultStride,
		Color:  col,
	}
}

// Overlay draws the sampled flow vectors over a copy of base and returns the copy.
// Every vector is drawn as a line segment from (x, y) to (x+round(u), y+round(v)).
func Overlay(base *image.NRGBA, f *Field, opts OverlayOptions) (*image.NRGBA, error) {
	bounds := base.Bounds()
	if bounds.Dx() != f.Width || bounds.Dy() != f.Height {
		return nil, fmt.Errorf("%w: image %dx%d, flow field %dx%d",
			ErrSizeMismatch, bounds.Dx(), bounds.Dy(), f.Width, f.Height)
	}
	stride := opts.Stride
	if stride < 1 {
		stride = DefaultStride
	}

	dst := imaging.Clone(base)
	// Segments longer than this leave the image anyway.
	maxLen := float64(f.Width + f.Height)

	for y := 0; y < f.Height; y += stride {
		for x := 0; x < f.Width; x += stride {
			v := f.At(x, y)
			dx, dy := float64(v.U), float64(v.V)
			if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
				continue
			}
			if l := math.Hypot(dx, dy); l > maxLen {
				dx, dy = dx*maxLen/l, dy*maxLen/l
			}
			x1 := x + int(math.Round(dx))
			y1 := y + int(math.Round(dy))
			DrawLine(dst, x, y, x1, y1, opts.Color)
		}
	}
	return dst, nil
}

// DrawLine rasterizes the segment between (x0, y0) and (x1, y1) with the Bresenham algorithm.
// Points falling outside of the image are skipped.
// See https://en.wikipedia.org/wiki/Bresenham%27s_line_algorithm
func DrawLine(img *image.NRGBA, x0, y0, x1, y1 int, col color.NRGBA) {
	var (
		dx  = utils.Abs(x1 - x0)
		dy  = -utils.Abs(y1 - y0)
		sx  = 1
		sy  = 1
		err = dx + dy
	)
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	for {
		if image.Pt(x0, y0).In(img.Rect) {
			img.SetNRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}
