package lkflow

import (
	"fmt"
	"image"
	"math"
	"runtime"

	"github.com/esimov/lkflow/utils"
	"github.com/gammazero/workerpool"
)

// DefaultWindowSize is the side of the square neighborhood used by the solver.
const DefaultWindowSize = 5

// Vector is the estimated horizontal (U) and vertical (V) displacement of a pixel between two frames.
type Vector struct {
	U float32
	V float32
}

// IsZero reports whether no motion has been estimated.
func (v Vector) IsZero() bool {
	return v.U == 0 && v.V == 0
}

// Magnitude returns the length of the vector.
func (v Vector) Magnitude() float64 {
	return math.Hypot(float64(v.U), float64(v.V))
}

// Field is a dense grid of flow vectors, one for every pixel of a frame pair.
type Field struct {
	Vectors []Vector
	Width   int
	Height  int
}

// NewField returns a field of zero vectors.
func NewField(width, height int) *Field {
	return &Field{
		Vectors: make([]Vector, width*height),
		Width:   width,
		Height:  height,
	}
}

// At returns the vector at (x, y). It panics when the point is outside of the field.
func (f *Field) At(x, y int) Vector {
	return f.Vectors[f.offset(x, y)]
}

// Set sets the vector at (x, y). It panics when the point is outside of the field.
func (f *Field) Set(x, y int, v Vector) {
	f.Vectors[f.offset(x, y)] = v
}

// Bounds returns the field rectangle, always anchored at the origin.
func (f *Field) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Field) offset(x, y int) int {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		panic(fmt.Sprintf("lkflow: vector (%d,%d) out of range %dx%d", x, y, f.Width, f.Height))
	}
	return y*f.Width + x
}

// Builder computes dense flow fields.
type Builder struct {
	// WindowSize is the odd side of the solver neighborhood.
	WindowSize int
	// Workers is the number of rows solved concurrently. Values below 2 solve the rows sequentially.
	Workers int
}

// NewBuilder returns a builder using one worker per CPU.
func NewBuilder(windowSize int) *Builder {
	return &Builder{
		WindowSize: windowSize,
		Workers:    runtime.NumCPU(),
	}
}

// BuildField computes the flow field between i1 and i2 sequentially.
func BuildField(i1, i2 *Intensity, windowSize int) (*Field, error) {
	b := &Builder{WindowSize: windowSize, Workers: 1}
	return b.Build(i1, i2)
}

// Build computes the gradients of i1 once, then solves every pixel of the pair.
// Each row writes only its own vectors, so the concurrent and sequential results are identical.
func (b *Builder) Build(i1, i2 *Intensity) (*Field, error) {
	if b.WindowSize < 1 || b.WindowSize%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, b.WindowSize)
	}
	if !i1.SameSize(i2) {
		return nil, fmt.Errorf("%w: %dx%d and %dx%d", ErrSizeMismatch, i1.Width, i1.Height, i2.Width, i2.Height)
	}

	var (
		grad  = ComputeGradients(i1)
		field = NewField(i1.Width, i1.Height)
	)

	solveRow := func(y int) {
		row := field.Vectors[y*field.Width : (y+1)*field.Width]
		for x := range row {
			row[x] = SolveWindow(i1, i2, grad, x, y, b.WindowSize)
		}
	}

	if b.Workers < 2 || field.Height < 2 {
		for y := 0; y < field.Height; y++ {
			solveRow(y)
		}
		return field, nil
	}

	wp := workerpool.New(utils.Min(b.Workers, field.Height))
	for y := 0; y < field.Height; y++ {
		y := y
		wp.Submit(func() {
			solveRow(y)
		})
	}
	wp.StopWait()

	return field, nil
}
