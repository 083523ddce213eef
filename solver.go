package lkflow

import "math"

// DetThreshold is the absolute determinant value below which the structure tensor is considered singular.
// Windows with flat or purely one directional texture fall below it and produce a zero vector.
// The float32 determinant is widened before the comparison, so float32(1e-6) is still singular.
const DetThreshold = 1e-6

// tensor holds the accumulated structure tensor A and the right hand side b
// of the least squares system A·flow = -b.
type tensor struct {
	axx, axy, ayy float32
	bx, by        float32
}

func (t tensor) det() float32 {
	return t.axx*t.ayy - t.axy*t.axy
}

// SolveWindow estimates the velocity of the pixel at (x, y) between i1 and i2
// over a windowSize x windowSize neighborhood, g being the gradients of i1.
// Pixels whose window does not fit entirely inside the image get the zero vector.
func SolveWindow(i1, i2 *Intensity, g Gradients, x, y, windowSize int) Vector {
	h := windowSize / 2
	if x-h < 0 || x+h >= i1.Width || y-h < 0 || y+h >= i1.Height {
		return Vector{}
	}
	return solveTensor(structureTensor(i1, i2, g, x, y, h))
}

// structureTensor accumulates the gradient products over the window centered on (x, y).
// The caller must make sure the window is inside the image.
func structureTensor(i1, i2 *Intensity, g Gradients, x, y, h int) tensor {
	var t tensor
	for dy := -h; dy <= h; dy++ {
		for dx := -h; dx <= h; dx++ {
			px, py := x+dx, y+dy

			ix := g.X.Pix[g.X.PixOffset(px, py)]
			iy := g.Y.Pix[g.Y.PixOffset(px, py)]
			it := i2.Pix[i2.PixOffset(px, py)] - i1.Pix[i1.PixOffset(px, py)]

			t.axx += ix * ix
			t.axy += ix * iy
			t.ayy += iy * iy
			t.bx += ix * it
			t.by += iy * it
		}
	}
	return t
}

// solveTensor solves the 2x2 system with Cramer's rule.
// A near singular tensor yields the zero vector.
func solveTensor(t tensor) Vector {
	det := t.det()
	if math.Abs(float64(det)) < DetThreshold {
		return Vector{}
	}
	return Vector{
		U: (t.ayy*(-t.bx) - t.axy*(-t.by)) / det,
		V: (t.axx*(-t.by) - t.axy*(-t.bx)) / det,
	}
}
