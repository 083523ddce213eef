package lkflow

// Gradients holds the horizontal and vertical spatial derivatives of an intensity image.
// Only the interior pixels are set; the outermost row and column stay zero.
type Gradients struct {
	X *Intensity
	Y *Intensity
}

// ComputeGradients derives the spatial gradients of img using central differences.
// See https://en.wikipedia.org/wiki/Finite_difference#Basic_types
func ComputeGradients(img *Intensity) Gradients {
	var (
		w, h = img.Width, img.Height
		gx   = NewIntensity(w, h)
		gy   = NewIntensity(w, h)
	)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := img.PixOffset(x, y)
			gx.Pix[gx.PixOffset(x, y)] = (img.Pix[idx+1] - img.Pix[idx-1]) / 2
			gy.Pix[gy.PixOffset(x, y)] = (img.Pix[idx+img.Stride] - img.Pix[idx-img.Stride]) / 2
		}
	}
	return Gradients{X: gx, Y: gy}
}
