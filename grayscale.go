package lkflow

import (
	"fmt"
	"image"
	"image/color"

	"github.com/esimov/lkflow/utils"
)

// Luma weights used for converting a color frame to intensities.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// channelCount reports the number of channels the decoded image carries.
// Images with transparency count as four channel images.
func channelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.AlphaModel, color.Alpha16Model:
		return 2
	case color.CMYKModel:
		return 4
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return 4
	}
	return 3
}

// toIntensity converts a gray or opaque color image to an intensity image.
// Any other channel count results in ErrUnsupportedFormat.
func toIntensity(img image.Image) (*Intensity, error) {
	var (
		n      = channelCount(img)
		bounds = img.Bounds()
		dst    = NewIntensity(bounds.Dx(), bounds.Dy())
	)

	switch n {
	case 1:
		for y := 0; y < dst.Height; y++ {
			for x := 0; x < dst.Width; x++ {
				c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				dst.Pix[dst.PixOffset(x, y)] = float32(c.Y)
			}
		}
	case 3:
		src := imgToNRGBA(img)
		for y := 0; y < dst.Height; y++ {
			si := src.PixOffset(0, y)
			for x := 0; x < dst.Width; x++ {
				r, g, b := src.Pix[si], src.Pix[si+1], src.Pix[si+2]
				dst.Pix[dst.PixOffset(x, y)] = lumaR*float32(r) + lumaG*float32(g) + lumaB*float32(b)
				si += 4
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, n)
	}
	return dst, nil
}

// Grayscale converts the intensity image back to an 8 bit gray image, clamping the values to the 0-255 range.
func Grayscale(src *Intensity) *image.Gray {
	dst := image.NewGray(src.Bounds())
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := utils.Clamp(src.Pix[src.PixOffset(x, y)], 0, 255)
			dst.Pix[dst.PixOffset(x, y)] = uint8(v + 0.5)
		}
	}
	return dst
}
