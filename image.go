package lkflow

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/lkflow/utils"
	"golang.org/x/image/bmp"
)

// Intensity holds a single channel image with float32 pixel intensities in the 0-255 range.
// The pixels are stored row by row, Stride being the distance between two vertically adjacent pixels.
type Intensity struct {
	Pix    []float32
	Stride int
	Width  int
	Height int
}

// NewIntensity returns a zero filled intensity image of the given size.
func NewIntensity(width, height int) *Intensity {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("lkflow: negative image size %dx%d", width, height))
	}
	return &Intensity{
		Pix:    make([]float32, width*height),
		Stride: width,
		Width:  width,
		Height: height,
	}
}

// PixOffset returns the index of the pixel at (x, y) in Pix.
// It does not check whether the point is inside the image.
func (i *Intensity) PixOffset(x, y int) int {
	return y*i.Stride + x
}

// At returns the intensity at (x, y). It panics when the point is outside of the image.
func (i *Intensity) At(x, y int) float32 {
	return i.Pix[i.checkedOffset(x, y)]
}

// Set sets the intensity at (x, y). It panics when the point is outside of the image.
func (i *Intensity) Set(x, y int, v float32) {
	i.Pix[i.checkedOffset(x, y)] = v
}

// Bounds returns the image rectangle, always anchored at the origin.
func (i *Intensity) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.Width, i.Height)
}

// SameSize reports whether both images have the same width and height.
func (i *Intensity) SameSize(o *Intensity) bool {
	return i.Width == o.Width && i.Height == o.Height
}

func (i *Intensity) checkedOffset(x, y int) int {
	if x < 0 || x >= i.Width || y < 0 || y >= i.Height {
		panic(fmt.Sprintf("lkflow: pixel (%d,%d) out of range %dx%d", x, y, i.Width, i.Height))
	}
	return i.PixOffset(x, y)
}

// Frame is a single decoded member of the input sequence.
type Frame struct {
	Index int
	Path  string
	Gray  *Intensity
	RGB   *image.NRGBA
}

// Size returns the frame dimensions.
func (f *Frame) Size() (int, int) {
	return f.Gray.Width, f.Gray.Height
}

// release drops the pixel buffers, the frame should not be used afterwards.
func (f *Frame) release() {
	if f == nil {
		return
	}
	f.Gray = nil
	f.RGB = nil
}

// Decoder turns an image file into a frame.
type Decoder interface {
	DecodeFrame(path string) (*Frame, error)
}

// Encoder writes an image into a file. The quality is used only by lossy formats.
type Encoder interface {
	Encode(path string, img image.Image, quality int) error
}

// FileCodec decodes and encodes the frames from and to the local file system.
// The output format is chosen by the file extension.
type FileCodec struct{}

var (
	_ Decoder = (*FileCodec)(nil)
	_ Encoder = (*FileCodec)(nil)
)

// NewFileCodec returns a codec working on the local file system.
func NewFileCodec() *FileCodec {
	return &FileCodec{}
}

// Decode decodes the file and converts it to an intensity image.
func (c *FileCodec) Decode(path string) (*Intensity, error) {
	img, err := decodeImg(path)
	if err != nil {
		return nil, err
	}
	return toIntensity(img)
}

// DecodeRGB decodes the file into a three channel image, regardless of its source channel count.
func (c *FileCodec) DecodeRGB(path string) (*image.NRGBA, error) {
	img, err := decodeImg(path)
	if err != nil {
		return nil, err
	}
	return imgToNRGBA(img), nil
}

// DecodeFrame decodes the file once and returns both its intensity and color representation.
func (c *FileCodec) DecodeFrame(path string) (*Frame, error) {
	img, err := decodeImg(path)
	if err != nil {
		return nil, err
	}
	gray, err := toIntensity(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &Frame{
		Path: path,
		Gray: gray,
		RGB:  imgToNRGBA(img),
	}, nil
}

// Encode encodes the image into path. The image is written into a temporary file first
// and renamed only after a successful encoding, so a failure never leaves a truncated file behind.
func (c *FileCodec) Encode(path string, img image.Image, quality int) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lkflow-*")
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = encodeImg(tmp, filepath.Ext(path), img, quality); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// decodeImg decodes an image file to type image.Image
func decodeImg(src string) (image.Image, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %w", err)
	}
	defer file.Close()

	ctype, err := utils.DetectContentType(file.Name())
	if err != nil {
		return nil, err
	}
	if !strings.Contains(ctype.(string), "image") {
		return nil, fmt.Errorf("%s is not an image file", filepath.Base(src))
	}

	img, err := imaging.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the image file: %w", err)
	}
	return img, nil
}

// encodeImg encodes an image to a destination of type io.Writer.
// SupportedFormats lists the output file extensions. No extension means JPEG.
var SupportedFormats = []string{"", ".jpg", ".jpeg", ".png", ".bmp"}

func encodeImg(w io.Writer, ext string, img image.Image, quality int) error {
	switch strings.ToLower(ext) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return errors.New("unsupported image format")
	}
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	return imaging.Clone(img)
}
