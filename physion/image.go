package physion

import (
	"bytes"
	"image"
	"image/color"
	// decoders for the image passes stored in the archive
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
)

var (
	pngMagic  = []byte("\x89PNG")
	jpegMagic = []byte{0xff, 0xd8}
)

// RGBImage is an 8-bit, 3-channel image laid out row-major as H×W×3.
type RGBImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRGBImage allocates a black image.
func NewRGBImage(width, height int) *RGBImage {
	return &RGBImage{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// At returns the three channels of the pixel at (row, col).
func (img *RGBImage) At(row, col int) [3]uint8 {
	i := (row*img.Width + col) * 3
	return [3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

// Set writes the three channels of the pixel at (row, col).
func (img *RGBImage) Set(row, col int, c [3]uint8) {
	i := (row*img.Width + col) * 3
	img.Pix[i], img.Pix[i+1], img.Pix[i+2] = c[0], c[1], c[2]
}

// Image converts to a standard library image, e.g. for encoding or for rdk captures.
func (img *RGBImage) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for p := 0; p < img.Width*img.Height; p++ {
		out.Pix[p*4] = img.Pix[p*3]
		out.Pix[p*4+1] = img.Pix[p*3+1]
		out.Pix[p*4+2] = img.Pix[p*3+2]
		out.Pix[p*4+3] = 0xff
	}
	return out
}

// DecodeImage decodes a compressed image pass (PNG or JPEG) into an H×W×3 array.
// An alpha channel, if present, is dropped.
func DecodeImage(blob []byte) (*RGBImage, error) {
	if len(blob) == 0 {
		return nil, &ImageDecodeError{Err: errors.New("empty blob")}
	}
	src, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}
	return FromImage(src), nil
}

// FromImage copies any image.Image into an RGBImage.
func FromImage(src image.Image) *RGBImage {
	b := src.Bounds()
	out := NewRGBImage(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < out.Height; y++ {
			row := s.Pix[y*s.Stride:]
			for x := 0; x < out.Width; x++ {
				copy(out.Pix[(y*out.Width+x)*3:], row[x*4:x*4+3])
			}
		}
		return out
	case *image.RGBA:
		for y := 0; y < out.Height; y++ {
			row := s.Pix[y*s.Stride:]
			for x := 0; x < out.Width; x++ {
				copy(out.Pix[(y*out.Width+x)*3:], row[x*4:x*4+3])
			}
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(src.At(x+b.Min.X, y+b.Min.Y)).(color.NRGBA)
			out.Set(y, x, [3]uint8{c.R, c.G, c.B})
		}
	}
	return out
}

// rawOrDecode treats blob as an uncompressed H×W×3 array when its length
// matches the given dimensions, and decodes it otherwise. Older recordings
// store the depth pass uncompressed. A raw blob may start with bytes that
// look like an image header, so a matching length only yields to decoding
// when the decode succeeds with the same dimensions.
func rawOrDecode(blob []byte, width, height int) (*RGBImage, error) {
	if width <= 0 || height <= 0 || len(blob) != width*height*3 {
		return DecodeImage(blob)
	}
	if bytes.HasPrefix(blob, pngMagic) || bytes.HasPrefix(blob, jpegMagic) {
		if img, err := DecodeImage(blob); err == nil && img.Width == width && img.Height == height {
			return img, nil
		}
	}
	pix := make([]uint8, len(blob))
	copy(pix, blob)
	return &RGBImage{Width: width, Height: height, Pix: pix}, nil
}
