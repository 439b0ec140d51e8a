package physion

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// PixelIndex is a (row, col) position in the image grid.
type PixelIndex struct {
	Row int
	Col int
}

// imageToMat copies an RGBImage into a CV_8UC3 Mat. Channels keep RGB order.
func imageToMat(img *RGBImage) (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "cannot copy image into a matrix")
	}
	return mat, nil
}

// selectColor returns, in row-major order, every pixel of seg whose three
// channels equal c exactly.
func selectColor(seg gocv.Mat, c [3]uint8) []PixelIndex {
	value := gocv.NewScalar(float64(c[0]), float64(c[1]), float64(c[2]), 0)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(seg, value, value, &mask)

	if gocv.CountNonZero(mask) == 0 {
		return nil
	}

	locations := gocv.NewMat()
	defer locations.Close()
	gocv.FindNonZero(mask, &locations)

	out := make([]PixelIndex, 0, locations.Rows())
	for i := 0; i < locations.Rows(); i++ {
		pt := locations.GetVeciAt(i, 0)
		out = append(out, PixelIndex{Row: int(pt[1]), Col: int(pt[0])})
	}
	return out
}

// boundsOf returns the smallest rectangle containing every pixel.
func boundsOf(pixels []PixelIndex) image.Rectangle {
	if len(pixels) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(pixels[0].Col, pixels[0].Row, pixels[0].Col+1, pixels[0].Row+1)
	for _, p := range pixels[1:] {
		r = r.Union(image.Rect(p.Col, p.Row, p.Col+1, p.Row+1))
	}
	return r
}

// complement returns every pixel of a width×height grid not present in any
// of the claimed sets, in row-major order. A pixel claimed by several sets is
// excluded once.
func complement(width, height int, claimed ...[]PixelIndex) []PixelIndex {
	taken := make([]bool, width*height)
	n := 0
	for _, set := range claimed {
		for _, p := range set {
			i := p.Row*width + p.Col
			if !taken[i] {
				taken[i] = true
				n++
			}
		}
	}

	out := make([]PixelIndex, 0, width*height-n)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if !taken[row*width+col] {
				out = append(out, PixelIndex{Row: row, Col: col})
			}
		}
	}
	return out
}
