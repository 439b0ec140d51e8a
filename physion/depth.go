package physion

import "math"

// DepthMode names the shader pass a depth image was rendered with.
type DepthMode string

const (
	// DepthModeStandard packs depth into three base-256 channels.
	DepthModeStandard DepthMode = "_depth"
	// DepthModeSimple only uses the first channel.
	DepthModeSimple DepthMode = "_depth_simple"
)

// Clipping planes of the depth shader used by the Physion recordings.
const (
	DefaultNearPlane = 0.1
	DefaultFarPlane  = 100.0
)

// Validate reports whether the decoder supports the mode.
func (m DepthMode) Validate() error {
	switch m {
	case DepthModeStandard, DepthModeSimple:
		return nil
	default:
		return &UnsupportedDepthModeError{Mode: m}
	}
}

// DepthMap is an H×W row-major grid of metric depth values.
type DepthMap struct {
	Width  int
	Height int
	Values []float32
}

// At returns the depth at (row, col).
func (d *DepthMap) At(row, col int) float32 {
	return d.Values[row*d.Width+col]
}

// DecodeDepth turns a depth pass into metric depth.
//
// For the standard pass raw = c0 + c1/256 + c2/256², for the simple pass
// raw = c0/256; in both cases depth = raw * ((far - near) / 256). The sum is
// formed in float64 and truncated to float32 at the end, which is the
// precision the recordings were validated against.
func DecodeDepth(img *RGBImage, mode DepthMode, nearPlane, farPlane float64) (*DepthMap, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	scale := (farPlane - nearPlane) / 256.0
	out := &DepthMap{Width: img.Width, Height: img.Height, Values: make([]float32, img.Width*img.Height)}
	for p := range out.Values {
		c := img.Pix[p*3 : p*3+3]
		var raw float64
		if mode == DepthModeStandard {
			raw = float64(c[0]) + float64(c[1])/256.0 + float64(c[2])/(256.0*256.0)
		} else {
			raw = float64(c[0]) / 256.0
		}
		out.Values[p] = float32(raw * scale)
	}
	return out, nil
}

// EncodeDepth is the inverse of DecodeDepth for the standard pass. Depths
// outside the representable range are clamped.
func EncodeDepth(depth *DepthMap, nearPlane, farPlane float64) *RGBImage {
	scale := (farPlane - nearPlane) / 256.0
	img := NewRGBImage(depth.Width, depth.Height)
	for p, v := range depth.Values {
		raw := float64(v) / scale
		fixed := math.Round(raw * 256.0 * 256.0)
		fixed = math.Max(0, math.Min(fixed, 256*256*256-1))
		n := uint32(fixed)
		img.Pix[p*3] = uint8(n >> 16)
		img.Pix[p*3+1] = uint8(n >> 8)
		img.Pix[p*3+2] = uint8(n)
	}
	return img
}
