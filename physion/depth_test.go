package physion

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDecodeDepthStandard(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := NewRGBImage(16, 8)
	rng.Read(img.Pix)

	depth, err := DecodeDepth(img, DepthModeStandard, DefaultNearPlane, DefaultFarPlane)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth.Width, test.ShouldEqual, 16)
	test.That(t, depth.Height, test.ShouldEqual, 8)

	for row := 0; row < img.Height; row++ {
		for col := 0; col < img.Width; col++ {
			c := img.At(row, col)
			raw := float64(c[0]) + float64(c[1])/256 + float64(c[2])/65536
			want := raw * (DefaultFarPlane - DefaultNearPlane) / 256
			test.That(t, float64(depth.At(row, col)), test.ShouldAlmostEqual, want, 1e-5)
		}
	}
}

func TestDecodeDepthKnownValues(t *testing.T) {
	img := NewRGBImage(3, 1)
	img.Set(0, 0, [3]uint8{0, 0, 0})
	img.Set(0, 1, [3]uint8{1, 0, 0})
	img.Set(0, 2, [3]uint8{2, 128, 0})

	depth, err := DecodeDepth(img, DepthModeStandard, 0, 256)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth.Values, test.ShouldResemble, []float32{0, 1, 2.5})
}

func TestDepthRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	want := &DepthMap{Width: 32, Height: 32, Values: make([]float32, 32*32)}
	for i := range want.Values {
		want.Values[i] = float32(DefaultNearPlane + rng.Float64()*20)
	}

	got, err := DecodeDepth(EncodeDepth(want, DefaultNearPlane, DefaultFarPlane), DepthModeStandard, DefaultNearPlane, DefaultFarPlane)
	test.That(t, err, test.ShouldBeNil)
	for i := range want.Values {
		test.That(t, float64(got.Values[i]), test.ShouldAlmostEqual, float64(want.Values[i]), 1e-5)
	}
}

func TestDecodeDepthSimple(t *testing.T) {
	img := NewRGBImage(2, 1)
	img.Set(0, 0, [3]uint8{128, 255, 255})
	img.Set(0, 1, [3]uint8{64, 0, 0})

	depth, err := DecodeDepth(img, DepthModeSimple, 0, 256)
	test.That(t, err, test.ShouldBeNil)
	// only the first channel counts
	test.That(t, depth.Values, test.ShouldResemble, []float32{0.5, 0.25})
}

func TestDecodeDepthUnsupportedMode(t *testing.T) {
	_, err := DecodeDepth(NewRGBImage(1, 1), DepthMode("_depth_fancy"), DefaultNearPlane, DefaultFarPlane)
	test.That(t, err, test.ShouldNotBeNil)

	var modeErr *UnsupportedDepthModeError
	test.That(t, errors.As(err, &modeErr), test.ShouldBeTrue)
	test.That(t, modeErr.Mode, test.ShouldEqual, DepthMode("_depth_fancy"))
}
