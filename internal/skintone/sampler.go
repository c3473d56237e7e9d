package skintone

import (
	"image"

	"github.com/disintegration/imaging"
)

// SampleSize is the edge length, in pixels, of the square cheek and neck boxes.
const SampleSize = 40

// neckOffset is the vertical position of the neck box as a fraction of image height.
const neckOffset = 0.75

// Color holds per-channel means in R, G, B order. It is not re-quantized to integers.
type Color [3]float64

// R returns the red channel mean.
func (c Color) R() float64 { return c[0] }

// G returns the green channel mean.
func (c Color) G() float64 { return c[1] }

// B returns the blue channel mean.
func (c Color) B() float64 { return c[2] }

// Sum returns R + G + B.
func (c Color) Sum() float64 {
	return c[0] + c[1] + c[2]
}

// Mean returns the average of the three channels.
func (c Color) Mean() float64 {
	return c.Sum() / 3
}

// Region is a rectangle relative to the image's top-left corner.
// X1/Y1 are inclusive, X2/Y2 are exclusive.
type Region struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Empty reports whether the region is inverted or has zero area.
func (r Region) Empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// SampleRegions returns the cheek and neck boxes for an image of the given size.
func SampleRegions(width, height int) (cheek, neck Region) {
	x := width / 3
	cheekY := height / 3
	neckY := int(float64(height) * neckOffset)

	cheek = Region{X1: x, Y1: cheekY, X2: x + SampleSize, Y2: cheekY + SampleSize}
	neck = Region{X1: x, Y1: neckY, X2: x + SampleSize, Y2: neckY + SampleSize}
	return cheek, neck
}

// AverageColor returns the mean color of the pixels inside r, clipped to the
// image bounds. A region with no pixels yields Color{0, 0, 0}.
//
// Alpha is ignored: channels are read straight (non-premultiplied), which
// matches flattening the image to RGB before sampling.
func AverageColor(img image.Image, r Region) Color {
	if img == nil || r.Empty() {
		return Color{}
	}

	origin := img.Bounds().Min
	rect := image.Rect(r.X1, r.Y1, r.X2, r.Y2).Add(origin)
	// imaging.Crop intersects rect with the bounds and returns an empty image when nothing is left.
	patch := imaging.Crop(img, rect)

	w, h := patch.Rect.Dx(), patch.Rect.Dy()
	if w <= 0 || h <= 0 {
		return Color{}
	}

	var sum [3]float64
	for y := 0; y < h; y++ {
		row := patch.Pix[y*patch.Stride : y*patch.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			sum[0] += float64(row[i])
			sum[1] += float64(row[i+1])
			sum[2] += float64(row[i+2])
		}
	}

	n := float64(w * h)
	return Color{sum[0] / n, sum[1] / n, sum[2] / n}
}
