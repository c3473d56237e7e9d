package skintone

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Face shape labels.
const (
	ShapeRound      = "Round"
	ShapeOval       = "Oval"
	ShapeHeart      = "Heart"
	ShapeLongSquare = "Long / Square"
	ShapeUnknown    = "Unknown"
)

// Width/height ratio bounds of the skin mask, all exclusive.
const (
	RoundRatio = 0.95
	OvalRatio  = 0.78
	HeartRatio = 0.65
)

const (
	// maskDistance is the RGB distance, on the 0..255 scale, under which a pixel counts as skin.
	maskDistance = 45
	// maskStride is the pixel step of the mask scan in both directions.
	maskStride = 4
	// referencePatch is the edge of the center reference patch as a fraction of min(width, height).
	referencePatch = 0.28
)

// referenceFallback is used when the center patch holds no usable pixels.
var referenceFallback = Color{200, 180, 160}

var shapeTips = map[string]string{
	ShapeRound:      "Soft layers and side-swept bangs add length to the face.",
	ShapeOval:       "Most styles suit oval faces; try long waves or a blunt bob.",
	ShapeHeart:      "Side-parted styles and chin-length layers balance a heart shape.",
	ShapeLongSquare: "Soft waves or choppy layers reduce the angular look.",
	ShapeUnknown:    "Try a clearer front-facing photo showing neck and hairline.",
}

// FaceShape is a coarse face-shape guess with a styling tip.
type FaceShape struct {
	Name string `json:"name"`
	Tip  string `json:"tip"`
}

// FaceShapeByName returns the shape and tip for a stored label. Unknown
// labels map to ShapeUnknown.
func FaceShapeByName(name string) FaceShape {
	if tip, ok := shapeTips[name]; ok {
		return FaceShape{Name: name, Tip: tip}
	}
	return FaceShape{Name: ShapeUnknown, Tip: shapeTips[ShapeUnknown]}
}

// ShapeForRatio maps a skin-mask width/height ratio to a face shape.
func ShapeForRatio(ratio float64) FaceShape {
	switch {
	case ratio > RoundRatio:
		return FaceShapeByName(ShapeRound)
	case ratio > OvalRatio:
		return FaceShapeByName(ShapeOval)
	case ratio > HeartRatio:
		return FaceShapeByName(ShapeHeart)
	default:
		return FaceShapeByName(ShapeLongSquare)
	}
}

// GuessFaceShape builds a skin mask from pixels close to the color of a
// patch centered at (0.5w, 0.4h), then classifies the mask's bounding box.
// It is a heuristic and reports ShapeUnknown when the mask has no extent.
func GuessFaceShape(img image.Image) FaceShape {
	if img == nil || img.Bounds().Empty() {
		return FaceShapeByName(ShapeUnknown)
	}

	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	ref := toColorful(referenceColor(src))

	minX, minY, maxX, maxY := w, h, 0, 0
	for y := 0; y < h; y += maskStride {
		for x := 0; x < w; x += maskStride {
			i := y*src.Stride + x*4
			px := toColorful(Color{float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2])})
			if px.DistanceRgb(ref)*255 >= maskDistance {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}

	if maxX <= minX || maxY <= minY {
		return FaceShapeByName(ShapeUnknown)
	}
	return ShapeForRatio(float64(maxX-minX) / float64(maxY-minY))
}

// referenceColor averages the near-black and near-white filtered pixels of
// the center patch.
func referenceColor(src *image.NRGBA) Color {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	size := int(float64(min(w, h)) * referencePatch)
	if size <= 0 {
		return referenceFallback
	}
	x := max(0, int(math.Floor(float64(w)*0.5-float64(size)/2)))
	y := max(0, int(math.Floor(float64(h)*0.4-float64(size)/2)))

	patch := imaging.Crop(src, image.Rect(x, y, x+size, y+size))
	pw, ph := patch.Rect.Dx(), patch.Rect.Dy()

	var sum [3]float64
	var n int
	for py := 0; py < ph; py++ {
		row := patch.Pix[py*patch.Stride : py*patch.Stride+pw*4]
		for i := 0; i < len(row); i += 4 {
			r, g, b := row[i], row[i+1], row[i+2]
			if r <= 10 || g <= 10 || b <= 10 || r >= 250 || g >= 250 || b >= 250 {
				continue
			}
			sum[0] += float64(r)
			sum[1] += float64(g)
			sum[2] += float64(b)
			n++
		}
	}
	if n == 0 {
		return referenceFallback
	}
	return Color{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
}

func toColorful(c Color) colorful.Color {
	return colorful.Color{R: c.R() / 255, G: c.G() / 255, B: c.B() / 255}
}
