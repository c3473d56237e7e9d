package skintone

import "image"

// Undertone is the warm/cool/neutral label derived from cheek-vs-neck channel differences.
type Undertone string

const (
	Warm    Undertone = "Warm"
	Cool    Undertone = "Cool"
	Neutral Undertone = "Neutral"
)

// BrightnessSoftness is the bright/soft label derived from the summed cheek intensity.
type BrightnessSoftness string

const (
	Bright BrightnessSoftness = "Bright"
	Soft   BrightnessSoftness = "Soft"
)

// Depth is the light/medium/deep label derived from the mean cheek intensity.
type Depth string

const (
	Light  Depth = "Light"
	Medium Depth = "Medium"
	Deep   Depth = "Deep"
)

// Classification thresholds. These are uncalibrated heuristics; all comparisons are strict.
const (
	WarmThreshold   = 20.0
	CoolThreshold   = -20.0
	LightThreshold  = 170.0
	DeepThreshold   = 90.0
	BrightThreshold = 450.0
)

// ParseUndertone validates a label string.
func ParseUndertone(s string) (Undertone, bool) {
	switch u := Undertone(s); u {
	case Warm, Cool, Neutral:
		return u, true
	}
	return "", false
}

// ParseDepth validates a label string.
func ParseDepth(s string) (Depth, bool) {
	switch d := Depth(s); d {
	case Light, Medium, Deep:
		return d, true
	}
	return "", false
}

// Result is the outcome of a single classification.
type Result struct {
	Undertone          Undertone          `json:"undertone"`
	BrightnessSoftness BrightnessSoftness `json:"brightness_softness"`
	Depth              Depth              `json:"depth"`
	CheekSample        Color              `json:"cheek_sample_rgb"`
	NeckSample         Color              `json:"neck_sample_rgb"`
}

// ClassifyUndertone compares the summed channel difference between cheek and neck.
func ClassifyUndertone(cheek, neck Color) Undertone {
	diff := (cheek[0] - neck[0]) + (cheek[1] - neck[1]) + (cheek[2] - neck[2])

	switch {
	case diff > WarmThreshold:
		return Warm
	case diff < CoolThreshold:
		return Cool
	default:
		return Neutral
	}
}

// ClassifyBrightnessDepth derives both labels from the cheek sample.
//
// Depth uses the channel mean and BrightnessSoftness uses the channel sum.
// The two axes overlap (sum = 3 * mean) but keep independent thresholds.
func ClassifyBrightnessDepth(cheek Color) (BrightnessSoftness, Depth) {
	brightness := cheek.Mean()

	var depth Depth
	switch {
	case brightness > LightThreshold:
		depth = Light
	case brightness < DeepThreshold:
		depth = Deep
	default:
		depth = Medium
	}

	softness := Soft
	if cheek.Sum() > BrightThreshold {
		softness = Bright
	}

	return softness, depth
}

// ClassifySamples is the pure classification step over two averaged colors.
func ClassifySamples(cheek, neck Color) Result {
	softness, depth := ClassifyBrightnessDepth(cheek)
	return Result{
		Undertone:          ClassifyUndertone(cheek, neck),
		BrightnessSoftness: softness,
		Depth:              depth,
		CheekSample:        cheek,
		NeckSample:         neck,
	}
}

// Classify samples the cheek and neck boxes of img and classifies them.
func Classify(img image.Image) Result {
	bounds := img.Bounds()
	cheekRegion, neckRegion := SampleRegions(bounds.Dx(), bounds.Dy())
	return ClassifySamples(AverageColor(img, cheekRegion), AverageColor(img, neckRegion))
}
