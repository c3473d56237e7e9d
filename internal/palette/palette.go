// Package palette maps classification labels to curated color recommendations:
// wardrobe swatches, makeup shades and outfit colors.
package palette

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/example/haneul-palette/internal/skintone"
)

// Swatch is a single recommended color.
type Swatch struct {
	Hex string   `json:"hex"`
	RGB [3]uint8 `json:"rgb"`
}

// Makeup lists shade suggestions for one undertone/depth combination.
type Makeup struct {
	LipName  string `json:"lip_name"`
	Lip      Swatch `json:"lip"`
	Blush    Swatch `json:"blush"`
	Eyeliner string `json:"eyeliner"`
}

// Recommendation bundles everything suggested for a label pair.
type Recommendation struct {
	Undertone   skintone.Undertone `json:"undertone"`
	Depth       skintone.Depth     `json:"depth"`
	Explanation string             `json:"explanation"`
	Swatches    []Swatch           `json:"swatches"`
	Makeup      Makeup             `json:"makeup"`
	Outfit      []Swatch           `json:"outfit"`
}

type makeupEntry struct {
	lipName  string
	lip      string
	blush    string
	eyeliner string
}

var swatchTable = map[skintone.Undertone]map[skintone.Depth][]string{
	skintone.Warm: {
		skintone.Light:  {"#FFEFD5", "#FFD1A9", "#FFC18E", "#FFB199", "#F4A460", "#D08B5B"},
		skintone.Medium: {"#FFDAB3", "#FFB27A", "#E87A3B", "#D9693A", "#C7623A", "#A84C2E"},
		skintone.Deep:   {"#A0522D", "#8B3A2F", "#7C2F2F", "#5C221A", "#4B1A0F", "#3E1A0D"},
	},
	skintone.Cool: {
		skintone.Light:  {"#E6F0FF", "#CFE3FF", "#BFD6FF", "#B3D1FF", "#9CC7FF", "#7FB7FF"},
		skintone.Medium: {"#9ECFFF", "#7FBFFF", "#5FAFFF", "#4B98E6", "#3B7FBF", "#2F5F9C"},
		skintone.Deep:   {"#24476A", "#203A55", "#192B40", "#112232", "#0C1B2A", "#08141D"},
	},
	skintone.Neutral: {
		skintone.Light:  {"#F5EBDD", "#EADFD1", "#E0D6CA", "#D6CFC3", "#C8BFB2", "#BFAF9E"},
		skintone.Medium: {"#D7C4AE", "#C6A98F", "#B99176", "#9F6F56", "#8B5A46", "#754634"},
		skintone.Deep:   {"#553227", "#43231A", "#331714", "#27120E", "#1C0E0A", "#150A07"},
	},
}

var makeupTable = map[skintone.Undertone]map[skintone.Depth]makeupEntry{
	skintone.Warm: {
		skintone.Light:  {"peach coral", "#FFAB7A", "#FFB3A7", "brown"},
		skintone.Medium: {"warm rose", "#D96F61", "#E58A76", "brown"},
		skintone.Deep:   {"brick red", "#8F2B2B", "#AC4B3C", "deep brown"},
	},
	skintone.Cool: {
		skintone.Light:  {"soft pink", "#F7CFE2", "#F3B7D5", "grey"},
		skintone.Medium: {"rosy pink", "#D66E9A", "#D97BA6", "brown or black"},
		skintone.Deep:   {"berry", "#8B2C57", "#8A3B57", "black"},
	},
	skintone.Neutral: {
		skintone.Light:  {"nude pink", "#E6B7A9", "#E0AFA0", "brown"},
		skintone.Medium: {"balanced rose", "#C6786B", "#C57A6D", "brown"},
		skintone.Deep:   {"muted berry", "#7F3E3E", "#7D4D4B", "black"},
	},
}

var outfitTable = map[skintone.Undertone][]string{
	skintone.Warm:    {"#FFD1A9", "#E7A977", "#C97A3A"},
	skintone.Cool:    {"#BFE0FF", "#7FBFFF", "#3B7FBF"},
	skintone.Neutral: {"#D7C4AE", "#A88B6B", "#7A5A3F"},
}

var explanations = map[skintone.Undertone]string{
	skintone.Warm:    "Warm undertone: your cheek shows stronger red/yellow tones vs neck. Gold jewellery and warm colours suit you.",
	skintone.Cool:    "Cool undertone: skin has cooler blue/pink signals vs neck. Silver jewellery and cool colours suit you.",
	skintone.Neutral: "Neutral: mix of warm and cool. You can wear both gold and silver; balanced colour palette recommended.",
}

// Recommend returns suggestions for the given labels. Combinations missing
// from the tables fall back to Neutral/Medium.
func Recommend(undertone skintone.Undertone, depth skintone.Depth) (*Recommendation, error) {
	hexes, ok := swatchTable[undertone][depth]
	entry, entryOK := makeupTable[undertone][depth]
	if !ok || !entryOK {
		undertone, depth = skintone.Neutral, skintone.Medium
		hexes = swatchTable[undertone][depth]
		entry = makeupTable[undertone][depth]
	}

	swatches, err := parseSwatches(hexes)
	if err != nil {
		return nil, err
	}
	outfit, err := parseSwatches(outfitTable[undertone])
	if err != nil {
		return nil, err
	}
	lip, err := parseSwatch(entry.lip)
	if err != nil {
		return nil, err
	}
	blush, err := parseSwatch(entry.blush)
	if err != nil {
		return nil, err
	}

	return &Recommendation{
		Undertone:   undertone,
		Depth:       depth,
		Explanation: explanations[undertone],
		Swatches:    swatches,
		Makeup: Makeup{
			LipName:  entry.lipName,
			Lip:      lip,
			Blush:    blush,
			Eyeliner: entry.eyeliner,
		},
		Outfit: outfit,
	}, nil
}

// Nearest returns the swatch in the recommendation closest to c in CIE L*a*b* space.
func (r *Recommendation) Nearest(c skintone.Color) (Swatch, bool) {
	if r == nil || len(r.Swatches) == 0 {
		return Swatch{}, false
	}
	target := colorful.Color{R: c.R() / 255, G: c.G() / 255, B: c.B() / 255}

	best := r.Swatches[0]
	bestDist := -1.0
	for _, s := range r.Swatches {
		sc, err := colorful.Hex(s.Hex)
		if err != nil {
			continue
		}
		if d := target.DistanceLab(sc); bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, bestDist >= 0
}

func parseSwatches(hexes []string) ([]Swatch, error) {
	out := make([]Swatch, 0, len(hexes))
	for _, h := range hexes {
		s, err := parseSwatch(h)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSwatch(hex string) (Swatch, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Swatch{}, fmt.Errorf("palette: invalid swatch %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return Swatch{Hex: c.Hex(), RGB: [3]uint8{r, g, b}}, nil
}
