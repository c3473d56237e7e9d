package skintone

import (
	"image/color"
	"testing"
)

func TestClassifyUndertone(t *testing.T) {
	tests := []struct {
		name  string
		cheek Color
		neck  Color
		want  Undertone
	}{
		{"warm", Color{150, 120, 100}, Color{130, 110, 100}, Warm},
		{"cool", Color{130, 110, 100}, Color{150, 120, 100}, Cool},
		{"neutral equal", Color{100, 100, 100}, Color{100, 100, 100}, Neutral},
		{"boundary +20", Color{120, 100, 100}, Color{100, 100, 100}, Neutral},
		{"boundary -20", Color{100, 100, 100}, Color{120, 100, 100}, Neutral},
		{"just above +20", Color{120.5, 100, 100}, Color{100, 100, 100}, Warm},
		{"just below -20", Color{100, 100, 100}, Color{100, 100, 120.5}, Cool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyUndertone(tt.cheek, tt.neck); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyUndertoneSwapFlipsLabel(t *testing.T) {
	pairs := [][2]Color{
		{{180, 140, 120}, {150, 130, 110}},
		{{90, 80, 70}, {120, 100, 90}},
		{{100, 100, 100}, {110, 105, 105}},
		{{110, 100, 100}, {100, 100, 100}},
	}
	flip := map[Undertone]Undertone{Warm: Cool, Cool: Warm, Neutral: Neutral}

	for _, p := range pairs {
		forward := ClassifyUndertone(p[0], p[1])
		reverse := ClassifyUndertone(p[1], p[0])
		if reverse != flip[forward] {
			t.Errorf("cheek=%v neck=%v: forward %s, reverse %s", p[0], p[1], forward, reverse)
		}
	}
}

func TestClassifyBrightnessDepth(t *testing.T) {
	tests := []struct {
		name         string
		cheek        Color
		wantSoftness BrightnessSoftness
		wantDepth    Depth
	}{
		{"white", Color{255, 255, 255}, Bright, Light},
		{"black", Color{0, 0, 0}, Soft, Deep},
		{"mean exactly 170", Color{170, 170, 170}, Bright, Medium},
		{"mean exactly 90", Color{90, 90, 90}, Soft, Medium},
		{"sum exactly 450", Color{150, 150, 150}, Soft, Medium},
		{"sum just above 450", Color{150, 150, 150.5}, Bright, Medium},
		{"light", Color{200, 180, 160}, Bright, Light},
		{"deep", Color{80, 60, 50}, Soft, Deep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			softness, depth := ClassifyBrightnessDepth(tt.cheek)
			if softness != tt.wantSoftness {
				t.Errorf("softness: got %s, want %s", softness, tt.wantSoftness)
			}
			if depth != tt.wantDepth {
				t.Errorf("depth: got %s, want %s", depth, tt.wantDepth)
			}
		})
	}
}

func TestClassifyWhiteImage(t *testing.T) {
	got := Classify(createUniformImage(90, 90, color.White))

	white := Color{255, 255, 255}
	if got.CheekSample != white || got.NeckSample != white {
		t.Fatalf("samples: got cheek=%v neck=%v", got.CheekSample, got.NeckSample)
	}
	if got.Undertone != Neutral || got.Depth != Light || got.BrightnessSoftness != Bright {
		t.Fatalf("labels: got %+v", got)
	}
}

func TestClassifyBlackImage(t *testing.T) {
	got := Classify(createUniformImage(90, 90, color.Black))

	if got.Undertone != Neutral || got.Depth != Deep || got.BrightnessSoftness != Soft {
		t.Fatalf("labels: got %+v", got)
	}
}

func TestClassifySmallImageClipsSamples(t *testing.T) {
	// 3x3: cheek box starts at (1,1) and neck box at (1,2); both are clipped.
	got := Classify(createUniformImage(3, 3, color.White))

	white := Color{255, 255, 255}
	if got.CheekSample != white || got.NeckSample != white {
		t.Fatalf("samples: got cheek=%v neck=%v", got.CheekSample, got.NeckSample)
	}
}

func TestClassifySamplesEmptyRegionsAreZero(t *testing.T) {
	got := ClassifySamples(Color{}, Color{})
	if got.Undertone != Neutral || got.Depth != Deep || got.BrightnessSoftness != Soft {
		t.Fatalf("labels: got %+v", got)
	}
}

func TestParseLabels(t *testing.T) {
	if u, ok := ParseUndertone("Warm"); !ok || u != Warm {
		t.Errorf("ParseUndertone(Warm): got %q %v", u, ok)
	}
	if _, ok := ParseUndertone("warm"); ok {
		t.Error("ParseUndertone should be case sensitive")
	}
	if d, ok := ParseDepth("Deep"); !ok || d != Deep {
		t.Errorf("ParseDepth(Deep): got %q %v", d, ok)
	}
	if _, ok := ParseDepth("Dark"); ok {
		t.Error("ParseDepth(Dark) should fail")
	}
}
