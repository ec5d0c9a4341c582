package tonemap

import (
	"math"
	"testing"
	"unsafe"
)

// TestConstantsLayout pins the cbuffer payload's size and field order to
// match ToneMapConstants in shader.go: two float32s followed by two
// uint32s, 16 bytes total, no padding.
func TestConstantsLayout(t *testing.T) {
	if got, want := unsafe.Sizeof(constants{}), uintptr(16); got != want {
		t.Fatalf("sizeof(constants) = %d, want %d", got, want)
	}

	c := constants{SdrWhiteNits: 80, AssumedSourcePeakNits: 1000, Width: 1920, Height: 1080}
	b := constantsBytes(&c)
	if len(b) != 16 {
		t.Fatalf("constantsBytes length = %d, want 16", len(b))
	}

	roundTrip := *(*constants)(unsafe.Pointer(&b[0]))
	if roundTrip != c {
		t.Fatalf("constantsBytes round-trip = %+v, want %+v", roundTrip, c)
	}
}

// TestToneMapBlackInputIsBlack checks a fully black scRGB input maps to
// (0,0,0) before the alpha channel is attached.
func TestToneMapBlackInputIsBlack(t *testing.T) {
	r, g, b := applyToneMapPixel(0, 0, 0, 80, 1000)
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("black input = (%v,%v,%v), want (0,0,0)", r, g, b)
	}
}

// TestToneMapSDRWhiteMapsToWhite checks a fully saturated SDR-white scRGB
// input (pixel.rgb = sdr_white_nits/80) maps to (255,255,255) within ±1
// per channel, for the default config (SdrWhiteNits=80,
// AssumedSourcePeakNits=1000).
func TestToneMapSDRWhiteMapsToWhite(t *testing.T) {
	const sdrWhiteNits, peakNits float32 = 80, 1000
	scrgb := float64(sdrWhiteNits) / 80.0 // == 1.0

	r, g, b := applyToneMapPixel(scrgb, scrgb, scrgb, sdrWhiteNits, peakNits)
	for name, v := range map[string]float64{"r": r, "g": g, "b": b} {
		got := math.Round(v * 255.0)
		if math.Abs(got-255) > 1 {
			t.Fatalf("channel %s = %v (255-scale %v), want within ±1 of 255", name, v, got)
		}
	}
}

func TestDispatchGroupCount(t *testing.T) {
	cases := []struct {
		width, height   uint32
		wantX, wantY    uint32
	}{
		{8, 8, 1, 1},
		{9, 8, 2, 1},
		{1920, 1080, 240, 135},
		{1, 1, 1, 1},
	}
	for _, c := range cases {
		gotX := (c.width + threadGroupSize - 1) / threadGroupSize
		gotY := (c.height + threadGroupSize - 1) / threadGroupSize
		if gotX != c.wantX || gotY != c.wantY {
			t.Errorf("dispatch(%d,%d) = (%d,%d), want (%d,%d)", c.width, c.height, gotX, gotY, c.wantX, c.wantY)
		}
	}
}
