package whitelevel

import "testing"

func TestProbeFallsBackWhenDeviceUnknown(t *testing.T) {
	result := Probe(`\\.\DISPLAYNONEXISTENT`)
	if result.IsHDR {
		t.Fatalf("expected IsHDR=false for an unresolvable device, got %+v", result)
	}
	if result.SDRWhiteNits != fallbackSDRWhiteNits {
		t.Fatalf("SDRWhiteNits = %v, want fallback %v", result.SDRWhiteNits, fallbackSDRWhiteNits)
	}
}

func TestSDRWhiteNitsFormula(t *testing.T) {
	// sdr_white_nits = (raw / 1000) * 80.
	cases := []struct {
		raw  uint32
		want float32
	}{
		{1000, 80},
		{1250, 100},
		{2000, 160},
	}
	for _, c := range cases {
		got := (float32(c.raw) / 1000.0) * 80.0
		if got != c.want {
			t.Errorf("(%d/1000)*80 = %v, want %v", c.raw, got, c.want)
		}
	}
}
