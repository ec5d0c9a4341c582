package tonemap

import "math"

// The following constants and functions are a line-for-line CPU port of
// the HLSL math in shader.go, so the tone-mapping algorithm's properties
// can be checked without a GPU.
const (
	pqM1 = 0.1593017578125
	pqM2 = 78.84375
	pqC1 = 0.8359375
	pqC2 = 18.8515625
	pqC3 = 18.6875
)

func saturate(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// linearToPQ converts absolute linear light (nits, normalized to 10000
// nits) to the ST 2084 perceptual-quantizer domain.
func linearToPQ(nitsNormalized float64) float64 {
	ym1 := math.Pow(math.Max(nitsNormalized, 0.0), pqM1)
	return math.Pow((pqC1+pqC2*ym1)/(1.0+pqC3*ym1), pqM2)
}

// pqToLinear is linearToPQ's inverse.
func pqToLinear(pq float64) float64 {
	ym2 := math.Pow(math.Max(pq, 0.0), 1.0/pqM2)
	num := math.Max(ym2-pqC1, 0.0)
	return math.Pow(num/(pqC2-pqC3*ym2), 1.0/pqM1)
}

// bt2390EETF applies the BT.2390 Hermite-spline knee with
// KS = 1.5*maxLum - 0.5, rolling [KS, 1] off toward maxLum.
func bt2390EETF(e, maxLum float64) float64 {
	ks := saturate(1.5*maxLum - 0.5)
	if e < ks {
		return e
	}
	t := saturate((e - ks) / (1.0 - ks))
	t2 := t * t
	t3 := t2 * t
	return (2.0*t3-3.0*t2+1.0)*ks +
		(t3-2.0*t2+t)*(1.0-ks) +
		(-2.0*t3+3.0*t2)*maxLum
}

func srgbOETFChannel(linear float64) float64 {
	if linear <= 0.0031308 {
		return linear * 12.92
	}
	return 1.055*math.Pow(math.Max(linear, 0.0), 1.0/2.4) - 0.055
}

// applyToneMapPixel runs one scRGB pixel (1.0 = 80 nits) through the
// same pipeline CSMain does: tone-map in PQ space when the assumed source
// peak exceeds the SDR white level, normalize, then sRGB-encode. The
// EETF is applied to the maximum of R, G and B, and the resulting single
// scale factor is applied uniformly across all three channels (maxRGB),
// matching the shader.
func applyToneMapPixel(r, g, b float64, sdrWhiteNits, assumedSourcePeakNits float32) (outR, outG, outB float64) {
	nits := [3]float64{
		math.Max(r, 0) * 80.0,
		math.Max(g, 0) * 80.0,
		math.Max(b, 0) * 80.0,
	}

	sdr := float64(sdrWhiteNits)
	maxLumNorm := linearToPQ(saturate(sdr / 10000.0))

	if float64(assumedSourcePeakNits) > sdr {
		maxChannelNits := math.Max(nits[0], math.Max(nits[1], nits[2]))
		pq := linearToPQ(maxChannelNits / 10000.0)
		mapped := bt2390EETF(pq, maxLumNorm)
		mappedNits := pqToLinear(mapped) * 10000.0

		scale := 1.0
		if maxChannelNits > 1e-6 {
			scale = mappedNits / maxChannelNits
		}
		for i := range nits {
			nits[i] *= scale
		}
	}

	denom := math.Max(sdr, 1e-6)
	normalized := [3]float64{nits[0] / denom, nits[1] / denom, nits[2] / denom}
	out := [3]float64{
		saturate(srgbOETFChannel(saturate(normalized[0]))),
		saturate(srgbOETFChannel(saturate(normalized[1]))),
		saturate(srgbOETFChannel(saturate(normalized[2]))),
	}
	return out[0], out[1], out[2]
}
