package tonemap

// computeShaderSource implements a BT.2390 EETF rolloff in PQ (ST 2084)
// space using the maxRGB method, with an 8x8 thread-group layout reading
// scRGB float4 from an input SRV and writing sRGB-encoded Bgra8 to an
// output UAV.
const computeShaderSource = `
cbuffer ToneMapConstants : register(b0)
{
    float SdrWhiteNits;
    float AssumedSourcePeakNits;
    uint Width;
    uint Height;
};

Texture2D<float4> InputTexture : register(t0);
RWTexture2D<unorm float4> OutputTexture : register(u0);

static const float PQ_M1 = 0.1593017578125;
static const float PQ_M2 = 78.84375;
static const float PQ_C1 = 0.8359375;
static const float PQ_C2 = 18.8515625;
static const float PQ_C3 = 18.6875;

// linearToPQ converts absolute linear light (nits, normalized to 10000
// nits) to the ST 2084 perceptual-quantizer domain.
float linearToPQ(float nitsNormalized)
{
    float ym1 = pow(max(nitsNormalized, 0.0), PQ_M1);
    return pow((PQ_C1 + PQ_C2 * ym1) / (1.0 + PQ_C3 * ym1), PQ_M2);
}

// pqToLinear is linearToPQ's inverse.
float pqToLinear(float pq)
{
    float ym2 = pow(max(pq, 0.0), 1.0 / PQ_M2);
    float num = max(ym2 - PQ_C1, 0.0);
    return pow(num / (PQ_C2 - PQ_C3 * ym2), 1.0 / PQ_M1);
}

// bt2390EETF applies the BT.2390 Hermite-spline knee with
// KS = 1.5*maxLum - 0.5, rolling [KS, 1] off toward maxLum.
float bt2390EETF(float e, float maxLum)
{
    float ks = saturate(1.5 * maxLum - 0.5);
    if (e < ks)
    {
        return e;
    }
    float t = saturate((e - ks) / (1.0 - ks));
    float t2 = t * t;
    float t3 = t2 * t;
    float p = (2.0 * t3 - 3.0 * t2 + 1.0) * ks
            + (t3 - 2.0 * t2 + t) * (1.0 - ks)
            + (-2.0 * t3 + 3.0 * t2) * maxLum;
    return p;
}

float3 srgbOETF(float3 linearColor)
{
    float3 lo = linearColor * 12.92;
    float3 hi = 1.055 * pow(max(linearColor, 0.0), 1.0 / 2.4) - 0.055;
    float3 isHi = step(0.0031308, linearColor);
    return lerp(lo, hi, isHi);
}

[numthreads(8, 8, 1)]
void CSMain(uint3 dispatchId : SV_DispatchThreadID)
{
    if (dispatchId.x >= Width || dispatchId.y >= Height)
    {
        return;
    }

    float4 scrgb = InputTexture.Load(int3(dispatchId.xy, 0));
    float3 rgb = max(scrgb.rgb, 0.0);

    float3 nits = rgb * 80.0;

    float maxLumNorm = linearToPQ(saturate(SdrWhiteNits / 10000.0));
    if (AssumedSourcePeakNits > SdrWhiteNits)
    {
        float maxChannelNits = max(nits.r, max(nits.g, nits.b));
        float pq = linearToPQ(maxChannelNits / 10000.0);
        float mapped = bt2390EETF(pq, maxLumNorm);
        float mappedNits = pqToLinear(mapped) * 10000.0;

        float scale = 1.0;
        if (maxChannelNits > 1e-6)
        {
            scale = mappedNits / maxChannelNits;
        }
        nits = nits * scale;
    }

    float3 normalized = nits / max(SdrWhiteNits, 1e-6);
    float3 outColor = saturate(srgbOETF(saturate(normalized)));

    OutputTexture[dispatchId.xy] = float4(outColor, 1.0);
}
`
