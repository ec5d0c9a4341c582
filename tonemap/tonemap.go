// Package tonemap drives a compiled BT.2390 EETF compute shader, its
// per-frame constant buffer, and the persistent Bgra8 output texture +
// UAV the shader writes into. Dispatch is issued through internal/d3d11's
// hand-written vtable bindings for the compute pipeline calls
// (CSSetShader/CSSetShaderResources/CSSetUnorderedAccessViews/
// CSSetConstantBuffers/Dispatch) that go-d3d doesn't expose.
package tonemap

import (
	"fmt"
	"unsafe"

	gd3d11 "github.com/kirides/go-d3d/d3d11"
	"github.com/kirides/go-d3d/dxgi"

	"github.com/jipaix/hdrshot/device"
	"github.com/jipaix/hdrshot/internal/d3d11"
	"github.com/jipaix/hdrshot/internal/logging"
)

var log = logging.L("tonemap")

const (
	threadGroupSize = 8

	bindUnorderedAccess = 0x80 // D3D11_BIND_UNORDERED_ACCESS
)

// ErrShaderCompileFailed indicates the BT.2390 compute shader failed to
// compile. This can only happen once, at ToneMapper construction.
type ErrShaderCompileFailed struct {
	Reason error
}

func (e *ErrShaderCompileFailed) Error() string {
	return fmt.Sprintf("tonemap: shader compile failed: %v", e.Reason)
}

func (e *ErrShaderCompileFailed) Unwrap() error { return e.Reason }

// ErrResourceCreationFailed indicates a view, buffer, or texture needed
// for a dispatch could not be created. Dispatch itself is a void D3D11
// API with no failure mode of its own, so every tone-map failure
// surfaces here or as ErrShaderCompileFailed at construction time.
type ErrResourceCreationFailed struct {
	Reason error
}

func (e *ErrResourceCreationFailed) Error() string {
	return fmt.Sprintf("tonemap: resource creation failed: %v", e.Reason)
}

func (e *ErrResourceCreationFailed) Unwrap() error { return e.Reason }

// constants mirrors ToneMapConstants in shader.go byte-for-byte; field
// order and size must match the HLSL cbuffer layout exactly.
type constants struct {
	SdrWhiteNits          float32
	AssumedSourcePeakNits float32
	Width                 uint32
	Height                uint32
}

func constantsBytes(c *constants) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(c)), unsafe.Sizeof(*c))
}

// ToneMapper dispatches the BT.2390 EETF compute shader over a captured
// scRGB frame, producing an 8-bit sRGB output on the GPU. Its output
// texture and UAV are reallocated only when the source frame's
// dimensions change.
type ToneMapper struct {
	dev  *device.Component
	cs   *d3d11.ComputeShader
	cbuf *d3d11.Buffer

	width, height uint32
	output        *gd3d11.ID3D11Texture2D
	uav           *d3d11.UnorderedAccessView
}

// New compiles the tone-map compute shader and allocates its constant
// buffer. The output texture is allocated lazily on the first Apply,
// once the source frame's dimensions are known.
func New(dev *device.Component) (*ToneMapper, error) {
	bytecode, err := d3d11.CompileComputeShader(computeShaderSource, "CSMain")
	if err != nil {
		return nil, &ErrShaderCompileFailed{Reason: err}
	}

	var cs *d3d11.ComputeShader
	var cbuf *d3d11.Buffer
	err = dev.Do(func() error {
		var e error
		cs, e = dev.D3D11().CreateComputeShader(bytecode)
		if e != nil {
			return e
		}
		cbuf, e = dev.D3D11().CreateBuffer(d3d11.BufferDesc{
			ByteWidth: uint32(unsafe.Sizeof(constants{})),
			Usage:     d3d11.UsageDefault,
			BindFlags: d3d11.BindConstantBuffer,
		}, nil)
		return e
	})
	if err != nil {
		return nil, &ErrResourceCreationFailed{Reason: err}
	}

	log.Info("tone-map compute shader compiled and bound")
	return &ToneMapper{dev: dev, cs: cs, cbuf: cbuf}, nil
}

// ensureOutput (re)allocates the output texture and UAV when the
// requested dimensions no longer match the cached ones.
func (t *ToneMapper) ensureOutput(width, height uint32) error {
	if t.output != nil && width == t.width && height == t.height {
		return nil
	}
	t.releaseOutput()

	desc := gd3d11.D3D11_TEXTURE2D_DESC{
		Width:     width,
		Height:    height,
		MipLevels: 1,
		ArraySize: 1,
		Format:    dxgi.DXGI_FORMAT_B8G8R8A8_UNORM,
		Usage:     gd3d11.D3D11_USAGE_DEFAULT,
		BindFlags: bindUnorderedAccess,
	}
	desc.SampleDesc.Count = 1

	var out *gd3d11.ID3D11Texture2D
	var uav *d3d11.UnorderedAccessView
	err := t.dev.Do(func() error {
		hr := t.dev.D3D11().D3D.CreateTexture2D(&desc, &out)
		if hr < 0 {
			return fmt.Errorf("CreateTexture2D: hresult 0x%08x", uint32(hr))
		}
		var e error
		uav, e = t.dev.D3D11().CreateTextureUAV(unsafe.Pointer(out))
		return e
	})
	if err != nil {
		return &ErrResourceCreationFailed{Reason: err}
	}

	t.output = out
	t.uav = uav
	t.width = width
	t.height = height
	log.Info("tone-map output texture (re)allocated", "width", width, "height", height)
	return nil
}

func (t *ToneMapper) releaseOutput() {
	if t.uav != nil {
		t.uav.Release()
		t.uav = nil
	}
	if t.output != nil {
		t.output.Release()
		t.output = nil
	}
}

// Apply tone-maps source (the captured scRGB float16 texture, of the
// given dimensions) into the tone-mapper's persistent Bgra8 output
// texture and returns it. The returned texture's identity is stable
// across calls with unchanged dimensions; texture.Reader treats it like
// any other GPU source and copies it out to a staging surface.
func (t *ToneMapper) Apply(source unsafe.Pointer, width, height uint32, sdrWhiteNits, assumedSourcePeakNits float32) (*gd3d11.ID3D11Texture2D, error) {
	if err := t.ensureOutput(width, height); err != nil {
		return nil, err
	}

	payload := constants{
		SdrWhiteNits:          sdrWhiteNits,
		AssumedSourcePeakNits: assumedSourcePeakNits,
		Width:                 width,
		Height:                height,
	}

	err := t.dev.Do(func() error {
		srv, e := t.dev.D3D11().CreateTextureSRV(source)
		if e != nil {
			return e
		}
		defer srv.Release()

		if e := t.dev.D3D11().UpdateBuffer(t.cbuf, constantsBytes(&payload)); e != nil {
			return e
		}

		groupsX := (width + threadGroupSize - 1) / threadGroupSize
		groupsY := (height + threadGroupSize - 1) / threadGroupSize
		t.dev.D3D11().Dispatch(t.cs, srv, t.uav, t.cbuf, groupsX, groupsY)
		return nil
	})
	if err != nil {
		return nil, &ErrResourceCreationFailed{Reason: err}
	}
	return t.output, nil
}

// Close releases the output texture, UAV, constant buffer and compiled
// shader. Best-effort and safe to call multiple times.
func (t *ToneMapper) Close() {
	t.releaseOutput()
	if t.cbuf != nil {
		t.cbuf.Release()
		t.cbuf = nil
	}
	if t.cs != nil {
		t.cs.Release()
		t.cs = nil
	}
}
