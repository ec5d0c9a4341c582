// Package texture implements a reusable CPU-readable staging surface and
// pinned host buffer that copies a GPU texture back to CPU memory and
// strips row-pitch padding, the same staging-texture-plus-row-pitch-
// stripping dance as go-d3d's own output-duplication package
// (outputduplication/output_duplication.go's initializeStage/GetImage).
package texture

import (
	"fmt"
	"unsafe"

	"github.com/kirides/go-d3d/d3d11"
	"github.com/kirides/go-d3d/dxgi"

	"github.com/jipaix/hdrshot/capture"
	"github.com/jipaix/hdrshot/device"
	"github.com/jipaix/hdrshot/internal/logging"
)

var log = logging.L("texture")

// ErrStagingMapFailed indicates the staging texture could not be mapped
// for CPU read. Never retried internally.
type ErrStagingMapFailed struct {
	Reason error
}

func (e *ErrStagingMapFailed) Error() string {
	return fmt.Sprintf("texture: staging map failed: %v", e.Reason)
}

func (e *ErrStagingMapFailed) Unwrap() error { return e.Reason }

// CropRect selects a sub-rectangle of the source texture to read back,
// relative to its (0,0) top-left corner, for trimming window chrome off a
// headless window capture before it ever reaches the host buffer.
type CropRect struct {
	OffsetX, OffsetY uint32
	Width, Height    uint32
}

func dxgiFormat(f capture.PixelFormat) dxgi.DXGI_FORMAT {
	if f == capture.FormatRgba16f {
		return dxgi.DXGI_FORMAT_R16G16B16A16_FLOAT
	}
	return dxgi.DXGI_FORMAT_B8G8R8A8_UNORM
}

// Reader owns one staging texture sized to the last observed dimensions
// and a reusable host-side byte buffer that only ever grows.
type Reader struct {
	dev *device.Component

	width, height uint32
	format        capture.PixelFormat

	staging *d3d11.ID3D11Texture2D
	surface *dxgi.IDXGISurface

	buf []byte
}

// NewReader constructs an empty reader; its staging texture is allocated
// lazily on the first Read call, since there is no initial size to
// pre-allocate against before the first frame arrives.
func NewReader(dev *device.Component, format capture.PixelFormat) *Reader {
	return &Reader{dev: dev, format: format}
}

// ensureStaging allocates or reallocates the staging texture when its
// dimensions or format no longer match what's requested. A staging
// texture must match the source exactly, so the reader only reallocates
// on an exact size change — it never holds onto a stale one.
func (r *Reader) ensureStaging(width, height uint32) error {
	if r.staging != nil && width == r.width && height == r.height {
		return nil
	}
	r.releaseStaging()

	desc := d3d11.D3D11_TEXTURE2D_DESC{
		Width:     width,
		Height:    height,
		MipLevels: 1,
		ArraySize: 1,
		Format:    dxgiFormat(r.format),
		Usage:     d3d11.D3D11_USAGE_STAGING,
		CPUAccessFlags: d3d11.D3D11_CPU_ACCESS_READ,
	}
	desc.SampleDesc.Count = 1

	var staging *d3d11.ID3D11Texture2D
	var hr int32
	if err := r.dev.Do(func() error {
		hr = r.dev.D3D11().D3D.CreateTexture2D(&desc, &staging)
		return nil
	}); err != nil {
		return err
	}
	if hr < 0 {
		return fmt.Errorf("texture: CreateTexture2D: hresult 0x%08x", uint32(hr))
	}

	var surface *dxgi.IDXGISurface
	hr = staging.QueryInterface(dxgi.IID_IDXGISurface, &surface)
	if hr < 0 {
		staging.Release()
		return fmt.Errorf("texture: QueryInterface(IDXGISurface): hresult 0x%08x", uint32(hr))
	}

	r.staging = staging
	r.surface = surface
	r.width = width
	r.height = height
	log.Info("staging texture (re)allocated", "width", width, "height", height, "format", r.format)
	return nil
}

func (r *Reader) releaseStaging() {
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
	if r.staging != nil {
		r.staging.Release()
		r.staging = nil
	}
}

// Read copies source into the staging texture, maps it, and returns a
// reader-owned byte slice with row-pitch padding stripped. The slice is
// only valid until the next call to Read; the Pipeline must copy it out
// before releasing the frame it came from. crop, when non-nil, restricts
// the returned bytes to that sub-rectangle of source instead of the full
// width/height — the staging texture and GPU copy still cover the whole
// source, since the crop is a CPU-side readback offset, not a resize.
func (r *Reader) Read(source *d3d11.ID3D11Texture2D, width, height uint32, crop *CropRect) ([]byte, error) {
	if err := r.ensureStaging(width, height); err != nil {
		return nil, err
	}

	outWidth, outHeight := width, height
	if crop != nil {
		outWidth, outHeight = crop.Width, crop.Height
	}
	rowBytes := int(outWidth) * r.format.BytesPerPixel()
	needed := rowBytes * int(outHeight)
	if cap(r.buf) < needed {
		r.buf = make([]byte, needed)
	}
	r.buf = r.buf[:needed]

	var mapped dxgi.DXGI_MAPPED_RECT
	var hr int32
	err := r.dev.Do(func() error {
		r.dev.D3D11().Context.CopyResource2D(r.staging, source)
		hr = r.surface.Map(&mapped, dxgi.DXGI_MAP_READ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if hr < 0 {
		return nil, &ErrStagingMapFailed{Reason: fmt.Errorf("hresult 0x%08x", uint32(hr))}
	}
	defer r.surface.Unmap()

	if crop != nil {
		bytesPerPixel := uintptr(r.format.BytesPerPixel())
		offset := uintptr(crop.OffsetY)*uintptr(mapped.Pitch) + uintptr(crop.OffsetX)*bytesPerPixel
		mapped.PBits = unsafe.Add(mapped.PBits, offset)
	}

	stripRowPitch(r.buf, mapped, rowBytes, int(outHeight))
	return r.buf, nil
}

// Close releases the staging texture and its surface view.
func (r *Reader) Close() {
	r.releaseStaging()
}
