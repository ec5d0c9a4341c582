package capture

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/jipaix/hdrshot/device"
	"github.com/jipaix/hdrshot/internal/d3d11"
	iwin "github.com/jipaix/hdrshot/internal/win"
	"github.com/jipaix/hdrshot/internal/wgc"
	"github.com/jipaix/hdrshot/target"
)

// bufferCount is the frame pool depth: at least 2 so frame-arrived can
// fire on the compositor thread while the caller is still draining the
// previous buffer.
const bufferCount = 2

// freshTimeoutMs bounds the Fresh discipline's wait for the next arrival.
const freshTimeoutMs = 1000

// wgcPixelFormat is the DirectXPixelFormat the frame pool is asked to
// produce. It tracks whether the source is HDR, not the Pipeline's final
// output PixelFormat: a Bgra8 output with an HDR source still needs
// scRGB frames from the compositor so the tone mapper has something to
// map from.
func wgcPixelFormat(isHDR bool) int32 {
	if isHDR {
		return wgc.PixelFormatR16G16B16A16Float
	}
	return wgc.PixelFormatB8G8R8A8UIntNormalized
}

func resolveItem(tgt target.CaptureTarget) (*wgc.Item, error) {
	if tgt.Kind == target.KindWindow {
		return wgc.CreateItemForWindow(uintptr(tgt.WindowHandle))
	}
	return wgc.CreateItemForMonitor(uintptr(tgt.MonitorHandle))
}

func describeTarget(tgt target.CaptureTarget) string {
	if tgt.Kind == target.KindWindow {
		return fmt.Sprintf("window(hwnd=%v)", tgt.WindowHandle)
	}
	return fmt.Sprintf("monitor(%s)", tgt.MonitorDevice)
}

// wrapDevice QueryInterfaces dev's D3D11 device down to IDXGIDevice and
// bridges it to the WinRT IDirect3DDevice the frame pool API expects,
// releasing the intermediate IDXGIDevice reference once the bridge holds
// its own.
func wrapDevice(dev *device.Component) (unsafe.Pointer, error) {
	dxgiDevice, err := dev.D3D11().DXGIDevice()
	if err != nil {
		return nil, err
	}
	defer d3d11.ReleaseUnknown(dxgiDevice)
	return wgc.WrapD3DDevice(dxgiDevice)
}

// AcquiredFrame bundles a live wgc.Frame with the geometry and timestamp
// a caller needs before handing it to the tone mapper or texture reader.
// Release returns it to the compositor's pool.
type AcquiredFrame struct {
	frame         *wgc.Frame
	Width, Height int32
	TimestampSec  float64
	// Crop is non-nil when the session's target is a headless window
	// capture, and gives the client-area sub-rectangle the caller should
	// read back instead of the full Width x Height.
	Crop *iwin.ClientAreaCrop
}

// Texture returns the frame's backing D3D11 texture. Its lifetime is
// tied to the AcquiredFrame; callers must not use it after Release.
func (a *AcquiredFrame) Texture() (unsafe.Pointer, error) { return a.frame.Texture() }

// Release returns the frame to the compositor's pool.
func (a *AcquiredFrame) Release() { a.frame.Close() }

// Session owns a WGC frame pool against one CaptureTarget and exposes
// the Fresh/Latest acquisition disciplines.
type Session struct {
	dev    *device.Component
	item   *wgc.Item
	pool   *wgc.FramePool
	format int32
	tgt    target.CaptureTarget

	width, height atomic.Int32
}

// NewSession resolves target into a GraphicsCaptureItem, wraps dev's
// D3D11 device for WinRT, and creates a free-threaded frame pool sized
// to the item's current content size. isHDR is the White-Level Probe's
// verdict for the target's monitor, and determines the pool's pixel
// format, not the Pipeline's chosen output format.
func NewSession(dev *device.Component, tgt target.CaptureTarget, isHDR bool) (*Session, error) {
	item, err := resolveItem(tgt)
	if err != nil {
		return nil, &ErrSessionStartFailed{Target: describeTarget(tgt), Reason: err}
	}

	width, height, err := item.Size()
	if err != nil {
		item.Release()
		return nil, &ErrSessionStartFailed{Target: describeTarget(tgt), Reason: err}
	}

	wrapped, err := wrapDevice(dev)
	if err != nil {
		item.Release()
		return nil, &ErrSessionStartFailed{Target: describeTarget(tgt), Reason: err}
	}

	format := wgcPixelFormat(isHDR)
	pool, err := wgc.NewFreeThreaded(wrapped, item, format, bufferCount, width, height)
	if err != nil {
		item.Release()
		return nil, &ErrSessionStartFailed{Target: describeTarget(tgt), Reason: err}
	}

	s := &Session{dev: dev, item: item, pool: pool, format: format, tgt: tgt}
	s.width.Store(width)
	s.height.Store(height)
	log.Info("capture session created", "target", describeTarget(tgt), "width", width, "height", height, "hdr", isHDR)
	return s, nil
}

// Start begins delivering frames to the pool.
func (s *Session) Start() error {
	if err := s.pool.StartCapture(); err != nil {
		return err
	}
	return nil
}

// wrap reads a frame's size and timestamp, reconciling the session's
// expected dimensions before handing the frame back to the caller.
func (s *Session) wrap(f *wgc.Frame) (*AcquiredFrame, error) {
	w, h, err := f.ContentSize()
	if err != nil {
		f.Close()
		return nil, err
	}
	ts, err := f.TimestampSeconds()
	if err != nil {
		f.Close()
		return nil, err
	}
	s.handleResize(w, h)
	return &AcquiredFrame{frame: f, Width: w, Height: h, TimestampSec: ts, Crop: s.headlessCrop()}, nil
}

// headlessCrop computes the current client-area crop for a headless
// window target. The window can move, resize, or have its chrome change
// between frames, so this is recomputed per frame rather than cached.
// Best-effort: a failed lookup (e.g. the window just closed) falls back
// to the uncropped frame instead of failing the whole capture.
func (s *Session) headlessCrop() *iwin.ClientAreaCrop {
	if s.tgt.Kind != target.KindWindow || !s.tgt.Headless {
		return nil
	}
	crop, err := iwin.ClientAreaCropFor(s.tgt.WindowHandle)
	if err != nil {
		log.Warn("headless crop: falling back to uncropped frame", "error", err)
		return nil
	}
	return &crop
}

// handleResize recreates the pool's surfaces when the item's content
// size has changed since the last observed frame. Best-effort: a failure
// here is logged, not propagated, since the caller already has a usable
// frame at the old size.
func (s *Session) handleResize(w, h int32) {
	if w == s.width.Load() && h == s.height.Load() {
		return
	}
	wrapped, err := wrapDevice(s.dev)
	if err != nil {
		log.Warn("resize: wrapDevice failed", "error", err)
		return
	}
	if err := s.pool.Recreate(wrapped, s.format, bufferCount, w, h); err != nil {
		log.Warn("frame pool recreate failed", "error", err)
		return
	}
	s.width.Store(w)
	s.height.Store(h)
	log.Info("capture session resized", "width", w, "height", h)
}

// Capture implements the Fresh acquisition discipline: drain any
// buffered frames, then block for the next arrival with a bounded
// timeout. The returned frame is guaranteed to have been produced after
// this call began.
func (s *Session) Capture() (*AcquiredFrame, error) {
	s.pool.ResetArrivalCounter()
	for {
		f, err := s.pool.TryGetNextFrame()
		if err != nil {
			return nil, err
		}
		if f == nil {
			break
		}
		f.Close()
	}

	sawArrival, closed := s.pool.WaitArrival(freshTimeoutMs)
	if closed {
		return nil, &ErrSessionClosed{}
	}
	if !sawArrival {
		return nil, &ErrTimeout{WaitedMs: freshTimeoutMs}
	}

	f, err := s.pool.TryGetNextFrame()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, &ErrTimeout{WaitedMs: freshTimeoutMs}
	}
	return s.wrap(f)
}

// Grab implements the Latest acquisition discipline: drain the pool
// keeping only the most recent frame, falling back to the Fresh protocol
// once if the pool was empty. Lowest possible latency, but the returned
// frame may predate this call.
func (s *Session) Grab() (*AcquiredFrame, error) {
	var latest *wgc.Frame
	for {
		f, err := s.pool.TryGetNextFrame()
		if err != nil {
			if latest != nil {
				latest.Close()
			}
			return nil, err
		}
		if f == nil {
			break
		}
		if latest != nil {
			latest.Close()
		}
		latest = f
	}

	if latest == nil {
		return s.Capture()
	}
	return s.wrap(latest)
}

// Close stops frame delivery and releases the pool and item. Best-effort
// and idempotent through FramePool.Close.
func (s *Session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.item != nil {
		s.item.Release()
		s.item = nil
	}
}
