package wgc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"
)

var (
	iidFramePoolStatics2 = guidFrom("{D5EA2533-2329-4DA7-9A34-0395F6F81FA0}")
	iidFramePool         = guidFrom("{37D23C62-686C-5EEA-A913-E94C3C34F9D2}")
	iidCaptureSession     = guidFrom("{2C39AE40-7D2E-5044-804E-8B1D21D8EEB6}")
	iidCaptureFrame       = guidFrom("{0BA6BA31-D3BA-51F8-B670-A2F5B1AC7459}")
	iidDxgiInterfaceAccess = guidFrom("{A9B3D012-3DF2-4EE3-B8D1-8695F457D3C1}")
	iidD3D11Texture2D      = guidFrom("{6F15AAF2-D208-4E89-9AB4-489535D34F9C}")
)

const classFramePool = "Windows.Graphics.Capture.Direct3D11CaptureFramePool"

// DirectXPixelFormat values, reusing the DXGI_FORMAT numbering the WinRT
// projection documents for this enum.
const (
	PixelFormatB8G8R8A8UIntNormalized = 87
	PixelFormatR16G16B16A16Float      = 10
)

// vtable slots, relative to the 6 shared IUnknown+IInspectable slots every
// WinRT interface in this package carries.
const (
	slotPoolAddFrameArrived    = 6
	slotPoolRemoveFrameArrived = 7
	slotPoolRecreate           = 8
	slotPoolTryGetNextFrame    = 9
	slotPoolClose              = 10
	slotPoolCreateCaptureSession = 11

	slotSessionStartCapture = 6

	slotFrameGetSurface        = 6
	slotFrameGetRelativeTime   = 7
	slotFrameGetContentSize    = 8
)

const slotGetInterface = 3 // IDirect3DDxgiInterfaceAccess, IUnknown-derived only

type timeSpan struct{ Duration int64 }

// FramePool wraps an IDirect3D11CaptureFramePool created in free-threaded
// mode, so its FrameArrived callback can fire on a compositor thread while
// the caller thread independently calls TryGetNextFrame.
type FramePool struct {
	ptr     unsafe.Pointer
	session unsafe.Pointer

	mu       sync.Mutex
	arrived  uint64
	closed   atomic.Bool
	cond     *sync.Cond
}

// NewFreeThreaded creates a frame pool against item with the given pixel
// format, buffer depth, and initial size, created in free-threaded mode
// so the compositor's frame-arrived callback can fire off the caller's
// thread.
func NewFreeThreaded(device unsafe.Pointer, item *Item, pixelFormat int32, bufferCount int32, width, height int32) (*FramePool, error) {
	factory, err := activateFactory(classFramePool, iidFramePoolStatics2)
	if err != nil {
		return nil, err
	}
	defer release(factory)

	var out unsafe.Pointer
	vtbl := *(*uintptr)(factory)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + 6*unsafe.Sizeof(uintptr(0)))) // CreateFreeThreaded
	sz := sizeInt32x2{Width: width, Height: height}
	ret, _, _ := syscall.SyscallN(fn,
		uintptr(factory),
		uintptr(device),
		uintptr(pixelFormat),
		uintptr(bufferCount),
		uintptr(unsafe.Pointer(&sz)),
		uintptr(unsafe.Pointer(&out)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: CreateFreeThreaded: hresult 0x%08x", uint32(hr))
	}

	fp := &FramePool{ptr: out}
	fp.cond = sync.NewCond(&fp.mu)
	if err := fp.subscribe(); err != nil {
		fp.Close()
		return nil, err
	}

	session, err := fp.createSession(item)
	if err != nil {
		fp.Close()
		return nil, err
	}
	fp.session = session
	return fp, nil
}

func (fp *FramePool) createSession(item *Item) (unsafe.Pointer, error) {
	vtbl := *(*uintptr)(fp.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotPoolCreateCaptureSession*unsafe.Sizeof(uintptr(0))))
	var out unsafe.Pointer
	ret, _, _ := syscall.SyscallN(fn, uintptr(fp.ptr), uintptr(item.ptr), uintptr(unsafe.Pointer(&out)))
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: CreateCaptureSession: hresult 0x%08x", uint32(hr))
	}
	return out, nil
}

// StartCapture begins delivering frames to the pool. Must be called once,
// after subscribing to FrameArrived.
func (fp *FramePool) StartCapture() error {
	vtbl := *(*uintptr)(fp.session)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotSessionStartCapture*unsafe.Sizeof(uintptr(0))))
	ret, _, _ := syscall.SyscallN(fn, uintptr(fp.session))
	if hr := int32(ret); hr < 0 {
		return fmt.Errorf("wgc: StartCapture: hresult 0x%08x", uint32(hr))
	}
	return nil
}

// subscribe registers a delegate for FrameArrived that does nothing but
// bump the arrival counter and wake any Fresh/Latest waiter. It performs
// no GPU work of its own.
func (fp *FramePool) subscribe() error {
	handler := newTypedEventHandler(func() {
		fp.mu.Lock()
		fp.arrived++
		fp.cond.Broadcast()
		fp.mu.Unlock()
	})

	vtbl := *(*uintptr)(fp.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotPoolAddFrameArrived*unsafe.Sizeof(uintptr(0))))
	var token int64
	ret, _, _ := syscall.SyscallN(fn, uintptr(fp.ptr), uintptr(unsafe.Pointer(handler)), uintptr(unsafe.Pointer(&token)))
	if hr := int32(ret); hr < 0 {
		return fmt.Errorf("wgc: add_FrameArrived: hresult 0x%08x", uint32(hr))
	}
	return nil
}

// ResetArrivalCounter zeroes the counter, used by the Fresh discipline
// before it drains buffered frames so an arrival mid-drain is still seen.
func (fp *FramePool) ResetArrivalCounter() {
	fp.mu.Lock()
	fp.arrived = 0
	fp.mu.Unlock()
}

// WaitArrival blocks until the arrival counter is non-zero, the pool is
// closed, or timeoutMs elapses. It returns (sawArrival, closed).
func (fp *FramePool) WaitArrival(timeoutMs int) (sawArrival bool, closed bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.arrived > 0 || fp.closed.Load() {
		return fp.arrived > 0, fp.closed.Load()
	}

	timedOut := false
	timer := time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		fp.mu.Lock()
		timedOut = true
		fp.cond.Broadcast()
		fp.mu.Unlock()
	})
	defer timer.Stop()

	for fp.arrived == 0 && !fp.closed.Load() && !timedOut {
		fp.cond.Wait()
	}
	return fp.arrived > 0, fp.closed.Load()
}

// TryGetNextFrame polls the pool non-blockingly for the next buffered
// frame, returning (nil, nil) when the pool is currently empty.
func (fp *FramePool) TryGetNextFrame() (*Frame, error) {
	vtbl := *(*uintptr)(fp.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotPoolTryGetNextFrame*unsafe.Sizeof(uintptr(0))))
	var out unsafe.Pointer
	ret, _, _ := syscall.SyscallN(fn, uintptr(fp.ptr), uintptr(unsafe.Pointer(&out)))
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: TryGetNextFrame: hresult 0x%08x", uint32(hr))
	}
	if out == nil {
		return nil, nil
	}
	return &Frame{ptr: out}, nil
}

// Recreate resizes the pool's internal surfaces, called when the capture
// item's content size changes.
func (fp *FramePool) Recreate(device unsafe.Pointer, pixelFormat int32, bufferCount int32, width, height int32) error {
	vtbl := *(*uintptr)(fp.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotPoolRecreate*unsafe.Sizeof(uintptr(0))))
	sz := sizeInt32x2{Width: width, Height: height}
	ret, _, _ := syscall.SyscallN(fn,
		uintptr(fp.ptr),
		uintptr(device),
		uintptr(pixelFormat),
		uintptr(bufferCount),
		uintptr(unsafe.Pointer(&sz)),
	)
	if hr := int32(ret); hr < 0 {
		return fmt.Errorf("wgc: Recreate: hresult 0x%08x", uint32(hr))
	}
	return nil
}

// Close stops the pool, raises the poisoned arrival signal one final time
// (WaitArrival's closed=true return), and releases its COM references.
func (fp *FramePool) Close() {
	if fp.closed.Swap(true) {
		return
	}
	fp.mu.Lock()
	fp.cond.Broadcast()
	fp.mu.Unlock()

	if fp.ptr != nil {
		vtbl := *(*uintptr)(fp.ptr)
		fn := *(*uintptr)(unsafe.Pointer(vtbl + slotPoolClose*unsafe.Sizeof(uintptr(0))))
		syscall.SyscallN(fn, uintptr(fp.ptr))
	}
	release(fp.session)
	release(fp.ptr)
}

// Frame wraps one IDirect3D11CaptureFrame. Close returns it to the
// compositor's pool.
type Frame struct {
	ptr unsafe.Pointer
}

// Close releases the frame's COM reference, equivalent to the frame going
// back to the compositor's pool.
func (f *Frame) Close() {
	release(f.ptr)
	f.ptr = nil
}

// ContentSize returns the frame's observed content dimensions.
func (f *Frame) ContentSize() (int32, int32, error) {
	vtbl := *(*uintptr)(f.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotFrameGetContentSize*unsafe.Sizeof(uintptr(0))))
	var sz sizeInt32x2
	ret, _, _ := syscall.SyscallN(fn, uintptr(f.ptr), uintptr(unsafe.Pointer(&sz)))
	if hr := int32(ret); hr < 0 {
		return 0, 0, fmt.Errorf("wgc: get_ContentSize: hresult 0x%08x", uint32(hr))
	}
	return sz.Width, sz.Height, nil
}

// TimestampSeconds returns the frame's SystemRelativeTime converted from
// 100ns ticks to seconds.
func (f *Frame) TimestampSeconds() (float64, error) {
	vtbl := *(*uintptr)(f.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotFrameGetRelativeTime*unsafe.Sizeof(uintptr(0))))
	var ts timeSpan
	ret, _, _ := syscall.SyscallN(fn, uintptr(f.ptr), uintptr(unsafe.Pointer(&ts)))
	if hr := int32(ret); hr < 0 {
		return 0, fmt.Errorf("wgc: get_SystemRelativeTime: hresult 0x%08x", uint32(hr))
	}
	return float64(ts.Duration) / 1e7, nil
}

// Texture returns the raw ID3D11Texture2D COM pointer backing the frame's
// Direct3DSurface, obtained via IDirect3DDxgiInterfaceAccess::GetInterface
// with IID_ID3D11Texture2D. The returned pointer's lifetime is tied to the
// frame; callers must not use it after f.Close().
func (f *Frame) Texture() (unsafe.Pointer, error) {
	vtbl := *(*uintptr)(f.ptr)
	getSurface := *(*uintptr)(unsafe.Pointer(vtbl + slotFrameGetSurface*unsafe.Sizeof(uintptr(0))))
	var surface unsafe.Pointer
	ret, _, _ := syscall.SyscallN(getSurface, uintptr(f.ptr), uintptr(unsafe.Pointer(&surface)))
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: get_Surface: hresult 0x%08x", uint32(hr))
	}
	defer release(surface)

	access, err := queryInterface(surface, iidDxgiInterfaceAccess)
	if err != nil {
		return nil, fmt.Errorf("wgc: IDirect3DDxgiInterfaceAccess: %w", err)
	}
	defer release(access)

	svtbl := *(*uintptr)(access)
	getIface := *(*uintptr)(unsafe.Pointer(svtbl + slotGetInterface*unsafe.Sizeof(uintptr(0))))
	var texture unsafe.Pointer
	ret, _, _ = syscall.SyscallN(getIface, uintptr(access), uintptr(unsafe.Pointer(iidD3D11Texture2D)), uintptr(unsafe.Pointer(&texture)))
	_ = ret
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: GetInterface(ID3D11Texture2D): hresult 0x%08x", uint32(hr))
	}
	return texture, nil
}
