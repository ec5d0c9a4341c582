// Package wgc binds the subset of Windows.Graphics.Capture (WGC) and its
// Direct3D11 interop surface that capture.Session needs: turning a
// CaptureTarget's monitor/window handle into a GraphicsCaptureItem,
// building a free-threaded Direct3D11CaptureFramePool against it, starting
// a GraphicsCaptureSession, and pulling frames back out as raw D3D11
// texture pointers.
//
// No Go WinRT binding exists for this surface, so it is written
// first-party in the same raw syscall/vtable idiom used elsewhere for
// Win32 and in internal/d3d11 for D3D11 COM, using github.com/go-ole/go-ole
// only for GUID representation the way LanternOps-breeze's
// patching/windows.go uses it for classic COM; IUnknown reference counting
// is done with this package's own vtable calls.
package wgc

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"

	"github.com/jipaix/hdrshot/internal/logging"
)

var log = logging.L("wgc")

var (
	combase               = syscall.NewLazyDLL("combase.dll")
	procRoInitialize      = combase.NewProc("RoInitialize")
	procRoGetActivationFactory = combase.NewProc("RoGetActivationFactory")
	procWindowsCreateString = combase.NewProc("WindowsCreateString")
	procWindowsDeleteString = combase.NewProc("WindowsDeleteString")
)

const roInitMultiThreaded = 1

// Init initializes the Windows Runtime on the calling OS thread in
// multi-threaded apartment mode. Capture callbacks arrive on compositor
// threads, so every goroutine that touches a wgc object must call this
// once (locked to its OS thread) before doing so; RoInitialize tolerates
// being called more than once per thread.
func Init() error {
	ret, _, _ := procRoInitialize.Call(uintptr(roInitMultiThreaded))
	if hr := int32(ret); hr < 0 && hr != 1 { // S_FALSE (1) means already initialized
		return fmt.Errorf("wgc: RoInitialize: hresult 0x%08x", uint32(hr))
	}
	return nil
}

// hstring holds a Windows Runtime HSTRING and must be released with
// deleteHString once no longer needed.
type hstring uintptr

func newHString(s string) (hstring, error) {
	u16, err := syscall.UTF16FromString(s)
	if err != nil {
		return 0, err
	}
	var h hstring
	ret, _, _ := procWindowsCreateString.Call(
		uintptr(unsafe.Pointer(&u16[0])),
		uintptr(len(u16)-1),
		uintptr(unsafe.Pointer(&h)),
	)
	if hr := int32(ret); hr < 0 {
		return 0, fmt.Errorf("wgc: WindowsCreateString: hresult 0x%08x", uint32(hr))
	}
	return h, nil
}

func deleteHString(h hstring) {
	if h != 0 {
		procWindowsDeleteString.Call(uintptr(h))
	}
}

// activateFactory retrieves the activation factory for a runtime class as
// the requested interface IID, passed straight to RoGetActivationFactory.
// The IID is represented as *ole.GUID, the same type LanternOps-breeze's
// COM code uses for interface identifiers.
func activateFactory(className string, iid *ole.GUID) (unsafe.Pointer, error) {
	h, err := newHString(className)
	if err != nil {
		return nil, fmt.Errorf("wgc: activating %s: %w", className, err)
	}
	defer deleteHString(h)

	var factory unsafe.Pointer
	ret, _, _ := procRoGetActivationFactory.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&factory)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: RoGetActivationFactory(%s): hresult 0x%08x", className, uint32(hr))
	}
	return factory, nil
}

// queryInterface calls IUnknown::QueryInterface (vtable slot 0) on any COM
// or WinRT object, the one method every interface in this package shares.
func queryInterface(obj unsafe.Pointer, iid *ole.GUID) (unsafe.Pointer, error) {
	vtbl := *(*uintptr)(obj)
	fn := *(*uintptr)(unsafe.Pointer(vtbl))
	var out unsafe.Pointer
	ret, _, _ := syscall.SyscallN(fn, uintptr(obj), uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: QueryInterface: hresult 0x%08x", uint32(hr))
	}
	return out, nil
}

func release(obj unsafe.Pointer) {
	if obj == nil {
		return
	}
	vtbl := *(*uintptr)(obj)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + 2*unsafe.Sizeof(uintptr(0))))
	syscall.SyscallN(fn, uintptr(obj))
}

func addRef(obj unsafe.Pointer) {
	if obj == nil {
		return
	}
	vtbl := *(*uintptr)(obj)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + 1*unsafe.Sizeof(uintptr(0))))
	syscall.SyscallN(fn, uintptr(obj))
}

// guidFrom parses a canonical "{XXXXXXXX-XXXX-...}" GUID string into an
// *ole.GUID, reusing go-ole's own parser so every IID literal in this
// package is declared the same way LanternOps-breeze declares its
// automation IIDs.
func guidFrom(s string) *ole.GUID {
	return ole.NewGUID(s)
}
