package wgc

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	iidGraphicsCaptureItemInterop = guidFrom("{3628E81B-3CAC-4C60-B7F4-23CE0E0C3356}")
	iidGraphicsCaptureItem        = guidFrom("{79C3F95B-31F7-4EC2-A464-632EF5D30760}")
)

const classGraphicsCaptureItem = "Windows.Graphics.Capture.GraphicsCaptureItem"

// vtable slots on IGraphicsCaptureItemInterop, which sits directly after
// IUnknown's three slots.
const (
	slotCreateForWindow  = 3
	slotCreateForMonitor = 4
)

// Item wraps a Windows.Graphics.Capture.GraphicsCaptureItem COM pointer.
type Item struct {
	ptr unsafe.Pointer
}

// Release drops the item's COM reference.
func (it *Item) Release() {
	release(it.ptr)
	it.ptr = nil
}

func interopFactory() (unsafe.Pointer, error) {
	return activateFactory(classGraphicsCaptureItem, iidGraphicsCaptureItemInterop)
}

// CreateItemForMonitor builds a GraphicsCaptureItem targeting an entire
// monitor, the compositor-facing counterpart of a target.CaptureTarget's
// Monitor variant.
func CreateItemForMonitor(hmonitor uintptr) (*Item, error) {
	interop, err := interopFactory()
	if err != nil {
		return nil, err
	}
	defer release(interop)

	var out unsafe.Pointer
	vtbl := *(*uintptr)(interop)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotCreateForMonitor*unsafe.Sizeof(uintptr(0))))
	ret, _, _ := syscall.SyscallN(fn,
		uintptr(interop),
		hmonitor,
		uintptr(unsafe.Pointer(iidGraphicsCaptureItem)),
		uintptr(unsafe.Pointer(&out)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: CreateForMonitor: hresult 0x%08x", uint32(hr))
	}
	return &Item{ptr: out}, nil
}

// CreateItemForWindow builds a GraphicsCaptureItem targeting one top-level
// window.
func CreateItemForWindow(hwnd uintptr) (*Item, error) {
	interop, err := interopFactory()
	if err != nil {
		return nil, err
	}
	defer release(interop)

	var out unsafe.Pointer
	vtbl := *(*uintptr)(interop)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotCreateForWindow*unsafe.Sizeof(uintptr(0))))
	ret, _, _ := syscall.SyscallN(fn,
		uintptr(interop),
		hwnd,
		uintptr(unsafe.Pointer(iidGraphicsCaptureItem)),
		uintptr(unsafe.Pointer(&out)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: CreateForWindow: hresult 0x%08x", uint32(hr))
	}
	return &Item{ptr: out}, nil
}

// sizeInt32x2 mirrors the Windows.Graphics.SizeInt32 struct GetSize
// returns: two signed 32-bit pixel dimensions.
type sizeInt32x2 struct {
	Width, Height int32
}

// IGraphicsCaptureItem vtable, after 3 IUnknown + 3 IInspectable slots:
// 6 add_Closed, 7 remove_Closed, 8 get_DisplayName, 9 get_Size.
const slotItemGetSize = 9

// Size returns the item's current content size in physical pixels.
func (it *Item) Size() (width, height int32, err error) {
	var sz sizeInt32x2
	vtbl := *(*uintptr)(it.ptr)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + slotItemGetSize*unsafe.Sizeof(uintptr(0))))
	ret, _, _ := syscall.SyscallN(fn, uintptr(it.ptr), uintptr(unsafe.Pointer(&sz)))
	if hr := int32(ret); hr < 0 {
		return 0, 0, fmt.Errorf("wgc: GraphicsCaptureItem.Size: hresult 0x%08x", uint32(hr))
	}
	return sz.Width, sz.Height, nil
}
