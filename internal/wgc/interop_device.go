package wgc

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	d3d11dll                               = syscall.NewLazyDLL("d3d11.dll")
	procCreateDirect3D11DeviceFromDXGIDevice = d3d11dll.NewProc("CreateDirect3D11DeviceFromDXGIDevice")
)

// WrapD3DDevice adapts a raw IDXGIDevice (obtained by QueryInterface'ing
// internal/d3d11's ID3D11Device) into the IDirect3DDevice WinRT wrapper
// that Direct3D11CaptureFramePool.CreateFreeThreaded requires. This is the
// one bridge point between the classic-COM D3D11 world internal/d3d11
// lives in and the WinRT world this package lives in.
func WrapD3DDevice(dxgiDevice unsafe.Pointer) (unsafe.Pointer, error) {
	var out unsafe.Pointer
	ret, _, _ := procCreateDirect3D11DeviceFromDXGIDevice.Call(
		uintptr(dxgiDevice),
		uintptr(unsafe.Pointer(&out)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("wgc: CreateDirect3D11DeviceFromDXGIDevice: hresult 0x%08x", uint32(hr))
	}
	return out, nil
}
