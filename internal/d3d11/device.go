// Package d3d11 extends github.com/kirides/go-d3d's device/texture/surface
// bindings with the compute-shader surface that package does not cover:
// shader compilation, shader resource and unordered access views, constant
// buffers, and dispatch. It follows the same syscall.NewLazyDLL plus
// vtable-method-pointer idiom go-d3d itself uses for COM calls, and the
// NewLazyDLL/NewProc style used elsewhere in this module for plain entry
// points.
package d3d11

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/kirides/go-d3d/d3d11"
)

var (
	d3d11dll             = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11dll.NewProc("D3D11CreateDevice")
)

const (
	driverTypeHardware = 1 // D3D_DRIVER_TYPE_HARDWARE
	sdkVersion         = 7 // D3D11_SDK_VERSION

	createDeviceBgraSupport    = 0x20 // D3D11_CREATE_DEVICE_BGRA_SUPPORT
	createDeviceSingleThreaded = 0x1  // D3D11_CREATE_DEVICE_SINGLETHREADED (not used; see Device)
)

var featureLevels = []uint32{
	0xb000, // D3D_FEATURE_LEVEL_11_0
	0xa100, // D3D_FEATURE_LEVEL_10_1
	0xa000, // D3D_FEATURE_LEVEL_10_0
}

// Device bundles an ID3D11Device with its immediate context. D3D11
// immediate contexts are not free-threaded: every method called through
// Context must be serialized by the caller. device.Component guards this
// with a mutex; this type just holds the two pointers go-d3d's API
// expects everywhere.
type Device struct {
	D3D          *d3d11.ID3D11Device
	Context      *d3d11.ID3D11DeviceContext
	FeatureLevel uint32
}

// CreateDevice creates a hardware D3D11 device with BGRA support enabled,
// which Direct3D11CaptureFramePool construction requires.
func CreateDevice() (*Device, error) {
	var dev *d3d11.ID3D11Device
	var ctx *d3d11.ID3D11DeviceContext
	var featureLevel uint32

	ret, _, _ := procD3D11CreateDevice.Call(
		0, // pAdapter
		uintptr(driverTypeHardware),
		0, // Software
		uintptr(createDeviceBgraSupport),
		uintptr(unsafe.Pointer(&featureLevels[0])),
		uintptr(len(featureLevels)),
		uintptr(sdkVersion),
		uintptr(unsafe.Pointer(&dev)),
		uintptr(unsafe.Pointer(&featureLevel)),
		uintptr(unsafe.Pointer(&ctx)),
	)
	if hr := int32(ret); hr < 0 {
		return nil, fmt.Errorf("d3d11: D3D11CreateDevice: hresult 0x%08x", uint32(hr))
	}

	if err := enableMultithreadProtection(ctx); err != nil {
		dev.Release()
		ctx.Release()
		return nil, fmt.Errorf("d3d11: enabling multithread protection: %w", err)
	}

	return &Device{D3D: dev, Context: ctx, FeatureLevel: featureLevel}, nil
}

// iidID3D11Multithread is ID3D11Multithread's well-known interface id.
var iidID3D11Multithread = guid{0x9b7e4e00, 0x342c, 0x4106, [8]byte{0xa1, 0x9f, 0x4f, 0x27, 0x04, 0xf6, 0x89, 0xf0}}

const slotMultithreadSetMultithreadProtected = 5 // IUnknown(0-2), Enter(3), Leave(4), SetMultithreadProtected(5)

// enableMultithreadProtection turns on D3D11's own cross-thread guard via
// ID3D11Multithread::SetMultithreadProtected(TRUE). WGC delivers
// frame-arrived callbacks on a compositor-owned native thread that never
// runs Go code, so device.Component's mutex alone cannot serialize against
// it; this is the primitive that actually does.
func enableMultithreadProtection(ctx *d3d11.ID3D11DeviceContext) error {
	var mt unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(ctx), 0,
		uintptr(unsafe.Pointer(&iidID3D11Multithread)),
		uintptr(unsafe.Pointer(&mt)),
	)
	if err != nil {
		return fmt.Errorf("QueryInterface(ID3D11Multithread): %w", err)
	}
	defer release(mt)

	rawVtblCall(mt, slotMultithreadSetMultithreadProtected, 1 /* TRUE */)
	return nil
}

// guid mirrors the Win32 GUID layout so IID_IDXGIDevice can be passed
// straight to QueryInterface without pulling in a GUID-parsing library
// for a single well-known interface id.
type guid struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

var iidIDXGIDevice = guid{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}

// DXGIDevice returns the IDXGIDevice view of the device, the bridge
// internal/wgc.WrapD3DDevice needs to hand the device to
// Direct3D11CaptureFramePool.CreateFreeThreaded.
func (d *Device) DXGIDevice() (unsafe.Pointer, error) {
	var out unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(d.D3D), 0,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return nil, fmt.Errorf("d3d11: QueryInterface(IDXGIDevice): %w", err)
	}
	return out, nil
}

// Release releases the device and context COM references.
func (d *Device) Release() {
	if d.Context != nil {
		d.Context.Release()
		d.Context = nil
	}
	if d.D3D != nil {
		d.D3D.Release()
		d.D3D = nil
	}
}
