package d3d11

import (
	"fmt"
	"syscall"
	"unsafe"
)

// rawVtblCall invokes the method at the given vtable slot on a COM object
// and returns its raw return value uninterpreted, the same raw-dispatch
// idiom go-d3d uses internally for the interfaces it exposes. It exists
// here because go-d3d does not wrap the compute-shader interfaces
// (ID3D11ComputeShader, the SRV/UAV creation calls, CSSetShader, Dispatch)
// that tonemap needs.
func rawVtblCall(obj unsafe.Pointer, slot int, args ...uintptr) uintptr {
	vtbl := *(*uintptr)(obj)
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	full := make([]uintptr, 0, len(args)+1)
	full = append(full, uintptr(obj))
	full = append(full, args...)
	ret, _, _ := syscall.SyscallN(fn, full...)
	return ret
}

// vtblCall invokes an HRESULT-returning vtable method and turns a failed
// HRESULT into an error.
func vtblCall(obj unsafe.Pointer, slot int, args ...uintptr) (uintptr, error) {
	ret := rawVtblCall(obj, slot, args...)
	if hr := int32(ret); hr < 0 {
		return ret, fmt.Errorf("d3d11: hresult 0x%08x", uint32(hr))
	}
	return ret, nil
}

const (
	slotContextCSSetShaderResources       = 67
	slotContextCSSetUnorderedAccessViews  = 68
	slotContextCSSetShader                = 69
	slotContextCSSetConstantBuffers       = 71
	slotContextDispatch                   = 41
	slotContextUpdateSubresource          = 48

	slotDeviceCreateBuffer              = 3
	slotDeviceCreateShaderResourceView  = 7
	slotDeviceCreateUnorderedAccessView = 8
	slotDeviceCreateComputeShader       = 18
)

// ComputeShader, ShaderResourceView, UnorderedAccessView and Buffer are
// thin COM-pointer wrappers; Release drops the reference via IUnknown's
// vtable slot 2, shared by every D3D11/DXGI interface.
type ComputeShader struct{ ptr unsafe.Pointer }
type ShaderResourceView struct{ ptr unsafe.Pointer }
type UnorderedAccessView struct{ ptr unsafe.Pointer }
type Buffer struct{ ptr unsafe.Pointer }

func release(p unsafe.Pointer) {
	if p != nil {
		rawVtblCall(p, 2)
	}
}

// ReleaseUnknown drops one reference on an arbitrary IUnknown-derived COM
// pointer via vtable slot 2, the interface every D3D11/DXGI object
// shares. Used by callers (the capture session's resize path) that only
// borrow a QueryInterface result long enough to pass it to another API.
func ReleaseUnknown(p unsafe.Pointer) { release(p) }

func (s *ComputeShader) Release()       { release(s.ptr); s.ptr = nil }
func (s *ShaderResourceView) Release()  { release(s.ptr); s.ptr = nil }
func (s *UnorderedAccessView) Release() { release(s.ptr); s.ptr = nil }
func (s *Buffer) Release()              { release(s.ptr); s.ptr = nil }

// BufferDesc mirrors D3D11_BUFFER_DESC for the structured/constant buffers
// tonemap needs; MiscFlags/StructureByteStride are zero for constant
// buffers and set for structured buffers.
type BufferDesc struct {
	ByteWidth           uint32
	Usage               uint32
	BindFlags           uint32
	CPUAccessFlags      uint32
	MiscFlags           uint32
	StructureByteStride uint32
}

const (
	UsageDefault  = 0
	UsageDynamic  = 2
	BindConstantBuffer = 0x4
	CPUAccessWrite     = 0x10000
)

// CreateBuffer creates a D3D11 buffer, optionally seeded with initial data.
func (d *Device) CreateBuffer(desc BufferDesc, initial []byte) (*Buffer, error) {
	var sub *byte
	var subData struct {
		pSysMem          uintptr
		sysMemPitch      uint32
		sysMemSlicePitch uint32
	}
	var subPtr unsafe.Pointer
	if len(initial) > 0 {
		sub = &initial[0]
		subData.pSysMem = uintptr(unsafe.Pointer(sub))
		subPtr = unsafe.Pointer(&subData)
	}

	var out unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(d.D3D), slotDeviceCreateBuffer,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(subPtr),
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return nil, fmt.Errorf("d3d11: CreateBuffer: %w", err)
	}
	return &Buffer{ptr: out}, nil
}

// UpdateBuffer overwrites the full contents of a dynamic or default-usage
// buffer via UpdateSubresource (void on the real API; there is no HRESULT
// to check); used each frame to refresh the tone-mapper constants (source
// peak nits, SDR white level, frame dimensions).
func (d *Device) UpdateBuffer(b *Buffer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	rawVtblCall(unsafe.Pointer(d.Context), slotContextUpdateSubresource,
		uintptr(b.ptr),
		0,
		0,
		uintptr(unsafe.Pointer(&data[0])),
		0,
		0,
	)
	return nil
}

// CreateTextureSRV creates a default shader-resource view over a texture,
// passed as an opaque COM pointer obtained from go-d3d's ID3D11Texture2D.
func (d *Device) CreateTextureSRV(texture unsafe.Pointer) (*ShaderResourceView, error) {
	var out unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(d.D3D), slotDeviceCreateShaderResourceView,
		uintptr(texture),
		0, // default-view descriptor
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return nil, fmt.Errorf("d3d11: CreateShaderResourceView: %w", err)
	}
	return &ShaderResourceView{ptr: out}, nil
}

// CreateTextureUAV creates a default unordered-access view over a texture.
func (d *Device) CreateTextureUAV(texture unsafe.Pointer) (*UnorderedAccessView, error) {
	var out unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(d.D3D), slotDeviceCreateUnorderedAccessView,
		uintptr(texture),
		0,
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return nil, fmt.Errorf("d3d11: CreateUnorderedAccessView: %w", err)
	}
	return &UnorderedAccessView{ptr: out}, nil
}

// CreateComputeShader compiles bytecode (produced by CompileComputeShader)
// into a bound compute shader object.
func (d *Device) CreateComputeShader(bytecode []byte) (*ComputeShader, error) {
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("d3d11: CreateComputeShader: empty bytecode")
	}
	var out unsafe.Pointer
	_, err := vtblCall(unsafe.Pointer(d.D3D), slotDeviceCreateComputeShader,
		uintptr(unsafe.Pointer(&bytecode[0])),
		uintptr(len(bytecode)),
		0, // no class linkage
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return nil, fmt.Errorf("d3d11: CreateComputeShader: %w", err)
	}
	return &ComputeShader{ptr: out}, nil
}

// Dispatch binds the compute pipeline and issues a dispatch, matching the
// fixed 8x8 thread-group layout the tone-map shader declares. Every CSSet*
// call and Dispatch itself is void on the real API, so there is no
// per-step HRESULT to check. Callers must hold the device's context lock;
// the immediate context is not free-threaded.
func (d *Device) Dispatch(cs *ComputeShader, srv *ShaderResourceView, uav *UnorderedAccessView, cbuf *Buffer, groupsX, groupsY uint32) {
	ctx := unsafe.Pointer(d.Context)

	rawVtblCall(ctx, slotContextCSSetShader, uintptr(cs.ptr), 0, 0)

	srvs := [1]unsafe.Pointer{srv.ptr}
	rawVtblCall(ctx, slotContextCSSetShaderResources, 0, 1, uintptr(unsafe.Pointer(&srvs[0])))

	uavs := [1]unsafe.Pointer{uav.ptr}
	rawVtblCall(ctx, slotContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&uavs[0])), 0)

	cbufs := [1]unsafe.Pointer{cbuf.ptr}
	rawVtblCall(ctx, slotContextCSSetConstantBuffers, 0, 1, uintptr(unsafe.Pointer(&cbufs[0])))

	rawVtblCall(ctx, slotContextDispatch, uintptr(groupsX), uintptr(groupsY), 1)

	// Unbind the UAV so the destination texture can be copied out/bound
	// elsewhere afterward without a resource-hazard warning.
	uavs[0] = nil
	rawVtblCall(ctx, slotContextCSSetUnorderedAccessViews, 0, 1, uintptr(unsafe.Pointer(&uavs[0])), 0)
}
