package d3d11

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	d3dcompiler    = syscall.NewLazyDLL("d3dcompiler_47.dll")
	procD3DCompile = d3dcompiler.NewProc("D3DCompile")
)

const (
	shaderFlagOptimizationLevel3 = 1 << 15
	blobGetBufferPointerSlot     = 3
	blobGetBufferSizeSlot        = 4
)

// CompileComputeShader compiles HLSL source to cs_5_0 bytecode via
// d3dcompiler_47.dll's D3DCompile entry point, the same DLL and target
// profile every D3D11 compute shader in the wild is built with.
func CompileComputeShader(source, entryPoint string) ([]byte, error) {
	srcBytes := append([]byte(source), 0)
	entryBytes := append([]byte(entryPoint), 0)
	targetBytes := append([]byte("cs_5_0"), 0)

	var codeBlob, errBlob unsafe.Pointer

	ret, _, _ := procD3DCompile.Call(
		uintptr(unsafe.Pointer(&srcBytes[0])),
		uintptr(len(srcBytes)-1),
		0, // pSourceName
		0, // pDefines
		0, // pInclude
		uintptr(unsafe.Pointer(&entryBytes[0])),
		uintptr(unsafe.Pointer(&targetBytes[0])),
		uintptr(shaderFlagOptimizationLevel3),
		0,
		uintptr(unsafe.Pointer(&codeBlob)),
		uintptr(unsafe.Pointer(&errBlob)),
	)

	if hr := int32(ret); hr < 0 {
		if errBlob != nil {
			msg := blobString(errBlob)
			release(errBlob)
			return nil, fmt.Errorf("d3d11: D3DCompile: hresult 0x%08x: %s", uint32(hr), msg)
		}
		return nil, fmt.Errorf("d3d11: D3DCompile: hresult 0x%08x", uint32(hr))
	}
	defer release(codeBlob)
	if errBlob != nil {
		release(errBlob)
	}

	size := rawVtblCall(codeBlob, blobGetBufferSizeSlot)
	ptrRet := rawVtblCall(codeBlob, blobGetBufferPointerSlot)
	if ptrRet == 0 || size == 0 {
		return nil, fmt.Errorf("d3d11: D3DCompile: empty bytecode blob")
	}
	bytecode := make([]byte, size)
	copy(bytecode, unsafe.Slice((*byte)(unsafe.Pointer(ptrRet)), size))
	return bytecode, nil
}

func blobString(blob unsafe.Pointer) string {
	size := rawVtblCall(blob, blobGetBufferSizeSlot)
	ptrRet := rawVtblCall(blob, blobGetBufferPointerSlot)
	if ptrRet == 0 || size == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptrRet)), size))
}
