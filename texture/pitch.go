package texture

import (
	"unsafe"

	"github.com/kirides/go-d3d/dxgi"
)

// stripRowPitch copies rowBytes of each of height rows from a mapped GPU
// rectangle into dst, skipping mapped.Pitch-rowBytes bytes of padding
// between rows, the same contentWidth/dataWidth split go-d3d's own
// GetImage does to avoid leaking padding into the caller's buffer.
func stripRowPitch(dst []byte, mapped dxgi.DXGI_MAPPED_RECT, rowBytes, height int) {
	pitch := int(mapped.Pitch)
	src := unsafe.Slice((*byte)(mapped.PBits), pitch*height)

	if pitch == rowBytes {
		copy(dst, src[:rowBytes*height])
		return
	}

	var dstOff, srcOff int
	for i := 0; i < height; i++ {
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		dstOff += rowBytes
		srcOff += pitch
	}
}
