package texture

import (
	"testing"
	"unsafe"

	"github.com/kirides/go-d3d/dxgi"
)

func TestStripRowPitchNoPadding(t *testing.T) {
	width, height := 2, 2
	rowBytes := width * 4
	src := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	mapped := dxgi.DXGI_MAPPED_RECT{Pitch: int32(rowBytes), PBits: unsafe.Pointer(&src[0])}

	dst := make([]byte, rowBytes*height)
	stripRowPitch(dst, mapped, rowBytes, height)

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %d want %d", i, dst[i], src[i])
		}
	}
}

// TestStripRowPitchCroppedOffset checks the pointer-offset step Reader.Read
// applies before stripRowPitch for a CropRect: advancing PBits by
// offsetY*Pitch + offsetX*bytesPerPixel and walking only the crop's
// width/height must recover exactly the cropped sub-rectangle, ignoring
// rows/columns outside it.
func TestStripRowPitchCroppedOffset(t *testing.T) {
	const bytesPerPixel = 4
	fullWidth, fullHeight := 4, 4
	pitch := fullWidth * bytesPerPixel

	src := make([]byte, pitch*fullHeight)
	for row := 0; row < fullHeight; row++ {
		for col := 0; col < fullWidth; col++ {
			for b := 0; b < bytesPerPixel; b++ {
				src[row*pitch+col*bytesPerPixel+b] = byte(row*fullWidth + col)
			}
		}
	}

	offsetX, offsetY := 1, 1
	cropWidth, cropHeight := 2, 2
	cropRowBytes := cropWidth * bytesPerPixel

	offset := uintptr(offsetY)*uintptr(pitch) + uintptr(offsetX)*bytesPerPixel
	mapped := dxgi.DXGI_MAPPED_RECT{
		Pitch: int32(pitch),
		PBits: unsafe.Add(unsafe.Pointer(&src[0]), offset),
	}

	dst := make([]byte, cropRowBytes*cropHeight)
	stripRowPitch(dst, mapped, cropRowBytes, cropHeight)

	for row := 0; row < cropHeight; row++ {
		for col := 0; col < cropWidth; col++ {
			want := byte((row+offsetY)*fullWidth + (col + offsetX))
			got := dst[row*cropRowBytes+col*bytesPerPixel]
			if got != want {
				t.Fatalf("cropped pixel (%d,%d): got %d want %d", row, col, got, want)
			}
		}
	}
}

func TestStripRowPitchWithPadding(t *testing.T) {
	width, height := 2, 2
	rowBytes := width * 4
	pitch := rowBytes + 8 // simulate GPU row alignment padding

	src := make([]byte, pitch*height)
	for row := 0; row < height; row++ {
		for col := 0; col < rowBytes; col++ {
			src[row*pitch+col] = byte(row*rowBytes + col + 1)
		}
	}
	mapped := dxgi.DXGI_MAPPED_RECT{Pitch: int32(pitch), PBits: unsafe.Pointer(&src[0])}

	dst := make([]byte, rowBytes*height)
	stripRowPitch(dst, mapped, rowBytes, height)

	if len(dst) != rowBytes*height {
		t.Fatalf("len(dst) = %d, want %d (no padding leaked)", len(dst), rowBytes*height)
	}
	for row := 0; row < height; row++ {
		for col := 0; col < rowBytes; col++ {
			want := byte(row*rowBytes + col + 1)
			got := dst[row*rowBytes+col]
			if got != want {
				t.Fatalf("row %d col %d: got %d want %d", row, col, got, want)
			}
		}
	}
}
