package win

import (
	"fmt"

	"github.com/lxn/win"
)

// ClientAreaCrop is a window's client area expressed as an offset and size
// relative to the window's full captured bounds (GetWindowRect), i.e. the
// rectangle that trims title bar, menu, and border chrome.
type ClientAreaCrop struct {
	OffsetX, OffsetY uint32
	Width, Height    uint32
}

// ClientAreaCropFor computes hwnd's client-area crop rectangle relative to
// its own window rect. GetClientRect returns client coordinates (always
// top-left origin); ClientToScreen maps that origin into screen space so it
// can be measured against GetWindowRect's screen-space top-left.
func ClientAreaCropFor(hwnd win.HWND) (ClientAreaCrop, error) {
	var wr win.RECT
	if !win.GetWindowRect(hwnd, &wr) {
		return ClientAreaCrop{}, fmt.Errorf("win: GetWindowRect failed for handle %v", hwnd)
	}

	var cr win.RECT
	if !win.GetClientRect(hwnd, &cr) {
		return ClientAreaCrop{}, fmt.Errorf("win: GetClientRect failed for handle %v", hwnd)
	}

	origin := win.POINT{X: 0, Y: 0}
	if !win.ClientToScreen(hwnd, &origin) {
		return ClientAreaCrop{}, fmt.Errorf("win: ClientToScreen failed for handle %v", hwnd)
	}

	offsetX := origin.X - wr.Left
	offsetY := origin.Y - wr.Top
	width := cr.Right - cr.Left
	height := cr.Bottom - cr.Top
	if offsetX < 0 || offsetY < 0 || width <= 0 || height <= 0 {
		return ClientAreaCrop{}, fmt.Errorf("win: degenerate client area for handle %v (offset %d,%d size %dx%d)", hwnd, offsetX, offsetY, width, height)
	}

	return ClientAreaCrop{
		OffsetX: uint32(offsetX),
		OffsetY: uint32(offsetY),
		Width:   uint32(width),
		Height:  uint32(height),
	}, nil
}
