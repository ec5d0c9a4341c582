package win

import (
	"syscall"
	"unsafe"

	"github.com/lxn/win"
)

var (
	dwmapi               = syscall.NewLazyDLL("dwmapi.dll")
	procDwmGetWindowAttr = dwmapi.NewProc("DwmGetWindowAttribute")
)

const dwmwaCloaked = 14

// WindowCandidate is one top-level window observed during enumeration.
type WindowCandidate struct {
	HWND        win.HWND
	Title       string
	PID         uint32
	ZOrder      int // 0 = topmost, increases going down the stack
	Visible     bool
	Cloaked     bool
	ClientArea  int64 // width*height in physical pixels
}

// EnumerateTopLevelWindows walks all top-level windows in Z order
// (topmost first, matching EnumWindows' native order).
func EnumerateTopLevelWindows() ([]WindowCandidate, error) {
	var out []WindowCandidate
	z := 0

	cb := syscall.NewCallback(func(hwnd win.HWND, _ uintptr) uintptr {
		cand := WindowCandidate{
			HWND:    hwnd,
			PID:     windowProcessID(hwnd),
			ZOrder:  z,
			Visible: win.IsWindowVisible(hwnd),
			Cloaked: isCloaked(hwnd),
			Title:   windowTitle(hwnd),
		}
		var rect win.RECT
		if win.GetClientRect(hwnd, &rect) {
			cand.ClientArea = int64(rect.Right-rect.Left) * int64(rect.Bottom-rect.Top)
		}
		out = append(out, cand)
		z++
		return 1
	})

	if !win.EnumWindows(cb, 0) {
		return nil, syscall.GetLastError()
	}
	return out, nil
}

func windowTitle(hwnd win.HWND) string {
	buf := make([]uint16, 512)
	n := win.GetWindowText(hwnd, &buf[0], int32(len(buf)))
	if n <= 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

func windowProcessID(hwnd win.HWND) uint32 {
	var pid uint32
	win.GetWindowThreadProcessId(hwnd, &pid)
	return pid
}

func isCloaked(hwnd win.HWND) bool {
	if procDwmGetWindowAttr.Find() != nil {
		return false
	}
	var cloaked uint32
	ret, _, _ := procDwmGetWindowAttr.Call(
		uintptr(hwnd),
		uintptr(dwmwaCloaked),
		uintptr(unsafe.Pointer(&cloaked)),
		uintptr(4),
	)
	if ret != 0 { // S_OK == 0
		return false
	}
	return cloaked != 0
}
