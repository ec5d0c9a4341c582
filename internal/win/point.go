package win

import "github.com/lxn/win"

const monitorDefaultToNearest = 2

var (
	procMonitorFromPoint  = user32.NewProc("MonitorFromPoint")
	procMonitorFromWindow = user32.NewProc("MonitorFromWindow")
)

// MonitorFromPoint returns the handle of the monitor nearest the given
// physical-pixel point, used by target.ResolveAt. MonitorFromPoint takes
// its POINT argument by value; on the x64 calling convention an 8-byte
// struct like POINT is passed packed into a single register rather than
// as two words, so x/y are packed into one uintptr here.
func MonitorFromPoint(x, y int32) win.HMONITOR {
	packed := uintptr(uint32(x)) | uintptr(uint32(y))<<32
	ret, _, _ := procMonitorFromPoint.Call(packed, uintptr(monitorDefaultToNearest))
	return win.HMONITOR(ret)
}

// MonitorFromWindow returns the handle of the monitor a window primarily
// occupies, used to resolve the white-level probe's target monitor for a
// window CaptureTarget.
func MonitorFromWindow(hwnd win.HWND) win.HMONITOR {
	ret, _, _ := procMonitorFromWindow.Call(uintptr(hwnd), uintptr(monitorDefaultToNearest))
	return win.HMONITOR(ret)
}
