package win

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
)

// Monitor describes one active display in system enumeration order.
type Monitor struct {
	Handle  win.HMONITOR
	Bounds  win.RECT
	Device  string
	Primary bool
}

// EnumerateMonitors returns active monitors in the order
// EnumDisplayMonitors visits them — the system order monitor indices are
// resolved against.
func EnumerateMonitors() ([]Monitor, error) {
	var monitors []Monitor
	var enumErr error

	cb := syscall.NewCallback(func(hMonitor win.HMONITOR, _ win.HDC, _ *win.RECT, _ uintptr) uintptr {
		var mi win.MONITORINFOEX
		mi.CbSize = uint32(unsafe.Sizeof(mi))
		if !win.GetMonitorInfo(hMonitor, &mi) {
			enumErr = fmt.Errorf("win: GetMonitorInfo failed for handle %v", hMonitor)
			return 1 // keep enumerating; caller decides whether the partial list is usable
		}
		monitors = append(monitors, Monitor{
			Handle:  hMonitor,
			Bounds:  mi.RcMonitor,
			Device:  syscall.UTF16ToString(mi.SzDevice[:]),
			Primary: mi.DwFlags&win.MONITORINFOF_PRIMARY != 0,
		})
		return 1
	})

	if !win.EnumDisplayMonitors(0, nil, cb, 0) {
		return nil, fmt.Errorf("win: EnumDisplayMonitors failed")
	}
	if len(monitors) == 0 && enumErr != nil {
		return nil, enumErr
	}
	return monitors, nil
}
