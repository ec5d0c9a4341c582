package win

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ProcessIDsByName returns the PIDs of all running processes whose image
// name matches name (case-insensitive, with or without the ".exe" suffix),
// via a CreateToolhelp32Snapshot walk.
func ProcessIDsByName(name string) ([]uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("win: CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	want := normalizeProcessName(name)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var pids []uint32
	if err := windows.Process32First(snap, &entry); err != nil {
		if err == windows.ERROR_NO_MORE_FILES {
			return pids, nil
		}
		return nil, fmt.Errorf("win: Process32First: %w", err)
	}
	for {
		exe := normalizeProcessName(windows.UTF16ToString(entry.ExeFile[:]))
		if exe == want {
			pids = append(pids, entry.ProcessID)
		}
		if err := windows.Process32Next(snap, &entry); err != nil {
			break
		}
	}
	return pids, nil
}

func normalizeProcessName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ".exe")
}
