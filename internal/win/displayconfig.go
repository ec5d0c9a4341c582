package win

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Display-config constants and structures extended with the GET-side
// advanced-color and SDR-white-level info types the white-level probe
// needs.
const (
	qdcOnlyActivePaths = 0x00000002

	displayConfigDeviceInfoGetAdvancedColorInfo = 9
	displayConfigDeviceInfoGetSdrWhiteLevel     = 11
)

type luid struct {
	LowPart  uint32
	HighPart int32
}

type displayConfigPathSourceInfo struct {
	AdapterId   luid
	Id          uint32
	ModeInfoIdx uint32
	StatusFlags uint32
}

type displayConfigRational struct {
	Numerator   uint32
	Denominator uint32
}

type displayConfigPathTargetInfo struct {
	AdapterId        luid
	Id               uint32
	ModeInfoIdx      uint32
	OutputTechnology uint32
	Rotation         uint32
	Scaling          uint32
	RefreshRate      displayConfigRational
	ScanLineOrdering uint32
	TargetAvailable  uint32
	StatusFlags      uint32
}

type displayConfigPathInfo struct {
	Source displayConfigPathSourceInfo
	Target displayConfigPathTargetInfo
	Flags  uint32
}

type pointl struct {
	X int32
	Y int32
}

type displayConfigVideoSignalInfo struct {
	PixelRate  uint64
	HSyncFreq  displayConfigRational
	VSyncFreq  displayConfigRational
	ActiveSize pointl
	TotalSize  pointl
	_          [16]byte // AdditionalSignalInfo + VideoStandard, not needed here
}

type displayConfigTargetMode struct {
	TargetVideoSignalInfo displayConfigVideoSignalInfo
}

type displayConfigSourceMode struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Position    pointl
}

type displayConfigModeInfoUnion [56]byte // union of target/source/desktop image info; largest member sized

type displayConfigModeInfo struct {
	InfoType  uint32
	Id        uint32
	AdapterId luid
	ModeInfo  displayConfigModeInfoUnion
}

type displayConfigDeviceInfoHeader struct {
	Type      uint32
	Size      uint32
	AdapterId luid
	Id        uint32
}

type displayConfigGetAdvancedColorInfo struct {
	Header              displayConfigDeviceInfoHeader
	Value               uint32
	ColorEncoding       uint32
	BitsPerColorChannel uint32
}

type displayConfigSdrWhiteLevel struct {
	Header       displayConfigDeviceInfoHeader
	SDRWhiteLevel uint32
}

const advancedColorEnabledBit = 0x2 // bit 1 of the packed Value field

var (
	procGetDisplayConfigBufferSizes = user32.NewProc("GetDisplayConfigBufferSizes")
	procQueryDisplayConfig          = user32.NewProc("QueryDisplayConfig")
	procDisplayConfigGetDeviceInfo  = user32.NewProc("DisplayConfigGetDeviceInfo")
)

// ActivePathTarget identifies one active DISPLAYCONFIG path target, the
// handle whitelevel.Probe needs to query advanced-color state.
type ActivePathTarget struct {
	AdapterHigh int32
	AdapterLow  uint32
	ID          uint32
}

// MonitorPathTargets walks the active display-config path list and returns
// the path target for the path whose source GDI device name matches the
// given monitor device name. There can be more than one target for a source in
// clone/extend configurations; all are returned so the caller can probe
// each and prefer the one that reports HDR-enabled.
func MonitorPathTargets(deviceName string) ([]ActivePathTarget, error) {
	var pathCount, modeCount uint32
	ret, _, callErr := procGetDisplayConfigBufferSizes.Call(
		uintptr(qdcOnlyActivePaths),
		uintptr(unsafe.Pointer(&pathCount)),
		uintptr(unsafe.Pointer(&modeCount)),
	)
	if ret != 0 {
		return nil, fmt.Errorf("win: GetDisplayConfigBufferSizes: %w", callErr)
	}
	if pathCount == 0 {
		return nil, errors.New("win: no active display paths")
	}

	paths := make([]displayConfigPathInfo, pathCount)
	modes := make([]displayConfigModeInfo, modeCount)
	ret, _, callErr = procQueryDisplayConfig.Call(
		uintptr(qdcOnlyActivePaths),
		uintptr(unsafe.Pointer(&pathCount)),
		uintptr(unsafe.Pointer(&paths[0])),
		uintptr(unsafe.Pointer(&modeCount)),
		uintptr(unsafe.Pointer(&modes[0])),
		0,
	)
	if ret != 0 {
		return nil, fmt.Errorf("win: QueryDisplayConfig: %w", callErr)
	}

	var targets []ActivePathTarget
	for i := uint32(0); i < pathCount; i++ {
		p := &paths[i]
		if p.Target.TargetAvailable == 0 {
			continue
		}
		sourceName, err := pathSourceDeviceName(p.Source.AdapterId, p.Source.Id)
		if err != nil || !equalDeviceName(sourceName, deviceName) {
			continue
		}
		targets = append(targets, ActivePathTarget{
			AdapterHigh: p.Target.AdapterId.HighPart,
			AdapterLow:  p.Target.AdapterId.LowPart,
			ID:          p.Target.Id,
		})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("win: no display-config path target for device %q", deviceName)
	}
	return targets, nil
}

type displayConfigSourceDeviceName struct {
	Header     displayConfigDeviceInfoHeader
	ViewGdiDeviceName [32]uint16
}

const displayConfigDeviceInfoGetSourceName = 1

func pathSourceDeviceName(adapter luid, id uint32) (string, error) {
	var req displayConfigSourceDeviceName
	req.Header.Type = displayConfigDeviceInfoGetSourceName
	req.Header.Size = uint32(unsafe.Sizeof(req))
	req.Header.AdapterId = adapter
	req.Header.Id = id

	ret, _, callErr := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&req.Header)))
	if ret != 0 {
		return "", fmt.Errorf("win: DisplayConfigGetDeviceInfo(source name): %w", callErr)
	}
	return syscall.UTF16ToString(req.ViewGdiDeviceName[:]), nil
}

func equalDeviceName(a, b string) bool {
	return a != "" && a == b
}

// AdvancedColorInfo is the subset of DISPLAYCONFIG_GET_ADVANCED_COLOR_INFO
// whitelevel.Probe consumes.
type AdvancedColorInfo struct {
	Supported bool
	Enabled   bool
}

// QueryAdvancedColorInfo reads the advanced-color (HDR) state for one
// display-config path target.
func QueryAdvancedColorInfo(target ActivePathTarget) (AdvancedColorInfo, error) {
	var req displayConfigGetAdvancedColorInfo
	req.Header.Type = displayConfigDeviceInfoGetAdvancedColorInfo
	req.Header.Size = uint32(unsafe.Sizeof(req))
	req.Header.AdapterId = luid{LowPart: target.AdapterLow, HighPart: target.AdapterHigh}
	req.Header.Id = target.ID

	ret, _, callErr := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&req.Header)))
	if ret != 0 {
		return AdvancedColorInfo{}, fmt.Errorf("win: DisplayConfigGetDeviceInfo(advanced color): %w", callErr)
	}
	return AdvancedColorInfo{
		Supported: req.Value&0x1 != 0,
		Enabled:   req.Value&advancedColorEnabledBit != 0,
	}, nil
}

// QuerySDRWhiteLevel reads the raw (1000ths-of-nit-relative-to-80) SDR
// white level for one display-config path target.
func QuerySDRWhiteLevel(target ActivePathTarget) (uint32, error) {
	var req displayConfigSdrWhiteLevel
	req.Header.Type = displayConfigDeviceInfoGetSdrWhiteLevel
	req.Header.Size = uint32(unsafe.Sizeof(req))
	req.Header.AdapterId = luid{LowPart: target.AdapterLow, HighPart: target.AdapterHigh}
	req.Header.Id = target.ID

	ret, _, callErr := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&req.Header)))
	if ret != 0 {
		return 0, fmt.Errorf("win: DisplayConfigGetDeviceInfo(sdr white level): %w", callErr)
	}
	return req.SDRWhiteLevel, nil
}
