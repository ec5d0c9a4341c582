// Package whitelevel walks the DISPLAYCONFIG path-list machinery
// read-only to discover the current advanced-color state and SDR
// reference luminance of a target monitor.
package whitelevel

import (
	"sync"

	"github.com/jipaix/hdrshot/internal/logging"
	iwin "github.com/jipaix/hdrshot/internal/win"
)

var log = logging.L("whitelevel")

// fallbackSDRWhiteNits is used when the advanced-color query fails or
// the monitor isn't HDR-enabled.
const fallbackSDRWhiteNits = 80.0

// Result is the probe's output: whether the monitor is currently
// HDR-enabled and its SDR reference luminance in nits.
type Result struct {
	IsHDR        bool
	SDRWhiteNits float32
}

// Probe walks the active display-config path list to find deviceName's
// path target(s) and reads their advanced-color state and SDR white
// level: sdr_white_nits = (raw_sdr_white_level_1000ths / 1000) * 80.
func Probe(deviceName string) Result {
	targets, err := iwin.MonitorPathTargets(deviceName)
	if err != nil {
		log.Warn("no display-config path target found, falling back to SDR", "device", deviceName, "err", err)
		return Result{IsHDR: false, SDRWhiteNits: fallbackSDRWhiteNits}
	}

	for _, t := range targets {
		info, err := iwin.QueryAdvancedColorInfo(t)
		if err != nil || !info.Supported || !info.Enabled {
			continue
		}
		raw, err := iwin.QuerySDRWhiteLevel(t)
		if err != nil {
			log.Warn("HDR enabled but SDR white level query failed, falling back", "err", err)
			return Result{IsHDR: false, SDRWhiteNits: fallbackSDRWhiteNits}
		}
		nits := (float32(raw) / 1000.0) * 80.0
		log.Debug("probed white level", "device", deviceName, "hdr", true, "sdrWhiteNits", nits)
		return Result{IsHDR: true, SDRWhiteNits: nits}
	}

	log.Debug("probed white level", "device", deviceName, "hdr", false)
	return Result{IsHDR: false, SDRWhiteNits: fallbackSDRWhiteNits}
}

// Watcher polls Probe on an interval and publishes a best-effort
// Changed notification when the result differs from the last observed
// one. Changed is purely advisory — it never itself invalidates a cached
// probe, it just gives a caller a signal to decide to rebuild.
type Watcher struct {
	deviceName string

	mu      sync.Mutex
	last    Result
	Changed chan Result

	stop chan struct{}
	once sync.Once
}

// NewWatcher starts polling deviceName's white level every time a value is
// received from ticks, and stops when ticks is closed. ticks carries
// struct{} values, so a time.Ticker's channel has to be forwarded onto it;
// callers that don't need change notifications can ignore Changed entirely.
func NewWatcher(deviceName string, ticks <-chan struct{}) *Watcher {
	w := &Watcher{
		deviceName: deviceName,
		last:       Probe(deviceName),
		Changed:    make(chan Result, 1),
		stop:       make(chan struct{}),
	}
	go w.run(ticks)
	return w
}

func (w *Watcher) run(ticks <-chan struct{}) {
	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			current := Probe(w.deviceName)
			w.mu.Lock()
			changed := current != w.last
			w.last = current
			w.mu.Unlock()
			if changed {
				select {
				case w.Changed <- current:
				default:
				}
			}
		}
	}
}

// Stop ends the polling goroutine. Idempotent.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
}
