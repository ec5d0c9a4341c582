// Package pipeline wires Device → Capture Session → (Tone Mapper) →
// Texture Reader and drives the Initializing → Open → Closed state
// machine every other component is built and torn down behind.
package pipeline

import (
	"fmt"
	"sync/atomic"

	gd3d11 "github.com/kirides/go-d3d/d3d11"

	"github.com/jipaix/hdrshot/capture"
	"github.com/jipaix/hdrshot/device"
	"github.com/jipaix/hdrshot/internal/config"
	"github.com/jipaix/hdrshot/internal/logging"
	"github.com/jipaix/hdrshot/target"
	"github.com/jipaix/hdrshot/texture"
	"github.com/jipaix/hdrshot/tonemap"
	"github.com/jipaix/hdrshot/whitelevel"
)

var log = logging.L("pipeline")

// ErrPipelineClosed is returned by Capture/Grab once the Pipeline has
// been closed; it is never retried internally.
type ErrPipelineClosed struct{}

func (e *ErrPipelineClosed) Error() string { return "pipeline: closed" }

type state int32

const (
	stateInitializing state = iota
	stateOpen
	stateClosed
)

// CapturedFrame is a Pipeline's return value: a fresh copy of the pixel
// bytes the caller now exclusively owns.
type CapturedFrame struct {
	Width, Height    uint32
	TimestampSeconds float64
	Format           capture.PixelFormat
	Pixels           []byte
}

// Pipeline is the top-level orchestrator. One Pipeline exclusively owns
// one Capture Session, Tone Mapper (if active), and Texture Reader; it
// shares its Device with the Tone Mapper and is itself single-writer: one
// caller thread at a time issues Capture/Grab/Close.
type Pipeline struct {
	state atomic.Int32

	dev     *device.Component
	session *capture.Session
	toner   *tonemap.ToneMapper // nil when bypassed
	reader  *texture.Reader

	format       capture.PixelFormat
	sdrWhiteNits float32
	peakNits     float32
}

// ForTarget builds a Pipeline against target: create the device, probe
// the target's white level, choose a pixel format, build the capture
// session, conditionally build the tone mapper, build the texture
// reader, then start the session.
func ForTarget(tgt target.CaptureTarget, mode capture.Mode, cfg config.Config) (*Pipeline, error) {
	dev, err := device.Create()
	if err != nil {
		return nil, err
	}

	resolver, err := target.NewResolver()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("pipeline: resolver: %w", err)
	}
	monitorDevice, err := resolver.MonitorDeviceFor(tgt)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("pipeline: resolving monitor for target: %w", err)
	}

	probe := whitelevel.Probe(monitorDevice)
	format := capture.SelectFormat(mode, probe.IsHDR)

	session, err := capture.NewSession(dev, tgt, probe.IsHDR)
	if err != nil {
		dev.Close()
		return nil, err
	}

	var toner *tonemap.ToneMapper
	if format == capture.FormatBgra8 && probe.IsHDR {
		toner, err = tonemap.New(dev)
		if err != nil {
			session.Close()
			dev.Close()
			return nil, err
		}
	}

	reader := texture.NewReader(dev, format)

	if err := session.Start(); err != nil {
		if toner != nil {
			toner.Close()
		}
		session.Close()
		dev.Close()
		return nil, &capture.ErrSessionStartFailed{Target: "session.Start", Reason: err}
	}

	p := &Pipeline{
		dev:          dev,
		session:      session,
		toner:        toner,
		reader:       reader,
		format:       format,
		sdrWhiteNits: probe.SDRWhiteNits,
		peakNits:     cfg.AssumedSourcePeakNits,
	}
	p.state.Store(int32(stateOpen))
	log.Info("pipeline open", "format", format, "hdr", probe.IsHDR, "sdrWhiteNits", probe.SDRWhiteNits, "toneMap", toner != nil)
	return p, nil
}

// Capture implements the Fresh acquisition discipline end to end.
func (p *Pipeline) Capture() (*CapturedFrame, error) {
	return p.acquire(p.session.Capture)
}

// Grab implements the Latest acquisition discipline end to end.
func (p *Pipeline) Grab() (*CapturedFrame, error) {
	return p.acquire(p.session.Grab)
}

func (p *Pipeline) acquire(fn func() (*capture.AcquiredFrame, error)) (*CapturedFrame, error) {
	if state(p.state.Load()) != stateOpen {
		return nil, &ErrPipelineClosed{}
	}

	af, err := fn()
	if err != nil {
		return nil, err
	}
	defer af.Release()

	texPtr, err := af.Texture()
	if err != nil {
		return nil, err
	}

	width, height := uint32(af.Width), uint32(af.Height)
	source := (*gd3d11.ID3D11Texture2D)(texPtr)

	if p.toner != nil {
		mapped, err := p.toner.Apply(texPtr, width, height, p.sdrWhiteNits, p.peakNits)
		if err != nil {
			return nil, err
		}
		source = mapped
	}

	var crop *texture.CropRect
	if af.Crop != nil {
		crop = &texture.CropRect{
			OffsetX: af.Crop.OffsetX,
			OffsetY: af.Crop.OffsetY,
			Width:   af.Crop.Width,
			Height:  af.Crop.Height,
		}
	}

	raw, err := p.reader.Read(source, width, height, crop)
	if err != nil {
		return nil, err
	}

	if crop != nil {
		width, height = crop.Width, crop.Height
	}

	pixels := make([]byte, len(raw))
	copy(pixels, raw)

	return &CapturedFrame{
		Width:            width,
		Height:           height,
		TimestampSeconds: af.TimestampSec,
		Format:           p.format,
		Pixels:           pixels,
	}, nil
}

// Close transitions the Pipeline to Closed and releases every component
// it owns: the capture session first, so frame delivery stops, then the
// tone mapper, the texture reader, and the device last. Idempotent and
// best-effort.
func (p *Pipeline) Close() {
	if !p.state.CompareAndSwap(int32(stateOpen), int32(stateClosed)) &&
		!p.state.CompareAndSwap(int32(stateInitializing), int32(stateClosed)) {
		return
	}

	if p.session != nil {
		p.session.Close()
	}
	if p.toner != nil {
		p.toner.Close()
	}
	if p.reader != nil {
		p.reader.Close()
	}
	if p.dev != nil {
		p.dev.Close()
	}
	log.Info("pipeline closed")
}
