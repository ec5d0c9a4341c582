// Package device owns the graphics device handle and immediate context
// that every other component issues GPU commands through. The device is
// created with ID3D11Multithread::SetMultithreadProtected(TRUE) so the
// compositor's frame-arrived delivery, which runs on a native thread this
// package never sees, is serialized against Go-issued calls by D3D11
// itself; Component's own mutex only serializes the Go-issued calls
// against each other.
package device

import (
	"fmt"
	"sync"

	"github.com/jipaix/hdrshot/internal/d3d11"
	"github.com/jipaix/hdrshot/internal/logging"
)

var log = logging.L("device")

// ErrDeviceCreationFailed indicates no usable graphics adapter was found.
type ErrDeviceCreationFailed struct {
	Reason error
}

func (e *ErrDeviceCreationFailed) Error() string {
	return fmt.Sprintf("device: creation failed: %v", e.Reason)
}

func (e *ErrDeviceCreationFailed) Unwrap() error { return e.Reason }

// Component bundles the D3D11 device/context pair with a lock that
// serializes every Go-issued command against the immediate context.
// Every call into D3D11 or compute dispatch anywhere in this module must
// go through Do. This lock is a convenience for this package's own
// goroutines; it does not and cannot reach the compositor's native
// frame-arrived thread — that cross-thread guarantee comes from the
// device's own ID3D11Multithread protection, enabled once at creation.
type Component struct {
	d3d *d3d11.Device
	mu  sync.Mutex
}

// Create builds a hardware D3D11 device with BGRA support, a
// precondition for building any capture object.
func Create() (*Component, error) {
	d, err := d3d11.CreateDevice()
	if err != nil {
		return nil, &ErrDeviceCreationFailed{Reason: err}
	}
	log.Info("device created", "featureLevel", d.FeatureLevel)
	return &Component{d3d: d}, nil
}

// D3D11 returns the underlying device/context pair for packages (texture,
// tonemap, the wgc bridge) that need to issue native calls directly. Its
// Context field must only be used while holding the Component's lock via
// Do.
func (c *Component) D3D11() *d3d11.Device { return c.d3d }

// Do runs fn while holding the device's Go-side serialization lock,
// preventing two goroutines in this process from issuing immediate-
// context commands concurrently. The device's ID3D11Multithread
// protection is what keeps this safe against the compositor's own
// frame-arrived thread.
func (c *Component) Do(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

// Close releases the device and context. Best-effort and idempotent.
func (c *Component) Close() {
	if c.d3d != nil {
		c.d3d.Release()
		c.d3d = nil
	}
}
