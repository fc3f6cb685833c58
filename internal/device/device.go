package device

import (
	"context"
	"time"
)

// DefaultConnectTimeout is used when a connect request does not carry its
// own timeout.
const DefaultConnectTimeout = 30 * time.Second

// Device is the capability set the factory core consumes.
//
// Concrete device types live outside the core. Anything that can be named
// and asked to connect is a Device; the core never reads its telemetry.
type Device interface {
	// Name returns the stable device name.
	Name() string

	// SetName renames the device. Factories call this with the controller
	// name unless the device implements NameKeeper and opts out.
	SetName(name string)

	// Connect establishes the device's connection to the control system.
	//
	// In mock mode the device must not talk to the control system and
	// should complete using stand-in state. Implementations should honour
	// ctx cancellation; the orchestrator enforces Timeout regardless.
	Connect(ctx context.Context, opts ConnectOptions) error
}

// ConnectOptions controls a single connect attempt.
type ConnectOptions struct {
	// Mock selects simulation mode.
	Mock bool

	// Timeout bounds the attempt. Zero means DefaultConnectTimeout.
	Timeout time.Duration

	// ForceReconnect asks an already connected device to connect again.
	ForceReconnect bool
}

// EffectiveTimeout returns Timeout, or DefaultConnectTimeout when unset.
func (o ConnectOptions) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.Timeout
}

// Parented is implemented by devices that are children of another device.
type Parented interface {
	Parent() Device
}

// NameKeeper is implemented by devices that must keep the name they were
// constructed with.
type NameKeeper interface {
	KeepName() bool
}

// KeepsName reports whether d opted out of being renamed by its factory.
func KeepsName(d Device) bool {
	k, ok := d.(NameKeeper)
	return ok && k.KeepName()
}
