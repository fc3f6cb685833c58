package factory

import (
	"fmt"
	"time"

	"github.com/nerrad567/beamline-core/internal/device"
)

// Option configures a Controller at construction time.
type Option func(*Controller)

// EagerConnect connects the device as soon as it is created.
func EagerConnect() Option {
	return func(c *Controller) { c.eager = true }
}

// Mock always creates and connects the device in simulation mode.
func Mock() Option {
	return func(c *Controller) { c.mock = true }
}

// Timeout sets the connect timeout. It must be positive.
func Timeout(d time.Duration) Option {
	return func(c *Controller) {
		if d <= 0 {
			c.invalid = fmt.Errorf("%w: %q: timeout must be positive, got %v", ErrInvalidFactory, c.name, d)
			return
		}
		c.timeout = d
	}
}

// Skip excludes the controller from batch creation.
func Skip(skip bool) Option {
	return func(c *Controller) { c.skip = func() bool { return skip } }
}

// SkipIf is like Skip, but cond is evaluated each time the controller is
// asked whether it is skipped.
func SkipIf(cond func() bool) Option {
	return func(c *Controller) { c.skip = cond }
}

// DependsOn declares the controller's dependency slots.
func DependsOn(slots ...*Slot) Option {
	return func(c *Controller) { c.slots = append(c.slots, slots...) }
}

// KeepDeviceName leaves the device with the name it was built with.
func KeepDeviceName() Option {
	return func(c *Controller) { c.keepName = true }
}

// CallOption adjusts a single Get.
type CallOption func(*callOptions)

type callOptions struct {
	connect        *bool
	mock           bool
	timeout        time.Duration
	forceReconnect bool
	honorSkip      bool
	fixtures       map[string]device.Device
}

func newCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connect overrides the controller's eager-connect setting for this call
// and for dependencies created by it.
func Connect(connect bool) CallOption {
	return func(o *callOptions) { o.connect = &connect }
}

// WithMock requests simulation mode for this call. It can only add
// simulation: a controller built with Mock() never reaches the control
// system, so WithMock(false) leaves it in simulation mode.
func WithMock(mock bool) CallOption {
	return func(o *callOptions) { o.mock = mock }
}

// WithTimeout overrides the connect timeout for this call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// ForceReconnect connects the device again even if it is already connected.
// On a cached device it triggers a reconnect.
func ForceReconnect() CallOption {
	return func(o *callOptions) { o.forceReconnect = true }
}

// WithFixtures supplies ready-made devices to the dependencies created by
// this call, on top of the module's own fixtures.
func WithFixtures(fixtures map[string]device.Device) CallOption {
	return func(o *callOptions) { o.fixtures = fixtures }
}

// HonorSkip makes Get fail with ErrFactorySkipped for skipped controllers.
func HonorSkip() CallOption {
	return func(o *callOptions) { o.honorSkip = true }
}
