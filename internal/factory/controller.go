package factory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/connect"
	"github.com/nerrad567/beamline-core/internal/device"
)

// Func builds a device. deps holds the controller's resolved dependencies.
type Func[T device.Device] func(ctx context.Context, env *beamline.Context, deps Deps) (T, error)

type buildFunc func(ctx context.Context, env *beamline.Context, deps Deps) (device.Device, error)

// Controller wraps a factory function and gives its device singleton
// semantics: the first successful Get creates, names, registers and caches
// the device; later calls return the cached object.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Creation is serialized per controller.
//   - Connects are serialized per controller (see ConnectLocker).
type Controller struct {
	name     string
	typ      reflect.Type
	build    buildFunc
	eager    bool
	mock     bool
	timeout  time.Duration
	skip     func() bool
	slots    []*Slot
	keepName bool
	invalid  error

	module atomic.Pointer[Module]

	createMu  sync.Mutex
	mu        sync.RWMutex
	cached    device.Device
	connectMu sync.Mutex
}

// New creates a controller named name producing a T.
func New[T device.Device](name string, fn Func[T], opts ...Option) *Controller {
	c := &Controller{
		name:    name,
		typ:     reflect.TypeFor[T](),
		timeout: device.DefaultConnectTimeout,
	}
	if fn != nil {
		c.build = func(ctx context.Context, env *beamline.Context, deps Deps) (device.Device, error) {
			dev, err := fn(ctx, env, deps)
			if err != nil {
				return nil, err
			}
			return dev, nil
		}
	}

	switch {
	case name == "":
		c.invalid = fmt.Errorf("%w: empty name", ErrInvalidFactory)
	case fn == nil:
		c.invalid = fmt.Errorf("%w: %q: nil factory function", ErrInvalidFactory, name)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the controller name, which is also the device name.
func (c *Controller) Name() string { return c.name }

// Type returns the device type the controller produces.
func (c *Controller) Type() reflect.Type { return c.typ }

// Timeout returns the default connect timeout.
func (c *Controller) Timeout() time.Duration { return c.timeout }

// IsMock reports whether the controller always uses simulation mode.
func (c *Controller) IsMock() bool { return c.mock }

// IsEager reports whether the device is connected when created.
func (c *Controller) IsEager() bool { return c.eager }

// Skipped reports whether the controller is excluded from batch creation.
func (c *Controller) Skipped() bool {
	return c.skip != nil && c.skip()
}

// Slots returns the declared dependency slots.
func (c *Controller) Slots() []*Slot {
	return append([]*Slot(nil), c.slots...)
}

// Module returns the module the controller is registered in, or nil.
func (c *Controller) Module() *Module {
	return c.module.Load()
}

// Cached returns the created device, or nil.
func (c *Controller) Cached() device.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// ConnectLocker returns the lock held while the device connects.
func (c *Controller) ConnectLocker() sync.Locker {
	return &c.connectMu
}

// Get returns the device, creating it and its dependencies on first use.
//
// The first call plans the dependency graph, creates every missing
// dependency in order, then builds, names, registers and caches this
// device. With eager connect (or Connect(true)) the device is connected
// afterwards; a failed connect is returned but the device stays cached.
func (c *Controller) Get(ctx context.Context, opts ...CallOption) (device.Device, error) {
	call := newCallOptions(opts)

	if dev := c.Cached(); dev != nil {
		if call.forceReconnect {
			if err := c.Connect(ctx, c.connectOptions(call)); err != nil {
				return nil, err
			}
		}
		return dev, nil
	}

	m := c.Module()
	if m == nil {
		return nil, fmt.Errorf("%w: %q is not part of a module", ErrNotRegistered, c.name)
	}
	if call.honorSkip && c.Skipped() {
		return nil, fmt.Errorf("%w: %q", ErrFactorySkipped, c.name)
	}

	fx := m.NewFixtures(call.fixtures)
	plan, err := m.PlanWith(fx, c.name)
	if err != nil {
		return nil, err
	}

	for _, p := range plan {
		if p == c {
			continue
		}
		if _, err := p.produce(ctx, call, fx); err != nil {
			return nil, fmt.Errorf("%w: %q needs %q: %w", ErrDependencyFailed, c.name, p.name, err)
		}
	}
	return c.produce(ctx, call, fx)
}

// Connect runs one bounded connect attempt on the cached device.
func (c *Controller) Connect(ctx context.Context, opts device.ConnectOptions) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	dev := c.Cached()
	if dev == nil {
		return fmt.Errorf("%w: %q", ErrNotCreated, c.name)
	}
	return connect.Device(ctx, dev, opts)
}

// Create builds the device without connecting it. Its dependencies must
// already have been created.
func (c *Controller) Create(ctx context.Context) (device.Device, error) {
	return c.CreateWith(ctx, nil)
}

// CreateWith is like Create, taking dependencies from fx where it
// satisfies them. A nil fx uses the module's own fixtures.
func (c *Controller) CreateWith(ctx context.Context, fx *Fixtures) (device.Device, error) {
	dev, _, err := c.create(ctx, fx)
	return dev, err
}

func (c *Controller) produce(ctx context.Context, call callOptions, fx *Fixtures) (device.Device, error) {
	dev, created, err := c.create(ctx, fx)
	if err != nil {
		return nil, err
	}
	if created && c.connectOnCreate(call) {
		if err := c.Connect(ctx, c.connectOptions(call)); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

func (c *Controller) create(ctx context.Context, fx *Fixtures) (device.Device, bool, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	if dev := c.Cached(); dev != nil {
		return dev, false, nil
	}

	m := c.Module()
	if m == nil {
		return nil, false, fmt.Errorf("%w: %q is not part of a module", ErrNotRegistered, c.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if fx == nil {
		fx = m.NewFixtures(nil)
	}
	deps, err := m.collectDeps(c, fx)
	if err != nil {
		return nil, false, err
	}

	dev, err := c.runBuild(ctx, m.Env(), deps)
	if err != nil {
		return nil, false, err
	}

	if !c.keepName && !device.KeepsName(dev) {
		dev.SetName(c.name)
	}
	if err := m.Env().Registry().Put(c.name, dev); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.cached = dev
	c.mu.Unlock()

	m.log().Debug("device created", "factory", c.name, "type", c.typ.String(), "dependencies", deps.Len())
	return dev, true, nil
}

func (c *Controller) runBuild(ctx context.Context, env *beamline.Context, deps Deps) (dev device.Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = &FactoryError{Factory: c.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dev, err = c.build(ctx, env, deps)
	if err != nil {
		return nil, &FactoryError{Factory: c.name, Err: err}
	}
	if isNil(dev) {
		return nil, &FactoryError{Factory: c.name, Err: device.ErrNilDevice}
	}
	return dev, nil
}

func (c *Controller) connectOnCreate(call callOptions) bool {
	if call.connect != nil {
		return *call.connect
	}
	return c.eager
}

func (c *Controller) connectOptions(call callOptions) device.ConnectOptions {
	timeout := c.timeout
	if call.timeout > 0 {
		timeout = call.timeout
	}
	return device.ConnectOptions{
		Mock:           c.mock || call.mock,
		Timeout:        timeout,
		ForceReconnect: call.forceReconnect,
	}
}

func (c *Controller) String() string {
	return fmt.Sprintf("%s -> %v", c.name, c.typ)
}

// As calls Get and returns the device as a T.
func As[T device.Device](ctx context.Context, c *Controller, opts ...CallOption) (T, error) {
	var zero T
	dev, err := c.Get(ctx, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := dev.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is a %T, not %v",
			device.ErrDeviceTypeConflict, c.name, dev, reflect.TypeFor[T]())
	}
	return t, nil
}

func isNil(dev device.Device) bool {
	if dev == nil {
		return true
	}
	v := reflect.ValueOf(dev)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
