package device

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps stable device names to live device instances.
//
// A name is bound to at most one object. Re-registering the identical object
// under the same name is a no-op; anything else is rejected, so two factories
// can never silently hand out different devices under one name.
//
// All public methods are thread-safe.
type Registry struct {
	devices map[string]Device
	mu      sync.RWMutex
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Get returns the device registered under name, or nil.
func (r *Registry) Get(name string) Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[name]
}

// Put binds name to dev.
//
// Returns ErrDeviceTypeConflict if name is bound to an object of another
// type, and ErrDuplicateName if it is bound to a different object of the
// same type.
func (r *Registry) Put(name string, dev Device) error {
	if name == "" {
		return ErrInvalidName
	}
	if dev == nil {
		return fmt.Errorf("%w: %q", ErrNilDevice, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[name]; ok {
		if sameObject(existing, dev) {
			return nil
		}
		if reflect.TypeOf(existing) != reflect.TypeOf(dev) {
			return fmt.Errorf("%w: %q already used for a %T, cannot register a %T",
				ErrDeviceTypeConflict, name, existing, dev)
		}
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	r.devices[name] = dev
	r.logger.Debug("device registered", "name", name, "type", fmt.Sprintf("%T", dev))
	return nil
}

// Remove unbinds name. Returns ErrUnknownDevice if it is not registered.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	delete(r.devices, name)
	r.logger.Debug("device removed", "name", name)
	return nil
}

// ClearAll removes every registered device.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.devices)
	r.devices = make(map[string]Device)
	r.logger.Info("device registry cleared", "count", count)
}

// ListNames returns the registered names in lexical order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.devices))
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Snapshot returns a copy of the name to device mapping.
func (r *Registry) Snapshot() map[string]Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.devices)
}

// sameObject reports whether a and b are the same object. Values of
// non-comparable dynamic types are never considered identical.
func sameObject(a, b Device) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
