package factory

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/nerrad567/beamline-core/internal/device"
)

// Fixtures supplies ready-made devices to a batch in place of controllers.
//
// A fixture named like a controller overrides it: the controller is left
// out of the plan and slots that resolved to it receive the fixture. A
// fixture named like a slot's From target, or like the parameter of a slot
// without one, satisfies that slot directly.
//
// Lazy fixtures are evaluated at most once per Fixtures value, and only
// when a factory actually needs them. A nil *Fixtures holds nothing.
type Fixtures struct {
	mu    sync.Mutex
	ready map[string]device.Device
	lazy  map[string]func() device.Device
}

// Fixture registers a lazily built fixture used by every plan of m.
// Fixtures passed to NewFixtures take precedence over it.
func (m *Module) Fixture(name string, fn func() device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case name == "":
		return fmt.Errorf("%w: fixture with empty name", ErrInvalidFactory)
	case fn == nil:
		return fmt.Errorf("%w: fixture %q: nil function", ErrInvalidFactory, name)
	}
	if _, ok := m.fixtures[name]; ok {
		return fmt.Errorf("%w: fixture %q in module %s", ErrDuplicateFactory, name, m.name)
	}
	if m.fixtures == nil {
		m.fixtures = make(map[string]func() device.Device)
	}
	m.fixtures[name] = fn
	return nil
}

// NewFixtures combines provided with the module's lazy fixtures. A
// provided device replaces a lazy fixture of the same name, which is then
// never evaluated.
func (m *Module) NewFixtures(provided map[string]device.Device) *Fixtures {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newFixtures(provided)
}

// newFixtures is NewFixtures for callers holding m.mu.
func (m *Module) newFixtures(provided map[string]device.Device) *Fixtures {
	f := &Fixtures{
		ready: make(map[string]device.Device, len(provided)),
		lazy:  make(map[string]func() device.Device, len(m.fixtures)),
	}
	for name, dev := range provided {
		if !isNil(dev) {
			f.ready[name] = dev
		}
	}
	for name, fn := range m.fixtures {
		if _, ok := f.ready[name]; !ok {
			f.lazy[name] = fn
		}
	}
	return f
}

// Has reports whether name is a fixture, without evaluating it.
func (f *Fixtures) Has(name string) bool {
	if f == nil || name == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ready := f.ready[name]
	_, lazy := f.lazy[name]
	return ready || lazy
}

// Get returns the fixture named name, evaluating it if it is lazy. A lazy
// fixture that produces nil is reported as absent.
func (f *Fixtures) Get(name string) (device.Device, bool) {
	if f == nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if dev, ok := f.ready[name]; ok {
		return dev, true
	}
	fn, ok := f.lazy[name]
	if !ok {
		return nil, false
	}
	delete(f.lazy, name)
	dev := fn()
	if isNil(dev) {
		return nil, false
	}
	f.ready[name] = dev
	return dev, true
}

// Names returns every fixture name in lexical order.
func (f *Fixtures) Names() []string {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	names := slices.Collect(maps.Keys(f.ready))
	for name := range f.lazy {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
