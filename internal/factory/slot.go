package factory

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/nerrad567/beamline-core/internal/device"
)

// Slot declares one dependency of a controller.
//
// A slot is matched against the device types of the other controllers in
// the module. Exactly one must match; From pins the slot to a named
// controller instead.
type Slot struct {
	param    string
	types    []reflect.Type
	from     string
	optional bool
}

// Needs declares a dependency on the controller producing exactly T.
func Needs[T device.Device](param string) *Slot {
	return &Slot{param: param, types: []reflect.Type{reflect.TypeFor[T]()}}
}

// NeedsAny declares a dependency satisfied by any one of types.
func NeedsAny(param string, types ...reflect.Type) *Slot {
	return &Slot{param: param, types: slices.Clone(types)}
}

// From returns a copy of the slot bound to the controller named factory.
func (s *Slot) From(factory string) *Slot {
	cp := *s
	cp.from = factory
	return &cp
}

// Optional returns a copy of the slot that is left empty when nothing matches.
func (s *Slot) Optional() *Slot {
	cp := *s
	cp.optional = true
	return &cp
}

// Param returns the name the dependency is passed under.
func (s *Slot) Param() string {
	return s.param
}

// IsOptional reports whether the slot may stay empty.
func (s *Slot) IsOptional() bool {
	return s.optional
}

// fixtureName is the fixture name that satisfies the slot directly.
func (s *Slot) fixtureName() string {
	if s.from != "" {
		return s.from
	}
	return s.param
}

func (s *Slot) accepts(t reflect.Type) bool {
	return slices.Contains(s.types, t)
}

func (s *Slot) String() string {
	if s.from != "" {
		return fmt.Sprintf("%s(from %s)", s.param, s.from)
	}
	return fmt.Sprintf("%s%v", s.param, s.types)
}

// Deps holds the resolved dependencies passed to a factory function.
type Deps struct {
	devices map[string]device.Device
}

// Has reports whether param was resolved. Optional slots with no match
// are absent.
func (d Deps) Has(param string) bool {
	_, ok := d.devices[param]
	return ok
}

// Get returns the device passed under param, or nil.
func (d Deps) Get(param string) device.Device {
	return d.devices[param]
}

// Len returns the number of resolved dependencies.
func (d Deps) Len() int {
	return len(d.devices)
}

// Dep returns the dependency under param as a T.
func Dep[T device.Device](d Deps, param string) (T, error) {
	var zero T
	dev, ok := d.devices[param]
	if !ok {
		return zero, fmt.Errorf("%w: %q not provided", ErrDependencyUnavailable, param)
	}
	t, ok := dev.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is a %T, not %v",
			device.ErrDeviceTypeConflict, param, dev, reflect.TypeFor[T]())
	}
	return t, nil
}

// MustDep is like Dep but panics on error. Panics inside a factory
// function are reported as a *FactoryError.
func MustDep[T device.Device](d Deps, param string) T {
	t, err := Dep[T](d, param)
	if err != nil {
		panic(err)
	}
	return t
}
