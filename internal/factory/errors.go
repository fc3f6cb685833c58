package factory

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the factory package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, factory.ErrDependencyCycle) {
//	    // the module's wiring is broken
//	}
var (
	// ErrDependencyUnavailable is returned when a required dependency slot
	// matches no controller in the module.
	ErrDependencyUnavailable = errors.New("factory: dependency unavailable")

	// ErrDependencyCycle is returned when controllers depend on each other.
	ErrDependencyCycle = errors.New("factory: dependency cycle")

	// ErrDependencyAmbiguous is returned when a slot matches more than one
	// controller.
	ErrDependencyAmbiguous = errors.New("factory: ambiguous dependency")

	// ErrDependencyFailed is returned when a dependency could not be created.
	ErrDependencyFailed = errors.New("factory: dependency failed")

	// ErrFactorySkipped is returned when a skipped controller is invoked
	// with HonorSkip.
	ErrFactorySkipped = errors.New("factory: skipped")

	// ErrFactoryRaised is wrapped by every *FactoryError.
	ErrFactoryRaised = errors.New("factory: factory function failed")

	// ErrDuplicateFactory is returned when a module already has a
	// controller with the same name.
	ErrDuplicateFactory = errors.New("factory: duplicate factory")

	// ErrNotRegistered is returned when a controller is used outside a
	// module, or a name is not known to the module.
	ErrNotRegistered = errors.New("factory: not registered")

	// ErrNotCreated is returned when connecting a controller whose device
	// has not been created yet.
	ErrNotCreated = errors.New("factory: device not created")

	// ErrInvalidFactory is returned when registering a controller that was
	// constructed with bad arguments.
	ErrInvalidFactory = errors.New("factory: invalid factory")
)

// FactoryError wraps a failure of a factory function.
type FactoryError struct {
	Factory string
	Err     error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("factory %q: %v", e.Factory, e.Err)
}

func (e *FactoryError) Unwrap() []error {
	return []error{ErrFactoryRaised, e.Err}
}

// CycleError names the controllers forming a dependency cycle, in the
// order the cycle is walked.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	if len(e.Members) == 0 {
		return ErrDependencyCycle.Error()
	}
	path := append(append([]string(nil), e.Members...), e.Members[0])
	return fmt.Sprintf("%v: %s", ErrDependencyCycle, strings.Join(path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}
