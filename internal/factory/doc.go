// Package factory turns device factory functions into singleton
// controllers and resolves the dependencies between them.
//
// A Controller wraps one factory function. Its first successful Get plans
// the dependency graph, creates missing dependencies, then builds the
// device, renames it to the controller name, registers it in the
// context's device registry and caches it. Later calls return the cached
// object.
//
// # Declaring a module
//
//	m := factory.NewModule("i03", env)
//	m.MustRegister(
//	    factory.New("undulator_gap", newGap, factory.Timeout(10*time.Second)),
//	    factory.New("undulator", newUndulator,
//	        factory.DependsOn(factory.Needs[*devices.Gap]("gap"))),
//	    factory.New("eiger", newEiger, factory.Skip(true)),
//	)
//
// Inside a factory function dependencies are read from Deps:
//
//	func newUndulator(ctx context.Context, env *beamline.Context, deps factory.Deps) (*devices.Undulator, error) {
//	    gap, err := factory.Dep[*devices.Gap](deps, "gap")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return devices.NewUndulator(env.ControlSystem(), env.Prefix().InsertionPV("-MO-SERVC-01:"), gap), nil
//	}
//
// # Dependency matching
//
// A Slot matches the device type of every other controller in the module
// by exact type identity. Exactly one must match: none is
// ErrDependencyUnavailable (unless the slot is Optional), more than one is
// ErrDependencyAmbiguous. From pins a slot to a named controller.
//
// Module.Plan orders controllers with Kahn's algorithm, breaking ties by
// declaration order. Cycles are reported as *CycleError. Planning never
// creates anything, so a broken module leaves the registry untouched.
//
// # Fixtures
//
// Fixtures stand in for controllers, typically in tests:
//
//	fx := m.NewFixtures(map[string]device.Device{"undulator_gap": fakeGap})
//	plan, err := m.PlanWith(fx)
//
// A fixture named like a controller overrides it; slots are also matched
// to fixtures by From target or parameter name before any controller is
// considered. Module.Fixture registers lazy fixtures built on first use.
//
// # Errors
//
// Factory function failures (errors and panics) are returned as
// *FactoryError, which matches ErrFactoryRaised. A dependency that fails
// makes its dependents fail with ErrDependencyFailed.
//
// # Thread Safety
//
// Controllers and modules are safe for concurrent use. Creation and
// connection are each serialized per controller.
package factory
