package beamlines

import (
	"context"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/devices"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// activate makes sure env has a beamline, defaulting to def, and returns it.
func activate(env *beamline.Context, def string) string {
	name, err := env.GetBeamline(def)
	if err != nil {
		name = def
	}
	if err := env.SetBeamline(name); err != nil {
		// Not a PV-style name; keep building with the default prefixes.
		name = def
		_ = env.SetBeamline(def) //nolint:errcheck // def is always valid
	}
	return name
}

func motor(name, record string, opts ...factory.Option) *factory.Controller {
	return factory.New(name, func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.Motor, error) {
		return devices.NewMotor(env.ControlSystem(), env.Prefix().PV(record)), nil
	}, opts...)
}

func slits(name, prefix string, opts ...factory.Option) *factory.Controller {
	return factory.New(name, func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.Slits, error) {
		return devices.NewSlits(env.ControlSystem(), env.Prefix().PV(prefix)), nil
	}, opts...)
}

func synchrotron(opts ...factory.Option) *factory.Controller {
	return factory.New("synchrotron", func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.Synchrotron, error) {
		return devices.NewSynchrotron(env.ControlSystem()), nil
	}, opts...)
}

func undulatorGap(opts ...factory.Option) *factory.Controller {
	return factory.New("undulator_gap", func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.Gap, error) {
		return devices.NewGap(env.ControlSystem(), env.Prefix().InsertionPV("-MO-SERVC-01:")), nil
	}, opts...)
}

func undulator(opts ...factory.Option) *factory.Controller {
	opts = append(opts, factory.DependsOn(factory.Needs[*devices.Gap]("gap")))
	return factory.New("undulator", func(_ context.Context, env *beamline.Context, deps factory.Deps) (*devices.Undulator, error) {
		gap, err := factory.Dep[*devices.Gap](deps, "gap")
		if err != nil {
			return nil, err
		}
		return devices.NewUndulator(env.ControlSystem(), env.Prefix().InsertionPV("-MO-SERVC-01:"), gap), nil
	}, opts...)
}

func detector(name, prefix string, opts ...factory.Option) *factory.Controller {
	return factory.New(name, func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.Detector, error) {
		return devices.NewDetector(env.ControlSystem(), env.Prefix().PV(prefix), env.PathProvider()), nil
	}, opts...)
}

// commissioning installs the signal it creates as the context's
// commissioning-mode reader.
func commissioning(opts ...factory.Option) *factory.Controller {
	return factory.New("commissioning", func(_ context.Context, env *beamline.Context, _ factory.Deps) (*devices.BoolSignal, error) {
		sig := devices.NewBoolSignal(env.ControlSystem(), env.Prefix().PV("-CS-BATON-01:COMMISSIONING"))
		env.SetCommissioningSignal(sig)
		return sig, nil
	}, opts...)
}
