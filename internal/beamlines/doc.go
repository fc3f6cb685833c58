// Package beamlines holds the per-beamline wiring modules and finds the
// right one for a $BEAMLINE value.
//
// Each module is a function building a factory.Module against a
// beamline.Context. PV prefixes are read from the context when each
// factory runs, so the same module serves every beamline that maps to it.
//
//	env := beamline.NewContext()
//	m, err := beamlines.Load(env, "s03") // i03 wiring, simulated beamline
//	res, err := loader.MakeAllDevices(ctx, m, loader.Mock(true))
package beamlines
