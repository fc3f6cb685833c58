// Package beamline holds the cross-cutting configuration consumed by
// device factories.
//
// A Context names the active beamline and derives its PV prefixes
// (i03 -> BL03I / SR03I). It also carries the data path provider, an
// optional commissioning-mode signal, the control-system client and the
// device registry. Contexts are explicit values: wiring modules and the
// loader receive one, and tests build their own with NewContext. Default
// returns a lazily created process-wide instance for callers that want one.
//
// Names and modules:
//
// $BEAMLINE values do not always match the wiring module name. i04-1 is
// served by module i04_1, s03 (the simulated i03) by i03, and p46..p49 by
// training_rig. ModuleNameForBeamline and BeamlinesForModule translate in
// both directions.
package beamline
