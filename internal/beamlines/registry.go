package beamlines

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// ErrUnknownBeamline is returned when no wiring module serves a beamline.
var ErrUnknownBeamline = errors.New("beamlines: unknown beamline")

// Builder creates a wiring module bound to env.
type Builder func(env *beamline.Context) *factory.Module

var builders = map[string]Builder{
	"i03":          I03,
	"i04_1":        I04_1,
	"i18":          I18,
	"training_rig": TrainingRig,
}

// Lookup returns the builder for a $BEAMLINE value, applying the name
// table ("s03" is served by i03, "p46" by training_rig).
func Lookup(name string) (Builder, error) {
	b, ok := builders[beamline.ModuleNameForBeamline(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBeamline, name)
	}
	return b, nil
}

// loaded holds the modules built by Load, per context and module name.
var (
	loadedMu sync.Mutex
	loaded   = make(map[*beamline.Context]map[string]*factory.Module)
)

// Load activates name on env and builds its module.
//
// A module is built once per env: its controllers own the devices put in
// env's registry, so later loads return the same module, and with it the
// cached devices, without touching env again.
func Load(env *beamline.Context, name string) (*factory.Module, error) {
	b, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	modName := beamline.ModuleNameForBeamline(name)

	loadedMu.Lock()
	defer loadedMu.Unlock()

	if m, ok := loaded[env][modName]; ok {
		return m, nil
	}
	if beamline.ValidateName(name) == nil {
		if err := env.SetBeamline(name); err != nil {
			return nil, err
		}
	}

	m := b(env)
	if loaded[env] == nil {
		loaded[env] = make(map[string]*factory.Module)
	}
	loaded[env][modName] = m
	return m, nil
}

// Forget drops the modules Load built for env.
func Forget(env *beamline.Context) {
	loadedMu.Lock()
	defer loadedMu.Unlock()
	delete(loaded, env)
}

// Modules returns the wiring module names in lexical order.
func Modules() []string {
	return slices.Sorted(maps.Keys(builders))
}

// All returns every beamline name with a wiring module, in lexical order.
// Module names are included alongside their aliases.
func All() []string {
	var out []string
	for _, mod := range Modules() {
		out = append(out, beamline.BeamlinesForModule(mod)...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
