package beamline

import (
	"slices"
)

// moduleOverrides maps $BEAMLINE values to the wiring module serving them
// when the two differ.
var moduleOverrides = map[string]string{
	"i04-1": "i04_1",
	"i13-1": "i13_1",
	"i19-1": "i19_1",
	"i19-2": "i19_2",
	"i20-1": "i20_1",
	"s03":   "i03",
	"p46":   "training_rig",
	"p47":   "training_rig",
	"p48":   "training_rig",
	"p49":   "training_rig",
}

// ModuleNameForBeamline returns the wiring module for a beamline:
// "i04-1" -> "i04_1", "s03" -> "i03". Unlisted names map to themselves.
func ModuleNameForBeamline(beamline string) string {
	if mod, ok := moduleOverrides[beamline]; ok {
		return mod
	}
	return beamline
}

// BeamlinesForModule returns every name a module answers to, sorted.
// The module name itself is always included:
// "i03" -> [i03 s03], "training_rig" -> [p46 p47 p48 p49 training_rig].
func BeamlinesForModule(module string) []string {
	out := []string{module}
	for bl, mod := range moduleOverrides {
		if mod == module {
			out = append(out, bl)
		}
	}
	slices.Sort(out)
	return out
}
