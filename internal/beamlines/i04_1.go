package beamlines

import (
	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// I04_1 wires i04-1. The beamline shares i04's front end, so it has no
// insertion device of its own.
func I04_1(env *beamline.Context) *factory.Module {
	activate(env, "i04-1")

	m := factory.NewModule("i04_1", env)
	m.MustRegister(
		synchrotron(),
		slits("s4_slit_gaps", "-AL-SLITS-04:"),
		motor("sample_x", "-MO-SAMP-01:X"),
		motor("sample_y", "-MO-SAMP-01:Y"),
		detector("pilatus", "-EA-PILAT-01:"),
	)
	return m
}
