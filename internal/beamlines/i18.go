package beamlines

import (
	"time"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// I18 wires the i18 microfocus spectroscopy beamline.
func I18(env *beamline.Context) *factory.Module {
	activate(env, "i18")

	m := factory.NewModule("i18", env)
	m.MustRegister(
		synchrotron(),
		undulatorGap(),
		undulator(),
		slits("slits_1", "-AL-SLITS-01:"),
		motor("table_x", "-MO-TABLE-01:X"),
		motor("table_y", "-MO-TABLE-01:Y"),
		detector("xspress3", "-EA-XSP3-01:", factory.Timeout(45*time.Second)),
		commissioning(),
	)
	return m
}
