package beamlines

import (
	"time"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// I03 wires the i03 MX beamline. It also serves "s03", the simulated
// beamline, which has no detector, ring or goniometer hardware.
func I03(env *beamline.Context) *factory.Module {
	bl := activate(env, "s03")
	skipOnSim := factory.Skip(bl == "s03")

	m := factory.NewModule("i03", env)
	m.MustRegister(
		synchrotron(skipOnSim),
		undulatorGap(factory.Timeout(10*time.Second)),
		undulator(),
		slits("s4_slit_gaps", "-AL-SLITS-04:"),
		motor("smargon_x", "-MO-SGON-01:X"),
		motor("smargon_y", "-MO-SGON-01:Y"),
		motor("smargon_z", "-MO-SGON-01:Z"),
		motor("detector_z", "-MO-DET-01:Z", skipOnSim),
		detector("eiger", "-EA-EIGER-01:", skipOnSim, factory.Timeout(60*time.Second)),
		commissioning(),
	)
	return m
}
