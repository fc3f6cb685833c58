package beamlines

import (
	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// TrainingRig wires the p46-p49 training rigs: a sample stage and a camera.
func TrainingRig(env *beamline.Context) *factory.Module {
	activate(env, "p47")

	m := factory.NewModule("training_rig", env)
	m.MustRegister(
		motor("sample_x", "-MO-MAP-01:STAGE:X"),
		motor("sample_theta", "-MO-MAP-01:STAGE:A"),
		detector("det", "-DI-DCAM-01:"),
	)
	return m
}
