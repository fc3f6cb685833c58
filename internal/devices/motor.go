package devices

import (
	"context"

	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// Motor is an EPICS motor record: setpoint in .VAL, readback in .RBV.
type Motor struct {
	Base
	record string
}

// NewMotor creates a motor for the record at prefix (e.g. "BL03I-MO-SGON-01:X").
func NewMotor(client pv.Client, record string) *Motor {
	m := &Motor{record: record}
	m.init("", client, record+".VAL", record+".RBV")
	return m
}

func newChildMotor(parent device.Device, client pv.Client, record string) *Motor {
	m := NewMotor(client, record)
	m.parent = parent
	return m
}

// Record returns the motor record name.
func (m *Motor) Record() string { return m.record }

// Position reads the readback.
func (m *Motor) Position(ctx context.Context) (float64, error) {
	return m.readFloat(ctx, m.record+".RBV")
}

// Move writes the setpoint. Against the simulator the readback follows at
// once.
func (m *Motor) Move(ctx context.Context, position float64) error {
	if err := m.writeFloat(ctx, m.record+".VAL", position); err != nil {
		return err
	}
	if sim := m.Sim(); sim != nil && m.IsMock() {
		return sim.Put(ctx, m.record+".RBV", pv.FormatFloat(position))
	}
	return nil
}
