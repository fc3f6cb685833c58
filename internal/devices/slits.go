package devices

import (
	"context"
	"errors"

	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// Slits is a set of beam-defining slits with gap and centre motors.
type Slits struct {
	Base
	XGap    *Motor
	YGap    *Motor
	XCentre *Motor
	YCentre *Motor
}

// NewSlits creates slits at prefix (e.g. "BL03I-AL-SLITS-04:").
func NewSlits(client pv.Client, prefix string) *Slits {
	s := &Slits{}
	s.init("", client)
	s.XGap = newChildMotor(s, client, prefix+"X:SIZE")
	s.YGap = newChildMotor(s, client, prefix+"Y:SIZE")
	s.XCentre = newChildMotor(s, client, prefix+"X:CENTRE")
	s.YCentre = newChildMotor(s, client, prefix+"Y:CENTRE")
	return s
}

// Children returns the slit motors.
func (s *Slits) Children() []*Motor {
	return []*Motor{s.XGap, s.YGap, s.XCentre, s.YCentre}
}

// SetName renames the slits and their motors (e.g. "s4_slit_gaps-x_gap").
func (s *Slits) SetName(name string) {
	s.Base.SetName(name)
	s.XGap.SetName(name + "-x_gap")
	s.YGap.SetName(name + "-y_gap")
	s.XCentre.SetName(name + "-x_centre")
	s.YCentre.SetName(name + "-y_centre")
}

// Connect connects every motor.
func (s *Slits) Connect(ctx context.Context, opts device.ConnectOptions) error {
	var errs []error
	for _, m := range s.Children() {
		if err := m.Connect(ctx, opts); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return s.Base.Connect(ctx, opts)
}
