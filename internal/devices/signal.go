package devices

import (
	"context"

	"github.com/nerrad567/beamline-core/internal/pv"
)

// BoolSignal is a single boolean PV, such as the commissioning-mode
// switch. It satisfies beamline.BoolReader.
type BoolSignal struct {
	Base
	pvName string
}

// NewBoolSignal creates a signal reading pvName.
func NewBoolSignal(client pv.Client, pvName string) *BoolSignal {
	s := &BoolSignal{pvName: pvName}
	s.init("", client, pvName)
	return s
}

// ReadBool reads the signal.
func (s *BoolSignal) ReadBool(ctx context.Context) (bool, error) {
	raw, err := s.readString(ctx, s.pvName)
	if err != nil {
		return false, err
	}
	return parseBool(raw)
}

// Set writes the signal.
func (s *BoolSignal) Set(ctx context.Context, on bool) error {
	raw := "0"
	if on {
		raw = "1"
	}
	return s.writeString(ctx, s.pvName, raw)
}
