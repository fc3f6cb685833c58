package devices

import (
	"context"
	"fmt"

	"github.com/nerrad567/beamline-core/internal/pv"
)

// Gap is an insertion device gap, driven through the ID servo controller.
type Gap struct {
	Base
	prefix string
}

// NewGap creates the gap of the insertion device at prefix
// (e.g. "SR03I-MO-SERVC-01:").
func NewGap(client pv.Client, prefix string) *Gap {
	g := &Gap{prefix: prefix}
	g.init("", client, prefix+"BLGAPMTR.VAL", prefix+"CURRGAPD")
	return g
}

// Position reads the current gap in mm.
func (g *Gap) Position(ctx context.Context) (float64, error) {
	return g.readFloat(ctx, g.prefix+"CURRGAPD")
}

// Move requests a new gap in mm.
func (g *Gap) Move(ctx context.Context, mm float64) error {
	if err := g.writeFloat(ctx, g.prefix+"BLGAPMTR.VAL", mm); err != nil {
		return err
	}
	if sim := g.Sim(); sim != nil && g.IsMock() {
		return sim.Put(ctx, g.prefix+"CURRGAPD", pv.FormatFloat(mm))
	}
	return nil
}

// Undulator is an insertion device. Its gap is a separate device shared
// with anything else that needs it.
type Undulator struct {
	Base
	prefix string
	gap    *Gap
}

// NewUndulator creates the undulator at prefix, moving gap.
func NewUndulator(client pv.Client, prefix string, gap *Gap) *Undulator {
	u := &Undulator{prefix: prefix, gap: gap}
	u.init("", client, prefix+"IDBLENA", prefix+"GAPSTATUS")
	return u
}

// Gap returns the gap device.
func (u *Undulator) Gap() *Gap { return u.gap }

// Enabled reports whether the beamline has control of the ID.
func (u *Undulator) Enabled(ctx context.Context) (bool, error) {
	raw, err := u.readString(ctx, u.prefix+"IDBLENA")
	if err != nil {
		return false, err
	}
	return parseBool(raw)
}

// SetGap moves the gap if the beamline has control.
func (u *Undulator) SetGap(ctx context.Context, mm float64) error {
	on, err := u.Enabled(ctx)
	if err != nil {
		return err
	}
	if !on && !u.IsMock() {
		return fmt.Errorf("undulator %s: beamline does not have ID control", u.Name())
	}
	return u.gap.Move(ctx, mm)
}

func parseBool(raw string) (bool, error) {
	switch raw {
	case "1", "true", "Enabled", "On", "Yes":
		return true, nil
	case "0", "false", "Disabled", "Off", "No":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrBadReading, raw)
}
