package pv

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Client is the slice of a control-system client that devices consume.
//
// Connect verifies a PV is reachable and starts monitoring it; Get returns
// the latest value; Put requests a new setpoint. Implementations must be
// safe for concurrent use.
type Client interface {
	Connect(ctx context.Context, pv string) error
	Get(ctx context.Context, pv string) (Value, error)
	Put(ctx context.Context, pv string, raw string) error
}

// Value is a PV reading. Raw holds the wire text; numeric PVs are decoded
// on demand with Float.
type Value struct {
	Raw  string
	Time time.Time
}

// Float decodes a numeric value.
func (v Value) Float() (float64, error) {
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrBadValue, v.Raw)
	}
	return f, nil
}

// FormatFloat renders a float the way Put expects it.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Unavailable is the Client used when no control system has been set.
// Every operation fails with ErrNoControlSystem.
type Unavailable struct{}

func (Unavailable) Connect(_ context.Context, pv string) error {
	return fmt.Errorf("%w: connect %s", ErrNoControlSystem, pv)
}

func (Unavailable) Get(_ context.Context, pv string) (Value, error) {
	return Value{}, fmt.Errorf("%w: get %s", ErrNoControlSystem, pv)
}

func (Unavailable) Put(_ context.Context, pv string, _ string) error {
	return fmt.Errorf("%w: put %s", ErrNoControlSystem, pv)
}
