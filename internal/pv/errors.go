package pv

import "errors"

// Sentinel errors for control-system access.
var (
	// ErrNoControlSystem is returned by Unavailable: no client was configured.
	ErrNoControlSystem = errors.New("pv: no control system configured")

	// ErrNotConnected is returned when a PV is read before it connected.
	ErrNotConnected = errors.New("pv: not connected")

	// ErrUnknownPV is returned by Sim for a PV that was never seeded or put.
	ErrUnknownPV = errors.New("pv: unknown process variable")

	// ErrInvalidName is returned for an empty PV name.
	ErrInvalidName = errors.New("pv: name cannot be empty")

	// ErrBadValue is returned when a value cannot be converted.
	ErrBadValue = errors.New("pv: bad value")
)
