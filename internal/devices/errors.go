package devices

import "errors"

// Domain errors for the devices package.
var (
	// ErrNotConnected is returned when reading or writing a device that has
	// not connected.
	ErrNotConnected = errors.New("devices: not connected")

	// ErrBadReading is returned when a PV holds a value the device cannot
	// interpret.
	ErrBadReading = errors.New("devices: bad reading")
)
