package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownDevice) {
//	    // handle not found case
//	}
var (
	// ErrUnknownDevice is returned when removing a name that is not registered.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrDuplicateName is returned when a name is already bound to a
	// different object of the same type.
	ErrDuplicateName = errors.New("device: duplicate name")

	// ErrDeviceTypeConflict is returned when a name is already bound to an
	// object of a different type.
	ErrDeviceTypeConflict = errors.New("device: type conflict")

	// ErrInvalidName is returned when a device name is empty.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrNilDevice is returned when registering a nil device.
	ErrNilDevice = errors.New("device: nil device")
)
