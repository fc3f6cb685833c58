package pathprovider

import "errors"

var (
	// ErrNotUpdated is returned by Path before the first successful Update,
	// or after an Update failed.
	ErrNotUpdated = errors.New("pathprovider: no data collection; call Update first")

	// ErrDeviceNameRequired is returned by Path when called without a device name.
	ErrDeviceNameRequired = errors.New("pathprovider: device name required")
)
