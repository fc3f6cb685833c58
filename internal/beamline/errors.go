package beamline

import "errors"

var (
	// ErrBeamlineNotConfigured is returned by GetBeamline when no name is
	// active, $BEAMLINE is unset and no default was given.
	ErrBeamlineNotConfigured = errors.New("beamline: not configured")

	// ErrInvalidBeamline is returned for names that do not look like "i03" or "i04-1".
	ErrInvalidBeamline = errors.New("beamline: invalid beamline name")

	// ErrPathProviderMissing is returned by every method of the placeholder
	// path provider installed until SetPathProvider is called.
	ErrPathProviderMissing = errors.New("beamline: path provider not set")
)
