package telemetry

import "errors"

// ErrPublish is returned when one or more status messages could not be published.
var ErrPublish = errors.New("telemetry: publish failed")
