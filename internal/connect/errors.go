package connect

import (
	"errors"
	"fmt"
	"time"
)

// Connection errors. Every failed attempt wraps exactly one of these.
var (
	// ErrConnectionTimeout is returned when an attempt exceeds its timeout.
	ErrConnectionTimeout = errors.New("connect: timed out")

	// ErrConnectionFailed is returned when the device reported an error.
	ErrConnectionFailed = errors.New("connect: failed")

	// ErrConnectionCancelled is returned when the caller's context ended
	// before the attempt completed.
	ErrConnectionCancelled = errors.New("connect: cancelled")
)

// Kind classifies a failed connect attempt.
type Kind int

const (
	KindFailed Kind = iota
	KindTimeout
	KindCancelled
)

// String returns the kind in snake_case, as stored in the audit journal.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrConnectionTimeout
	case KindCancelled:
		return ErrConnectionCancelled
	default:
		return ErrConnectionFailed
	}
}

// Error describes one failed attempt.
//
// errors.Is matches both the Kind's sentinel and the underlying cause.
type Error struct {
	Device   string
	Kind     Kind
	Err      error
	Duration time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Device, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the Kind of a connect error, and false for nil or
// unrelated errors.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	switch {
	case errors.Is(err, ErrConnectionTimeout):
		return KindTimeout, true
	case errors.Is(err, ErrConnectionCancelled):
		return KindCancelled, true
	case errors.Is(err, ErrConnectionFailed):
		return KindFailed, true
	}
	return KindFailed, false
}
