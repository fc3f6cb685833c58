package connect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/beamline-core/internal/device"
)

// Logger defines the logging interface used by the Orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Device runs one bounded connect attempt.
//
// Connect runs on its own goroutine and is abandoned (not waited for) once
// the timeout fires or ctx ends; the attempt context passed to it is
// cancelled at that point. Failures are returned as *Error.
func Device(ctx context.Context, dev device.Device, opts device.ConnectOptions) error {
	start := time.Now()
	name := dev.Name()
	opts.Timeout = opts.EffectiveTimeout()

	if err := ctx.Err(); err != nil {
		return &Error{Device: name, Kind: KindCancelled, Err: context.Cause(ctx)}
	}

	attemptCtx, cancel := context.WithTimeoutCause(ctx, opts.Timeout, ErrConnectionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic during connect: %v", r)
			}
		}()
		done <- dev.Connect(attemptCtx, opts)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-attemptCtx.Done():
	}

	elapsed := time.Since(start)
	switch {
	case ctx.Err() != nil:
		return &Error{Device: name, Kind: KindCancelled, Err: context.Cause(ctx), Duration: elapsed}
	case attemptCtx.Err() != nil:
		return &Error{Device: name, Kind: KindTimeout, Err: err, Duration: elapsed}
	default:
		return &Error{Device: name, Kind: KindFailed, Err: err, Duration: elapsed}
	}
}

// Target is one device handed to ConnectAll.
type Target struct {
	Name    string
	Device  device.Device
	Options device.ConnectOptions

	// Lock, when set, is held for the duration of the attempt.
	Lock sync.Locker
}

// Result is the outcome of connecting one Target.
type Result struct {
	Name     string
	Device   device.Device
	Err      error
	Duration time.Duration
}

// Orchestrator connects batches of devices concurrently.
//
// Attempts are independent: one failure never cancels the others. Only
// the caller's context can cut the batch short.
type Orchestrator struct {
	// Limit caps the number of simultaneous attempts. Zero means no cap.
	Limit int

	logger Logger
}

// NewOrchestrator creates an orchestrator with no concurrency cap.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{logger: noopLogger{}}
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	o.logger = logger
}

func (o *Orchestrator) log() Logger {
	if o.logger == nil {
		return noopLogger{}
	}
	return o.logger
}

// ConnectAll starts one attempt per target, in input order, and waits for
// all of them. Results are returned in input order.
func (o *Orchestrator) ConnectAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))

	var g errgroup.Group
	if o.Limit > 0 {
		g.SetLimit(o.Limit)
	}

	for i, t := range targets {
		g.Go(func() error {
			results[i] = o.connectOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Goroutines report through results

	return results
}

func (o *Orchestrator) connectOne(ctx context.Context, t Target) Result {
	if t.Lock != nil {
		t.Lock.Lock()
		defer t.Lock.Unlock()
	}

	start := time.Now()
	err := Device(ctx, t.Device, t.Options)
	r := Result{Name: t.Name, Device: t.Device, Err: err, Duration: time.Since(start)}

	if err != nil {
		o.log().Warn("device connect failed", "device", t.Name, "error", err, "duration", r.Duration)
	} else {
		o.log().Debug("device connected", "device", t.Name, "mock", t.Options.Mock, "duration", r.Duration)
	}
	return r
}
