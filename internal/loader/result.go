package loader

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nerrad567/beamline-core/internal/device"
)

// State is where a factory ended up in a batch.
type State int

const (
	StateUnstarted State = iota
	StateSkipped
	StateInstantiating
	StateCreationFailed
	StateCreated
	StateConnected
	StateDisconnected
	StateTimedOut
	StateCancelled
	StateOverridden
)

var stateNames = [...]string{
	StateUnstarted:      "unstarted",
	StateSkipped:        "skipped",
	StateInstantiating:  "instantiating",
	StateCreationFailed: "creation_failed",
	StateCreated:        "created",
	StateConnected:      "connected",
	StateDisconnected:   "disconnected",
	StateTimedOut:       "timed_out",
	StateCancelled:      "cancelled",
	StateOverridden:     "overridden",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Failed reports whether the state is a terminal failure.
func (s State) Failed() bool {
	switch s {
	case StateCreationFailed, StateDisconnected, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Failure records why one factory did not produce a connected device.
type Failure struct {
	Factory string
	State   State
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Factory, f.State, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// BatchResult is the outcome of MakeAllDevices.
//
// Devices holds every device that was created, connected or not. Every
// selected factory that failed to be created or connected has an entry in
// Errors, so a name in both maps is a device whose connect failed. States
// covers every controller in the module, skipped and overridden ones
// included. Fixtures are never connected and never appear in Devices.
type BatchResult struct {
	RunID   string
	Devices map[string]device.Device
	Errors  map[string]*Failure
	States  map[string]State
}

func newBatchResult(runID string) *BatchResult {
	return &BatchResult{
		RunID:   runID,
		Devices: make(map[string]device.Device),
		Errors:  make(map[string]*Failure),
		States:  make(map[string]State),
	}
}

func (r *BatchResult) fail(name string, state State, err error) {
	r.States[name] = state
	r.Errors[name] = &Failure{Factory: name, State: state, Err: err}
}

// OK reports whether every selected factory connected.
func (r *BatchResult) OK() bool {
	return len(r.Errors) == 0
}

// OrRaise returns the devices, or all failures joined in name order.
func (r *BatchResult) OrRaise() (map[string]device.Device, error) {
	if len(r.Errors) == 0 {
		return r.Devices, nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, name := range slices.Sorted(maps.Keys(r.Errors)) {
		errs = append(errs, r.Errors[name])
	}
	return nil, errors.Join(errs...)
}

// Names returns the created device names in lexical order.
func (r *BatchResult) Names() []string {
	return slices.Sorted(maps.Keys(r.Devices))
}

// Count returns how many controllers ended in state s.
func (r *BatchResult) Count(s State) int {
	n := 0
	for _, st := range r.States {
		if st == s {
			n++
		}
	}
	return n
}
