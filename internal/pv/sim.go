package pv

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sim is an in-memory Client backing devices in mock mode.
//
// Every PV connects immediately. Reads of a PV that was never seeded or
// put return the zero value "0" so mock motors start at the origin.
type Sim struct {
	mu     sync.RWMutex
	values map[string]Value
	now    func() time.Time
}

// NewSim returns an empty simulator.
func NewSim() *Sim {
	return &Sim{
		values: make(map[string]Value),
		now:    time.Now,
	}
}

// Seed sets initial values without going through Put.
func (s *Sim) Seed(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pv, raw := range values {
		s.values[pv] = Value{Raw: raw, Time: s.now()}
	}
}

func (s *Sim) Connect(ctx context.Context, pv string) error {
	if pv == "" {
		return ErrInvalidName
	}
	return ctx.Err()
}

func (s *Sim) Get(_ context.Context, pv string) (Value, error) {
	if pv == "" {
		return Value{}, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[pv]; ok {
		return v, nil
	}
	return Value{Raw: "0", Time: s.now()}, nil
}

func (s *Sim) Put(_ context.Context, pv string, raw string) error {
	if pv == "" {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[pv] = Value{Raw: raw, Time: s.now()}
	return nil
}

// Lookup returns a stored value without the zero default.
func (s *Sim) Lookup(pv string) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[pv]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownPV, pv)
	}
	return v, nil
}
