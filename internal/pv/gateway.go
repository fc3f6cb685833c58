package pv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/beamline-core/internal/infrastructure/mqtt"
)

// Bus is the MQTT surface the gateway needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging surface used by Gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Gateway is a Client that reaches PVs through an EPICS-to-MQTT gateway.
//
// The gateway publishes each monitored PV as a retained message on
// Topics.PVValue, so subscribing delivers the current value at once.
// A PV counts as connected once its first value has arrived.
type Gateway struct {
	bus    Bus
	topics mqtt.Topics
	qos    byte

	mu      sync.Mutex
	entries map[string]*entry
	logger  Logger
}

// entry tracks one monitored PV. ready closes on the first value, or with
// err set when the subscription could not be made.
type entry struct {
	ready chan struct{}
	once  sync.Once
	value Value
	err   error
}

// NewGateway creates a gateway client over bus.
func NewGateway(bus Bus, topics mqtt.Topics, qos byte) *Gateway {
	return &Gateway{
		bus:     bus,
		topics:  topics,
		qos:     qos,
		entries: make(map[string]*entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger. A nil logger disables logging.
func (g *Gateway) SetLogger(logger Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	g.logger = logger
}

// Connect subscribes to the PV and waits for its first value.
// Subsequent calls for a connected PV return immediately. Calls waiting
// on a subscription that fails return its error.
func (g *Gateway) Connect(ctx context.Context, pv string) error {
	if pv == "" {
		return ErrInvalidName
	}

	g.mu.Lock()
	e, ok := g.entries[pv]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		g.entries[pv] = e
	}
	logger := g.logger
	g.mu.Unlock()

	if !ok {
		err := g.bus.Subscribe(g.topics.PVValue(pv), g.qos, func(_ string, payload []byte) error {
			g.update(pv, payload)
			return nil
		})
		if err != nil {
			err = fmt.Errorf("subscribing to %s: %w", pv, err)
			g.mu.Lock()
			if g.entries[pv] == e {
				delete(g.entries, pv)
			}
			e.err = err
			e.once.Do(func() { close(e.ready) })
			g.mu.Unlock()
			return err
		}
		logger.Debug("monitoring PV", "pv", pv)
	}

	select {
	case <-e.ready:
		return e.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", pv, ctx.Err())
	}
}

func (g *Gateway) update(pv string, payload []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[pv]
	if !ok {
		return
	}
	e.value = Value{Raw: string(payload), Time: time.Now()}
	e.once.Do(func() { close(e.ready) })
}

// Get returns the latest monitored value. The PV must have connected.
func (g *Gateway) Get(_ context.Context, pv string) (Value, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[pv]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNotConnected, pv)
	}
	select {
	case <-e.ready:
		return e.value, nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrNotConnected, pv)
	}
}

// Put publishes a setpoint request. Puts are never retained.
func (g *Gateway) Put(_ context.Context, pv string, raw string) error {
	if pv == "" {
		return ErrInvalidName
	}
	if err := g.bus.Publish(g.topics.PVPut(pv), []byte(raw), g.qos, false); err != nil {
		return fmt.Errorf("put %s: %w", pv, err)
	}
	return nil
}

// Close unsubscribes from every monitored PV.
func (g *Gateway) Close() error {
	g.mu.Lock()
	pvs := make([]string, 0, len(g.entries))
	for pv := range g.entries {
		pvs = append(pvs, pv)
	}
	g.entries = make(map[string]*entry)
	logger := g.logger
	g.mu.Unlock()

	for _, pv := range pvs {
		if err := g.bus.Unsubscribe(g.topics.PVValue(pv)); err != nil {
			logger.Warn("unsubscribe failed", "pv", pv, "error", err)
		}
	}
	return nil
}
