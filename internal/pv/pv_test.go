package pv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/beamline-core/internal/infrastructure/mqtt"
)

// fakeBus records publishes and lets tests deliver messages to subscribers.
type fakeBus struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    map[string][]byte
	retained     map[string]bool
	subscribeErr error

	// When set, Subscribe signals entered and then waits for gate.
	entered chan struct{}
	gate    chan struct{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(map[string][]byte),
		retained:  make(map[string]bool),
	}
}

func (b *fakeBus) Publish(topic string, payload []byte, _ byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = payload
	b.retained[topic] = retained
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *fakeBus) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	if h == nil {
		t.Fatalf("no subscriber for %s", topic)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func (b *fakeBus) subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[topic]
	return ok
}

func TestValueFloat(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"1.5", 1.5, false},
		{"-3e2", -300, false},
		{"OPEN", 0, true},
	}
	for _, tt := range tests {
		got, err := Value{Raw: tt.raw}.Float()
		if (err != nil) != tt.wantErr {
			t.Errorf("Float(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrBadValue) {
			t.Errorf("Float(%q) error = %v, want ErrBadValue", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("Float(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if FormatFloat(2.25) != "2.25" {
		t.Errorf("FormatFloat(2.25) = %q", FormatFloat(2.25))
	}
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var c Client = Unavailable{}

	if err := c.Connect(ctx, "X"); !errors.Is(err, ErrNoControlSystem) {
		t.Errorf("Connect() error = %v", err)
	}
	if _, err := c.Get(ctx, "X"); !errors.Is(err, ErrNoControlSystem) {
		t.Errorf("Get() error = %v", err)
	}
	if err := c.Put(ctx, "X", "1"); !errors.Is(err, ErrNoControlSystem) {
		t.Errorf("Put() error = %v", err)
	}
}

func TestSim(t *testing.T) {
	ctx := context.Background()
	s := NewSim()
	s.Seed(map[string]string{"BL03I-MO-SAMP-01:X.RBV": "1.25"})

	if err := s.Connect(ctx, "anything"); err != nil {
		t.Errorf("Connect() error = %v", err)
	}
	if err := s.Connect(ctx, ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Connect(\"\") error = %v, want ErrInvalidName", err)
	}

	v, err := s.Get(ctx, "BL03I-MO-SAMP-01:X.RBV")
	if err != nil || v.Raw != "1.25" {
		t.Errorf("Get() = %v, %v", v, err)
	}

	v, err = s.Get(ctx, "UNSEEDED")
	if err != nil || v.Raw != "0" {
		t.Errorf("Get(unseeded) = %v, %v, want zero value", v, err)
	}
	if _, err := s.Lookup("UNSEEDED"); !errors.Is(err, ErrUnknownPV) {
		t.Errorf("Lookup(unseeded) error = %v, want ErrUnknownPV", err)
	}

	if err := s.Put(ctx, "UNSEEDED", "7"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if v, _ := s.Lookup("UNSEEDED"); v.Raw != "7" {
		t.Errorf("Lookup after Put = %q, want 7", v.Raw)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Connect(cancelled, "X"); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect(cancelled) error = %v", err)
	}
}

func TestGateway_ConnectWaitsForFirstValue(t *testing.T) {
	bus := newFakeBus()
	topics := mqtt.Topics{Prefix: "bl"}
	g := NewGateway(bus, topics, 1)
	pvName := "BL03I-MO-SAMP-01:X.RBV"

	done := make(chan error, 1)
	go func() { done <- g.Connect(context.Background(), pvName) }()

	deadline := time.After(time.Second)
	for !bus.subscribed(topics.PVValue(pvName)) {
		select {
		case <-deadline:
			t.Fatal("gateway never subscribed")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := g.Get(context.Background(), pvName); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Get() before first value error = %v, want ErrNotConnected", err)
	}

	bus.deliver(t, topics.PVValue(pvName), "4.5")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect() did not return after first value")
	}

	v, err := g.Get(context.Background(), pvName)
	if err != nil || v.Raw != "4.5" {
		t.Errorf("Get() = %v, %v", v, err)
	}

	// Already connected: returns immediately
	if err := g.Connect(context.Background(), pvName); err != nil {
		t.Errorf("second Connect() error = %v", err)
	}
}

func TestGateway_ConnectTimesOutWithoutValue(t *testing.T) {
	g := NewGateway(newFakeBus(), mqtt.Topics{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := g.Connect(ctx, "BL03I-EA-EIGER-01:CAM"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want DeadlineExceeded", err)
	}
}

func TestGateway_SubscribeFailure(t *testing.T) {
	bus := newFakeBus()
	bus.subscribeErr = mqtt.ErrNotConnected
	g := NewGateway(bus, mqtt.Topics{}, 1)

	err := g.Connect(context.Background(), "X")
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Connect() error = %v, want ErrNotConnected", err)
	}
}

func TestGateway_SubscribeFailureReleasesWaiters(t *testing.T) {
	bus := newFakeBus()
	bus.subscribeErr = mqtt.ErrNotConnected
	bus.entered = make(chan struct{}, 2)
	bus.gate = make(chan struct{})
	g := NewGateway(bus, mqtt.Topics{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := make(chan error, 1)
	go func() { first <- g.Connect(ctx, "X") }()
	<-bus.entered

	// The second call finds the pending entry and waits on it.
	second := make(chan error, 1)
	go func() { second <- g.Connect(ctx, "X") }()
	time.Sleep(20 * time.Millisecond)
	close(bus.gate)

	for name, ch := range map[string]chan error{"first": first, "second": second} {
		select {
		case err := <-ch:
			if !errors.Is(err, mqtt.ErrNotConnected) {
				t.Errorf("%s Connect() error = %v, want the subscribe error", name, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s Connect() still waiting after the subscription failed", name)
		}
	}

	// A later attempt subscribes again.
	bus.mu.Lock()
	bus.subscribeErr = nil
	bus.mu.Unlock()
	bus.entered = nil
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := g.Connect(short, "X"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("retry Connect() error = %v, want DeadlineExceeded while awaiting a value", err)
	}
	if !bus.subscribed(mqtt.Topics{}.PVValue("X")) {
		t.Error("retry should subscribe again")
	}
}

func TestGateway_SetLoggerNil(t *testing.T) {
	g := NewGateway(newFakeBus(), mqtt.Topics{}, 1)
	g.SetLogger(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Connect logs after subscribing; a nil logger must not panic.
	if err := g.Connect(ctx, "X"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want DeadlineExceeded", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestGateway_PutAndClose(t *testing.T) {
	bus := newFakeBus()
	topics := mqtt.Topics{}
	g := NewGateway(bus, topics, 1)

	if err := g.Put(context.Background(), "BL03I-MO-SAMP-01:X", "2"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	put := topics.PVPut("BL03I-MO-SAMP-01:X")
	if string(bus.published[put]) != "2" || bus.retained[put] {
		t.Errorf("put published %q retained=%v", bus.published[put], bus.retained[put])
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Connect(ctx, "Y") //nolint:errcheck // Released by cancel
	deadline := time.After(time.Second)
	for !bus.subscribed(topics.PVValue("Y")) {
		select {
		case <-deadline:
			t.Fatal("gateway never subscribed")
		case <-time.After(time.Millisecond):
		}
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if bus.subscribed(topics.PVValue("Y")) {
		t.Error("Close() should unsubscribe")
	}
}
