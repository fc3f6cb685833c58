package factory

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/connect"
	"github.com/nerrad567/beamline-core/internal/device"
)

// motor is a test device recording its connect calls.
type motor struct {
	name       string
	connectErr error
	mu         sync.Mutex
	connects   []device.ConnectOptions
}

func (m *motor) Name() string       { return m.name }
func (m *motor) SetName(name string) { m.name = name }

func (m *motor) Connect(_ context.Context, opts device.ConnectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects = append(m.connects, opts)
	return m.connectErr
}

func (m *motor) connectCalls() []device.ConnectOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.connects)
}

// stage depends on motors.
type stage struct {
	motor
	x, y *motor
}

// detector keeps its constructed name.
type detector struct {
	motor
}

func (*detector) KeepName() bool { return true }

func newMotor(context.Context, *beamline.Context, Deps) (*motor, error) {
	return &motor{name: "unnamed"}, nil
}

func newDetector(context.Context, *beamline.Context, Deps) (*detector, error) {
	return &detector{motor{name: "det-01"}}, nil
}

func testModule(t *testing.T, cs ...*Controller) *Module {
	t.Helper()
	m := NewModule("test", beamline.NewContext())
	if err := m.Register(cs...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return m
}

func names(cs []*Controller) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name()
	}
	return out
}

func TestGet_CreatesOnceAndRegisters(t *testing.T) {
	var calls atomic.Int32
	c := New("sample_x", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		calls.Add(1)
		return &motor{name: "unnamed"}, nil
	})
	m := testModule(t, c)
	ctx := context.Background()

	first, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get() #2 error = %v", err)
	}

	if first != second {
		t.Error("Get() should return the cached device")
	}
	if calls.Load() != 1 {
		t.Errorf("factory called %d times, want 1", calls.Load())
	}
	if first.Name() != "sample_x" {
		t.Errorf("device name = %q, want sample_x", first.Name())
	}
	if m.Env().Registry().Get("sample_x") != first {
		t.Error("device should be registered under the controller name")
	}
	if len(first.(*motor).connectCalls()) != 0 {
		t.Error("lazy controller should not connect")
	}
}

func TestGet_ConcurrentCallsCreateOnce(t *testing.T) {
	var calls atomic.Int32
	c := New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return &motor{}, nil
	})
	testModule(t, c)

	var wg sync.WaitGroup
	devs := make([]device.Device, 8)
	for i := range devs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			devs[i], _ = c.Get(context.Background())
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory called %d times, want 1", calls.Load())
	}
	for _, d := range devs {
		if d != devs[0] {
			t.Fatal("concurrent Get() returned different devices")
		}
	}
}

func TestGet_KeepsName(t *testing.T) {
	kept := New("eiger", newDetector)
	opted := New("motor", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		return &motor{name: "original"}, nil
	}, KeepDeviceName())
	testModule(t, kept, opted)

	d, _ := kept.Get(context.Background())
	if d.Name() != "det-01" {
		t.Errorf("NameKeeper device renamed to %q", d.Name())
	}
	o, _ := opted.Get(context.Background())
	if o.Name() != "original" {
		t.Errorf("KeepDeviceName device renamed to %q", o.Name())
	}
}

func TestGet_NotRegistered(t *testing.T) {
	c := New("orphan", newMotor)
	if _, err := c.Get(context.Background()); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Get() error = %v, want ErrNotRegistered", err)
	}
}

func TestGet_FactoryFailures(t *testing.T) {
	errBoom := errors.New("hardware missing")

	tests := []struct {
		name    string
		ctrl    *Controller
		wantErr error
	}{
		{
			name: "error",
			ctrl: New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
				return nil, errBoom
			}),
			wantErr: errBoom,
		},
		{
			name: "typed nil",
			ctrl: New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
				return nil, nil
			}),
			wantErr: device.ErrNilDevice,
		},
		{
			name: "panic",
			ctrl: New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
				panic("index out of range")
			}),
			wantErr: ErrFactoryRaised,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testModule(t, tt.ctrl)

			_, err := tt.ctrl.Get(context.Background())
			if !errors.Is(err, ErrFactoryRaised) || !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, want ErrFactoryRaised wrapping %v", err, tt.wantErr)
			}
			var fe *FactoryError
			if !errors.As(err, &fe) || fe.Factory != "m" {
				t.Errorf("Get() error = %#v, want *FactoryError for m", err)
			}
			if tt.ctrl.Cached() != nil {
				t.Error("failed creation must not be cached")
			}
			if m.Env().Registry().Len() != 0 {
				t.Error("failed creation must not be registered")
			}
		})
	}
}

func TestGet_RetryAfterFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c := New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		if fail.Load() {
			return nil, errors.New("not yet")
		}
		return &motor{}, nil
	})
	testModule(t, c)

	if _, err := c.Get(context.Background()); err == nil {
		t.Fatal("first Get() should fail")
	}
	fail.Store(false)
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get() after recovery error = %v", err)
	}
}

func TestGet_Dependencies(t *testing.T) {
	x := New("x", newMotor)
	s := New("stage", func(_ context.Context, _ *beamline.Context, deps Deps) (*stage, error) {
		xm, err := Dep[*motor](deps, "x")
		if err != nil {
			return nil, err
		}
		return &stage{x: xm}, nil
	}, DependsOn(Needs[*motor]("x")))
	m := testModule(t, x, s)

	got, err := As[*stage](context.Background(), s)
	if err != nil {
		t.Fatalf("As() error = %v", err)
	}
	if got.x == nil || got.x != x.Cached() {
		t.Error("stage should receive the cached x motor")
	}
	if want := []string{"stage", "x"}; !slices.Equal(m.Env().Registry().ListNames(), want) {
		t.Errorf("registry = %v, want %v", m.Env().Registry().ListNames(), want)
	}
}

func TestGet_DependencyFailureCascades(t *testing.T) {
	var stageCalls atomic.Int32
	x := New("x", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		return nil, errors.New("no motor")
	})
	s := New("stage", func(context.Context, *beamline.Context, Deps) (*stage, error) {
		stageCalls.Add(1)
		return &stage{}, nil
	}, DependsOn(Needs[*motor]("x")))
	testModule(t, x, s)

	_, err := s.Get(context.Background())
	if !errors.Is(err, ErrDependencyFailed) || !errors.Is(err, ErrFactoryRaised) {
		t.Errorf("Get() error = %v, want ErrDependencyFailed wrapping the factory error", err)
	}
	if stageCalls.Load() != 0 {
		t.Error("dependent factory must not run when a dependency fails")
	}
}

func TestGet_EagerConnect(t *testing.T) {
	c := New("m", newMotor, EagerConnect(), Mock(), Timeout(3*time.Second))
	testModule(t, c)

	dev, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	calls := dev.(*motor).connectCalls()
	if len(calls) != 1 {
		t.Fatalf("connect calls = %d, want 1", len(calls))
	}
	if !calls[0].Mock || calls[0].Timeout != 3*time.Second {
		t.Errorf("connect options = %+v, want mock with 3s timeout", calls[0])
	}
}

func TestGet_ConnectOverride(t *testing.T) {
	eager := New("eager", newMotor, EagerConnect())
	lazy := New("lazy", newMotor)
	testModule(t, eager, lazy)
	ctx := context.Background()

	e, _ := eager.Get(ctx, Connect(false))
	if n := len(e.(*motor).connectCalls()); n != 0 {
		t.Errorf("Connect(false) still connected %d times", n)
	}
	l, _ := lazy.Get(ctx, Connect(true), WithMock(true), WithTimeout(time.Second))
	calls := l.(*motor).connectCalls()
	if len(calls) != 1 || !calls[0].Mock || calls[0].Timeout != time.Second {
		t.Errorf("Connect(true) calls = %+v", calls)
	}
}

func TestGet_WithMockFalseKeepsMockController(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		call     []CallOption
		wantMock bool
	}{
		{"mock controller, no override", []Option{Mock()}, nil, true},
		{"mock controller, WithMock(false)", []Option{Mock()}, []CallOption{WithMock(false)}, true},
		{"real controller, WithMock(true)", nil, []CallOption{WithMock(true)}, true},
		{"real controller, WithMock(false)", nil, []CallOption{WithMock(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("m", newMotor, tt.opts...)
			testModule(t, c)

			dev, err := c.Get(context.Background(), append([]CallOption{Connect(true)}, tt.call...)...)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			calls := dev.(*motor).connectCalls()
			if len(calls) != 1 || calls[0].Mock != tt.wantMock {
				t.Errorf("connect calls = %+v, want Mock=%v", calls, tt.wantMock)
			}
		})
	}
}

func TestGet_EagerConnectFailureKeepsCache(t *testing.T) {
	dev := &motor{connectErr: errors.New("PV not found")}
	c := New("m", func(context.Context, *beamline.Context, Deps) (*motor, error) {
		return dev, nil
	}, EagerConnect())
	testModule(t, c)

	_, err := c.Get(context.Background())
	if !errors.Is(err, connect.ErrConnectionFailed) {
		t.Fatalf("Get() error = %v, want ErrConnectionFailed", err)
	}
	if c.Cached() != dev {
		t.Error("device should stay cached after a failed eager connect")
	}
	again, err := c.Get(context.Background())
	if err != nil || again != dev {
		t.Errorf("Get() after failed connect = %v, %v; want cached device", again, err)
	}
}

func TestGet_ForceReconnectOnCached(t *testing.T) {
	c := New("m", newMotor)
	testModule(t, c)
	ctx := context.Background()

	dev, _ := c.Get(ctx)
	if _, err := c.Get(ctx, ForceReconnect()); err != nil {
		t.Fatalf("Get(ForceReconnect) error = %v", err)
	}
	calls := dev.(*motor).connectCalls()
	if len(calls) != 1 || !calls[0].ForceReconnect {
		t.Errorf("connect calls = %+v, want one forced reconnect", calls)
	}
}

func TestGet_Skip(t *testing.T) {
	var skip atomic.Bool
	c := New("m", newMotor, SkipIf(skip.Load))
	testModule(t, c)
	ctx := context.Background()

	skip.Store(true)
	if !c.Skipped() {
		t.Fatal("Skipped() should follow the condition")
	}
	if _, err := c.Get(ctx, HonorSkip()); !errors.Is(err, ErrFactorySkipped) {
		t.Errorf("Get(HonorSkip) error = %v, want ErrFactorySkipped", err)
	}
	if _, err := c.Get(ctx); err != nil {
		t.Errorf("direct Get() of skipped controller error = %v", err)
	}

	skip.Store(false)
	if c.Skipped() {
		t.Error("Skipped() should be re-evaluated")
	}
}

func TestAs_TypeConflict(t *testing.T) {
	c := New("m", newMotor)
	testModule(t, c)

	if _, err := As[*detector](context.Background(), c); !errors.Is(err, device.ErrDeviceTypeConflict) {
		t.Errorf("As() error = %v, want ErrDeviceTypeConflict", err)
	}
}

func TestGet_RegistryConflictAcrossModules(t *testing.T) {
	env := beamline.NewContext()
	a := NewModule("a", env)
	b := NewModule("b", env)
	ma := New("shared", newMotor)
	mb := New("shared", newDetector, KeepDeviceName())
	a.MustRegister(ma)
	b.MustRegister(mb)

	if _, err := ma.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := mb.Get(context.Background()); !errors.Is(err, device.ErrDeviceTypeConflict) {
		t.Errorf("second Get() error = %v, want ErrDeviceTypeConflict", err)
	}
	if mb.Cached() != nil {
		t.Error("rejected device must not be cached")
	}
}

func TestRegister(t *testing.T) {
	m := NewModule("test", beamline.NewContext())

	if err := m.Register(New("a", newMotor), New("b", newMotor)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(New("a", newMotor)); !errors.Is(err, ErrDuplicateFactory) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateFactory", err)
	}
	if err := m.Register(New("c", newMotor), New("c", newMotor)); !errors.Is(err, ErrDuplicateFactory) {
		t.Errorf("duplicate within call error = %v, want ErrDuplicateFactory", err)
	}
	if _, ok := m.Lookup("c"); ok {
		t.Error("failed Register() must not add any controller")
	}

	other := NewModule("other", beamline.NewContext())
	c, _ := m.Lookup("a")
	if err := other.Register(c); !errors.Is(err, ErrDuplicateFactory) {
		t.Errorf("Register() in second module error = %v, want ErrDuplicateFactory", err)
	}

	invalid := []*Controller{
		New("", newMotor),
		New[*motor]("nil_fn", nil),
		New("bad_timeout", newMotor, Timeout(0)),
		nil,
	}
	for _, c := range invalid {
		if err := m.Register(c); !errors.Is(err, ErrInvalidFactory) {
			t.Errorf("Register(%v) error = %v, want ErrInvalidFactory", c, err)
		}
	}

	if got := names(m.Controllers()); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Controllers() = %v", got)
	}
}

func TestController_Accessors(t *testing.T) {
	c := New("m", newMotor, Mock(), EagerConnect(), Timeout(time.Second))
	if c.Type() != reflect.TypeFor[*motor]() {
		t.Errorf("Type() = %v", c.Type())
	}
	if !c.IsMock() || !c.IsEager() || c.Timeout() != time.Second || c.Skipped() {
		t.Error("accessors do not reflect options")
	}
	if New("d", newMotor).Timeout() != device.DefaultConnectTimeout {
		t.Error("default timeout should be DefaultConnectTimeout")
	}
	if err := c.Connect(context.Background(), device.ConnectOptions{}); !errors.Is(err, ErrNotCreated) {
		t.Errorf("Connect() before Get error = %v, want ErrNotCreated", err)
	}
}

func TestDeps(t *testing.T) {
	m := &motor{name: "x"}
	d := Deps{devices: map[string]device.Device{"x": m}}

	if !d.Has("x") || d.Has("y") || d.Len() != 1 || d.Get("x") != m {
		t.Error("Deps accessors mismatch")
	}
	if got, err := Dep[*motor](d, "x"); err != nil || got != m {
		t.Errorf("Dep() = %v, %v", got, err)
	}
	if _, err := Dep[*motor](d, "y"); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("Dep(missing) error = %v", err)
	}
	if _, err := Dep[*detector](d, "x"); !errors.Is(err, device.ErrDeviceTypeConflict) {
		t.Errorf("Dep(wrong type) error = %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustDep() should panic on a missing dependency")
		}
	}()
	MustDep[*motor](d, "y")
}

func TestSlotBuildersCopy(t *testing.T) {
	base := Needs[*motor]("x")
	pinned := base.From("a")
	opt := base.Optional()

	if base.from != "" || base.optional {
		t.Error("From/Optional must not modify the receiver")
	}
	if pinned.from != "a" || !opt.IsOptional() || opt.Param() != "x" {
		t.Error("builder copies lost their settings")
	}
	if !strings.Contains(pinned.String(), "from a") {
		t.Errorf("String() = %q", pinned.String())
	}
}
