package devices

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/pathprovider"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// spyClient records every call that reaches the control system.
type spyClient struct {
	mu    sync.Mutex
	calls []string
	inner pv.Client
}

func newSpy() *spyClient {
	return &spyClient{inner: pv.NewSim()}
}

func (s *spyClient) record(op, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op+" "+name)
}

func (s *spyClient) Connect(ctx context.Context, name string) error {
	s.record("connect", name)
	return s.inner.Connect(ctx, name)
}

func (s *spyClient) Get(ctx context.Context, name string) (pv.Value, error) {
	s.record("get", name)
	return s.inner.Get(ctx, name)
}

func (s *spyClient) Put(ctx context.Context, name, raw string) error {
	s.record("put", name)
	return s.inner.Put(ctx, name, raw)
}

func (s *spyClient) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func allDevices(client pv.Client) []device.Device {
	gap := NewGap(client, "SR03I-MO-SERVC-01:")
	paths := pathprovider.NewStaticVisitProvider("i03", "/tmp", pathprovider.NewLocalDirectoryService())
	return []device.Device{
		NewMotor(client, "BL03I-MO-SGON-01:X"),
		gap,
		NewUndulator(client, "SR03I-MO-SERVC-01:", gap),
		NewSlits(client, "BL03I-AL-SLITS-04:"),
		NewSynchrotron(client),
		NewDetector(client, "BL03I-EA-EIGER-01:", paths),
		NewBoolSignal(client, "BL03I-CS-COMM-01:MODE"),
	}
}

func TestMockConnectNeverTouchesClient(t *testing.T) {
	spy := newSpy()
	ctx := context.Background()

	for _, d := range allDevices(spy) {
		if err := d.Connect(ctx, device.ConnectOptions{Mock: true}); err != nil {
			t.Fatalf("%T mock Connect() error = %v", d, err)
		}
	}
	if calls := spy.Calls(); len(calls) != 0 {
		t.Errorf("mock connect reached the control system: %v", calls)
	}
}

func TestRealConnectUsesClient(t *testing.T) {
	spy := newSpy()
	m := NewMotor(spy, "BL03I-MO-SGON-01:X")

	if err := m.Connect(context.Background(), device.ConnectOptions{}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	want := []string{"connect BL03I-MO-SGON-01:X.VAL", "connect BL03I-MO-SGON-01:X.RBV"}
	if got := spy.Calls(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !m.IsConnected() || m.IsMock() {
		t.Error("motor should be connected for real")
	}

	// Connected devices return at once unless forced.
	if err := m.Connect(context.Background(), device.ConnectOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(spy.Calls()) != 2 {
		t.Errorf("second Connect() reached the client: %v", spy.Calls())
	}
	if err := m.Connect(context.Background(), device.ConnectOptions{ForceReconnect: true}); err != nil {
		t.Fatal(err)
	}
	if len(spy.Calls()) != 4 {
		t.Errorf("ForceReconnect should reconnect every PV: %v", spy.Calls())
	}
}

func TestConnectFailure(t *testing.T) {
	m := NewMotor(nil, "BL03I-MO-SGON-01:X")

	err := m.Connect(context.Background(), device.ConnectOptions{})
	if !errors.Is(err, pv.ErrNoControlSystem) {
		t.Fatalf("Connect() error = %v, want ErrNoControlSystem", err)
	}
	if m.IsConnected() {
		t.Error("failed connect must leave the device disconnected")
	}
	if _, err := m.Position(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Position() error = %v, want ErrNotConnected", err)
	}
}

func TestMotor_MockMove(t *testing.T) {
	ctx := context.Background()
	m := NewMotor(newSpy(), "BL03I-MO-SGON-01:X")
	if err := m.Connect(ctx, device.ConnectOptions{Mock: true}); err != nil {
		t.Fatal(err)
	}

	if pos, _ := m.Position(ctx); pos != 0 {
		t.Errorf("initial mock position = %v, want 0", pos)
	}
	if err := m.Move(ctx, 1.25); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if pos, _ := m.Position(ctx); pos != 1.25 {
		t.Errorf("Position() = %v, want 1.25", pos)
	}
}

func TestUndulator_SetGap(t *testing.T) {
	ctx := context.Background()
	sim := pv.NewSim()
	sim.Seed(map[string]string{"SR03I-MO-SERVC-01:IDBLENA": "0"})

	gap := NewGap(sim, "SR03I-MO-SERVC-01:")
	u := NewUndulator(sim, "SR03I-MO-SERVC-01:", gap)
	for _, d := range []device.Device{gap, u} {
		if err := d.Connect(ctx, device.ConnectOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	if u.Gap() != gap {
		t.Error("Gap() should return the injected gap")
	}
	if err := u.SetGap(ctx, 6.5); err == nil {
		t.Error("SetGap() without ID control should fail")
	}

	sim.Seed(map[string]string{"SR03I-MO-SERVC-01:IDBLENA": "1"})
	if err := u.SetGap(ctx, 6.5); err != nil {
		t.Fatalf("SetGap() error = %v", err)
	}
	v, err := sim.Lookup("SR03I-MO-SERVC-01:BLGAPMTR.VAL")
	if err != nil || v.Raw != "6.5" {
		t.Errorf("gap setpoint = %v, %v", v, err)
	}
}

func TestSlits_ChildrenNamedAndParented(t *testing.T) {
	s := NewSlits(nil, "BL03I-AL-SLITS-04:")
	s.SetName("s4_slit_gaps")

	if s.XGap.Name() != "s4_slit_gaps-x_gap" || s.YCentre.Name() != "s4_slit_gaps-y_centre" {
		t.Errorf("child names = %q, %q", s.XGap.Name(), s.YCentre.Name())
	}
	for _, m := range s.Children() {
		if m.Parent() != device.Device(s) {
			t.Errorf("%s parent = %v, want the slits", m.Name(), m.Parent())
		}
	}
	if s.Parent() != nil {
		t.Error("slits are top-level")
	}

	if err := s.Connect(context.Background(), device.ConnectOptions{}); err == nil {
		t.Error("slits without a control system should fail to connect")
	}
	if err := s.Connect(context.Background(), device.ConnectOptions{Mock: true}); err != nil {
		t.Errorf("mock Connect() error = %v", err)
	}
	if !s.IsConnected() || !s.XGap.IsConnected() {
		t.Error("mock connect should connect the slits and children")
	}
}

func TestSynchrotron(t *testing.T) {
	ctx := context.Background()
	sim := pv.NewSim()
	sim.Seed(map[string]string{
		"SR-DI-DCCT-01:SIGNAL": "300.2",
		"CS-CS-MSTAT-01:MODE":  ModeUser,
	})
	s := NewSynchrotron(sim)
	if err := s.Connect(ctx, device.ConnectOptions{}); err != nil {
		t.Fatal(err)
	}

	if c, err := s.RingCurrent(ctx); err != nil || c != 300.2 {
		t.Errorf("RingCurrent() = %v, %v", c, err)
	}
	if m, _ := s.Mode(ctx); m != ModeUser {
		t.Errorf("Mode() = %q, want User", m)
	}

	mock := NewSynchrotron(nil)
	mock.Connect(ctx, device.ConnectOptions{Mock: true}) //nolint:errcheck // Mock connect cannot fail
	if m, _ := mock.Mode(ctx); m != ModeUnknown {
		t.Errorf("mock Mode() = %q, want Unknown", m)
	}
}

func TestDetector_Prepare(t *testing.T) {
	ctx := context.Background()
	provider := pathprovider.NewStaticVisitProvider("i03", "/dls/i03/data/2026/cm1", pathprovider.NewLocalDirectoryService())
	d := NewDetector(nil, "BL03I-EA-EIGER-01:", provider)
	d.SetName("eiger")
	if err := d.Connect(ctx, device.ConnectOptions{Mock: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Prepare(ctx); !errors.Is(err, pathprovider.ErrNotUpdated) {
		t.Errorf("Prepare() before Update error = %v, want ErrNotUpdated", err)
	}

	if err := provider.Update(ctx, "xtal1", ".h5"); err != nil {
		t.Fatal(err)
	}
	info, err := d.Prepare(ctx)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if info.Filename != "i03-1-eiger.h5" {
		t.Errorf("Filename = %q", info.Filename)
	}
	got, _ := d.Sim().Lookup("BL03I-EA-EIGER-01:HDF5:FileName")
	if got.Raw != info.Filename {
		t.Errorf("FileName PV = %q, want %q", got.Raw, info.Filename)
	}

	if err := d.Arm(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := d.FrameCount(ctx); n != 0 {
		t.Errorf("FrameCount() = %d", n)
	}
}

func TestBoolSignal_AsCommissioningSignal(t *testing.T) {
	ctx := context.Background()
	env := beamline.NewContext()
	sig := NewBoolSignal(nil, "BL03I-CS-COMM-01:MODE")
	if err := sig.Connect(ctx, device.ConnectOptions{Mock: true}); err != nil {
		t.Fatal(err)
	}
	env.SetCommissioningSignal(sig)

	if on, err := env.ReadCommissioningMode(ctx); err != nil || on {
		t.Errorf("ReadCommissioningMode() = %v, %v; want false", on, err)
	}
	if err := sig.Set(ctx, true); err != nil {
		t.Fatal(err)
	}
	if on, _ := env.ReadCommissioningMode(ctx); !on {
		t.Error("ReadCommissioningMode() = false after Set(true)")
	}
}

func TestParseBool(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "Enabled": true, "0": false, "Off": false} {
		got, err := parseBool(raw)
		if err != nil || got != want {
			t.Errorf("parseBool(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := parseBool("maybe"); !errors.Is(err, ErrBadReading) {
		t.Errorf("parseBool(maybe) error = %v", err)
	}
}
