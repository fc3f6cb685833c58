package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/beamline-core/internal/connect"
	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/factory"
)

// Logger defines the logging interface used by the Loader.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Outcome is one device's line in a Run.
type Outcome struct {
	Device   string
	State    State
	Err      error
	Duration time.Duration
}

// ErrorKind classifies a failed outcome for journals and metrics. It is
// empty when the outcome has no error.
func (o Outcome) ErrorKind() string {
	if o.Err == nil {
		return ""
	}
	if kind, ok := connect.KindOf(o.Err); ok {
		return kind.String()
	}
	switch {
	case errors.Is(o.Err, factory.ErrDependencyFailed):
		return "dependency"
	case errors.Is(o.Err, factory.ErrFactoryRaised):
		return "creation"
	case o.State == StateCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Run summarises one MakeAllDevices batch for recorders.
type Run struct {
	ID         string
	Beamline   string
	Module     string
	Mock       bool
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Errors returns the number of failed outcomes.
func (r Run) Errors() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State.Failed() {
			n++
		}
	}
	return n
}

// Recorder receives a Run after every batch. Errors are logged and never
// fail the batch.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Option configures a single MakeAllDevices or MakeDevice call.
type Option func(*options)

type options struct {
	mock           bool
	includeSkipped bool
	forceReconnect bool
	connectTimeout time.Duration
	fixtures       map[string]device.Device
}

// Mock connects every device in simulation mode.
func Mock(mock bool) Option {
	return func(o *options) { o.mock = mock }
}

// IncludeSkipped also creates controllers marked as skipped.
func IncludeSkipped(include bool) Option {
	return func(o *options) { o.includeSkipped = include }
}

// ForceReconnect reconnects devices that are already connected.
func ForceReconnect(force bool) Option {
	return func(o *options) { o.forceReconnect = force }
}

// ConnectTimeout overrides every controller's connect timeout. Zero keeps
// the per-controller timeouts.
func ConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// Fixtures supplies ready-made devices for the call. A fixture named like
// a controller overrides it; see factory.Fixtures for how slots match.
// They are added to the module's own fixtures and win on a name clash.
func Fixtures(fixtures map[string]device.Device) Option {
	return func(o *options) { o.fixtures = fixtures }
}

// Loader creates and connects the devices of a wiring module.
type Loader struct {
	logger       Logger
	recorders    []Recorder
	orchestrator *connect.Orchestrator
	now          func() time.Time
}

// New creates a loader with no recorders.
func New() *Loader {
	return &Loader{
		logger:       noopLogger{},
		orchestrator: connect.NewOrchestrator(),
		now:          time.Now,
	}
}

// SetLogger sets the logger for the loader and its connect orchestrator.
func (l *Loader) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
	l.orchestrator.SetLogger(logger)
}

// AddRecorder registers a recorder notified after each batch.
func (l *Loader) AddRecorder(r Recorder) {
	if r != nil {
		l.recorders = append(l.recorders, r)
	}
}

// SetConcurrency caps simultaneous connect attempts. Zero means no cap.
func (l *Loader) SetConcurrency(n int) {
	l.orchestrator.Limit = n
}

// MakeAllDevices creates every non-skipped controller of m (plus any
// skipped controllers they depend on), then connects all created devices
// concurrently. Controllers overridden by a fixture are neither created
// nor connected; factories needing them receive the fixture instead.
//
// Per-factory failures never fail the call; they are reported in
// BatchResult.Errors. Only structural problems found while planning
// (cycles, unresolvable or ambiguous dependencies) return an error, and
// in that case nothing is created.
func (l *Loader) MakeAllDevices(ctx context.Context, m *factory.Module, opts ...Option) (*BatchResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	started := l.now()
	result := newBatchResult(uuid.NewString())
	durations := make(map[string]time.Duration)

	fx := m.NewFixtures(o.fixtures)
	controllers := m.Controllers()
	var selected []string
	for _, c := range controllers {
		result.States[c.Name()] = StateUnstarted
		switch {
		case fx.Has(c.Name()):
			result.States[c.Name()] = StateOverridden
			l.logger.Debug("device overridden by fixture", "device", c.Name())
		case !o.includeSkipped && c.Skipped():
			result.States[c.Name()] = StateSkipped
		default:
			selected = append(selected, c.Name())
		}
	}

	var plan []*factory.Controller
	if len(selected) > 0 {
		var err error
		plan, err = m.PlanWith(fx, selected...)
		if err != nil {
			return nil, fmt.Errorf("planning module %s: %w", m.Name(), err)
		}
	}

	created := l.createAll(ctx, m, fx, plan, result, durations)
	l.connectAll(ctx, created, o, result, durations)

	run := Run{
		ID:         result.RunID,
		Module:     m.Name(),
		Mock:       o.mock,
		StartedAt:  started,
		FinishedAt: l.now(),
	}
	run.Beamline, _ = m.Env().GetBeamline(m.Name()) //nolint:errcheck // Falls back to the module name
	for _, c := range controllers {
		name := c.Name()
		out := Outcome{Device: name, State: result.States[name], Duration: durations[name]}
		if f, ok := result.Errors[name]; ok {
			out.Err = f.Err
		}
		run.Outcomes = append(run.Outcomes, out)
	}

	l.logger.Info("device batch finished",
		"module", m.Name(),
		"run_id", result.RunID,
		"created", len(result.Devices),
		"connected", result.Count(StateConnected),
		"failed", len(result.Errors),
		"skipped", result.Count(StateSkipped),
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	l.record(ctx, run)

	return result, nil
}

// createAll walks the plan in order. A controller whose dependencies
// failed is not attempted.
func (l *Loader) createAll(
	ctx context.Context,
	m *factory.Module,
	fx *factory.Fixtures,
	plan []*factory.Controller,
	result *BatchResult,
	durations map[string]time.Duration,
) []*factory.Controller {
	var created []*factory.Controller

	for _, c := range plan {
		name := c.Name()

		if err := ctx.Err(); err != nil {
			result.fail(name, StateCancelled, fmt.Errorf("%w before creation: %w", connect.ErrConnectionCancelled, err))
			continue
		}

		if failed := l.failedDependencies(m, fx, name, result); len(failed) > 0 {
			result.fail(name, StateCreationFailed,
				fmt.Errorf("%w: %v", factory.ErrDependencyFailed, failed))
			l.logger.Warn("device skipped after dependency failure", "device", name, "dependencies", failed)
			continue
		}

		result.States[name] = StateInstantiating
		start := l.now()
		_, err := c.CreateWith(ctx, fx)
		durations[name] = l.now().Sub(start)

		switch {
		case err == nil:
			result.States[name] = StateCreated
			result.Devices[name] = c.Cached()
			created = append(created, c)
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			result.fail(name, StateCancelled, fmt.Errorf("%w during creation: %w", connect.ErrConnectionCancelled, err))
		default:
			result.fail(name, StateCreationFailed, err)
			l.logger.Warn("device creation failed", "device", name, "error", err)
		}
	}
	return created
}

func (l *Loader) failedDependencies(m *factory.Module, fx *factory.Fixtures, name string, result *BatchResult) []string {
	deps, err := m.DependenciesWith(fx, name)
	if err != nil {
		return nil
	}
	var failed []string
	for _, dep := range deps {
		if _, ok := result.Errors[dep]; ok {
			failed = append(failed, dep)
		}
	}
	slices.Sort(failed)
	return failed
}

func (l *Loader) connectAll(
	ctx context.Context,
	created []*factory.Controller,
	o options,
	result *BatchResult,
	durations map[string]time.Duration,
) {
	targets := make([]connect.Target, 0, len(created))
	for _, c := range created {
		timeout := c.Timeout()
		if o.connectTimeout > 0 {
			timeout = o.connectTimeout
		}
		targets = append(targets, connect.Target{
			Name:   c.Name(),
			Device: c.Cached(),
			Options: device.ConnectOptions{
				Mock:           o.mock || c.IsMock(),
				Timeout:        timeout,
				ForceReconnect: o.forceReconnect,
			},
			Lock: c.ConnectLocker(),
		})
	}

	for _, r := range l.orchestrator.ConnectAll(ctx, targets) {
		durations[r.Name] += r.Duration
		if r.Err == nil {
			result.States[r.Name] = StateConnected
			continue
		}
		result.fail(r.Name, connectState(r.Err), r.Err)
	}
}

func connectState(err error) State {
	kind, _ := connect.KindOf(err)
	switch kind {
	case connect.KindTimeout:
		return StateTimedOut
	case connect.KindCancelled:
		return StateCancelled
	default:
		return StateDisconnected
	}
}

func (l *Loader) record(ctx context.Context, run Run) {
	// Recorders still run when the batch itself was cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, r := range l.recorders {
		if err := r.RecordRun(ctx, run); err != nil {
			l.logger.Error("recording device batch failed", "run_id", run.ID, "error", err)
		}
	}
}

// MakeDevice creates and connects the controller named name and its
// dependencies. Skip flags are ignored: naming a device is a direct request.
func (l *Loader) MakeDevice(ctx context.Context, m *factory.Module, name string, opts ...Option) (device.Device, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q in module %s", factory.ErrNotRegistered, name, m.Name())
	}

	call := []factory.CallOption{factory.Connect(true), factory.WithMock(o.mock)}
	if o.connectTimeout > 0 {
		call = append(call, factory.WithTimeout(o.connectTimeout))
	}
	if o.forceReconnect {
		call = append(call, factory.ForceReconnect())
	}
	if len(o.fixtures) > 0 {
		call = append(call, factory.WithFixtures(o.fixtures))
	}

	dev, err := c.Get(ctx, call...)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("device made", "device", name, "module", m.Name())
	return dev, nil
}

var defaultLoader = New()

// MakeAllDevices runs Loader.MakeAllDevices on a loader with no logger
// and no recorders.
func MakeAllDevices(ctx context.Context, m *factory.Module, opts ...Option) (*BatchResult, error) {
	return defaultLoader.MakeAllDevices(ctx, m, opts...)
}

// MakeDevice runs Loader.MakeDevice on a loader with no logger and no
// recorders.
func MakeDevice(ctx context.Context, m *factory.Module, name string, opts ...Option) (device.Device, error) {
	return defaultLoader.MakeDevice(ctx, m, name, opts...)
}
