package factory

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/beamline-core/internal/beamline"
	"github.com/nerrad567/beamline-core/internal/device"
)

// Logger defines the logging interface used by a Module.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Module is a beamline's set of controllers, in declaration order, bound
// to the Context they build against.
type Module struct {
	name string
	env  *beamline.Context

	mu          sync.RWMutex
	controllers []*Controller
	byName      map[string]*Controller
	fixtures    map[string]func() device.Device
	logger      Logger
}

// NewModule creates an empty module. A nil env uses beamline.Default().
func NewModule(name string, env *beamline.Context) *Module {
	if env == nil {
		env = beamline.Default()
	}
	return &Module{
		name:   name,
		env:    env,
		byName: make(map[string]*Controller),
		logger: noopLogger{},
	}
}

// Name returns the module name (e.g. "i03").
func (m *Module) Name() string { return m.name }

// Env returns the context the module builds against.
func (m *Module) Env() *beamline.Context { return m.env }

// SetLogger sets the logger for the module.
func (m *Module) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

func (m *Module) log() Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

// Register adds controllers in declaration order. Nothing is added when
// any of them is invalid or clashes with an existing name.
func (m *Module) Register(cs ...*Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(cs))
	for _, c := range cs {
		if c == nil {
			return fmt.Errorf("%w: nil controller", ErrInvalidFactory)
		}
		if c.invalid != nil {
			return c.invalid
		}
		if _, ok := m.byName[c.name]; ok || seen[c.name] {
			return fmt.Errorf("%w: %q in module %s", ErrDuplicateFactory, c.name, m.name)
		}
		if owner := c.Module(); owner != nil {
			return fmt.Errorf("%w: %q already belongs to module %s", ErrDuplicateFactory, c.name, owner.name)
		}
		seen[c.name] = true
	}

	for _, c := range cs {
		c.module.Store(m)
		m.controllers = append(m.controllers, c)
		m.byName[c.name] = c
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for wiring
// modules built at package init.
func (m *Module) MustRegister(cs ...*Controller) {
	if err := m.Register(cs...); err != nil {
		panic(err)
	}
}

// Controllers returns the controllers in declaration order.
func (m *Module) Controllers() []*Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.controllers)
}

// Lookup returns the controller named name.
func (m *Module) Lookup(name string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byName[name]
	return c, ok
}

// Dependencies returns the controller or fixture each of name's slots
// resolves to under the module's own fixtures, keyed by parameter.
// Optional slots with no match are absent.
func (m *Module) Dependencies(name string) (map[string]string, error) {
	return m.DependenciesWith(nil, name)
}

// DependenciesWith is like Dependencies, resolving against fx. A nil fx
// uses the module's own fixtures.
func (m *Module) DependenciesWith(fx *Fixtures, name string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in module %s", ErrNotRegistered, name, m.name)
	}
	if fx == nil {
		fx = m.newFixtures(nil)
	}
	edges, err := m.resolve(c, fx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(edges))
	for _, e := range edges {
		out[e.param] = e.source()
	}
	return out, nil
}

// edge is one satisfied slot: either a controller or a fixture.
type edge struct {
	param   string
	dep     *Controller
	fixture string
}

func (e edge) source() string {
	if e.dep != nil {
		return e.dep.name
	}
	return e.fixture
}

// resolve matches c's slots against fx and the module. Caller holds m.mu.
func (m *Module) resolve(c *Controller, fx *Fixtures) ([]edge, error) {
	edges := make([]edge, 0, len(c.slots))

	for _, s := range c.slots {
		if name := s.fixtureName(); fx.Has(name) {
			edges = append(edges, edge{param: s.param, fixture: name})
			continue
		}

		var candidates []*Controller
		if s.from != "" {
			if d, ok := m.byName[s.from]; ok && s.accepts(d.typ) {
				candidates = append(candidates, d)
			}
		} else {
			for _, d := range m.controllers {
				if d != c && s.accepts(d.typ) {
					candidates = append(candidates, d)
				}
			}
		}

		switch len(candidates) {
		case 0:
			if s.optional {
				continue
			}
			return nil, fmt.Errorf("%w: %q needs %s", ErrDependencyUnavailable, c.name, s)
		case 1:
			if d := candidates[0]; fx.Has(d.name) {
				edges = append(edges, edge{param: s.param, fixture: d.name})
			} else {
				edges = append(edges, edge{param: s.param, dep: d})
			}
		default:
			names := make([]string, len(candidates))
			for i, d := range candidates {
				names[i] = d.name
			}
			return nil, fmt.Errorf("%w: %q needs %s, matched %s",
				ErrDependencyAmbiguous, c.name, s, strings.Join(names, ", "))
		}
	}
	return edges, nil
}

// collectDeps gathers c's created dependencies and the fixtures it uses.
func (m *Module) collectDeps(c *Controller, fx *Fixtures) (Deps, error) {
	m.mu.RLock()
	edges, err := m.resolve(c, fx)
	m.mu.RUnlock()
	if err != nil {
		return Deps{}, err
	}

	devices := make(map[string]device.Device, len(edges))
	for _, e := range edges {
		if e.dep == nil {
			dev, ok := fx.Get(e.fixture)
			if !ok {
				return Deps{}, fmt.Errorf("%w: %q needs fixture %q, which produced no device",
					ErrDependencyUnavailable, c.name, e.fixture)
			}
			devices[e.param] = dev
			continue
		}
		dev := e.dep.Cached()
		if dev == nil {
			return Deps{}, fmt.Errorf("%w: %q needs %q, which has not been created",
				ErrDependencyFailed, c.name, e.dep.name)
		}
		devices[e.param] = dev
	}
	return Deps{devices: devices}, nil
}

// Plan returns targets plus everything they transitively depend on, in
// creation order: dependencies first, ties broken by declaration order.
// With no targets every controller not overridden by one of the module's
// fixtures is planned. Named targets are always planned; their overridden
// dependencies are not.
//
// Structural problems (unknown names, unresolvable or ambiguous slots,
// cycles) are reported before anything is created.
func (m *Module) Plan(targets ...string) ([]*Controller, error) {
	return m.PlanWith(nil, targets...)
}

// PlanWith is like Plan, resolving slots against fx. A nil fx uses the
// module's own fixtures.
func (m *Module) PlanWith(fx *Fixtures, targets ...string) ([]*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if fx == nil {
		fx = m.newFixtures(nil)
	}

	var queue []*Controller
	if len(targets) == 0 {
		queue = slices.DeleteFunc(slices.Clone(m.controllers), func(c *Controller) bool {
			return fx.Has(c.name)
		})
	}
	for _, name := range targets {
		c, ok := m.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in module %s", ErrNotRegistered, name, m.name)
		}
		queue = append(queue, c)
	}

	// Expand the transitive closure.
	deps := make(map[*Controller][]*Controller)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if _, seen := deps[c]; seen {
			continue
		}
		edges, err := m.resolve(c, fx)
		if err != nil {
			return nil, err
		}
		var ds []*Controller
		for _, e := range edges {
			if e.dep != nil && !slices.Contains(ds, e.dep) {
				ds = append(ds, e.dep)
			}
		}
		deps[c] = ds
		queue = append(queue, ds...)
	}

	// Kahn's algorithm, always taking the earliest declared ready controller.
	pending := make(map[*Controller]int, len(deps))
	dependents := make(map[*Controller][]*Controller, len(deps))
	for c, ds := range deps {
		pending[c] = len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], c)
		}
	}

	order := make([]*Controller, 0, len(deps))
	done := make(map[*Controller]bool, len(deps))
	for len(order) < len(deps) {
		var next *Controller
		for _, c := range m.controllers {
			if _, planned := deps[c]; planned && !done[c] && pending[c] == 0 {
				next = c
				break
			}
		}
		if next == nil {
			return nil, m.cycle(deps, done)
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			pending[d]--
		}
	}
	return order, nil
}

// cycle walks the unplanned controllers until one repeats. Every
// unplanned controller has at least one unplanned dependency, so the walk
// always closes a loop.
func (m *Module) cycle(deps map[*Controller][]*Controller, done map[*Controller]bool) error {
	var start *Controller
	for _, c := range m.controllers {
		if _, planned := deps[c]; planned && !done[c] {
			start = c
			break
		}
	}

	var path []*Controller
	at := make(map[*Controller]int)
	for c := start; c != nil; {
		if i, ok := at[c]; ok {
			members := make([]string, 0, len(path)-i)
			for _, p := range path[i:] {
				members = append(members, p.name)
			}
			return &CycleError{Members: members}
		}
		at[c] = len(path)
		path = append(path, c)

		var next *Controller
		for _, d := range deps[c] {
			if !done[d] {
				next = d
				break
			}
		}
		c = next
	}
	return ErrDependencyCycle
}
