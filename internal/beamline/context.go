package beamline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/pathprovider"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// EnvBeamline is the environment variable consulted by GetBeamline.
const EnvBeamline = "BEAMLINE"

// BoolReader is a readable boolean signal, e.g. a commissioning-mode PV.
type BoolReader interface {
	ReadBool(ctx context.Context) (bool, error)
}

// Context carries the configuration every factory consumes implicitly:
// the active beamline and its PV prefixes, the data path provider, the
// commissioning signal, the control-system client and the device registry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Context struct {
	mu            sync.RWMutex
	name          string
	prefix        Prefix
	pathProvider  pathprovider.Provider
	commissioning BoolReader
	controlSystem pv.Client
	registry      *device.Registry
}

// NewContext returns an unconfigured context with an empty registry.
func NewContext() *Context {
	return &Context{registry: device.NewRegistry()}
}

var defaultContext = sync.OnceValue(NewContext)

// Default returns the process-wide context, created on first use.
func Default() *Context {
	return defaultContext()
}

// SetBeamline activates name and re-derives both prefixes with it.
func (c *Context) SetBeamline(name string) error {
	prefix, err := NewPrefix(name, "")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.prefix = prefix
	return nil
}

// GetBeamline returns the active beamline, else $BEAMLINE, else def.
func (c *Context) GetBeamline(def string) (string, error) {
	c.mu.RLock()
	name := c.name
	c.mu.RUnlock()

	if name != "" {
		return name, nil
	}
	if env := os.Getenv(EnvBeamline); env != "" {
		return env, nil
	}
	if def != "" {
		return def, nil
	}
	return "", ErrBeamlineNotConfigured
}

// Prefix returns the prefixes of the active beamline. Zero when unset.
func (c *Context) Prefix() Prefix {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefix
}

// SetPathProvider installs the data path provider.
func (c *Context) SetPathProvider(p pathprovider.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pathProvider = p
}

// PathProvider returns the installed provider, or a placeholder whose
// every call fails with ErrPathProviderMissing.
func (c *Context) PathProvider() pathprovider.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pathProvider == nil {
		return missingPathProvider{}
	}
	return c.pathProvider
}

// SetCommissioningSignal installs (or with nil, removes) the signal read
// by ReadCommissioningMode.
func (c *Context) SetCommissioningSignal(s BoolReader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commissioning = s
}

// ReadCommissioningMode reads the commissioning signal; false when unset.
func (c *Context) ReadCommissioningMode(ctx context.Context) (bool, error) {
	c.mu.RLock()
	s := c.commissioning
	c.mu.RUnlock()
	if s == nil {
		return false, nil
	}
	on, err := s.ReadBool(ctx)
	if err != nil {
		return false, fmt.Errorf("reading commissioning signal: %w", err)
	}
	return on, nil
}

// SetControlSystem installs the client devices use for PV access.
func (c *Context) SetControlSystem(client pv.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlSystem = client
}

// ControlSystem returns the installed client, or pv.Unavailable.
func (c *Context) ControlSystem() pv.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.controlSystem == nil {
		return pv.Unavailable{}
	}
	return c.controlSystem
}

// Registry returns the device registry owned by this context.
func (c *Context) Registry() *device.Registry {
	return c.registry
}

type missingPathProvider struct{}

func (missingPathProvider) Path(string) (pathprovider.PathInfo, error) {
	return pathprovider.PathInfo{}, ErrPathProviderMissing
}

func (missingPathProvider) Update(context.Context, string, string) error {
	return ErrPathProviderMissing
}
