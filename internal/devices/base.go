package devices

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/beamline-core/internal/device"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// Base is the PV plumbing shared by the devices in this package.
//
// A Base owns a list of PVs. Connect checks every one of them through the
// control-system client. In mock mode the client is never used: reads and
// writes go to a private simulator instead.
type Base struct {
	mu        sync.RWMutex
	name      string
	parent    device.Device
	client    pv.Client
	pvs       []string
	sim       *pv.Sim
	mock      bool
	connected bool
}

func (b *Base) init(name string, client pv.Client, pvs ...string) {
	if client == nil {
		client = pv.Unavailable{}
	}
	b.name = name
	b.client = client
	b.pvs = pvs
}

// Name returns the device name.
func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// SetName renames the device.
func (b *Base) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

// Parent returns the owning device, or nil for top-level devices.
func (b *Base) Parent() device.Device {
	return b.parent
}

// PVs returns the PV names the device connects to.
func (b *Base) PVs() []string {
	return slices.Clone(b.pvs)
}

// IsConnected reports whether the last connect succeeded.
func (b *Base) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// IsMock reports whether the device is running against its simulator.
func (b *Base) IsMock() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mock
}

// Connect connects every PV. An already connected device returns at once
// unless opts.ForceReconnect is set or the mock setting changed.
func (b *Base) Connect(ctx context.Context, opts device.ConnectOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected && b.mock == opts.Mock && !opts.ForceReconnect {
		return nil
	}

	if opts.Mock {
		if b.sim == nil {
			b.sim = pv.NewSim()
		}
		b.mock = true
		b.connected = true
		return nil
	}

	var errs []error
	for _, name := range b.pvs {
		if err := b.client.Connect(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	b.mock = false
	b.connected = len(errs) == 0
	return errors.Join(errs...)
}

func (b *Base) backend() (pv.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, b.name)
	}
	if b.mock {
		return b.sim, nil
	}
	return b.client, nil
}

// Sim returns the simulator backing a mock device, or nil.
func (b *Base) Sim() *pv.Sim {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sim
}

func (b *Base) readFloat(ctx context.Context, name string) (float64, error) {
	client, err := b.backend()
	if err != nil {
		return 0, err
	}
	v, err := client.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return v.Float()
}

func (b *Base) readString(ctx context.Context, name string) (string, error) {
	client, err := b.backend()
	if err != nil {
		return "", err
	}
	v, err := client.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return v.Raw, nil
}

func (b *Base) writeFloat(ctx context.Context, name string, f float64) error {
	return b.writeString(ctx, name, pv.FormatFloat(f))
}

func (b *Base) writeString(ctx context.Context, name, raw string) error {
	client, err := b.backend()
	if err != nil {
		return err
	}
	return client.Put(ctx, name, raw)
}
