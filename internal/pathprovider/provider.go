package pathprovider

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// PathInfo tells a file-writing detector where to write.
type PathInfo struct {
	// Directory is the absolute directory on the detector's view of the filesystem.
	Directory string
	// Filename is the stem without extension.
	Filename string
	// ResourceDir is Directory relative to the visit root.
	ResourceDir string
}

// Provider hands out PathInfo per device.
type Provider interface {
	Path(device string) (PathInfo, error)
}

// Updater is a Provider whose collection advances on Update.
type Updater interface {
	Provider
	Update(ctx context.Context, directory, suffix string) error
}

// DirectoryService allocates data collection numbers.
type DirectoryService interface {
	CreateNewCollection(ctx context.Context) (int, error)
	CurrentCollection(ctx context.Context) (int, error)
}

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// StaticVisitProvider writes every collection of a single visit under root.
//
// Update allocates the next collection number; Path then yields
// <root>/<directory> and the filename "<beamline>-<n>-<device><suffix>".
// All detectors must share a view of root.
type StaticVisitProvider struct {
	beamline string
	root     string
	service  DirectoryService

	mu         sync.RWMutex
	collection int
	updated    bool
	directory  string
	suffix     string
	logger     Logger
}

// NewStaticVisitProvider creates a provider for a visit directory such as
// /dls/i03/data/2026/cm12345-1.
func NewStaticVisitProvider(beamline, root string, service DirectoryService) *StaticVisitProvider {
	return &StaticVisitProvider{
		beamline: beamline,
		root:     root,
		service:  service,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (p *StaticVisitProvider) SetLogger(logger Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// Update starts a new data collection. directory is relative to the visit
// root ("" for the root itself); suffix is appended to every filename.
//
// A failed update clears the current collection so nothing overwrites the
// previous collection's files.
func (p *StaticVisitProvider) Update(ctx context.Context, directory, suffix string) error {
	n, err := p.service.CreateNewCollection(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.updated = false
		p.logger.Error("creating data collection failed; clearing current collection",
			"beamline", p.beamline, "error", err)
		return fmt.Errorf("creating data collection: %w", err)
	}
	p.collection = n
	p.updated = true
	p.directory = directory
	p.suffix = suffix
	p.logger.Debug("new data collection", "beamline", p.beamline, "collection", n)
	return nil
}

// Path returns where device should write the current collection.
func (p *StaticVisitProvider) Path(device string) (PathInfo, error) {
	if device == "" {
		return PathInfo{}, ErrDeviceNameRequired
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.updated {
		return PathInfo{}, ErrNotUpdated
	}
	return PathInfo{
		Directory:   filepath.Join(p.root, p.directory),
		Filename:    fmt.Sprintf("%s-%d-%s%s", p.beamline, p.collection, device, p.suffix),
		ResourceDir: p.directory,
	}, nil
}

// DataSession names the current collection, e.g. "i03-42".
func (p *StaticVisitProvider) DataSession(ctx context.Context) (string, error) {
	n, err := p.service.CurrentCollection(ctx)
	if err != nil {
		return "", fmt.Errorf("reading current collection: %w", err)
	}
	return fmt.Sprintf("%s-%d", p.beamline, n), nil
}
