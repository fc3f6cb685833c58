package devices

import (
	"context"
	"fmt"

	"github.com/nerrad567/beamline-core/internal/pathprovider"
	"github.com/nerrad567/beamline-core/internal/pv"
)

// Detector is an area detector writing HDF5 files through its file plugin.
type Detector struct {
	Base
	prefix string
	paths  pathprovider.Provider
}

// NewDetector creates the detector at prefix (e.g. "BL03I-EA-EIGER-01:").
// File locations come from paths.
func NewDetector(client pv.Client, prefix string, paths pathprovider.Provider) *Detector {
	d := &Detector{prefix: prefix, paths: paths}
	d.init("", client,
		prefix+"CAM:Acquire",
		prefix+"CAM:ArrayCounter_RBV",
		prefix+"HDF5:FilePath",
		prefix+"HDF5:FileName",
	)
	return d
}

// Prepare points the file plugin at the path provider's location for this
// detector and returns it.
func (d *Detector) Prepare(ctx context.Context) (pathprovider.PathInfo, error) {
	info, err := d.paths.Path(d.Name())
	if err != nil {
		return pathprovider.PathInfo{}, fmt.Errorf("detector %s: %w", d.Name(), err)
	}
	if err := d.writeString(ctx, d.prefix+"HDF5:FilePath", info.Directory); err != nil {
		return pathprovider.PathInfo{}, err
	}
	if err := d.writeString(ctx, d.prefix+"HDF5:FileName", info.Filename); err != nil {
		return pathprovider.PathInfo{}, err
	}
	return info, nil
}

// Arm starts acquisition.
func (d *Detector) Arm(ctx context.Context) error {
	return d.writeString(ctx, d.prefix+"CAM:Acquire", "1")
}

// Disarm stops acquisition.
func (d *Detector) Disarm(ctx context.Context) error {
	return d.writeString(ctx, d.prefix+"CAM:Acquire", "0")
}

// FrameCount reads the number of frames acquired so far.
func (d *Detector) FrameCount(ctx context.Context) (int, error) {
	f, err := d.readFloat(ctx, d.prefix+"CAM:ArrayCounter_RBV")
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
