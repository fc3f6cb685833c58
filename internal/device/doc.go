// Package device defines the device capability interface and the name
// registry that gives devices singleton semantics.
//
// The core is device-class agnostic: a device is anything that has a stable
// name and can be asked to connect. Motors, detectors, undulators and the
// rest live in their own packages and only need to satisfy Device.
//
// # Key Types
//
//   - Device: name + Connect(ctx, ConnectOptions)
//   - ConnectOptions: mock flag, timeout, force-reconnect
//   - Registry: name → live device, owned by a beamline context
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//
//	if err := reg.Put("sample_x", motor); err != nil {
//	    return err // ErrDuplicateName or ErrDeviceTypeConflict
//	}
//	m := reg.Get("sample_x")
//	names := reg.ListNames() // lexical order
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex and never block on I/O.
package device
