// Package connect runs bounded, concurrent device connect attempts.
//
// Device makes a single attempt and classifies its failure:
//
//   - ErrConnectionTimeout: the attempt outlived its timeout
//   - ErrConnectionCancelled: the caller's context ended first
//   - ErrConnectionFailed: the device returned an error (or panicked)
//
// The failure is returned as *Error, which carries the device name, the
// Kind and how long the attempt ran. errors.Is matches both the sentinel
// and the device's own error.
//
// # Batches
//
// Orchestrator.ConnectAll fans out over an errgroup. Attempts are started
// in input order (the loader passes a topological order) and results come
// back in the same order. A failing device does not cancel its siblings.
//
//	orch := connect.NewOrchestrator()
//	results := orch.ConnectAll(ctx, []connect.Target{
//	    {Name: "sample_x", Device: m, Options: device.ConnectOptions{Timeout: 5 * time.Second}},
//	})
//	for _, r := range results {
//	    if errors.Is(r.Err, connect.ErrConnectionTimeout) { ... }
//	}
//
// Mock mode is a device concern: devices asked to connect with Mock set
// must not touch the control system. The orchestrator only forwards the
// flag.
package connect
