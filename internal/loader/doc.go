// Package loader creates and connects all devices of a beamline wiring
// module in one batch.
//
// MakeAllDevices selects every controller that is not skipped, plans the
// dependency graph, creates devices in dependency order without
// connecting them, then connects everything that was created
// concurrently. Failures are collected per factory:
//
//	res, err := loader.MakeAllDevices(ctx, module, loader.Mock(true))
//	if err != nil {
//	    return err // structural: cycle, missing or ambiguous dependency
//	}
//	for name, f := range res.Errors {
//	    log.Warn("device failed", "device", name, "state", f.State, "error", f.Err)
//	}
//
// A factory whose dependency failed is not called; it fails with
// factory.ErrDependencyFailed. A device whose connect fails is still
// returned in Devices, with its failure in Errors.
//
// # Recorders
//
// After each batch a Run summary is passed to every Recorder added with
// AddRecorder (the audit journal and the telemetry publishers). Recorder
// errors are logged and otherwise ignored.
package loader
