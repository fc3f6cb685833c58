// Package devices holds the PV-backed device types wired by the beamline
// modules: motors, slits, the undulator and its gap, detectors, the
// synchrotron status and boolean signals.
//
// Every type embeds Base, which connects the device's PVs through a
// pv.Client. When connected with ConnectOptions.Mock the client is not
// touched at all; reads and writes go to a private pv.Sim instead.
package devices
