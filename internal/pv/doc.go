// Package pv defines the control-system client that devices use to reach
// EPICS process variables, with three implementations:
//
//   - Gateway: PVs relayed through an MQTT gateway (retained value topics).
//   - Sim: in-memory values for devices connected in mock mode.
//   - Unavailable: the placeholder installed when nothing is configured.
//
// Devices never talk to a Client while in mock mode; they swap to a
// private Sim instead.
package pv
