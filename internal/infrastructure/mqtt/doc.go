// Package mqtt provides MQTT connectivity for the beamline core.
//
// The broker is used two ways:
//   - As a PV gateway: an EPICS-to-MQTT bridge publishes retained PV values
//     on {prefix}/pv/{pv}/value and accepts puts on {prefix}/pv/{pv}/put.
//     Package pv builds its Gateway client on top of this package.
//   - As a status bus: per-device connection status and batch run summaries
//     are published by package telemetry.
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - Last Will and Testament on {prefix}/system/status
//   - Publishing and subscribing with handler panic recovery
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.PVValue("BL03I-MO-SAMP-01:X.RBV"), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
// Tests that need a broker expect Mosquitto on 127.0.0.1:1883 and skip
// when none is listening.
package mqtt
