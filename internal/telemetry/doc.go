// Package telemetry fans batch results out to the beamline's MQTT broker
// and InfluxDB.
//
// Both recorders implement loader.Recorder and are added to a Loader next
// to the audit journal:
//
//	l := loader.New()
//	l.AddRecorder(telemetry.NewStatusPublisher(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
//	l.AddRecorder(telemetry.NewMetricsRecorder(influxClient))
//
// StatusPublisher publishes a retained DeviceStatus per device on
// {prefix}/{beamline}/device/{name}/status, then a RunSummary on
// {prefix}/{beamline}/run. Retained status means a dashboard that
// subscribes later still sees the last known state of every device.
//
// MetricsRecorder writes one device_connection point per outcome and one
// connection_batch point per run. Writes are queued by the InfluxDB client
// and never block the batch.
package telemetry
