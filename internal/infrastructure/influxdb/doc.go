// Package influxdb records device connection telemetry in InfluxDB.
//
// Every batch connect produces one device_connection point per device
// (state, error kind, connect duration) and one connection_batch point
// summarising the run. Dashboards use these to spot devices that are
// slow to connect or repeatedly time out.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteConnectionMetric(influxdb.ConnectionSample{
//	    Beamline: "i03", Device: "sample_x", State: "connected", Duration: d,
//	})
//
// Writes are non-blocking and batched per batch_size/flush_interval.
// Asynchronous write errors are delivered to the SetOnError callback.
package influxdb
