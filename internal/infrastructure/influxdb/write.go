package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementConnection = "device_connection"
	MeasurementBatch      = "connection_batch"
)

// ConnectionSample is one device's outcome in a batch.
type ConnectionSample struct {
	Beamline string
	Device   string
	State    string
	// ErrorKind is empty on success ("timeout", "failed", "cancelled", "creation").
	ErrorKind string
	Duration  time.Duration
	Mock      bool
	Time      time.Time
}

// BatchSample summarises one make-all-devices run.
type BatchSample struct {
	Beamline  string
	Module    string
	RunID     string
	Devices   int
	Errors    int
	Skipped   int
	Duration  time.Duration
	Mock      bool
	Time      time.Time
}

// NewConnectionPoint builds the point for a ConnectionSample.
//
// Tags: beamline, device, state, mock. Fields: duration_ms, ok, error_kind.
func NewConnectionPoint(s ConnectionSample) *write.Point {
	fields := map[string]interface{}{
		"duration_ms": float64(s.Duration.Microseconds()) / 1000,
		"ok":          s.ErrorKind == "",
	}
	if s.ErrorKind != "" {
		fields["error_kind"] = s.ErrorKind
	}
	return write.NewPoint(MeasurementConnection,
		map[string]string{
			"beamline": s.Beamline,
			"device":   s.Device,
			"state":    s.State,
			"mock":     boolTag(s.Mock),
		},
		fields, stamp(s.Time))
}

// NewBatchPoint builds the point for a BatchSample.
func NewBatchPoint(s BatchSample) *write.Point {
	return write.NewPoint(MeasurementBatch,
		map[string]string{
			"beamline": s.Beamline,
			"module":   s.Module,
			"mock":     boolTag(s.Mock),
		},
		map[string]interface{}{
			"run_id":      s.RunID,
			"devices":     s.Devices,
			"errors":      s.Errors,
			"skipped":     s.Skipped,
			"duration_ms": float64(s.Duration.Microseconds()) / 1000,
		},
		stamp(s.Time))
}

// WriteConnectionMetric queues a ConnectionSample. Non-blocking.
func (c *Client) WriteConnectionMetric(s ConnectionSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewConnectionPoint(s))
}

// WriteBatchMetric queues a BatchSample. Non-blocking.
func (c *Client) WriteBatchMetric(s BatchSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewBatchPoint(s))
}

// WritePoint queues a custom point.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, stamp(ts)))
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
