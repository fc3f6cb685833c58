package telemetry

import (
	"context"

	"github.com/nerrad567/beamline-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/beamline-core/internal/loader"
)

// MetricsWriter queues connection metrics. *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteConnectionMetric(s influxdb.ConnectionSample)
	WriteBatchMetric(s influxdb.BatchSample)
}

// MetricsRecorder writes batch outcomes as InfluxDB points.
type MetricsRecorder struct {
	w MetricsWriter
}

// NewMetricsRecorder creates a MetricsRecorder.
func NewMetricsRecorder(w MetricsWriter) *MetricsRecorder {
	return &MetricsRecorder{w: w}
}

// RecordRun queues one point per attempted device and one for the run.
// Skipped and overridden devices produce no connection point.
func (m *MetricsRecorder) RecordRun(_ context.Context, run loader.Run) error {
	skipped := 0
	for _, o := range run.Outcomes {
		if o.State == loader.StateSkipped || o.State == loader.StateOverridden {
			skipped++
			continue
		}
		m.w.WriteConnectionMetric(influxdb.ConnectionSample{
			Beamline:  run.Beamline,
			Device:    o.Device,
			State:     o.State.String(),
			ErrorKind: o.ErrorKind(),
			Duration:  o.Duration,
			Mock:      run.Mock,
			Time:      run.FinishedAt,
		})
	}

	m.w.WriteBatchMetric(influxdb.BatchSample{
		Beamline: run.Beamline,
		Module:   run.Module,
		RunID:    run.ID,
		Devices:  len(run.Outcomes) - skipped,
		Errors:   run.Errors(),
		Skipped:  skipped,
		Duration: run.FinishedAt.Sub(run.StartedAt),
		Mock:     run.Mock,
		Time:     run.FinishedAt,
	})
	return nil
}
