package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/beamline-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/beamline-core/internal/loader"
)

// Publisher sends a payload to a topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DeviceStatus is the retained payload on a device status topic.
type DeviceStatus struct {
	Device     string  `json:"device"`
	State      string  `json:"state"`
	Connected  bool    `json:"connected"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	RunID      string  `json:"run_id"`
	Mock       bool    `json:"mock"`
	Timestamp  string  `json:"timestamp"`
}

// RunSummary is the payload on a beamline's run topic.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Beamline   string         `json:"beamline"`
	Module     string         `json:"module"`
	Mock       bool           `json:"mock"`
	Devices    int            `json:"devices"`
	Errors     int            `json:"errors"`
	States     map[string]int `json:"states"`
	DurationMS float64        `json:"duration_ms"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
}

// StatusPublisher publishes per-device connection status over MQTT.
type StatusPublisher struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewStatusPublisher creates a StatusPublisher.
func NewStatusPublisher(pub Publisher, topics mqtt.Topics, qos byte) *StatusPublisher {
	return &StatusPublisher{pub: pub, topics: topics, qos: qos}
}

// RecordRun publishes every outcome, then the run summary. Skipped
// devices are published too so stale status from an earlier run is
// overwritten. All publish failures are joined into the returned error.
func (p *StatusPublisher) RecordRun(ctx context.Context, run loader.Run) error {
	var errs []error
	stamp := run.FinishedAt.UTC().Format(time.RFC3339)

	for _, o := range run.Outcomes {
		if err := ctx.Err(); err != nil {
			return err
		}
		status := DeviceStatus{
			Device:     o.Device,
			State:      o.State.String(),
			Connected:  o.State == loader.StateConnected,
			ErrorKind:  o.ErrorKind(),
			DurationMS: millis(o.Duration),
			RunID:      run.ID,
			Mock:       run.Mock,
			Timestamp:  stamp,
		}
		if o.Err != nil {
			status.Error = o.Err.Error()
		}
		if err := p.publish(p.topics.DeviceStatus(run.Beamline, o.Device), status, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Device, err))
		}
	}

	if err := p.publish(p.topics.RunSummary(run.Beamline), Summarise(run), false); err != nil {
		errs = append(errs, fmt.Errorf("run summary: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPublish, errors.Join(errs...))
	}
	return nil
}

func (p *StatusPublisher) publish(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	return p.pub.Publish(topic, payload, p.qos, retained)
}

// Summarise builds the RunSummary for a run.
func Summarise(run loader.Run) RunSummary {
	states := make(map[string]int)
	for _, o := range run.Outcomes {
		states[o.State.String()]++
	}
	return RunSummary{
		RunID:      run.ID,
		Beamline:   run.Beamline,
		Module:     run.Module,
		Mock:       run.Mock,
		Devices:    len(run.Outcomes),
		Errors:     run.Errors(),
		States:     states,
		DurationMS: millis(run.FinishedAt.Sub(run.StartedAt)),
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
