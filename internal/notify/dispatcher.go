// Package notify emits job lifecycle notifications to an external
// dispatcher. The engine calls Notify at most once per status transition,
// and only after the job store write for that transition has succeeded;
// delivery retries are the dispatcher's own concern.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event names the job lifecycle transition being announced.
type Event string

const (
	EventQueued     Event = "job.queued"
	EventProcessing Event = "job.processing"
	EventCompleted  Event = "job.completed"
	EventFailed     Event = "job.failed"
)

// Payload carries the transition summary delivered with each event.
type Payload struct {
	JobID     uuid.UUID      `json:"job_id"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Progress  int            `json:"progress"`
	Node      string         `json:"node,omitempty"`
	Summary   map[string]any `json:"summary,omitempty"`
}

// Dispatcher delivers job lifecycle events.
type Dispatcher interface {
	Notify(ctx context.Context, event Event, payload Payload) error
}

// LogDispatcher writes events to the structured log. It backs broker-less
// deployments and tests.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that logs events.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("system", "notify")}
}

func (d *LogDispatcher) Notify(_ context.Context, event Event, payload Payload) error {
	d.logger.Info(
		"job event",
		"event", string(event),
		"job_id", payload.JobID,
		"status", payload.Status,
		"progress", payload.Progress,
	)
	return nil
}
