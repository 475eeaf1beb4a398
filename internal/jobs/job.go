// Package jobs implements the job domain for Slidesmith. It provides the
// per-job state record that threads through the pipeline, the persistence
// contract for job stores, and PostgreSQL and in-memory implementations.
package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// Status is the lifecycle status of a job. Transitions only move forward
// along queued → processing → (completed | failed); never backward.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along the forward-only transition path.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a transition from s to next moves forward.
// Terminal statuses admit no further transitions.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Job is the per-job state record. NodeHistory and Errors are append-only;
// Progress never decreases; CompletedAt is set exactly when the job reaches
// a terminal status. Data carries intermediate stage artifacts between
// nodes and survives store round-trips as JSON.
type Job struct {
	ID                uuid.UUID       `json:"id"`
	Status            Status          `json:"status"`
	Progress          int             `json:"progress"`
	CurrentNode       string          `json:"current_node,omitempty"`
	NodeHistory       []string        `json:"node_history,omitempty"`
	Errors            []faults.Record `json:"errors,omitempty"`
	RecoveryAttempted bool            `json:"recovery_attempted"`
	RecoveryStrategy  string          `json:"recovery_strategy,omitempty"`
	Data              map[string]any  `json:"data,omitempty"`
	Result            string          `json:"result,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`

	// Version supports optimistic concurrency in the job store. It is
	// incremented by the store on every successful update.
	Version int `json:"version"`
}

// New creates a queued job with the given input data.
func New(data map[string]any) *Job {
	if data == nil {
		data = make(map[string]any)
	}
	return &Job{
		ID:        uuid.New(),
		Status:    StatusQueued,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Snapshot returns a deep copy of the job for handler consumption.
// Handlers must not mutate job state; only the engine commits updates.
func (j *Job) Snapshot() *Job {
	c := *j

	c.NodeHistory = append([]string(nil), j.NodeHistory...)
	c.Errors = append([]faults.Record(nil), j.Errors...)

	if j.Data != nil {
		c.Data = make(map[string]any, len(j.Data))
		for k, v := range j.Data {
			c.Data[k] = v
		}
	}

	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}

	return &c
}

// MarkProcessing transitions the job to processing.
func (j *Job) MarkProcessing() {
	j.Status = StatusProcessing
}

// MarkCompleted transitions the job to completed and stamps CompletedAt.
func (j *Job) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
}

// MarkFailed transitions the job to failed and stamps CompletedAt.
func (j *Job) MarkFailed() {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.CompletedAt = &now
}

// TopError returns the most recent error record, or nil if none exist.
// A terminal failed job exposes this as its user-visible error.
func (j *Job) TopError() *faults.Record {
	if len(j.Errors) == 0 {
		return nil
	}
	return &j.Errors[len(j.Errors)-1]
}

// Patch is the partial-state update a node handler returns. Handlers never
// return whole job state; the engine merges patches under its own locking.
type Patch struct {
	// Progress proposes a new progress value. Values at or below the
	// job's current progress are ignored so progress stays monotonic.
	Progress int

	// Data entries are merged key-by-key into the job's stage artifacts.
	Data map[string]any

	// Result records the opaque storage key of the job output.
	Result string

	// RecoveryStrategy tags which fallback alternative produced the
	// stage result, when one did.
	RecoveryStrategy string

	// Faults carries failures that were absorbed during the invocation
	// (superseded retry attempts, degraded fallback alternatives). They
	// are appended to the job's error history even though the stage
	// ultimately succeeded.
	Faults []faults.Record
}

// Apply merges the patch into the job.
func (p *Patch) Apply(j *Job) {
	if p == nil {
		return
	}
	if p.Progress > j.Progress {
		j.Progress = p.Progress
	}
	if len(p.Data) > 0 {
		if j.Data == nil {
			j.Data = make(map[string]any, len(p.Data))
		}
		for k, v := range p.Data {
			j.Data[k] = v
		}
	}
	if p.Result != "" {
		j.Result = p.Result
	}
	if p.RecoveryStrategy != "" {
		j.RecoveryStrategy = p.RecoveryStrategy
	}
	j.Errors = append(j.Errors, p.Faults...)
}
