// Package ingest accepts job submissions from the message broker. A
// submission names the input images already uploaded to blob storage;
// the consumer creates the job and the engine's worker pool takes it
// from there.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slidesmith/slidesmith/internal/engine"
	"github.com/slidesmith/slidesmith/internal/pipeline"
	"github.com/slidesmith/slidesmith/pkg/broker"
	"github.com/slidesmith/slidesmith/pkg/lifecycle"
)

// MessageTypeSubmit is the message type carried by job submissions.
const MessageTypeSubmit = "job.submit"

// Submission is the payload of a job submission message.
type Submission struct {
	// Images are the storage keys of the uploaded document images, in
	// presentation order.
	Images []string `json:"images"`

	// Options carries caller-supplied processing options, stored on the
	// job data map as-is.
	Options map[string]any `json:"options,omitempty"`
}

// System consumes job submissions from the broker.
type System struct {
	engine   *engine.Engine
	consumer *broker.Consumer
	logger   *slog.Logger
}

// New creates the ingest system over the shared broker connection.
func New(conn *broker.Connection, eng *engine.Engine, prefetch int, logger *slog.Logger) *System {
	s := &System{
		engine: eng,
		logger: logger.With("system", "ingest"),
	}

	s.consumer = broker.NewConsumer(conn, logger, broker.ConsumerConfig{
		Queue:    broker.QueueSubmissions,
		Handler:  s.handle,
		Prefetch: prefetch,
	})

	return s
}

// Start runs the submission consumer until shutdown.
func (s *System) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting ingest system")

	lc.OnShutdown(func() {
		if err := s.consumer.Run(lc.Context()); err != nil && lc.Context().Err() == nil {
			s.logger.Error("submission consumer stopped", "error", err)
		}
	})

	return nil
}

func (s *System) handle(ctx context.Context, msg *broker.Message) error {
	if msg.Type != MessageTypeSubmit {
		s.logger.Warn("ignoring unexpected message type", "type", msg.Type)
		return nil
	}

	submission, err := broker.ParsePayload[Submission](msg)
	if err != nil {
		return fmt.Errorf("parse submission: %w", err)
	}
	if len(submission.Images) == 0 {
		s.logger.Warn("dropping submission with no images", "message_id", msg.ID)
		return nil
	}

	data := map[string]any{pipeline.KeyImages: submission.Images}
	if len(submission.Options) > 0 {
		data["options"] = submission.Options
	}

	id, err := s.engine.Submit(ctx, data)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	s.logger.Info("submission accepted", "job_id", id, "images", len(submission.Images))
	return nil
}
