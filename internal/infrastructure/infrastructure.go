// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, messaging) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/pkg/broker"
	"github.com/slidesmith/slidesmith/pkg/database"
	"github.com/slidesmith/slidesmith/pkg/lifecycle"
	"github.com/slidesmith/slidesmith/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, file storage, and messaging.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System

	// Broker is nil when the messaging integration is disabled.
	Broker *broker.Connection
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	var conn *broker.Connection
	if cfg.Broker.IsEnabled() {
		conn, err = broker.NewConnection(&cfg.Broker, logger)
		if err != nil {
			return nil, fmt.Errorf("broker init failed: %w", err)
		}
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Broker:    conn,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if i.Broker != nil {
		if err := i.Broker.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("broker start failed: %w", err)
		}
	}
	return nil
}
