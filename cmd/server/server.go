package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/internal/engine"
	"github.com/slidesmith/slidesmith/internal/infrastructure"
	"github.com/slidesmith/slidesmith/internal/ingest"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/notify"
	"github.com/slidesmith/slidesmith/internal/pipeline"
	"github.com/slidesmith/slidesmith/internal/resilience"
	"github.com/slidesmith/slidesmith/internal/telemetry"
	"github.com/slidesmith/slidesmith/pkg/broker"
)

type Server struct {
	infra    *infrastructure.Infrastructure
	engine   *engine.Engine
	ingest   *ingest.System
	modules  *Modules
	http     *httpServer
	registry *prometheus.Registry
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	eng, err := buildEngine(cfg, infra, registry)
	if err != nil {
		return nil, err
	}

	var ing *ingest.System
	if infra.Broker != nil {
		ing = ingest.New(infra.Broker, eng, cfg.Broker.Prefetch, infra.Logger)
	}

	modules, err := NewModules(infra, cfg, eng)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, registry)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"broker", infra.Broker != nil,
	)

	return &Server{
		infra:    infra,
		engine:   eng,
		ingest:   ing,
		modules:  modules,
		http:     newHTTPServer(&cfg.Server, router, infra.Logger),
		registry: registry,
	}, nil
}

// buildEngine wires the job store, workflow graph, resilience layer, and
// notification dispatcher into a workflow engine.
func buildEngine(
	cfg *config.Config,
	infra *infrastructure.Infrastructure,
	registry *prometheus.Registry,
) (*engine.Engine, error) {
	breakers := resilience.NewBreakerSet(cfg.Engine.BreakerSettings())

	rt := &pipeline.Runtime{
		Primary:      cfg.Agent,
		HasSecondary: cfg.HasSecondaryAgent(),
		Storage:      infra.Storage,
		Logger:       infra.Logger,
	}
	if rt.HasSecondary {
		rt.Secondary = *cfg.SecondaryAgent
	}

	graph, invokers, err := pipeline.Build(rt, pipeline.Options{
		Retry:       cfg.Engine.RetryPolicy(),
		NodeTimeout: cfg.Engine.NodeTimeoutDuration(),
		Breakers:    breakers,
	})
	if err != nil {
		return nil, err
	}

	var dispatcher notify.Dispatcher
	if infra.Broker != nil {
		dispatcher = notify.NewBrokerDispatcher(broker.NewPublisher(infra.Broker, infra.Logger))
	} else {
		dispatcher = notify.NewLogDispatcher(infra.Logger)
	}

	return engine.New(engine.Config{
		Graph:      graph,
		Store:      jobs.NewRepository(infra.Database.Connection(), infra.Logger, cfg.API.Pagination),
		Dispatcher: dispatcher,
		Metrics:    telemetry.New(registry),
		Breakers:   breakers,
		Logger:     infra.Logger,
		Workers:    cfg.Engine.Workers,
		Invokers:   invokers,
	})
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.engine.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	if s.ingest != nil {
		if err := s.ingest.Start(s.infra.Lifecycle); err != nil {
			return err
		}
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
