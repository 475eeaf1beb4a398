package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slidesmith/slidesmith/internal/api"
	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/internal/engine"
	"github.com/slidesmith/slidesmith/internal/infrastructure"
	"github.com/slidesmith/slidesmith/pkg/middleware"
	"github.com/slidesmith/slidesmith/pkg/module"
	"github.com/slidesmith/slidesmith/web/console"
	"github.com/slidesmith/slidesmith/web/scalar"
)

type Modules struct {
	API     *module.Module
	Console *module.Module
	Scalar  *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config, eng *engine.Engine) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra, eng)
	if err != nil {
		return nil, err
	}

	consoleModule, err := console.NewModule("/console")
	if err != nil {
		return nil, err
	}
	consoleModule.Use(middleware.Logger(infra.Logger))

	scalarModule := scalar.NewModule("/scalar")
	scalarModule.Use(middleware.Logger(infra.Logger))

	return &Modules{
		API:     apiModule,
		Console: consoleModule,
		Scalar:  scalarModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	router.Mount(m.Console)
	router.Mount(m.Scalar)
}

func buildRouter(infra *infrastructure.Infrastructure, registry *prometheus.Registry) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	router.HandleNative("GET /metrics", metricsHandler.ServeHTTP)

	return router
}
