// Package api assembles the HTTP API module: job submission, status,
// cancellation, and deck retrieval, wrapped with CORS and request logging
// middleware.
package api

import (
	"net/http"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/internal/infrastructure"
	"github.com/slidesmith/slidesmith/pkg/middleware"
	"github.com/slidesmith/slidesmith/pkg/module"
	"github.com/slidesmith/slidesmith/pkg/openapi"
)

// NewModule creates the API module over the workflow engine.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure, service JobService) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	mux := http.NewServeMux()
	registerRoutes(mux, runtime, service)

	spec, err := buildSpec(cfg)
	if err != nil {
		return nil, err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
