package api

import (
	"net/http"

	"github.com/slidesmith/slidesmith/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, rt *Runtime, service JobService) {
	routes.Register(
		mux,
		newJobsHandler(rt, service).routes(),
	)
}
