// Package console serves a minimal operator UI for browsing conversion
// jobs and previewing rendered decks. Pages are server-rendered shells;
// job data loads client-side from the jobs API.
package console

import (
	"embed"
	"net/http"

	"github.com/slidesmith/slidesmith/pkg/module"
	"github.com/slidesmith/slidesmith/pkg/web"
)

//go:embed layouts/*.html
var layoutFS embed.FS

//go:embed views/*.html
var viewFS embed.FS

//go:embed static
var staticFS embed.FS

var views = []web.ViewDef{
	{Route: "GET /{$}", Template: "jobs.html", Title: "Jobs", Bundle: "jobs"},
	{Route: "GET /jobs/{id}", Template: "job.html", Title: "Job Detail", Bundle: "job"},
}

var notFoundView = web.ViewDef{
	Template: "error.html",
	Title:    "Not Found",
}

// NewModule creates the console module mounted at basePath.
func NewModule(basePath string) (*module.Module, error) {
	ts, err := web.NewTemplateSet(
		layoutFS, viewFS, "layouts/*.html", "views", basePath,
		append(views, notFoundView),
	)
	if err != nil {
		return nil, err
	}

	router := web.NewRouter()
	for _, v := range views {
		router.HandleFunc(v.Route, ts.PageHandler("base", v))
	}
	router.Handle("GET /static/", web.DistServer(staticFS, "static", "/static/"))
	router.SetFallback(ts.ErrorHandler("base", notFoundView, http.StatusNotFound))

	return module.New(basePath, router), nil
}
