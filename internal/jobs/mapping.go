package jobs

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/slidesmith/slidesmith/pkg/query"
)

var projection = query.
	NewProjectionMap("public", "jobs", "j").
	Project("id", "ID").
	Project("status", "Status").
	Project("progress", "Progress").
	Project("current_node", "CurrentNode").
	Project("node_history", "NodeHistory").
	Project("errors", "Errors").
	Project("recovery_attempted", "RecoveryAttempted").
	Project("recovery_strategy", "RecoveryStrategy").
	Project("data", "Data").
	Project("result", "Result").
	Project("created_at", "CreatedAt").
	Project("completed_at", "CompletedAt").
	Project("version", "Version")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	if f.Status != "" {
		b.WhereEquals("Status", string(f.Status))
	}
	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if s := values.Get("status"); s != "" {
		f.Status = Status(s)
	}
	return f
}

// MapHTTPStatus translates job domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
