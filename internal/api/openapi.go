package api

import (
	"fmt"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/pkg/openapi"
)

// buildSpec generates the OpenAPI document for the jobs API.
func buildSpec(cfg *config.Config) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(map[string]*openapi.Schema{
		"Job": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":       {Type: "string", Format: "uuid"},
				"status":   {Type: "string", Enum: []any{"queued", "processing", "completed", "failed"}},
				"progress": {Type: "integer", Description: "Completion percentage, 0-100"},
				"current_node": {
					Type:        "string",
					Description: "Pipeline node the job is currently executing",
				},
				"node_history": {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"errors": {
					Type:  "array",
					Items: openapi.SchemaRef("FaultRecord"),
				},
				"recovery_attempted": {Type: "boolean"},
				"recovery_strategy":  {Type: "string", Description: "Degraded alternative that produced the result, if any"},
				"result":             {Type: "string", Description: "Storage key of the rendered deck"},
				"created_at":         {Type: "string", Format: "date-time"},
				"completed_at":       {Type: "string", Format: "date-time"},
			},
			Required: []string{"id", "status", "progress", "created_at"},
		},
		"FaultRecord": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"kind":      {Type: "string", Description: "Fault taxonomy kind, e.g. image-processing/extraction"},
				"message":   {Type: "string"},
				"node":      {Type: "string"},
				"timestamp": {Type: "string", Format: "date-time"},
			},
		},
		"SubmitRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"images": {
					Type:        "array",
					Description: "Storage keys of previously uploaded document images, in page order",
					Items:       &openapi.Schema{Type: "string"},
				},
				"options": {Type: "object", Description: "Pipeline options passed through to the job"},
			},
			Required: []string{"images"},
		},
	})

	spec.Paths["/jobs"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List jobs",
			Tags:    []string{"jobs"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("status", "string", "Filter by job status", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paginated job list", "Job"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Submit a conversion job",
			Description: "Accepts a JSON body referencing uploaded image keys, or a multipart form whose image files are uploaded inline.",
			Tags:        []string{"jobs"},
			RequestBody: openapi.RequestBodyJSON("SubmitRequest", true),
			Responses: map[int]*openapi.Response{
				202: openapi.ResponseJSON("Job accepted", "Job"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/jobs/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get job status",
			Tags:       []string{"jobs"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Job identifier")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Job", "Job"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary:    "Cancel a job",
			Tags:       []string{"jobs"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Job identifier")},
			Responses: map[int]*openapi.Response{
				204: {Description: "Job cancelled"},
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/jobs/{id}/deck"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Download the rendered deck",
			Tags:       []string{"jobs"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Job identifier")},
			Responses: map[int]*openapi.Response{
				200: {
					Description: "Rendered HTML presentation",
					Content: map[string]*openapi.MediaType{
						"text/html": {Schema: &openapi.Schema{Type: "string"}},
					},
				},
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi spec: %w", err)
	}
	return data, nil
}
