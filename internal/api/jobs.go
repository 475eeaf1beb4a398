package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/internal/engine"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/pipeline"
	"github.com/slidesmith/slidesmith/pkg/handlers"
	"github.com/slidesmith/slidesmith/pkg/pagination"
	"github.com/slidesmith/slidesmith/pkg/routes"
	"github.com/slidesmith/slidesmith/pkg/storage"
)

// Handler errors.
var (
	errInvalidRequest = errors.New("invalid request")
	errNoImages       = errors.New("at least one image required")
	errDeckNotReady   = errors.New("deck not available")
)

// JobService is the engine surface the jobs handler depends on.
type JobService interface {
	Submit(ctx context.Context, data map[string]any) (uuid.UUID, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	List(ctx context.Context, page pagination.PageRequest, filters jobs.Filters) (*pagination.PageResult[jobs.Job], error)
}

type jobsHandler struct {
	service       JobService
	store         storage.System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

func newJobsHandler(rt *Runtime, service JobService) *jobsHandler {
	return &jobsHandler{
		service:       service,
		store:         rt.Storage,
		logger:        rt.Logger.With("handler", "jobs"),
		pagination:    rt.Pagination,
		maxUploadSize: rt.MaxUploadSize,
	}
}

func (h *jobsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "POST", Pattern: "", Handler: h.submit},
			{Method: "GET", Pattern: "/{id}", Handler: h.find},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.cancel},
			{Method: "GET", Pattern: "/{id}/deck", Handler: h.deck},
		},
	}
}

// submitRequest is the JSON submission body for callers whose images are
// already in blob storage.
type submitRequest struct {
	Images  []string       `json:"images"`
	Options map[string]any `json:"options,omitempty"`
}

// submit accepts a job either as a JSON body referencing uploaded image
// keys, or as a multipart form whose image files are uploaded inline.
func (h *jobsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var (
		req submitRequest
		err error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err = json.NewDecoder(r.Body).Decode(&req)
	} else {
		req, err = h.uploadImages(r)
	}
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if len(req.Images) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errNoImages)
		return
	}

	data := map[string]any{pipeline.KeyImages: req.Images}
	if len(req.Options) > 0 {
		data["options"] = req.Options
	}

	id, err := h.service.Submit(r.Context(), data)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, jobs.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, job)
}

// uploadImages stores each multipart image file and returns the resulting
// storage keys in form order.
func (h *jobsHandler) uploadImages(r *http.Request) (submitRequest, error) {
	var req submitRequest

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return req, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		return req, errNoImages
	}

	for _, header := range files {
		key, err := h.uploadImage(r.Context(), header)
		if err != nil {
			return req, err
		}
		req.Images = append(req.Images, key)
	}

	if opts := r.FormValue("options"); opts != "" {
		if err := json.Unmarshal([]byte(opts), &req.Options); err != nil {
			return req, fmt.Errorf("%w: parse options: %w", errInvalidRequest, err)
		}
	}

	return req, nil
}

func (h *jobsHandler) uploadImage(ctx context.Context, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	defer file.Close()

	ext := path.Ext(header.Filename)
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("uploads/%s%s", uuid.New(), ext)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.store.Upload(ctx, key, file, contentType); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return key, nil
}

func (h *jobsHandler) list(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := jobs.FiltersFromQuery(r.URL.Query())

	result, err := h.service.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *jobsHandler) find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, jobs.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

func (h *jobsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, engine.ErrInFlight) {
			handlers.RespondError(w, h.logger, http.StatusConflict, err)
			return
		}
		handlers.RespondError(w, h.logger, jobs.MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// deck streams the rendered HTML deck of a completed job.
func (h *jobsHandler) deck(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, jobs.MapHTTPStatus(err), err)
		return
	}
	if job.Result == "" {
		handlers.RespondError(w, h.logger, http.StatusConflict, errDeckNotReady)
		return
	}

	body, err := h.store.Download(r.Context(), job.Result)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.RespondError(w, h.logger, http.StatusNotFound, errDeckNotReady)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(job.Result)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
