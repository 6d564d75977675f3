package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/nexus/pkg/handlers"
	"github.com/JaimeStill/nexus/pkg/pagination"
	"github.com/JaimeStill/nexus/pkg/routes"
)

const (
	pdfContentType = "application/pdf"

	// multipartOverhead is the body allowance on top of maxUploadSize for
	// part headers and boundaries.
	multipartOverhead = 64 << 10

	maxSearchBody = 64 << 10
)

// Handler provides HTTP endpoints for job operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "jobs"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for job endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Upload},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// List returns a paginated list of jobs with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	h.respondList(w, r, page, FiltersFromQuery(r.URL.Query()))
}

// Search accepts a JSON body with pagination and filter criteria and returns matching jobs.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handlers.RespondError(w, r, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidQuery, err))
		return
	}

	req.PageRequest.Normalize(h.pagination)
	h.respondList(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	if err := filters.Validate(); err != nil {
		handlers.RespondError(w, r, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, r, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single job by its UUID path parameter. Clients poll this
// endpoint to follow a job's progress.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	j, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, r, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, j)
}

// Upload accepts a multipart form with a single PDF in the "file" field,
// creates a job, and enqueues it. Responds 202 with the queued job.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.readUpload(w, r)
	if err != nil {
		handlers.RespondError(w, r, h.logger, MapHTTPStatus(err), err)
		return
	}

	j, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, r, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, j)
}

// Delete removes a terminal job by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, r, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, r, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// readUpload bounds the request body, pulls the "file" part and checks it.
// The content type comes from the leading bytes; the client's declared
// type is not trusted.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (CreateCommand, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return CreateCommand{}, fmt.Errorf("%w: request exceeds %d bytes", ErrFileTooLarge, tooLarge.Limit)
		}
		return CreateCommand{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return CreateCommand{}, fmt.Errorf("%w: missing file field", ErrInvalidFile)
	}
	defer file.Close()

	if err := ValidateFilename(header.Filename); err != nil {
		return CreateCommand{}, err
	}
	if err := ValidateSize(header.Size, h.maxUploadSize); err != nil {
		return CreateCommand{}, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return CreateCommand{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if ct := http.DetectContentType(data); ct != pdfContentType {
		return CreateCommand{}, fmt.Errorf("%w: content is %s, not a PDF", ErrInvalidFile, ct)
	}

	return CreateCommand{
		Data:        data,
		Filename:    header.Filename,
		ContentType: pdfContentType,
		PageCount:   pdfPageCount(h.logger, data),
	}, nil
}

func pdfPageCount(logger *slog.Logger, data []byte) *int {
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("page count unreadable, rendering will count pages", "error", err)
		return nil
	}
	return &count
}
