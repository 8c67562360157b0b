package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/cutline-api/internal/export"
	"github.com/maauso/cutline-api/internal/project"
	"github.com/maauso/cutline-api/internal/storage"
	"github.com/maauso/cutline-api/internal/timecode"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service         *project.Service
	validator       *validator.Validate
	logger          *slog.Logger
	asyncTranscribe bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncTranscription enables or disables background transcription.
// When enabled, the transcription endpoint returns 202 right away and the
// result shows up on the project once the service finishes.
func WithAsyncTranscription(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.asyncTranscribe = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *project.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListProjects handles GET /projects requests.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "", err)
		return
	}

	resp := ListProjectsResponse{Projects: make([]ProjectSummary, 0, len(projects))}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, ProjectSummary{
			ID:        p.ID,
			Name:      p.Name,
			Step:      string(p.Step),
			UpdatedAt: p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProject handles POST /projects requests.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), project.CreateInput{
		Name:     req.Name,
		FilePath: req.FilePath,
		Dir:      req.Dir,
	})
	if err != nil {
		h.writeServiceError(w, "", err)
		return
	}

	h.logger.Info("project created",
		slog.String("project_id", p.ID),
		slog.String("file_path", p.FilePath),
	)

	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// GetProject handles GET /projects/{id} requests.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// DeleteProject handles DELETE /projects/{id} requests.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetectSilence handles POST /projects/{id}/silence requests.
func (h *Handlers) DetectSilence(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req DetectSilenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.DetectSilence(r.Context(), id, req.Settings())
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// RenderTimeline handles POST /projects/{id}/renders requests.
func (h *Handlers) RenderTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req RenderRequest
	if !h.decode(w, r, &req) {
		return
	}

	path, err := h.service.RenderTimeline(r.Context(), id, req.Format)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{Path: path})
}

// Transcribe handles POST /projects/{id}/transcription requests.
func (h *Handlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req TranscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if h.asyncTranscribe {
		// The project stays busy until the background run finishes.
		p, _, err := h.service.TranscribeAsync(r.Context(), id, req.Language)
		if err != nil {
			h.writeServiceError(w, id, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toProjectResponse(p))
		return
	}

	p, err := h.service.Transcribe(r.Context(), id, req.Language)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// SetDisabledSegments handles PUT /projects/{id}/disabled-segments requests.
func (h *Handlers) SetDisabledSegments(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req DisabledSegmentsRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.SetDisabledSegments(r.Context(), id, req.IDs)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// ToggleSegments handles POST /projects/{id}/disabled-segments/toggle requests.
func (h *Handlers) ToggleSegments(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req DisabledSegmentsRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.ToggleSegments(r.Context(), id, req.IDs)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// ApplyEdits handles POST /projects/{id}/edits requests.
func (h *Handlers) ApplyEdits(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	p, err := h.service.ApplyEdits(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Export handles POST /projects/{id}/exports requests.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req ExportRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Export(r.Context(), id, project.ExportInput{
		Format:    export.Format(req.Format),
		Name:      req.Name,
		LeaveGaps: req.LeaveGaps,
		Overwrite: req.Overwrite,
		Publish:   req.Publish,
	})
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	status := http.StatusCreated
	if res.Outcome == export.OutcomeCancelled {
		status = http.StatusOK
	}
	writeJSON(w, status, ExportResponse{
		Status: string(res.Outcome),
		Path:   res.Path,
		URL:    res.URL,
		Clips:  res.Clips,
	})
}

// projectID reads the {id} path value, writing a 400 when it is missing.
func projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "project ID is required", "MISSING_PROJECT_ID")
		return "", false
	}
	return id, true
}

// decode reads and validates a JSON body. An empty body decodes as the zero value.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			h.logger.Warn("failed to decode request body",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
			return false
		}
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeServiceError maps workflow errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, id string, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, project.ErrNotFound):
		status, code = http.StatusNotFound, "PROJECT_NOT_FOUND"
	case errors.Is(err, project.ErrInvalidInput):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, project.ErrUnknownSegment):
		status, code = http.StatusBadRequest, "UNKNOWN_SEGMENT"
	case errors.Is(err, storage.ErrS3NotConfigured):
		status, code = http.StatusBadRequest, "S3_NOT_CONFIGURED"
	case errors.Is(err, project.ErrBusy):
		status, code = http.StatusConflict, "PROJECT_BUSY"
	case errors.Is(err, project.ErrEditApplication):
		status, code = http.StatusConflict, "EDIT_APPLICATION_FAILED"
	case errors.Is(err, project.ErrNoSpeech),
		errors.Is(err, project.ErrNotTranscribed),
		errors.Is(err, project.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_STEP"
	case errors.Is(err, export.ErrNoClips):
		status, code = http.StatusConflict, "NO_CLIPS"
	case errors.Is(err, timecode.ErrUnsupportedFrameRate),
		errors.Is(err, timecode.ErrInvalidTimecode):
		status, code = http.StatusUnprocessableEntity, "UNSUPPORTED_FRAME_RATE"
	case errors.Is(err, project.ErrExternal):
		status, code = http.StatusBadGateway, "EXTERNAL_FAILURE"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("project_id", id),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, err.Error(), code)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
