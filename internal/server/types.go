// Package server provides the HTTP server for the Cutline API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/cutline-api/internal/project"
	"github.com/maauso/cutline-api/internal/timeline"
)

// CreateProjectRequest is the HTTP request body for creating a project.
type CreateProjectRequest struct {
	// FilePath is the source media file, readable by the server.
	FilePath string `json:"file_path" validate:"required,filepath"`
	// Name defaults to the file name without extension.
	Name string `json:"name" validate:"omitempty,max=200"`
	// Dir defaults to the directory of FilePath.
	Dir string `json:"dir" validate:"omitempty,dirpath"`
}

// DetectSilenceRequest is the HTTP request body for silence detection.
// Omitted fields take the service defaults.
type DetectSilenceRequest struct {
	MinSilenceLen    *float64 `json:"min_silence_len" validate:"omitempty,gt=0,lte=60"`
	MinNonSilenceLen *float64 `json:"min_non_silence_len" validate:"omitempty,gte=0,lte=60"`
	ThresholdDB      *float64 `json:"threshold_db" validate:"omitempty,gte=-100,lte=0"`
	Padding          *float64 `json:"padding" validate:"omitempty,gte=0,lte=10"`
}

// Settings merges the request over the defaults.
func (r DetectSilenceRequest) Settings() project.SilenceSettings {
	s := project.DefaultSilenceSettings()
	if r.MinSilenceLen != nil {
		s.MinSilenceLen = *r.MinSilenceLen
	}
	if r.MinNonSilenceLen != nil {
		s.MinNonSilenceLen = *r.MinNonSilenceLen
	}
	if r.ThresholdDB != nil {
		s.ThresholdDB = *r.ThresholdDB
	}
	if r.Padding != nil {
		s.Padding = *r.Padding
	}
	return s
}

// RenderRequest is the HTTP request body for rendering the current timeline.
type RenderRequest struct {
	Format string `json:"format" validate:"required,alphanum,lowercase,max=8"`
}

// RenderResponse is the HTTP response after rendering a timeline.
type RenderResponse struct {
	Path string `json:"path"`
}

// TranscribeRequest is the HTTP request body for transcribing a project.
type TranscribeRequest struct {
	// Language is an optional ISO-639-1 hint such as "en".
	Language string `json:"language" validate:"omitempty,len=2,alpha,lowercase"`
}

// DisabledSegmentsRequest is the HTTP request body for replacing or
// toggling disabled segment ids.
type DisabledSegmentsRequest struct {
	IDs []int `json:"ids" validate:"required,dive,gte=0"`
}

// ExportRequest is the HTTP request body for exporting a project.
type ExportRequest struct {
	Format    string `json:"format" validate:"required,oneof=edl fcpxml"`
	Name      string `json:"name" validate:"omitempty,max=200"`
	LeaveGaps bool   `json:"leave_gaps"`
	Overwrite bool   `json:"overwrite"`
	Publish   bool   `json:"publish"`
}

// ExportResponse is the HTTP response after an export.
type ExportResponse struct {
	// Status is "written" or "cancelled".
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	Clips  int    `json:"clips,omitempty"`
}

// ProjectResponse is the HTTP response for project details.
type ProjectResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Dir                string             `json:"dir"`
	FilePath           string             `json:"file_path"`
	FileDuration       float64            `json:"file_duration"`
	FrameRate          float64            `json:"frame_rate"`
	StartTimecode      string             `json:"start_timecode,omitempty"`
	Step               string             `json:"step"`
	Clips              []timeline.Clip    `json:"clips"`
	Silence            []timeline.Clip    `json:"silence"`
	Speech             []timeline.Clip    `json:"speech"`
	Transcription      []timeline.Segment `json:"transcription"`
	DisabledSegmentIDs []int              `json:"disabled_segment_ids"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ProjectSummary is one entry of the project list.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Step      string    `json:"step"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListProjectsResponse is the HTTP response for listing projects.
type ListProjectsResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Dir:                p.Dir,
		FilePath:           p.FilePath,
		FileDuration:       p.FileDuration,
		FrameRate:          p.FrameRate,
		StartTimecode:      p.StartTimecode,
		Step:               string(p.Step),
		Clips:              nonNil(p.Clips),
		Silence:            nonNil(p.Silence),
		Speech:             nonNil(p.Speech),
		Transcription:      nonNil(p.Transcription),
		DisabledSegmentIDs: p.DisabledSegmentIDs.IDs(),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
