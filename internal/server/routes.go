package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /projects", h.ListProjects)
	mux.HandleFunc("POST /projects", h.CreateProject)
	mux.HandleFunc("GET /projects/{id}", h.GetProject)
	mux.HandleFunc("DELETE /projects/{id}", h.DeleteProject)

	mux.HandleFunc("POST /projects/{id}/silence", h.DetectSilence)
	mux.HandleFunc("POST /projects/{id}/renders", h.RenderTimeline)
	mux.HandleFunc("POST /projects/{id}/transcription", h.Transcribe)
	mux.HandleFunc("PUT /projects/{id}/disabled-segments", h.SetDisabledSegments)
	mux.HandleFunc("POST /projects/{id}/disabled-segments/toggle", h.ToggleSegments)
	mux.HandleFunc("POST /projects/{id}/edits", h.ApplyEdits)
	mux.HandleFunc("POST /projects/{id}/exports", h.Export)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
