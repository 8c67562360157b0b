// Package transcribe provides the Transcriber port and an HTTP client for the
// OpenAI audio transcription API.
package transcribe

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/maauso/cutline-api/internal/timeline"
)

// Transcriber converts an audio file into ordered text segments whose times
// are relative to the start of that file.
type Transcriber interface {
	Transcribe(ctx context.Context, path, language string) ([]timeline.Segment, error)
}

// verboseResponse is the verbose_json transcription body.
type verboseResponse struct {
	Segments []verboseSegment `json:"segments"`
}

type verboseSegment struct {
	ID    int             `json:"id"`
	Start decimal.Decimal `json:"start"`
	End   decimal.Decimal `json:"end"`
	Text  string          `json:"text"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
