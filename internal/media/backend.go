// Package media wraps the ffmpeg and ffprobe binaries behind the Backend port:
// probing source media, running silence detection and rendering a clip list
// into a compressed audio file.
package media

import (
	"context"

	"github.com/maauso/cutline-api/internal/timeline"
)

// ProbeResult is what the rest of the system needs to know about a source file.
type ProbeResult struct {
	// Duration in seconds.
	Duration float64
	// FrameRate of the first video stream, 0 for audio-only files.
	FrameRate float64
	// StartTimecode is the embedded start timecode (HH:MM:SS:FF), empty when absent.
	StartTimecode string
	Width         int
	Height        int
}

// HasVideo reports whether the probed file carries a video stream.
func (r ProbeResult) HasVideo() bool {
	return r.FrameRate > 0
}

// Backend defines the media operations the workflow depends on.
// Implementations should use ffmpeg or similar tools.
type Backend interface {
	// Probe reads duration, frame rate and start timecode of a media file.
	Probe(ctx context.Context, path string) (ProbeResult, error)

	// DetectSilence runs silence detection over the audio of path and
	// returns the raw detector events in source time. thresholdDB is the
	// noise floor in dB, minDuration the shortest silence in seconds.
	DetectSilence(ctx context.Context, path string, thresholdDB, minDuration float64) ([]timeline.SilenceEvent, error)

	// RenderTimeline renders the audio of the given source clips, in order
	// and back to back, into outPath as mono 44.1 kHz audio. The container
	// follows the extension of outPath.
	RenderTimeline(ctx context.Context, path string, clips []timeline.Clip, outPath string) error
}
