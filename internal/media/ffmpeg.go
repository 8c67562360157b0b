package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/cutline-api/internal/audio"
	"github.com/maauso/cutline-api/internal/timeline"
)

// Static errors for media operations.
var (
	// ErrNoClips is returned when a render is requested for an empty clip list.
	ErrNoClips = errors.New("media: no clips to render")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
	// ErrInvalidSilenceSettings is returned for a non-positive minimum silence duration.
	ErrInvalidSilenceSettings = errors.New("media: minimum silence duration must be positive")
)

// FFmpegBackend implements Backend using the ffmpeg and ffprobe CLIs.
type FFmpegBackend struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegBackend creates a new FFmpegBackend.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegBackend(ffmpegPath, ffprobePath string) *FFmpegBackend {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegBackend{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Probe implements Backend.Probe.
func (b *FFmpegBackend) Probe(ctx context.Context, path string) (ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, b.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return ProbeResult{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

// DetectSilence implements Backend.DetectSilence.
func (b *FFmpegBackend) DetectSilence(ctx context.Context, path string, thresholdDB, minDuration float64) ([]timeline.SilenceEvent, error) {
	if minDuration <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidSilenceSettings, minDuration)
	}

	args := []string{
		"-hide_banner",
		"-i", path,
		"-vn",
		"-af", fmt.Sprintf("silencedetect=n=%gdB:d=%g", thresholdDB, minDuration),
		"-f", "null",
		"-",
	}

	stderr, err := b.runFFmpeg(ctx, args)
	if err != nil {
		return nil, err
	}

	events, err := audio.ParseSilenceDetect(strings.NewReader(stderr))
	if err != nil {
		return nil, fmt.Errorf("parse silencedetect output: %w", err)
	}
	return events, nil
}

// RenderTimeline implements Backend.RenderTimeline.
func (b *FFmpegBackend) RenderTimeline(ctx context.Context, path string, clips []timeline.Clip, outPath string) error {
	if len(clips) == 0 {
		return ErrNoClips
	}
	if err := timeline.ValidateList(clips); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := []string{
		"-y",
		"-i", path,
		"-vn",
		"-af", selectFilter(clips),
		"-ar", "44100",
		"-ac", "1",
		"-b:a", "64k",
		outPath,
	}

	_, err := b.runFFmpeg(ctx, args)
	return err
}

// selectFilter keeps the samples inside clips and closes the gaps between them.
func selectFilter(clips []timeline.Clip) string {
	parts := make([]string, len(clips))
	for i, c := range clips {
		parts[i] = fmt.Sprintf("between(t,%s,%s)", formatSeconds(c.Start), formatSeconds(c.End))
	}
	return fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", strings.Join(parts, "+"))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// runFFmpeg executes ffmpeg with the given arguments and returns its stderr.
// On failure the error carries the stderr output.
func (b *FFmpegBackend) runFFmpeg(ctx context.Context, args []string) (string, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, b.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return "", &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stderr.String(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Backend = (*FFmpegBackend)(nil)
