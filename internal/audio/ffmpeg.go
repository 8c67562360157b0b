package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/maauso/cutline-api/internal/timeline"
)

// FFmpegSplitter implements Splitter using ffmpeg CLI.
type FFmpegSplitter struct {
	ffmpegPath string
}

// NewFFmpegSplitter creates a new FFmpegSplitter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegSplitter(ffmpegPath string) *FFmpegSplitter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegSplitter{ffmpegPath: ffmpegPath}
}

// Split implements Splitter.Split using ffmpeg silencedetect and segment extraction.
func (s *FFmpegSplitter) Split(ctx context.Context, input, outputDir string, opts SplitOpts) ([]Chunk, error) {
	if _, err := os.Stat(input); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", input)
	}

	ext := filepath.Ext(input)

	// silencedetect also prints the duration banner, so one pass gives both.
	duration, silences, err := s.analyze(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	if duration <= float64(opts.ChunkTargetSec) {
		outputPath := filepath.Join(outputDir, chunkName(0, ext))
		if err := s.copyAudio(ctx, input, outputPath); err != nil {
			return nil, fmt.Errorf("copy audio: %w", err)
		}
		return []Chunk{{Path: outputPath, Offset: 0, Duration: duration}}, nil
	}

	splitPoints := calculateSplitPoints(silences, duration, opts.ChunkTargetSec)

	chunks, err := s.extractChunks(ctx, input, outputDir, ext, splitPoints, duration)
	if err != nil {
		return nil, fmt.Errorf("extract chunks: %w", err)
	}

	return chunks, nil
}

// analyze runs silencedetect over input and returns its duration and the
// detected silence intervals.
func (s *FFmpegSplitter) analyze(ctx context.Context, input string, opts SplitOpts) (float64, []timeline.Clip, error) {
	filter := fmt.Sprintf("silencedetect=noise=%gdB:d=%g",
		opts.SilenceThreshDB,
		float64(opts.MinSilenceMs)/1000.0,
	)

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-hide_banner",
		"-i", input,
		"-af", filter,
		"-f", "null",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("detect silences: %w", ctx.Err())
		}
		return 0, nil, fmt.Errorf("detect silences: %w, stderr: %s", err, stderr.String())
	}

	duration, err := ParseDuration(stderr.String())
	if err != nil {
		return 0, nil, fmt.Errorf("get audio duration: %w", err)
	}

	events, err := ParseSilenceDetect(&stderr)
	if err != nil {
		return 0, nil, fmt.Errorf("detect silences: %w", err)
	}

	silences, err := timeline.PairEvents(events, duration)
	if err != nil {
		return 0, nil, fmt.Errorf("detect silences: %w", err)
	}

	return duration, silences, nil
}

// calculateSplitPoints determines split points near every multiple of the
// target, preferring the middle of a nearby silence.
func calculateSplitPoints(silences []timeline.Clip, totalDuration float64, targetSec int) []float64 {
	if len(silences) == 0 {
		return fixedSplitPoints(totalDuration, targetSec)
	}

	target := float64(targetSec)
	var splitPoints []float64
	lastSplit := 0.0

	for lastSplit < totalDuration-target/2 {
		idealPoint := lastSplit + target
		best, ok := findBestSilence(silences, idealPoint, target/3)

		if ok {
			splitPoint := (best.Start + best.End) / 2
			if splitPoint > lastSplit+1 {
				splitPoints = append(splitPoints, splitPoint)
				lastSplit = splitPoint
			} else {
				lastSplit = idealPoint
				if idealPoint < totalDuration {
					splitPoints = append(splitPoints, idealPoint)
				}
			}
		} else {
			// No silence close enough, cut at the ideal point unless it
			// would leave a sliver at the end.
			if idealPoint < totalDuration-1 {
				splitPoints = append(splitPoints, idealPoint)
			}
			lastSplit = idealPoint
		}
	}

	return splitPoints
}

// fixedSplitPoints generates evenly spaced split points when no silences are found.
func fixedSplitPoints(totalDuration float64, targetSec int) []float64 {
	var points []float64
	target := float64(targetSec)

	for t := target; t < totalDuration-1; t += target {
		points = append(points, t)
	}

	return points
}

// findBestSilence finds the silence whose middle is closest to idealPoint
// within tolerance. silences must be ascending.
func findBestSilence(silences []timeline.Clip, idealPoint, tolerance float64) (timeline.Clip, bool) {
	var (
		best         timeline.Clip
		found        bool
		bestDistance = tolerance
	)

	for _, sil := range silences {
		middle := (sil.Start + sil.End) / 2

		if middle < idealPoint-tolerance {
			continue
		}
		if middle > idealPoint+tolerance {
			break
		}

		distance := middle - idealPoint
		if distance < 0 {
			distance = -distance
		}
		if distance < bestDistance {
			bestDistance = distance
			best = sil
			found = true
		}
	}

	return best, found
}

// extractChunks creates audio chunk files based on split points.
func (s *FFmpegSplitter) extractChunks(ctx context.Context, input, outputDir, ext string, splitPoints []float64, totalDuration float64) ([]Chunk, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	bounds := make([]timeline.Clip, 0, len(splitPoints)+1)
	start := 0.0
	for _, point := range splitPoints {
		bounds = append(bounds, timeline.Clip{Start: start, End: point})
		start = point
	}
	bounds = append(bounds, timeline.Clip{Start: start, End: totalDuration})

	chunks := make([]Chunk, 0, len(bounds))
	for i, b := range bounds {
		outputPath := filepath.Join(outputDir, chunkName(i, ext))

		if err := s.extractSegment(ctx, input, outputPath, b.Start, b.Duration()); err != nil {
			for _, c := range chunks {
				os.Remove(c.Path)
			}
			return nil, fmt.Errorf("extract segment %d: %w", i, err)
		}

		chunks = append(chunks, Chunk{Path: outputPath, Offset: b.Start, Duration: b.Duration()})
	}

	return chunks, nil
}

// extractSegment extracts a portion of audio to a new file.
func (s *FFmpegSplitter) extractSegment(ctx context.Context, input, outputPath string, start, duration float64) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath, segmentArgs(input, outputPath, start, duration)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// copyAudio copies an audio file to a new location.
func (s *FFmpegSplitter) copyAudio(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-y",
		"-i", src,
		"-c", "copy",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// segmentArgs builds the ffmpeg arguments for one chunk. The chunk is
// re-encoded: a stream copy would start on the nearest compressed frame and
// shift every transcript timestamp by up to a frame.
func segmentArgs(input, outputPath string, start, duration float64) []string {
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", input,
		outputPath,
	}
}

func chunkName(i int, ext string) string {
	return fmt.Sprintf("chunk_%03d%s", i, ext)
}

// Verify interface implementation at compile time.
var _ Splitter = (*FFmpegSplitter)(nil)
