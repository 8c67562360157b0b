// Package audio turns ffmpeg output into typed timeline data and cuts long
// renders into transcription-sized chunks.
package audio

import "context"

// SplitOpts configures the behavior of audio splitting.
type SplitOpts struct {
	// ChunkTargetSec is the target duration for each audio chunk in seconds.
	// Audio will be split at silence boundaries close to this duration.
	// Default: 600 seconds.
	ChunkTargetSec int

	// MinSilenceMs is the minimum silence duration in milliseconds
	// to consider for a split point.
	// Default: 500 milliseconds.
	MinSilenceMs int

	// SilenceThreshDB is the volume threshold in dBFS below which
	// audio is considered silence.
	// Default: -40 dBFS.
	SilenceThreshDB float64
}

// DefaultSplitOpts returns the default options for audio splitting.
func DefaultSplitOpts() SplitOpts {
	return SplitOpts{
		ChunkTargetSec:  600,
		MinSilenceMs:    500,
		SilenceThreshDB: -40,
	}
}

// Chunk is one piece of a split audio file.
type Chunk struct {
	// Path of the chunk file.
	Path string
	// Offset is where the chunk starts in the input, in seconds.
	Offset float64
	// Duration of the chunk in seconds.
	Duration float64
}

// Splitter defines the interface for splitting audio files at silence boundaries.
type Splitter interface {
	// Split divides an audio file into chunks at silence boundaries.
	// If the audio is shorter than or equal to ChunkTargetSec, it returns
	// a single chunk holding a copy of the input file.
	//
	// Chunks are returned in order with their offsets into the input, so
	// timestamps produced for a chunk can be shifted back into input time.
	// The caller is responsible for cleaning up the chunk files.
	Split(ctx context.Context, input, outputDir string, opts SplitOpts) ([]Chunk, error)
}
