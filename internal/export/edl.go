// Package export serializes clip lists into timeline interchange formats:
// CMX3600-style EDL text and FCPXML 1.10 bundles.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maauso/cutline-api/internal/timecode"
	"github.com/maauso/cutline-api/internal/timeline"
)

// Static errors for export operations.
var (
	// ErrInvalidFrameRate is returned when the frame rate is not positive.
	ErrInvalidFrameRate = errors.New("export: frame rate must be positive")
	// ErrNoClips is returned when there is nothing to export.
	ErrNoClips = errors.New("export: no clips to export")
)

// EDLOptions configures EDL generation.
type EDLOptions struct {
	Title    string
	ClipName string
	FPS      float64
	// SourceOffset is the embedded start timecode of the source media in
	// seconds. It is added to every clip time before flooring to frames.
	SourceOffset float64
}

// EDL renders clips as a CMX3600 edit decision list with non-drop-frame
// timecode. Record timecodes start at zero and are contiguous: each event's
// record in equals the previous event's record out. Clips shorter than one
// frame produce no event, so record timecodes strictly increase.
func EDL(clips []timeline.Clip, opts EDLOptions) (string, error) {
	if opts.FPS <= 0 {
		return "", fmt.Errorf("%w: %g", ErrInvalidFrameRate, opts.FPS)
	}
	if len(clips) == 0 {
		return "", ErrNoClips
	}

	offset := max(opts.SourceOffset, 0)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\nFCM: NON-DROP FRAME\n\n", opts.Title)

	var (
		recIn  int64
		events int
	)
	for i, c := range clips {
		if err := c.Validate(); err != nil {
			return "", fmt.Errorf("clip %d: %w", i, err)
		}

		srcIn := timecode.SecondsToFrames(c.Start+offset, opts.FPS)
		srcOut := timecode.SecondsToFrames(c.End+offset, opts.FPS)
		if srcOut <= srcIn {
			continue
		}
		recOut := recIn + (srcOut - srcIn)
		events++

		// AX: auxiliary source, V: video track, C: cut.
		fmt.Fprintf(&b, "%03d  AX       V     C        %s %s %s %s\n",
			events,
			timecode.FramesToTimecode(srcIn, opts.FPS),
			timecode.FramesToTimecode(srcOut, opts.FPS),
			timecode.FramesToTimecode(recIn, opts.FPS),
			timecode.FramesToTimecode(recOut, opts.FPS),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME: %s\n\n", opts.ClipName)

		recIn = recOut
	}
	if events == 0 {
		return "", fmt.Errorf("%w: every clip is shorter than one frame", ErrNoClips)
	}

	return b.String(), nil
}
