// Package timecode converts between seconds, frame counts and HH:MM:SS:FF
// non-drop-frame timecode strings, and provides the rational frame durations
// used by FCPXML.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Static errors for timecode operations.
var (
	// ErrInvalidFrameRate is returned when a frame rate is not positive.
	ErrInvalidFrameRate = errors.New("timecode: frame rate must be positive")
	// ErrInvalidTimecode is returned when a timecode string cannot be parsed.
	ErrInvalidTimecode = errors.New("timecode: invalid timecode")
)

// frameEpsilon absorbs binary floating point error when flooring t*fps,
// so 2.0s at 24fps is 48 frames and never 47.
const frameEpsilon = 1e-9

// Nominal returns the integer frame rate used for HH:MM:SS:FF arithmetic.
// 23.976 counts as 24, 29.97 as 30 and 59.94 as 60.
func Nominal(fps float64) int64 {
	return int64(math.Round(fps))
}

// SecondsToFrames returns floor(t * fps) using the precise frame rate.
func SecondsToFrames(t, fps float64) int64 {
	return int64(math.Floor(t*fps + frameEpsilon))
}

// FramesToSeconds returns the time of the given frame at the precise rate.
func FramesToSeconds(frames int64, fps float64) float64 {
	return float64(frames) / fps
}

// FramesToTimecode formats a frame count as HH:MM:SS:FF using the nominal
// (rounded) frame rate. Negative frame counts are clamped to zero.
func FramesToTimecode(frames int64, fps float64) string {
	nominal := Nominal(fps)
	if nominal <= 0 {
		nominal = 1
	}
	if frames < 0 {
		frames = 0
	}

	perHour := 3600 * nominal
	perMinute := 60 * nominal

	hours := frames / perHour
	rest := frames % perHour
	minutes := rest / perMinute
	rest %= perMinute
	seconds := rest / nominal
	ff := rest % nominal

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, ff)
}

// SecondsToTimecode is FramesToTimecode(SecondsToFrames(t, fps), fps).
func SecondsToTimecode(t, fps float64) string {
	return FramesToTimecode(SecondsToFrames(t, fps), fps)
}

// TimecodeToFrames parses HH:MM:SS:FF (":" or ";" separated) into a frame
// count at the nominal rate.
func TimecodeToFrames(tc string, fps float64) (int64, error) {
	if fps <= 0 {
		return 0, ErrInvalidFrameRate
	}
	nominal := Nominal(fps)

	parts := strings.FieldsFunc(strings.TrimSpace(tc), func(r rune) bool {
		return r == ':' || r == ';'
	})
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, tc)
	}

	var fields [4]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, tc)
		}
		fields[i] = v
	}

	hours, minutes, seconds, frames := fields[0], fields[1], fields[2], fields[3]
	if minutes > 59 || seconds > 59 || frames >= nominal {
		return 0, fmt.Errorf("%w: %q out of range at %d fps", ErrInvalidTimecode, tc, nominal)
	}

	return (hours*3600+minutes*60+seconds)*nominal + frames, nil
}

// TimecodeToSeconds converts a start timecode into an offset in seconds at
// the precise frame rate.
func TimecodeToSeconds(tc string, fps float64) (float64, error) {
	frames, err := TimecodeToFrames(tc, fps)
	if err != nil {
		return 0, err
	}
	return FramesToSeconds(frames, fps), nil
}
