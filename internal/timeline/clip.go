// Package timeline implements the interval algebra behind silence removal:
// pairing detector events into silence intervals, merging and complementing
// them, mapping between source time and the flat speech timeline, and
// reconciling transcript edits back into source clips.
//
// Every function in this package is pure and safe for concurrent use.
package timeline

import (
	"errors"
	"fmt"
)

// Static errors for timeline operations.
var (
	// ErrInvalidClip is returned when a clip does not satisfy 0 <= start < end.
	ErrInvalidClip = errors.New("timeline: invalid clip")
	// ErrUnordered is returned when a clip list is not ascending and non-overlapping.
	ErrUnordered = errors.New("timeline: clips are not ascending and non-overlapping")
)

// Clip is a half-open [Start, End) range in seconds. Whether it is expressed
// in source time or flat timeline time depends on where it came from.
type Clip struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// Validate checks 0 <= Start < End.
func (c Clip) Validate() error {
	if c.Start < 0 || c.End <= c.Start {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidClip, c.Start, c.End)
	}
	return nil
}

// ValidateList checks that every clip is valid and that the list is ascending
// and non-overlapping.
func ValidateList(clips []Clip) error {
	for i, c := range clips {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
		if i > 0 && c.Start < clips[i-1].End {
			return fmt.Errorf("%w: clip %d starts at %g before %g", ErrUnordered, i, c.Start, clips[i-1].End)
		}
	}
	return nil
}

// TotalDuration sums the durations of clips.
func TotalDuration(clips []Clip) float64 {
	var total float64
	for _, c := range clips {
		total += c.Duration()
	}
	return total
}

// Clone returns a copy of clips that shares no backing array.
func Clone(clips []Clip) []Clip {
	if clips == nil {
		return nil
	}
	out := make([]Clip, len(clips))
	copy(out, clips)
	return out
}
