package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// Static errors for flat timeline mapping.
var (
	// ErrRangeNotFound is returned when a flat range is not contained in the
	// flat timeline. It means the transcription and the speech timeline have
	// diverged; callers must not clamp and retry.
	ErrRangeNotFound = errors.New("timeline: flat range not found in speech timeline")
	// ErrInvalidRange is returned for empty, reversed or negative ranges.
	ErrInvalidRange = errors.New("timeline: invalid flat range")
	// ErrNotInTimeline is returned when a source time falls inside removed material.
	ErrNotInTimeline = errors.New("timeline: source time is not part of the speech timeline")
)

// mapEpsilon tolerates float error accumulated while summing clip durations.
const mapEpsilon = 1e-9

// Index maps between source time and the flat timeline obtained by
// concatenating a list of speech clips end to end.
type Index struct {
	speech []Clip
	flat   []Clip
}

// NewIndex builds the flat index of speech. speech must be ascending and
// non-overlapping.
func NewIndex(speech []Clip) (Index, error) {
	if err := ValidateList(speech); err != nil {
		return Index{}, err
	}

	flat := make([]Clip, len(speech))
	head := 0.0
	for i, c := range speech {
		flat[i] = Clip{Start: head, End: head + c.Duration()}
		head = flat[i].End
	}

	return Index{speech: Clone(speech), flat: flat}, nil
}

// Len returns the number of clips in the index.
func (x Index) Len() int {
	return len(x.speech)
}

// Duration returns the length of the flat timeline.
func (x Index) Duration() float64 {
	if len(x.flat) == 0 {
		return 0
	}
	return x.flat[len(x.flat)-1].End
}

// Flat returns the flat span of every clip.
func (x Index) Flat() []Clip {
	return Clone(x.flat)
}

// FlatToSource maps the flat range [flatStart, flatEnd) back to source clips.
// A range inside one clip yields a single clip; a range spanning several
// yields a leading partial fragment, the intermediate clips verbatim and a
// trailing partial fragment. Zero-length fragments are never produced.
func (x Index) FlatToSource(flatStart, flatEnd float64) ([]Clip, error) {
	if flatStart < 0 || flatEnd <= flatStart {
		return nil, fmt.Errorf("%w: [%g, %g)", ErrInvalidRange, flatStart, flatEnd)
	}

	n := len(x.flat)
	cursor := 0
	for cursor < n && x.flat[cursor].End <= flatStart+mapEpsilon {
		cursor++
	}
	if cursor == n {
		return nil, fmt.Errorf("%w: start %g beyond timeline end %g", ErrRangeNotFound, flatStart, x.Duration())
	}
	startIndex := cursor

	for cursor < n && x.flat[cursor].End < flatEnd-mapEpsilon {
		cursor++
	}
	if cursor == n {
		return nil, fmt.Errorf("%w: end %g beyond timeline end %g", ErrRangeNotFound, flatEnd, x.Duration())
	}
	endIndex := cursor

	start := max(x.speech[startIndex].Start+(flatStart-x.flat[startIndex].Start), x.speech[startIndex].Start)
	end := min(x.speech[endIndex].Start+(flatEnd-x.flat[endIndex].Start), x.speech[endIndex].End)

	if startIndex == endIndex {
		return []Clip{{Start: start, End: end}}, nil
	}

	out := make([]Clip, 0, endIndex-startIndex+1)
	out = append(out, Clip{Start: start, End: x.speech[startIndex].End})
	out = append(out, x.speech[startIndex+1:endIndex]...)
	out = append(out, Clip{Start: x.speech[endIndex].Start, End: end})

	return out, nil
}

// FlatToSourceTime maps a single flat instant to source time.
func (x Index) FlatToSourceTime(t float64) (float64, error) {
	i := sort.Search(len(x.flat), func(i int) bool { return x.flat[i].End >= t })
	if t < 0 || i == len(x.flat) {
		return 0, fmt.Errorf("%w: %g", ErrRangeNotFound, t)
	}
	return x.speech[i].Start + (t - x.flat[i].Start), nil
}

// SourceToFlat maps a source instant to its position on the flat timeline.
// Clip ends map to the end of their flat span.
func (x Index) SourceToFlat(t float64) (float64, error) {
	i := sort.Search(len(x.speech), func(i int) bool { return x.speech[i].End >= t })
	if i == len(x.speech) || t < x.speech[i].Start {
		return 0, fmt.Errorf("%w: %g", ErrNotInTimeline, t)
	}
	return x.flat[i].Start + (t - x.speech[i].Start), nil
}
