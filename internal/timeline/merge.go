package timeline

import (
	"cmp"
	"slices"
)

// Merge joins silence intervals separated by less than minNonSilenceLen of
// non-silence, so that no speech island shorter than the threshold survives.
//
// The first interval is extended to start at 0 when it begins within
// minNonSilenceLen of the media start: the head of the file is treated like
// the end of a silence. Intervals contained in an earlier one are absorbed.
// Merge is idempotent and returns nil for empty input, meaning the whole file
// is speech.
func Merge(intervals []Clip, minNonSilenceLen float64) []Clip {
	if len(intervals) == 0 {
		return nil
	}

	sorted := Clone(intervals)
	slices.SortStableFunc(sorted, func(a, b Clip) int {
		return cmp.Compare(a.Start, b.Start)
	})

	acc := sorted[0]
	if acc.Start < minNonSilenceLen {
		acc.Start = 0
	}

	out := make([]Clip, 0, len(sorted))
	for _, next := range sorted[1:] {
		if next.End <= acc.End {
			continue
		}
		if next.Start-acc.End < minNonSilenceLen {
			acc.End = next.End
			continue
		}
		out = append(out, acc)
		acc = next
	}

	return append(out, acc)
}

// Complement returns the speech intervals of [0, duration] not covered by
// silence. silence must be ascending; it is clamped to [0, duration].
func Complement(silence []Clip, duration float64) []Clip {
	if duration <= 0 {
		return nil
	}

	var out []Clip
	cursor := 0.0
	for _, s := range silence {
		start := clamp(s.Start, 0, duration)
		end := clamp(s.End, 0, duration)
		if start > cursor {
			out = append(out, Clip{Start: cursor, End: start})
		}
		cursor = max(cursor, end)
	}
	if duration > cursor {
		out = append(out, Clip{Start: cursor, End: duration})
	}

	return out
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
