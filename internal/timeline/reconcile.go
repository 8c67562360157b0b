package timeline

import "fmt"

// Segment is a transcription segment. Start and End are flat timeline
// coordinates, relative to the audio rendered from the speech clips.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Reconcile turns the segments the user kept into a source-time clip list.
// Disabled segments are dropped, the rest are mapped through index in order
// and their fragments appended as they come: fragments of neighbouring
// segments are not merged even when contiguous.
//
// A segment that cannot be mapped aborts the whole reconciliation; the
// returned error wraps ErrRangeNotFound or ErrInvalidRange.
func Reconcile(segments []Segment, disabled SegmentSet, index Index) ([]Clip, error) {
	out := make([]Clip, 0, len(segments))
	for _, seg := range segments {
		if disabled.Has(seg.ID) {
			continue
		}
		fragments, err := index.FlatToSource(seg.Start, seg.End)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.ID, err)
		}
		out = append(out, fragments...)
	}
	return out, nil
}

// Shift returns segments moved by offset seconds, used when a timeline was
// transcribed in chunks.
func Shift(segments []Segment, offset float64) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		s.Start += offset
		s.End += offset
		out[i] = s
	}
	return out
}
