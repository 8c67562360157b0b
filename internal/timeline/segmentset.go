package timeline

import (
	"encoding/json"
	"slices"
)

// SegmentSet is an ordered set of transcription segment ids. It marshals to
// JSON as an ascending array of integers and accepts any integer array on
// unmarshal (duplicates collapse). The zero value is an empty set.
type SegmentSet struct {
	ids map[int]struct{}
}

// NewSegmentSet returns a set holding ids.
func NewSegmentSet(ids ...int) SegmentSet {
	var s SegmentSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id.
func (s *SegmentSet) Add(id int) {
	if s.ids == nil {
		s.ids = make(map[int]struct{})
	}
	s.ids[id] = struct{}{}
}

// Remove deletes id.
func (s *SegmentSet) Remove(id int) {
	delete(s.ids, id)
}

// Toggle removes id when present and adds it otherwise.
func (s *SegmentSet) Toggle(id int) {
	if s.Has(id) {
		s.Remove(id)
		return
	}
	s.Add(id)
}

// Has reports whether id is in the set.
func (s SegmentSet) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids.
func (s SegmentSet) Len() int {
	return len(s.ids)
}

// IDs returns the ids in ascending order.
func (s SegmentSet) IDs() []int {
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s SegmentSet) Clone() SegmentSet {
	return NewSegmentSet(s.IDs()...)
}

// MarshalJSON encodes the set as an ascending integer array.
func (s SegmentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an integer array. null yields an empty set.
func (s *SegmentSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSegmentSet(ids...)
	return nil
}
