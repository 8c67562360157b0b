package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		intervals []Clip
		minLen    float64
		want      []Clip
	}{
		{
			name:      "short gap merges",
			intervals: []Clip{{0, 1}, {1.3, 2}},
			minLen:    0.5,
			want:      []Clip{{0, 2}},
		},
		{
			name:      "long gap keeps both",
			intervals: []Clip{{0, 1}, {2, 3}},
			minLen:    0.5,
			want:      []Clip{{0, 1}, {2, 3}},
		},
		{
			name:      "empty input means all speech",
			intervals: nil,
			minLen:    0.5,
			want:      nil,
		},
		{
			name:      "chain of short gaps collapses",
			intervals: []Clip{{1, 2}, {2.2, 3}, {3.1, 4}, {6, 7}},
			minLen:    0.5,
			want:      []Clip{{1, 4}, {6, 7}},
		},
		{
			name:      "first interval near the start snaps to zero",
			intervals: []Clip{{0.3, 1}, {3, 4}},
			minLen:    0.5,
			want:      []Clip{{0, 1}, {3, 4}},
		},
		{
			name:      "first interval far from the start is kept",
			intervals: []Clip{{0.6, 1}},
			minLen:    0.5,
			want:      []Clip{{0.6, 1}},
		},
		{
			name:      "contained interval is absorbed",
			intervals: []Clip{{1, 5}, {2, 3}, {6, 7}},
			minLen:    0.5,
			want:      []Clip{{1, 5}, {6, 7}},
		},
		{
			name:      "unsorted input is ordered first",
			intervals: []Clip{{6, 7}, {1, 2}},
			minLen:    0.5,
			want:      []Clip{{1, 2}, {6, 7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.intervals, tt.minLen))
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	inputs := [][]Clip{
		{{0, 1}, {1.3, 2}, {5, 6}, {6.2, 8}, {10, 11}},
		{{0.2, 0.9}, {1.1, 1.5}, {4, 4.5}},
		{{3, 4}},
	}
	for _, minLen := range []float64{0, 0.3, 0.8, 2} {
		for _, in := range inputs {
			once := Merge(in, minLen)
			assert.Equal(t, once, Merge(once, minLen), "minLen %v input %v", minLen, in)
		}
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := []Clip{{0.1, 1}, {1.2, 2}}
	_ = Merge(in, 0.5)
	assert.Equal(t, []Clip{{0.1, 1}, {1.2, 2}}, in)
}

func TestComplement(t *testing.T) {
	tests := []struct {
		name     string
		silence  []Clip
		duration float64
		want     []Clip
	}{
		{"single silence", []Clip{{1, 2}}, 5, []Clip{{0, 1}, {2, 5}}},
		{"no silence", nil, 5, []Clip{{0, 5}}},
		{"silence at both ends", []Clip{{0, 1}, {4, 5}}, 5, []Clip{{1, 4}}},
		{"all silence", []Clip{{0, 5}}, 5, nil},
		{"silence past duration is clamped", []Clip{{3, 9}}, 5, []Clip{{0, 3}}},
		{"zero duration", []Clip{{0, 1}}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Complement(tt.silence, tt.duration))
		})
	}
}

func TestComplement_PartitionsDuration(t *testing.T) {
	cases := []struct {
		silence  []Clip
		duration float64
	}{
		{Merge([]Clip{{0, 1}, {1.3, 2}, {4, 6}, {9, 10}}, 0.5), 10},
		{Merge([]Clip{{2, 3}, {7, 8.5}}, 0.8), 12.25},
		{nil, 3},
	}

	for _, c := range cases {
		speech := Complement(c.silence, c.duration)

		all := append(Clone(c.silence), speech...)
		sortClips(all)

		require.NotEmpty(t, all)
		assert.Equal(t, 0.0, all[0].Start)
		assert.Equal(t, c.duration, all[len(all)-1].End)
		for i := 1; i < len(all); i++ {
			assert.Equal(t, all[i-1].End, all[i].Start, "gap or overlap at %d in %v", i, all)
		}
		assert.InDelta(t, c.duration, TotalDuration(all), 1e-9)
	}
}

func sortClips(clips []Clip) {
	for i := 1; i < len(clips); i++ {
		for j := i; j > 0 && clips[j].Start < clips[j-1].Start; j-- {
			clips[j], clips[j-1] = clips[j-1], clips[j]
		}
	}
}

func TestPad(t *testing.T) {
	got := Pad([]Clip{{0, 2}, {3, 3.3}, {5, 8}}, 0.2, 0.2)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.2, got[0].Start, 1e-9)
	assert.InDelta(t, 1.8, got[0].End, 1e-9)
	assert.InDelta(t, 5.2, got[1].Start, 1e-9)
	assert.InDelta(t, 7.8, got[1].End, 1e-9)
}
