package boundary

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layout builds a bucket whose records sit at the given display ranks on
// the canonical grid. Every lower rank without a record is vacated.
func layout(occupied ...int) *Layout {
	var records, vacant []int64
	top := -1
	if len(occupied) > 0 {
		top = slices.Max(occupied)
	}
	for r := 0; r <= top; r++ {
		pos := int64(r+1) * 100
		if slices.Contains(occupied, r) {
			records = append(records, pos)
		} else {
			vacant = append(vacant, pos)
		}
	}
	return FromLayout(records, vacant)
}

func prefix(n int) *Layout {
	ranks := make([]int, n)
	for i := range ranks {
		ranks[i] = i
	}
	return layout(ranks...)
}

func TestNextAvailableRank(t *testing.T) {
	tests := []struct {
		name string
		l    *Layout
		want int
	}{
		{name: "empty", l: prefix(0), want: 0},
		{name: "prefix", l: prefix(3), want: 3},
		{name: "gap after first", l: layout(0, 2, 3), want: 1},
		{name: "missing zero", l: layout(1, 2), want: 0},
		{name: "unordered input", l: layout(2, 0, 1), want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.l.NextAvailableRank())
		})
	}
}

func TestContiguous(t *testing.T) {
	assert.True(t, prefix(5).Contiguous())
	assert.True(t, prefix(0).Contiguous())
	assert.False(t, layout(0, 2).Contiguous())
	assert.True(t, layout(0, 1).Occupied(1))
	assert.False(t, layout(0, 1).Occupied(-1))
}

func TestValidateTargetRank(t *testing.T) {
	occ := prefix(2).Occupancy

	assert.NoError(t, ValidateTargetRank(occ, 0, 12))
	assert.NoError(t, ValidateTargetRank(occ, 2, 12), "append is legal")

	err := ValidateTargetRank(occ, 3, 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRank))

	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	assert.Equal(t, 3, rankErr.Rank)
	assert.Equal(t, 2, rankErr.NextAvailable)
}

func TestValidateTargetRank_Capacity(t *testing.T) {
	full := prefix(12).Occupancy

	err := ValidateTargetRank(full, 12, 12)
	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	assert.Equal(t, 11, rankErr.NextAvailable)
	assert.Contains(t, err.Error(), "outside display capacity")

	assert.ErrorIs(t, ValidateTargetRank(full, -1, 12), ErrInvalidRank)
	assert.NoError(t, ValidateTargetRank(full, 11, 12))
}

func TestValidateTargetRank_Gap(t *testing.T) {
	err := ValidateTargetRank(layout(0, 1, 5).Occupancy, 4, 12)

	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	assert.Equal(t, 2, rankErr.NextAvailable)
}

func TestFromLayout(t *testing.T) {
	tests := []struct {
		name     string
		records  []int64
		vacant   []int64
		next     int
		slots    int
		vacantAt map[int]int64
	}{
		{name: "no vacancies", records: []int64{100, 200, 300}, next: 3, slots: 3},
		{name: "hole in the middle", records: []int64{100, 300}, vacant: []int64{200}, next: 1, slots: 3, vacantAt: map[int]int64{1: 200}},
		{name: "hole in front", records: []int64{200, 300}, vacant: []int64{100}, next: 0, slots: 3, vacantAt: map[int]int64{0: 100}},
		{name: "trailing hole", records: []int64{100}, vacant: []int64{200}, next: 1, slots: 2, vacantAt: map[int]int64{1: 200}},
		{name: "hole under a record", records: []int64{100, 200}, vacant: []int64{200}, next: 2, slots: 2},
		{name: "duplicate holes", records: []int64{100, 400}, vacant: []int64{200, 200}, next: 1, slots: 3, vacantAt: map[int]int64{1: 200}},
		{name: "sparse layout", records: []int64{200, 300, 350, 400}, next: 4, slots: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := FromLayout(tt.records, tt.vacant)
			assert.Equal(t, tt.next, l.NextAvailableRank())
			assert.Equal(t, tt.slots, l.Slots())
			assert.Equal(t, len(tt.records), l.Count())
			for rank := range l.Slots() {
				want, hole := tt.vacantAt[rank]
				got, ok := l.Vacancy(rank)
				assert.Equal(t, hole, ok, "rank %d", rank)
				assert.Equal(t, want, got, "rank %d", rank)
				assert.Equal(t, !hole, l.Occupied(rank), "rank %d", rank)
			}
		})
	}
}

func TestValidateTargetRank_Vacancy(t *testing.T) {
	l := FromLayout([]int64{100, 300}, []int64{200})

	assert.NoError(t, ValidateTargetRank(l.Occupancy, 1, 12), "filling the hole is legal")

	var rankErr *RankError
	require.ErrorAs(t, ValidateTargetRank(l.Occupancy, 2, 12), &rankErr)
	assert.Equal(t, 1, rankErr.NextAvailable)
}
