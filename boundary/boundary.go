// Package boundary enforces that a requested display rank never creates a gap
// in a bucket.
//
// A bucket's display slots are its records and its vacated slots merged in
// position order. Occupied display ranks are tracked in a roaring bitmap. The
// next available rank is the length of the contiguous prefix starting at rank
// 0; a target rank is legal when it does not exceed that value and lies inside
// the bucket's display capacity.
package boundary

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInvalidRank is the sentinel matched by every *RankError.
var ErrInvalidRank = errors.New("invalid rank")

// RankError reports a rejected target rank together with the nearest legal
// rank the caller may request instead.
type RankError struct {
	Rank          int
	NextAvailable int
	Capacity      int
}

func (e *RankError) Error() string {
	if e.Rank < 0 || e.Rank >= e.Capacity {
		return fmt.Sprintf("invalid rank %d: outside display capacity [0, %d]", e.Rank, e.Capacity-1)
	}
	return fmt.Sprintf("invalid rank %d: next available rank is %d", e.Rank, e.NextAvailable)
}

// Is makes errors.Is(err, ErrInvalidRank) match.
func (e *RankError) Is(target error) bool { return target == ErrInvalidRank }

// Occupancy is the set of occupied display ranks of a bucket.
type Occupancy struct {
	bm *roaring.Bitmap
}

// Layout is the display slot map of one bucket.
type Layout struct {
	*Occupancy
	vacant map[int]int64
	slots  int
}

// FromLayout maps record positions and vacated slot positions to display
// ranks. A vacated slot that shares a position with a record is ignored.
func FromLayout(records, vacant []int64) *Layout {
	recs := slices.Sorted(slices.Values(records))
	vac := slices.Compact(slices.Sorted(slices.Values(vacant)))
	vac = slices.DeleteFunc(vac, func(pos int64) bool {
		_, taken := slices.BinarySearch(recs, pos)
		return taken
	})

	l := &Layout{Occupancy: &Occupancy{bm: roaring.New()}, vacant: make(map[int]int64, len(vac))}
	for i, j := 0, 0; i < len(recs) || j < len(vac); l.slots++ {
		if j == len(vac) || (i < len(recs) && recs[i] < vac[j]) {
			l.bm.Add(uint32(l.slots))
			i++
			continue
		}
		l.vacant[l.slots] = vac[j]
		j++
	}
	return l
}

// Slots returns the number of display slots, vacated ones included.
func (l *Layout) Slots() int { return l.slots }

// Vacancy returns the position of the vacated slot at rank, if there is one.
func (l *Layout) Vacancy(rank int) (int64, bool) {
	pos, ok := l.vacant[rank]
	return pos, ok
}

// Count returns the number of occupied ranks.
func (o *Occupancy) Count() int {
	return int(o.bm.GetCardinality())
}

// Occupied reports whether rank is in use.
func (o *Occupancy) Occupied(rank int) bool {
	return rank >= 0 && o.bm.Contains(uint32(rank))
}

// NextAvailableRank returns the number of ranks in the contiguous occupied
// prefix starting at 0. It stops at the first gap.
func (o *Occupancy) NextAvailableRank() int {
	next := 0
	it := o.bm.Iterator()
	for it.HasNext() {
		if it.Next() != uint32(next) {
			break
		}
		next++
	}
	return next
}

// Contiguous reports whether the occupied ranks form the prefix {0..n-1}.
func (o *Occupancy) Contiguous() bool {
	return o.NextAvailableRank() == o.Count()
}

// ValidateTargetRank returns nil when target is a legal destination rank for
// the given occupancy and capacity, or a *RankError describing the nearest
// legal rank.
func ValidateTargetRank(o *Occupancy, target, capacity int) error {
	next := o.NextAvailableRank()
	if target < 0 || target >= capacity || target > next {
		return &RankError{Rank: target, NextAvailable: min(next, capacity-1), Capacity: capacity}
	}
	return nil
}
