package position

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/peteb4ker/romper-sub005/model"
)

const (
	// Spacing is the nominal gap between canonical positions.
	Spacing int64 = 100

	// Capacity is the maximum number of display slots in a bucket.
	Capacity = 12

	// First is the position assigned to the first record of an empty bucket.
	First = Spacing
)

var (
	// ErrNeedsRedistribution reports that no free integer position exists at
	// the requested rank. Callers must redistribute and allocate again.
	ErrNeedsRedistribution = errors.New("position space exhausted, redistribution required")

	// ErrRankOutOfRange is returned when the requested rank is outside [0, len].
	ErrRankOutOfRange = errors.New("rank out of range")
)

// Canonical returns the evenly spaced position for a 0-based rank.
func Canonical(rank int) int64 {
	return int64(rank+1) * Spacing
}

// Allocate computes the position for a new record landing at rank, given the
// bucket's current positions sorted ascending. It returns
// ErrNeedsRedistribution instead of a colliding position.
func Allocate(existing []int64, rank int) (int64, error) {
	n := len(existing)
	if rank < 0 || rank > n {
		return 0, fmt.Errorf("%w: rank %d, bucket size %d", ErrRankOutOfRange, rank, n)
	}
	if n == 0 {
		return First, nil
	}

	var candidate int64
	switch {
	case rank == 0:
		candidate = existing[0] / 2
		if candidate >= existing[0] {
			return 0, ErrNeedsRedistribution
		}
	case rank == n:
		last := existing[n-1]
		if last > math.MaxInt64-Spacing {
			return 0, ErrNeedsRedistribution
		}
		candidate = last + Spacing
	default:
		lo, hi := existing[rank-1], existing[rank]
		if hi-lo <= 1 {
			return 0, ErrNeedsRedistribution
		}
		candidate = lo + (hi-lo)/2
	}

	if _, found := slices.BinarySearch(existing, candidate); found {
		return 0, ErrNeedsRedistribution
	}
	return candidate, nil
}

// ShouldRedistribute reports whether allocating at rank would require a
// redistribution first.
func ShouldRedistribute(existing []int64, rank int) bool {
	_, err := Allocate(existing, rank)
	return errors.Is(err, ErrNeedsRedistribution)
}

// Redistribute returns a copy of samples, which must already be in display
// order, with every position rewritten to Canonical(rank). Identity, order and
// payload are preserved.
func Redistribute(samples []model.Sample) []model.Sample {
	out := slices.Clone(samples)
	for i := range out {
		out[i].Position = Canonical(i)
	}
	return out
}

// IsCanonical reports whether samples are already evenly spaced.
func IsCanonical(samples []model.Sample) bool {
	for i, s := range samples {
		if s.Position != Canonical(i) {
			return false
		}
	}
	return true
}

// Placement is the outcome of placing a record into an ordered bucket.
type Placement struct {
	// Position is the position assigned to the placed record.
	Position int64
	// Siblings holds the bucket after redistribution. It is nil when the
	// record could be placed without touching any sibling.
	Siblings []model.Sample
}

// Redistributed reports whether the placement rewrote the siblings.
func (p Placement) Redistributed() bool {
	return p.Siblings != nil
}

// Place finds a position for a record landing at rank among siblings (in
// display order, excluding the record itself). When the direct allocation
// would fail, siblings are redistributed first and the allocation is retried
// against the redistributed set.
func Place(siblings []model.Sample, rank int) (Placement, error) {
	positions := model.Positions(siblings)
	if !ShouldRedistribute(positions, rank) {
		pos, err := Allocate(positions, rank)
		if err != nil {
			return Placement{}, err
		}
		return Placement{Position: pos}, nil
	}

	redistributed := Redistribute(siblings)
	pos, err := Allocate(model.Positions(redistributed), rank)
	if err != nil {
		// Canonical spacing always leaves room at every rank.
		return Placement{}, fmt.Errorf("allocate after redistribution: %w", err)
	}
	return Placement{Position: pos, Siblings: redistributed}, nil
}
