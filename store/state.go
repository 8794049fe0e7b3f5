package store

import (
	"cmp"
	"fmt"
	"math"

	"github.com/tidwall/btree"

	"github.com/peteb4ker/romper-sub005/model"
)

const degree = 32

// state is one version of the store contents. Committed states are never
// mutated; transactions work on a copy.
type state struct {
	byPos  *btree.BTreeG[model.Sample]
	byID   *btree.BTreeG[model.Sample]
	vacant *btree.BTreeG[vacancy]
	schema int
}

// vacancy is a display slot left empty by a delete that skipped compaction.
// It is identified by the position its record held.
type vacancy struct {
	Bucket   model.BucketKey
	Position int64
}

func lessVacancy(a, b vacancy) bool {
	if c := a.Bucket.Compare(b.Bucket); c != 0 {
		return c < 0
	}
	return a.Position < b.Position
}

func lessByPos(a, b model.Sample) bool {
	if c := a.Bucket.Compare(b.Bucket); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c < 0
	}
	return a.ID.Compare(b.ID) < 0
}

func lessByID(a, b model.Sample) bool {
	return a.ID.Compare(b.ID) < 0
}

func newState() *state {
	opts := btree.Options{Degree: degree}
	return &state{
		byPos:  btree.NewBTreeGOptions(lessByPos, opts),
		byID:   btree.NewBTreeGOptions(lessByID, opts),
		vacant: btree.NewBTreeGOptions(lessVacancy, opts),
	}
}

func (s *state) copy() *state {
	return &state{
		byPos:  s.byPos.Copy(),
		byID:   s.byID.Copy(),
		vacant: s.vacant.Copy(),
		schema: s.schema,
	}
}

func (s *state) Bucket(key model.BucketKey) []model.Sample {
	var out []model.Sample
	pivot := model.Sample{Bucket: key, Position: math.MinInt64}
	s.byPos.Ascend(pivot, func(item model.Sample) bool {
		if item.Bucket != key {
			return false
		}
		out = append(out, item)
		return true
	})
	return out
}

func (s *state) Get(id model.SampleID) (model.Sample, error) {
	item, ok := s.byID.Get(model.Sample{ID: id})
	if !ok {
		return model.Sample{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

func (s *state) Buckets() []model.BucketKey {
	var out []model.BucketKey
	s.byPos.Scan(func(item model.Sample) bool {
		if len(out) == 0 || out[len(out)-1] != item.Bucket {
			out = append(out, item.Bucket)
		}
		return true
	})
	return out
}

func (s *state) Vacancies(key model.BucketKey) []int64 {
	var out []int64
	s.vacant.Ascend(vacancy{Bucket: key, Position: math.MinInt64}, func(v vacancy) bool {
		if v.Bucket != key {
			return false
		}
		out = append(out, v.Position)
		return true
	})
	return out
}

func (s *state) Len() int { return s.byID.Len() }

func (s *state) SchemaVersion() int { return s.schema }

func (s *state) insert(item model.Sample) error {
	if item.Position < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, item.Position)
	}
	if err := item.Bucket.Validate(); err != nil {
		return err
	}
	if _, ok := s.byID.Get(item); ok {
		return fmt.Errorf("%w: %s", ErrExists, item.ID)
	}
	s.byID.Set(item)
	s.byPos.Set(item)
	return nil
}

func (s *state) move(id model.SampleID, bucket model.BucketKey, position int64) (model.Sample, error) {
	if position < 0 {
		return model.Sample{}, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	if err := bucket.Validate(); err != nil {
		return model.Sample{}, err
	}
	old, err := s.Get(id)
	if err != nil {
		return model.Sample{}, err
	}
	s.byPos.Delete(old)
	updated := old
	updated.Bucket = bucket
	updated.Position = position
	s.byID.Set(updated)
	s.byPos.Set(updated)
	return old, nil
}

func (s *state) delete(id model.SampleID) (model.Sample, error) {
	old, err := s.Get(id)
	if err != nil {
		return model.Sample{}, err
	}
	s.byID.Delete(old)
	s.byPos.Delete(old)
	return old, nil
}

func (s *state) vacate(bucket model.BucketKey, position int64) error {
	if err := bucket.Validate(); err != nil {
		return err
	}
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	s.vacant.Set(vacancy{Bucket: bucket, Position: position})
	return nil
}

func (s *state) fill(bucket model.BucketKey, position int64) bool {
	_, ok := s.vacant.Delete(vacancy{Bucket: bucket, Position: position})
	return ok
}

// checkUnique verifies that no two records of bucket share a position.
func (s *state) checkUnique(bucket model.BucketKey) error {
	samples := s.Bucket(bucket)
	for i := 1; i < len(samples); i++ {
		if samples[i].Position == samples[i-1].Position {
			return fmt.Errorf("%w: %s position %d held by %s and %s",
				ErrPositionConflict, bucket, samples[i].Position, samples[i-1].ID, samples[i].ID)
		}
	}
	return nil
}
