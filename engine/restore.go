package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/position"
)

// Restore replaces bucket contents with exact snapshot states in one
// transaction. Positions are written as given, without respacing.
//
// With ScopeBuckets only the listed buckets are replaced. A snapshot record
// that currently lives in an unlisted bucket is pulled out of it and that
// bucket is compacted. With ScopeAll every bucket not listed ends up empty.
func (e *Engine) Restore(ctx context.Context, states []model.BucketState, scope Scope) (*Result, error) {
	attrs := []any{"buckets", len(states), "scope", scope.String()}
	return e.run(ctx, OpRestore, model.BucketKey{}, attrs, func(p *pipeline) error {
		p.enter(StageValidating)
		if scope != ScopeBuckets && scope != ScopeAll {
			return fmt.Errorf("%w: unknown scope %s", ErrInvalidSnapshot, scope)
		}
		normalized, err := normalizeStates(states)
		if err != nil {
			return err
		}

		listed := make(map[model.BucketKey]bool, len(normalized))
		wanted := make(map[model.SampleID]bool)
		for _, st := range normalized {
			listed[st.Bucket] = true
			for _, s := range st.Samples {
				wanted[s.ID] = true
			}
		}

		affected := make([]model.BucketKey, 0, len(normalized))
		for _, st := range normalized {
			affected = append(affected, st.Bucket)
		}
		if scope == ScopeAll {
			for _, key := range p.tx.Buckets() {
				if !listed[key] {
					affected = append(affected, key)
					listed[key] = true
				}
			}
		}
		for _, key := range affected {
			p.bucket(key)
		}

		p.enter(StageAllocating)
		var strays []model.Sample
		for id := range wanted {
			cur, err := p.tx.Get(id)
			if err != nil || listed[cur.Bucket] {
				continue
			}
			strays = append(strays, cur)
		}
		strayBuckets := make(map[model.BucketKey][]model.SampleID)
		for _, s := range strays {
			strayBuckets[s.Bucket] = append(strayBuckets[s.Bucket], s.ID)
		}

		keys := make([]model.BucketKey, 0, len(strayBuckets))
		for key := range strayBuckets {
			keys = append(keys, key)
		}
		slices.SortFunc(keys, model.BucketKey.Compare)
		for _, key := range keys {
			ids := strayBuckets[key]
			remaining := slices.DeleteFunc(slices.Clone(p.bucket(key)), func(s model.Sample) bool {
				return slices.Contains(ids, s.ID)
			})
			changed, err := p.compact(key, remaining)
			if err != nil {
				return err
			}
			if changed {
				p.redistributed(key)
			}
		}

		p.enter(StageCommitting)
		for _, s := range strays {
			if _, err := p.tx.Delete(s.ID); err != nil {
				return err
			}
		}
		for _, key := range affected {
			for _, s := range p.before[key] {
				if _, err := p.tx.Delete(s.ID); err != nil {
					return err
				}
			}
			if err := p.clearVacancies(key); err != nil {
				return err
			}
		}
		for _, st := range normalized {
			for _, s := range st.Samples {
				if err := p.tx.Insert(s); err != nil {
					return err
				}
			}
			for _, pos := range st.Vacant {
				if err := p.tx.Vacate(st.Bucket, pos); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// normalizeStates checks snapshot states and returns copies whose samples
// are sorted and carry their state's bucket.
func normalizeStates(states []model.BucketState) ([]model.BucketState, error) {
	seenBucket := make(map[model.BucketKey]bool, len(states))
	seenID := make(map[model.SampleID]bool)
	out := make([]model.BucketState, 0, len(states))

	for _, st := range states {
		if seenBucket[st.Bucket] {
			return nil, fmt.Errorf("%w: bucket %s listed twice", ErrInvalidSnapshot, st.Bucket)
		}
		seenBucket[st.Bucket] = true
		if len(st.Samples) > position.Capacity {
			return nil, fmt.Errorf("%w: bucket %s holds %d records", ErrInvalidSnapshot, st.Bucket, len(st.Samples))
		}

		c := st.Clone()
		for i := range c.Samples {
			s := &c.Samples[i]
			if s.ID.IsZero() {
				return nil, fmt.Errorf("%w: record without id in %s", ErrInvalidSnapshot, st.Bucket)
			}
			if seenID[s.ID] {
				return nil, fmt.Errorf("%w: record %s listed twice", ErrInvalidSnapshot, s.ID)
			}
			if s.Position < 0 {
				return nil, fmt.Errorf("%w: record %s has position %d", ErrInvalidSnapshot, s.ID, s.Position)
			}
			seenID[s.ID] = true
			s.Bucket = st.Bucket
		}
		for _, pos := range c.Vacant {
			if pos < 0 {
				return nil, fmt.Errorf("%w: vacant position %d in %s", ErrInvalidSnapshot, pos, st.Bucket)
			}
		}
		model.SortByPosition(c.Samples)
		for i := 1; i < len(c.Samples); i++ {
			if c.Samples[i].Position == c.Samples[i-1].Position {
				return nil, fmt.Errorf("%w: duplicate position %d in %s", ErrInvalidSnapshot, c.Samples[i].Position, st.Bucket)
			}
		}
		out = append(out, c)
	}
	return out, nil
}
