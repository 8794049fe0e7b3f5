package engine

import (
	"slices"

	"github.com/peteb4ker/romper-sub005/boundary"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/position"
	"github.com/peteb4ker/romper-sub005/store"
)

// pipeline carries one operation through its stages. Only the stage
// functions touch tx; the planning helpers in position and boundary are pure.
type pipeline struct {
	tx      store.Tx
	stage   Stage
	res     *Result
	touched []model.BucketKey
	before  map[model.BucketKey][]model.Sample

	vacantBefore map[model.BucketKey][]int64
}

func (p *pipeline) enter(s Stage) {
	if s > p.stage {
		p.stage = s
	}
}

// bucket reads a bucket inside the transaction. The first read of each
// bucket is remembered as its Before state.
func (p *pipeline) bucket(key model.BucketKey) []model.Sample {
	samples := p.tx.Bucket(key)
	if _, ok := p.before[key]; !ok {
		p.before[key] = slices.Clone(samples)
		p.vacantBefore[key] = p.tx.Vacancies(key)
		p.touched = append(p.touched, key)
	}
	return samples
}

// layout maps a bucket's records and vacated slots to display ranks.
func (p *pipeline) layout(key model.BucketKey) *boundary.Layout {
	return boundary.FromLayout(model.Positions(p.bucket(key)), p.tx.Vacancies(key))
}

// clearVacancies drops every vacated slot of a bucket. Respacing a bucket
// closes its gaps.
func (p *pipeline) clearVacancies(key model.BucketKey) error {
	for _, pos := range p.tx.Vacancies(key) {
		if err := p.tx.Fill(key, pos); err != nil {
			return err
		}
	}
	return nil
}

// settle drops vacated slots that no longer separate records: those under a
// record and those after the last record.
func (p *pipeline) settle() error {
	for _, key := range p.touched {
		samples := p.tx.Bucket(key)
		var last int64 = -1
		if len(samples) > 0 {
			last = samples[len(samples)-1].Position
		}
		for _, pos := range p.tx.Vacancies(key) {
			taken := slices.ContainsFunc(samples, func(s model.Sample) bool { return s.Position == pos })
			if !taken && pos < last {
				continue
			}
			if err := p.tx.Fill(key, pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// rewrite persists the positions of samples that differ from old. Both
// slices hold the same records in the same order.
func (p *pipeline) rewrite(old, updated []model.Sample) error {
	for i := range updated {
		if updated[i].Position == old[i].Position && updated[i].Bucket == old[i].Bucket {
			continue
		}
		if err := p.tx.Move(updated[i].ID, updated[i].Bucket, updated[i].Position); err != nil {
			return err
		}
	}
	return nil
}

// place picks the position for a record landing at rank among samples. A
// vacated slot is filled in place. Otherwise the allocator runs and the
// bucket is respaced first when it has no room, which also closes its
// vacated slots.
func (p *pipeline) place(key model.BucketKey, samples []model.Sample, rank int, hole int64, filling bool) (int64, error) {
	if filling {
		return hole, p.tx.Fill(key, hole)
	}
	placement, err := position.Place(samples, rank)
	if err != nil {
		return 0, err
	}
	if placement.Redistributed() {
		p.enter(StageRedistributing)
		if err := p.rewrite(samples, placement.Siblings); err != nil {
			return 0, err
		}
		if err := p.clearVacancies(key); err != nil {
			return 0, err
		}
		p.redistributed(key)
	}
	return placement.Position, nil
}

// compact respaces the remaining records of a bucket after a removal and
// drops its vacated slots. It returns whether any position changed.
func (p *pipeline) compact(key model.BucketKey, remaining []model.Sample) (bool, error) {
	if err := p.clearVacancies(key); err != nil {
		return false, err
	}
	if position.IsCanonical(remaining) {
		return false, nil
	}
	p.enter(StageRedistributing)
	if err := p.rewrite(remaining, position.Redistribute(remaining)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *pipeline) redistributed(key model.BucketKey) {
	if !slices.Contains(p.res.Redistributed, key) {
		p.res.Redistributed = append(p.res.Redistributed, key)
	}
}

// capture fills Before, After and Repositioned from the touched buckets.
func (p *pipeline) capture() {
	oldByID := make(map[model.SampleID]model.Sample)
	for _, key := range p.touched {
		before := p.before[key]
		p.res.Before = append(p.res.Before, model.BucketState{Bucket: key, Samples: before, Vacant: p.vacantBefore[key]})
		for _, s := range before {
			oldByID[s.ID] = s
		}
	}

	primary := p.res.Sample.ID
	for _, key := range p.touched {
		after := p.tx.Bucket(key)
		p.res.After = append(p.res.After, model.BucketState{Bucket: key, Samples: after, Vacant: p.tx.Vacancies(key)})
		for _, s := range after {
			if s.ID == primary {
				continue
			}
			old, ok := oldByID[s.ID]
			if !ok || (old.Position == s.Position && old.Bucket == s.Bucket) {
				continue
			}
			p.res.Repositioned = append(p.res.Repositioned, model.Repositioned{
				Sample:      s,
				OldBucket:   old.Bucket,
				OldPosition: old.Position,
			})
		}
	}

	if !p.res.NoOp && primary != (model.SampleID{}) {
		if s, err := p.tx.Get(primary); err == nil {
			p.res.Sample = s
		}
	}
}

// without returns samples minus the record at rank, preserving order.
func without(samples []model.Sample, rank int) []model.Sample {
	out := make([]model.Sample, 0, len(samples)-1)
	out = append(out, samples[:rank]...)
	return append(out, samples[rank+1:]...)
}
