package engine

import (
	"context"
	"fmt"

	"github.com/peteb4ker/romper-sub005/boundary"
	"github.com/peteb4ker/romper-sub005/model"
	"github.com/peteb4ker/romper-sub005/position"
)

// Insert creates a record at rank. Records at and after rank move one rank
// down; the bucket is redistributed first when no integer position is free.
// A rank that names a vacated slot fills it and moves nothing.
func (e *Engine) Insert(ctx context.Context, bucket model.BucketKey, rank int, payload model.Payload) (*Result, error) {
	return e.insert(ctx, bucket, rank, false, payload)
}

// Append creates a record after the last record of the bucket.
func (e *Engine) Append(ctx context.Context, bucket model.BucketKey, payload model.Payload) (*Result, error) {
	return e.insert(ctx, bucket, 0, true, payload)
}

func (e *Engine) insert(ctx context.Context, bucket model.BucketKey, rank int, atEnd bool, payload model.Payload) (*Result, error) {
	return e.run(ctx, OpInsert, bucket, []any{"to_rank", rank, "append", atEnd}, func(p *pipeline) error {
		p.enter(StageValidating)
		if err := bucket.Validate(); err != nil {
			return err
		}
		samples := p.bucket(bucket)
		layout := p.layout(bucket)
		if atEnd {
			rank = layout.Slots()
		}
		hole, filling := layout.Vacancy(rank)
		if !filling && layout.Slots() >= position.Capacity {
			return fmt.Errorf("%w: %s holds %d records", ErrDestinationFull, bucket, len(samples))
		}
		if err := boundary.ValidateTargetRank(layout.Occupancy, rank, position.Capacity); err != nil {
			return err
		}

		p.enter(StageAllocating)
		target, err := p.place(bucket, samples, rank, hole, filling)
		if err != nil {
			return err
		}

		p.enter(StageCommitting)
		s := model.Sample{
			ID:       model.NewSampleID(),
			Bucket:   bucket,
			Position: target,
			Payload:  payload,
		}
		p.res.Sample = s
		return p.tx.Insert(s)
	})
}
