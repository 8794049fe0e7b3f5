package engine

import (
	"context"

	"github.com/peteb4ker/romper-sub005/model"
)

// DeleteAndCompact removes the record at rank and respaces the rest of the
// bucket so its ranks stay a gapless prefix.
func (e *Engine) DeleteAndCompact(ctx context.Context, bucket model.BucketKey, rank int) (*Result, error) {
	return e.run(ctx, OpDeleteAndCompact, bucket, []any{"rank", rank}, func(p *pipeline) error {
		p.enter(StageValidating)
		samples := p.bucket(bucket)
		if rank < 0 || rank >= len(samples) {
			return recordNotFound(bucket, rank, len(samples))
		}
		target := samples[rank]
		p.res.Sample = target

		p.enter(StageAllocating)
		changed, err := p.compact(bucket, without(samples, rank))
		if err != nil {
			return err
		}
		if changed {
			p.redistributed(bucket)
		}

		p.enter(StageCommitting)
		_, err = p.tx.Delete(target.ID)
		return err
	})
}

// DeleteWithoutCompaction removes the record at rank and leaves every other
// position untouched. It exists for callers that restore exact prior
// positions themselves; ordinary deletes must use DeleteAndCompact.
//
// Unless the record was the last of its bucket, its display slot stays
// vacant. Target ranks past the vacancy are rejected until an insert or move
// fills it or the bucket is compacted.
func (e *Engine) DeleteWithoutCompaction(ctx context.Context, bucket model.BucketKey, rank int) (*Result, error) {
	return e.run(ctx, OpDeleteWithoutCompaction, bucket, []any{"rank", rank}, func(p *pipeline) error {
		p.enter(StageValidating)
		samples := p.bucket(bucket)
		if rank < 0 || rank >= len(samples) {
			return recordNotFound(bucket, rank, len(samples))
		}
		target := samples[rank]
		p.res.Sample = target

		p.enter(StageCommitting)
		if _, err := p.tx.Delete(target.ID); err != nil {
			return err
		}
		return p.tx.Vacate(bucket, target.Position)
	})
}
