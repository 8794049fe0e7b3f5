// Package engine implements the mutation verbs on top of the position
// allocator, the boundary validator and the transactional mutator.
//
// Every operation walks the same staged pipeline:
//
//	Validating -> Allocating -> (Redistributing) -> Committing -> Done | Aborted
//
// Validating reads the affected buckets inside the transaction and checks
// ranks and capacity. Allocating computes new positions without touching
// the store. Redistributing writes sibling positions when a bucket had to be
// respaced or compacted. Committing writes the record the caller asked about
// and commits. A failure at any stage rolls the whole transaction back and is
// reported as an *OpError naming the stage that was reached.
//
// Ranks are always derived from position order, so a bucket's occupied ranks
// are the prefix {0, ..., n-1} by construction.
package engine
