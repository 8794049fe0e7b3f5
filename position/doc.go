// Package position implements the sparse integer addressing used to order
// samples inside a bucket.
//
// Positions are spaced by Spacing so that a record can be inserted between two
// neighbours by taking their midpoint without rewriting every row. When the
// integer space between two neighbours is exhausted, the bucket is
// redistributed: the record at rank i is assigned Canonical(i), which is its
// 1-based display slot multiplied by Spacing.
//
// Everything in this package is pure arithmetic with no side effects.
package position
