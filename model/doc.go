// Package model defines the core types shared by the sample storage engine.
//
// # Identity Types
//
//   - SampleID: stable record identity that survives position changes (UUID)
//   - BucketKey: the (kit, voice) grouping a sample belongs to
//
// # Data Types
//
//   - Sample: a record with its bucket, integer position and opaque payload
//   - Payload: file path and format flags, never interpreted by the engine
//   - Repositioned: a sibling whose position was rewritten by an operation
//   - BucketState: the full ordered contents of one bucket, used for
//     snapshot-based undo and backups
package model
