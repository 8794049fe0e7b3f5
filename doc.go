// Package romper stores the sample assignments of drum-machine kits.
//
// A kit has a fixed number of voices and every voice holds an ordered bucket
// of up to 12 samples. Order is kept with sparse integer positions: the
// record at rank r normally sits at position (r+1)*100, so most moves only
// rewrite the moved record. When a gap runs out the whole bucket is respaced
// inside the same transaction.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := romper.Open(ctx, romper.Local("./data"))
//	defer db.Close()
//
//	kick := romper.Bucket("A0", 1)
//	db.Append(ctx, kick, romper.Payload{FilePath: "kick.wav"})
//	db.Append(ctx, kick, romper.Payload{FilePath: "kick-2.wav"})
//
//	// Swap them and take it back.
//	db.MoveWithinBucket(ctx, kick, 1, 0)
//	db.Undo(ctx)
//
// # Operations
//
// Every mutation runs in one transaction and either fully commits or leaves
// the database untouched:
//
//	db.MoveWithinBucket(ctx, bucket, fromRank, toRank)
//	db.MoveAcrossBuckets(ctx, from, fromRank, to, toRank, romper.ModeInsert)
//	db.DeleteAndCompact(ctx, bucket, rank)
//	db.Insert(ctx, bucket, rank, payload)
//
// The returned Result lists the moved record, every sibling whose position
// changed and the buckets that were respaced, which is what a UI needs to
// refresh.
//
// # Undo and Backups
//
// Each committed mutation is recorded with the full state of the buckets it
// touched, so Undo and Redo are exact even after a respacing.
//
// Backups go to any blobstore.BlobStore (local directory, memory, S3, MinIO
// or Azure Blob Storage):
//
//	bs, _ := blobstore.NewLocalStore("./backups", nil)
//	m, _ := db.Backup(ctx, bs)
//	db.RestoreBackup(ctx, bs, m.ID)
//
// # Errors
//
// Failures map onto the package errors (ErrRecordNotFound, ErrInvalidRank,
// ErrDestinationFull, ErrTransaction and so on) and can be tested with
// errors.Is. Failed mutations are *OperationError values naming the stage
// the operation reached.
package romper
