// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("backups/studio-a/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = db.Backup(ctx, store)
//
// Plain S3 has no compare-and-swap, so two processes backing up to the same
// prefix can race on the CURRENT pointer. Wrap the store in a DDBCommitStore
// to serialize CURRENT updates through DynamoDB conditional writes.
package s3
