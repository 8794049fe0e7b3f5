// Package blobstore abstracts the object storage that backups are written to.
//
// Implementations must be safe for concurrent use. Names are slash-separated
// and relative to the store's root.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local (or injected) filesystem
//   - MemoryStore: process memory, for tests
//   - s3.Store: Amazon S3, with s3.DDBCommitStore for an atomic CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible servers
//   - azure.Store: Azure Blob Storage
package blobstore
