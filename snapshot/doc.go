// Package snapshot writes and reads point-in-time backups of a sample store
// to any blobstore.BlobStore.
//
// Layout of one backup with id N:
//
//	buckets/<kit>/<voice>-N.snap   one blob per non-empty bucket
//	MANIFEST-00000N.json           bucket list with sizes and xxhash checksums
//	CURRENT                        name of the newest manifest
//
// Bucket blobs are written first and the manifest last, so a crash mid-backup
// leaves at most unreferenced blobs behind and never a manifest pointing at
// missing data. CURRENT is flipped after the manifest is stored.
package snapshot
