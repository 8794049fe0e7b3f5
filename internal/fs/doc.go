// Package fs provides the filesystem seam used by the journal and the local
// blob store.
//
//   - [LocalFS] is the production implementation backed by package os.
//   - [FaultyFS] wraps another FileSystem and injects write, sync and rename
//     failures for atomicity tests.
//
// Filesystem calls take no context.Context: they are short, local and not
// interruptible at the syscall level.
package fs
