// Package store is the persistence layer for sample records.
//
// A store holds every record of every bucket in an ordered index keyed by
// (kit, voice, position, id) plus an identity index. Writers run inside an
// exclusive transaction that works on a lazy copy-on-write clone of the
// committed state; readers see the last committed state and never block.
//
// Position uniqueness inside a bucket is checked when a transaction commits,
// so a transaction may pass through colliding intermediate positions while it
// rewrites a bucket.
//
// NewMemory returns a volatile store. Open returns a durable store that
// appends one journal record per commit and replays the journal on open.
package store
