package engine

import "fmt"

// Mode selects how a cross-bucket move treats an occupied destination rank.
type Mode int

const (
	// ModeInsert shifts the destination records at and after the target
	// rank one rank down.
	ModeInsert Mode = iota
	// ModeOverwrite replaces the destination record at the target rank.
	// The replaced record is deleted and the moved record takes its
	// position. Targeting the append rank behaves like ModeInsert.
	ModeOverwrite
)

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeInsert, ModeOverwrite:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "insert"
	case ModeOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Scope selects what Restore replaces.
type Scope int

const (
	// ScopeBuckets replaces only the buckets listed in the snapshot.
	ScopeBuckets Scope = iota
	// ScopeAll replaces the entire store.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeBuckets:
		return "buckets"
	case ScopeAll:
		return "all"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}
