package ripple

import "sync/atomic"

// globalID is the source of unique IDs for effects, observables and realms.
var globalID atomic.Uint64

// nextID returns a unique identifier.
// IDs are never reused within a process, even across Reset calls, so the
// causal graph can use them as stable node keys.
func nextID() uint64 {
	return globalID.Add(1)
}
