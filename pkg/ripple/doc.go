// Package ripple is a fine-grained reactivity runtime.
//
// It turns ordinary in-memory data graphs into observable state: plain maps,
// slices, sets and struct pointers are fronted by reactive wrappers
// ([Record], [Sequence], [KeyedMap], [UnkeyedSet]) that intercept every read
// and write. User computations registered with [Effect] re-execute whenever
// the specific properties they read change, with strong guarantees about
// ordering (topological within a batch), cycle detection, cleanup, and
// memory reclamation.
//
// The building blocks:
//
//   - [Wrap] / [Unwrap] — observable wrapping with a stable identity registry.
//   - [Effect] — reactive side effects with cleanup, parent/child composition
//     and GC-driven disposal of dropped root handles.
//   - [Atomic] / [Untracked] — explicit batch scopes and tracking escapes.
//   - [Memoize] — argument-identity caching invalidated by recorded reads.
//   - [Attend], [Scan], [Lift], [ProjectSequence], [Morph] — derived
//     collections kept in sync with their sources.
//
// All process-wide state (identity registry, watcher tables, scheduler,
// options) lives in a [Realm]. The package-level API operates on a default
// realm; tests and embedders that need isolation create their own with
// [NewRealm].
package ripple
