package ripple

import (
	"reflect"
	"sync"
	"weak"
)

// Realm holds every piece of process-wide reactive state: the identity
// registry, the watcher tables, the causal graph and scheduler, and the
// options bag. The package-level API operates on a default realm; tests that
// need isolation instantiate their own and call methods on it.
//
// A Realm's lifecycle is init-at-startup / drop-at-shutdown; Reset replaces
// its internals atomically.
type Realm struct {
	id uint64

	mu   sync.Mutex
	opts Options

	// wrappers maps raw-aggregate identity to its wrapper, weakly, so the
	// wrapper may be collected once no user reference remains.
	wrappers map[uintptr]weak.Pointer[observable]

	// nonReactive holds identities of instances excluded via MarkNonReactive.
	nonReactive map[uintptr]struct{}
	// nonReactiveTypes holds types excluded via MarkTypeNonReactive.
	nonReactiveTypes map[reflect.Type]struct{}
	// immutable holds registered immutability predicates.
	immutable []func(any) bool

	// watchers: (observable, key) -> effects subscribed to it, each with the
	// stack snapshot captured at registration when reason gathering is on.
	watchers map[*observable]map[PropKey]map[*Effect]string
	// effectReads: effect -> observables it read, for cleanup.
	effectReads map[*Effect]map[*observable]struct{}

	sched *scheduler

	intro   Introspector
	history *History
}

var (
	defaultRealm     *Realm
	defaultRealmOnce sync.Once
)

// DefaultRealm returns the realm behind the package-level API.
func DefaultRealm() *Realm {
	defaultRealmOnce.Do(func() {
		defaultRealm = NewRealm()
	})
	return defaultRealm
}

// NewRealm creates an isolated realm with default options.
func NewRealm() *Realm {
	r := &Realm{id: nextID()}
	r.initTables()
	r.opts = Options{}.withDefaults()
	return r
}

// initTables (re)creates the mutable registries. Caller holds r.mu or has
// exclusive access.
func (r *Realm) initTables() {
	r.wrappers = make(map[uintptr]weak.Pointer[observable])
	r.nonReactive = make(map[uintptr]struct{})
	r.nonReactiveTypes = make(map[reflect.Type]struct{})
	r.immutable = nil
	r.watchers = make(map[*observable]map[PropKey]map[*Effect]string)
	r.effectReads = make(map[*Effect]map[*observable]struct{})
	r.sched = newScheduler(r)
}

// Configure replaces the realm's options.
func (r *Realm) Configure(o Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = o.withDefaults()
	if o.Introspection.EnableHistory {
		r.history = newHistory(r.opts.Introspection.HistorySize)
	} else {
		r.history = nil
	}
}

// options returns a snapshot of the current options.
func (r *Realm) options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// Reset reinitializes all realm state: identity registry, watcher tables,
// causal graph and counters. It is the only supported recovery from
// ErrBrokenEffects. Options are kept. Existing wrappers keep working, but
// the identity registry no longer knows them: wrapping their raw value again
// yields a new wrapper. Live effects lose their subscriptions and do not
// re-run until they are reconstructed.
func (r *Realm) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	opts := r.opts
	r.initTables()
	r.opts = opts
	if r.history != nil {
		r.history = newHistory(opts.Introspection.HistorySize)
	}
}

// Reset reinitializes the default realm. See Realm.Reset.
func Reset() { DefaultRealm().Reset() }

// SetIntrospector installs the debug collaborator for this realm.
// Pass nil to detach. See the Introspector interface.
func (r *Realm) SetIntrospector(in Introspector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intro = in
}

// SetIntrospector installs the debug collaborator on the default realm.
func SetIntrospector(in Introspector) { DefaultRealm().SetIntrospector(in) }

// introspector returns the installed collaborator, or nil.
func (r *Realm) introspector() Introspector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intro
}

// History returns the trigger-history ring, or nil when history is disabled.
func (r *Realm) History() *History {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.history == nil && r.opts.Introspection.EnableHistory {
		r.history = newHistory(r.opts.Introspection.HistorySize)
	}
	return r.history
}
