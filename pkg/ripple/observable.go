package ripple

import (
	"reflect"
	"regexp"
	"runtime"
	"time"
	"weak"
)

// ObservableKind is the variant tag of a wrapper. Each kind implements the
// same small capability set (read, write, keys, bulk) over a different raw
// aggregate shape.
type ObservableKind uint8

const (
	// KindRecord fronts keyed records: map[string]any or struct pointers.
	KindRecord ObservableKind = iota + 1
	// KindSequence fronts indexed sequences: pointers to slices.
	KindSequence
	// KindKeyedMap fronts maps with arbitrary comparable keys.
	KindKeyedMap
	// KindUnkeyedSet fronts membership sets: map[T]struct{}.
	KindUnkeyedSet
)

func (k ObservableKind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSequence:
		return "sequence"
	case KindKeyedMap:
		return "map"
	case KindUnkeyedSet:
		return "set"
	}
	return "invalid"
}

// observable is the common core embedded in every wrapper. Its address is
// the key of the watcher tables; self points back at the embedding wrapper.
type observable struct {
	realm *Realm
	id    uint64
	kind  ObservableKind
	self  Reactive
	rawID uintptr
}

// Reactive is implemented by every wrapper type.
type Reactive interface {
	// Kind returns the wrapper's variant.
	Kind() ObservableKind
	// Raw returns the raw aggregate behind the wrapper.
	Raw() any
	// ObservableID returns the wrapper's unique id, used in introspection
	// records and error payloads.
	ObservableID() uint64
	// core returns the embedded observable; keeps the interface sealed.
	core() *observable
}

func (o *observable) core() *observable    { return o }
func (o *observable) ObservableID() uint64 { return o.id }
func (o *observable) Kind() ObservableKind { return o.kind }

// rawIdentity computes the identity key of a raw aggregate: the map header
// for maps, the pointer for struct and slice pointers. Returns 0 for values
// without a stable identity.
func rawIdentity(x any) uintptr {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Map:
		return v.Pointer()
	case reflect.Pointer:
		return v.Pointer()
	}
	return 0
}

// defaultImmutable classifies host types that are never wrapped regardless
// of configuration: clock values, compiled regexps, errors, functions and
// channels.
func defaultImmutable(x any) bool {
	switch x.(type) {
	case time.Time, *time.Time, time.Duration:
		return true
	case *regexp.Regexp:
		return true
	case error:
		return true
	}
	switch reflect.ValueOf(x).Kind() {
	case reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// IsReactive reports whether x is a reactive wrapper.
func IsReactive(x any) bool {
	_, ok := x.(Reactive)
	return ok
}

// IsNonReactive reports whether x is excluded from wrapping: marked
// non-reactive by instance or type, matched by a registered immutability
// predicate, or a member of the built-in immutable set.
func IsNonReactive(x any) bool { return DefaultRealm().IsNonReactive(x) }

// IsNonReactive reports whether x is excluded from wrapping in this realm.
func (r *Realm) IsNonReactive(x any) bool {
	if x == nil {
		return true
	}
	if defaultImmutable(x) {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id := rawIdentity(x); id != 0 {
		if _, ok := r.nonReactive[id]; ok {
			return true
		}
	}
	if _, ok := r.nonReactiveTypes[reflect.TypeOf(x)]; ok {
		return true
	}
	for _, pred := range r.immutable {
		if pred(x) {
			return true
		}
	}
	return false
}

// MarkNonReactive excludes a specific instance from wrapping.
// The instance must have a stable identity (map, or pointer).
func MarkNonReactive(x any) { DefaultRealm().MarkNonReactive(x) }

// MarkNonReactive excludes a specific instance from wrapping in this realm.
func (r *Realm) MarkNonReactive(x any) {
	id := rawIdentity(x)
	if id == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonReactive[id] = struct{}{}
}

// MarkTypeNonReactive excludes every instance of x's dynamic type from
// wrapping. A reflect.Type may be passed directly.
func MarkTypeNonReactive(x any) { DefaultRealm().MarkTypeNonReactive(x) }

// MarkTypeNonReactive excludes x's dynamic type from wrapping in this realm.
func (r *Realm) MarkTypeNonReactive(x any) {
	t, ok := x.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(x)
	}
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonReactiveTypes[t] = struct{}{}
}

// RegisterImmutabilityPredicate adds a classifier consulted by Wrap; values
// it accepts are returned unwrapped.
func RegisterImmutabilityPredicate(pred func(any) bool) {
	DefaultRealm().RegisterImmutabilityPredicate(pred)
}

// RegisterImmutabilityPredicate adds a classifier to this realm.
func (r *Realm) RegisterImmutabilityPredicate(pred func(any) bool) {
	if pred == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.immutable = append(r.immutable, pred)
}

// Unwrap returns the raw aggregate behind a wrapper, or x unchanged when it
// is not one.
func Unwrap(x any) any {
	if w, ok := x.(Reactive); ok {
		return w.Raw()
	}
	return x
}

// Wrap returns the reactive facade of x.
//
// Primitives, members of the immutable set, marked non-reactive values and
// existing wrappers are returned unchanged. Aggregates get at most one
// wrapper each: wrapping the same raw twice yields the same wrapper, and
// wrapping a wrapper returns itself.
//
// Supported raw shapes:
//
//   - map[string]any and struct pointers  -> *Record
//   - pointers to slices (*[]T)           -> *Sequence
//   - map[K]struct{}                      -> *UnkeyedSet
//   - any other map                       -> *KeyedMap
//
// Bare (unaddressed) slices have no stable identity in Go; pass a pointer to
// the slice to get identity-stable wrapping.
func Wrap(x any) any { return DefaultRealm().Wrap(x) }

// Wrap returns the reactive facade of x in this realm. See the package-level
// Wrap.
func (r *Realm) Wrap(x any) any {
	if x == nil {
		return nil
	}
	if _, ok := x.(Reactive); ok {
		return x
	}
	if r.IsNonReactive(x) {
		return x
	}

	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Elem().Kind() == reflect.Struct && v.Type().Elem().NumField() == 0 {
			return r.wrapSet(x, v)
		}
		return r.wrapMapOrRecord(x, v)
	case reflect.Pointer:
		switch v.Type().Elem().Kind() {
		case reflect.Slice:
			return r.wrapSequence(x, v)
		case reflect.Struct:
			return r.wrapStructRecord(x, v)
		}
	}
	// Primitives and unsupported shapes pass through.
	return x
}

// lookup returns the live wrapper registered for identity id, or nil.
func (r *Realm) lookup(id uintptr) Reactive {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.wrappers[id]; ok {
		if obs := wp.Value(); obs != nil {
			return obs.self
		}
		delete(r.wrappers, id)
	}
	return nil
}

// register installs obs as the wrapper for its raw identity and arranges for
// the registry entry to be dropped when the wrapper is collected. obs is
// interior to the wrapper, so the cleanup fires when the wrapper itself
// becomes unreachable.
func (r *Realm) register(obs *observable) {
	r.mu.Lock()
	r.wrappers[obs.rawID] = weak.Make(obs)
	r.mu.Unlock()
	runtime.AddCleanup(obs,
		func(key registryKey) { key.realm.dropRegistration(key.raw, key.obs) },
		registryKey{realm: r, raw: obs.rawID, obs: obs.id})
}

// registryKey carries what a registry cleanup needs without referencing the
// wrapper itself.
type registryKey struct {
	realm *Realm
	raw   uintptr
	obs   uint64
}

// dropRegistration removes a stale registry entry, guarding against the slot
// having been re-registered to a newer wrapper.
func (r *Realm) dropRegistration(raw uintptr, obsID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.wrappers[raw]; ok {
		if cur := wp.Value(); cur != nil && cur.id != obsID {
			return
		}
		delete(r.wrappers, raw)
	}
}

// newObservable builds the common core for a wrapper under construction.
func (r *Realm) newObservable(kind ObservableKind, rawID uintptr) observable {
	return observable{realm: r, id: nextID(), kind: kind, rawID: rawID}
}

// wrapValue re-wraps a value surfaced by a read so nested access becomes
// reactive automatically.
func (r *Realm) wrapValue(v any) any { return r.Wrap(v) }
