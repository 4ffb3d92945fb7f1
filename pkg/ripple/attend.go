package ripple

// Attend runs body(key) as an effect for every key present in the source's
// enumeration: when a key appears a new effect is created, when it
// disappears its effect is disposed. Per-key effects attach to the owning
// effect (the one active when Attend was called), not to the internal
// structure watcher, so unrelated restructuring never tears them down.
//
// The source may be a *Sequence (keys are indices), *Record, *KeyedMap,
// *UnkeyedSet, a raw aggregate (wrapped first), or a raw enumerator callback
// func(yield func(key any)).
//
// The returned stop disposes the watcher and every per-key effect.
func Attend(source any, body func(key any)) (stop func()) {
	return DefaultRealm().Attend(source, body)
}

// Attend is the realm-bound variant. See the package-level Attend.
func (r *Realm) Attend(source any, body func(key any)) (stop func()) {
	enum := r.enumeratorOf(source)
	present := r.presenceOf(source)
	active := make(map[any]*Handle)
	watcher := r.NewEffect(func(at Access) Cleanup {
		seen := make(map[any]struct{})
		for _, k := range enum() {
			seen[k] = struct{}{}
			if _, ok := active[k]; ok {
				continue
			}
			key := k
			at.Ascend(func() {
				active[key] = r.NewEffect(func(Access) Cleanup {
					// The key may already be gone when a doomed effect runs
					// ahead of the watcher in the same batch.
					if present != nil && !present(key) {
						return nil
					}
					body(key)
					return nil
				}, WithName("attend-key"))
			})
		}
		for k, h := range active {
			if _, ok := seen[k]; !ok {
				h.Stop()
				delete(active, k)
			}
		}
		return nil
	}, WithName("attend"))
	return func() {
		watcher.Stop()
		for k, h := range active {
			h.Stop()
			delete(active, k)
		}
	}
}

// presenceOf builds an untracked membership probe for a source, used by the
// per-key effects to skip bodies of keys that already disappeared.
func (r *Realm) presenceOf(source any) func(key any) bool {
	switch src := source.(type) {
	case *Sequence:
		return func(k any) bool {
			i, ok := k.(int)
			return ok && i >= 0 && i < src.rawLen()
		}
	case *Record:
		return func(k any) bool {
			name, ok := k.(string)
			if !ok {
				return false
			}
			has := false
			Untracked(func() { has = src.Has(name) })
			return has
		}
	case *KeyedMap:
		return func(k any) bool {
			has := false
			Untracked(func() { has = src.Has(k) })
			return has
		}
	case *UnkeyedSet:
		return func(k any) bool {
			has := false
			Untracked(func() { has = src.Has(k) })
			return has
		}
	}
	if w, ok := r.Wrap(source).(Reactive); ok {
		return r.presenceOf(w)
	}
	return nil
}

// enumeratorOf builds the key enumerator for a derived-collection source.
// The enumerator registers the structural dependencies appropriate to the
// source shape, so the calling watcher re-runs on key appearance and
// disappearance.
func (r *Realm) enumeratorOf(source any) func() []any {
	switch src := source.(type) {
	case *Sequence:
		return func() []any {
			n := src.Len()
			keys := make([]any, n)
			for i := range keys {
				keys[i] = i
			}
			return keys
		}
	case *Record:
		return func() []any {
			names := src.Keys()
			keys := make([]any, len(names))
			for i, name := range names {
				keys[i] = name
			}
			return keys
		}
	case *KeyedMap:
		return src.Keys
	case *UnkeyedSet:
		return func() []any {
			r.registerDep(&src.observable, KeysOf)
			return src.Values()
		}
	case func(yield func(key any)):
		return func() []any {
			var keys []any
			src(func(k any) { keys = append(keys, k) })
			return keys
		}
	}
	if w, ok := r.Wrap(source).(Reactive); ok {
		return r.enumeratorOf(w)
	}
	panic(newError(KindTracking, "cannot enumerate %T as a derived-collection source", source))
}
