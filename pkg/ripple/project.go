package ripple

// ProjectSequence eagerly maps every index of src into target (a fresh
// sequence when nil), keeping the mapping in sync: per-index bodies run in
// effects attached to the owning effect, so inserting or removing other
// items never disposes or re-creates them (an index's body re-runs only when
// the value at that index changes, which includes shifts caused by an
// insertion or removal in front of it), an index's effect is disposed
// exactly when the index disappears, and disposing the owner disposes every projection —
// nested projections included.
func ProjectSequence(src *Sequence, body func(i int) any, target *Sequence) (*Sequence, func()) {
	r := src.realm
	if target == nil {
		target = r.newDerivedSequence()
	}
	stop := r.projectKeys(
		r.enumeratorOf(src),
		func(k any) bool { return k.(int) < src.rawLen() },
		func(k any) { target.Set(k.(int), body(k.(int))) },
		func(k any) {
			if i := k.(int); i < target.rawLen() {
				target.Splice(i, target.rawLen()-i)
			}
		},
	)
	return target, stop
}

// ProjectRecord is ProjectSequence for keyed records.
func ProjectRecord(src *Record, body func(key string) any, target *Record) (*Record, func()) {
	r := src.realm
	if target == nil {
		target = r.Wrap(map[string]any{}).(*Record)
	}
	stop := r.projectKeys(
		r.enumeratorOf(src),
		func(k any) bool {
			has := false
			Untracked(func() { has = src.Has(k.(string)) })
			return has
		},
		func(k any) { target.Set(k.(string), body(k.(string))) },
		func(k any) { target.Delete(k.(string)) },
	)
	return target, stop
}

// ProjectMap is ProjectSequence for keyed maps.
func ProjectMap(src *KeyedMap, body func(key any) any, target *KeyedMap) (*KeyedMap, func()) {
	r := src.realm
	if target == nil {
		target = r.Wrap(map[any]any{}).(*KeyedMap)
	}
	stop := r.projectKeys(
		r.enumeratorOf(src),
		func(k any) bool {
			has := false
			Untracked(func() { has = src.Has(k) })
			return has
		},
		func(k any) { target.Set(k, body(k)) },
		func(k any) { target.Delete(k) },
	)
	return target, stop
}

// projectKeys is the shared projection skeleton: a structure watcher diffs
// the enumerated key set, creating per-key effects through Ascend (so they
// belong to the owner, not to the watcher) and disposing them with the
// removal hook when their key disappears.
//
// A key removal triggers both the watcher and the key's own effect; batch
// order between them is unconstrained, so per-key effects re-check presence
// and skip the body when their key is already gone — the watcher's disposal
// is what tears them down.
func (r *Realm) projectKeys(enum func() []any, present func(key any) bool, apply func(key any), removed func(key any)) func() {
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
					if present != nil && !present(key) {
						return nil
					}
					apply(key)
					return nil
				}, WithName("project-key"))
			})
		}
		for k, h := range active {
			if _, ok := seen[k]; !ok {
				h.Stop()
				delete(active, k)
				Untracked(func() { removed(k) })
			}
		}
		return nil
	}, WithName("project"))
	return func() {
		watcher.Stop()
		for k, h := range active {
			h.Stop()
			delete(active, k)
		}
	}
}

// newDerivedSequence creates a fresh, empty output sequence for derived
// collections.
func (r *Realm) newDerivedSequence() *Sequence {
	sl := make([]any, 0)
	return r.Wrap(&sl).(*Sequence)
}
