package ripple

// Morph lazily maps src element-by-element: reading index i of the returned
// sequence materializes an internal effect that keeps position i equal to
// mapFn(src[i]). Unread indices cost nothing, and structural source changes
// only invalidate the affected indices.
//
// The returned stop disposes every materialized effect and the length
// watcher.
func Morph(src *Sequence, mapFn func(v any) any) (*Sequence, func()) {
	r := src.realm
	out := r.newDerivedSequence()
	owner := causalEffect()
	materialized := make(map[int]*Handle)

	out.lazyFill = func(i int) {
		if _, ok := materialized[i]; ok {
			return
		}
		if i < 0 || i >= src.rawLen() {
			return
		}
		// Materialized effects attach to the Morph caller's effect, not to
		// whatever effect happened to read first.
		prev := setActiveEffect(owner)
		defer setActiveEffect(prev)
		idx := i
		materialized[idx] = r.NewEffect(func(Access) Cleanup {
			if idx >= src.rawLen() {
				// Shrink in flight; the length watcher disposes this effect.
				return nil
			}
			out.Set(idx, mapFn(src.Get(idx)))
			return nil
		}, WithName("morph-index"))
	}

	// The length watcher trims the output and disposes effects for indices
	// that fell off the end.
	watcher := r.NewEffect(func(Access) Cleanup {
		n := src.Len()
		for i, h := range materialized {
			if i >= n {
				h.Stop()
				delete(materialized, i)
			}
		}
		Untracked(func() {
			if out.rawLen() > n {
				out.Splice(n, out.rawLen()-n)
			}
		})
		return nil
	}, WithName("morph"))

	return out, func() {
		watcher.Stop()
		for i, h := range materialized {
			h.Stop()
			delete(materialized, i)
		}
		out.lazyFill = nil
	}
}
