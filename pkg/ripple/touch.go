package ripple

import "reflect"

// touchInstead implements the deep-equal replacement optimization.
//
// When RecursiveTouching is on and a property holding aggregate old is
// assigned aggregate next of the same shape, the parent Set is folded away:
// differing entries of next are copied into old in place, each emitting its
// own evolution through the ordinary write paths (which recurse through this
// same fold for nested aggregates). A structurally-equal replacement
// therefore emits nothing at all.
//
// Returns false when the fold does not apply and the caller should perform a
// plain assignment.
func (r *Realm) touchInstead(old, next any) bool {
	if !r.options().RecursiveTouching {
		return false
	}
	old, next = Unwrap(old), Unwrap(next)
	if old == nil || next == nil {
		return false
	}
	ow, nw := r.Wrap(old), r.Wrap(next)
	oldR, okO := ow.(Reactive)
	nextR, okN := nw.(Reactive)
	if !okO || !okN || oldR.Kind() != nextR.Kind() {
		return false
	}
	if reflect.TypeOf(old) != reflect.TypeOf(next) {
		return false
	}
	// The structural copy below runs untracked: the fold is a write path,
	// not a read of the folding effect.
	Untracked(func() { touchCopy(oldR, nextR) })
	return true
}

// touchEmitParent notifies opaque watchers of the prop whose assignment was
// folded; they opted out of the folding and observe identity changes.
func (r *Realm) touchEmitParent(obs *observable, prop PropKey) {
	r.emitOpaqueOnly(obs, Set(prop))
}

// touchCopy copies differing entries of next into old. The wrapper Set /
// Delete methods emit the per-field evolutions and recurse through
// touchInstead for nested aggregates.
func touchCopy(old, next Reactive) {
	switch o := old.(type) {
	case *Record:
		n := next.(*Record)
		nextKeys := map[string]struct{}{}
		for _, k := range n.Keys() {
			nextKeys[k] = struct{}{}
			o.Set(k, Unwrap(n.Get(k)))
		}
		for _, k := range o.Keys() {
			if _, keep := nextKeys[k]; !keep {
				o.Delete(k)
			}
		}
	case *Sequence:
		n := next.(*Sequence)
		ol, nl := o.rawLen(), n.rawLen()
		for i := 0; i < min(ol, nl); i++ {
			o.Set(i, Unwrap(n.rawGet(i)))
		}
		if nl > ol {
			var extra []any
			for i := ol; i < nl; i++ {
				extra = append(extra, n.rawGet(i))
			}
			o.Push(extra...)
		} else if nl < ol {
			o.Splice(nl, ol-nl)
		}
	case *KeyedMap:
		n := next.(*KeyedMap)
		keep := map[any]struct{}{}
		for _, k := range n.Keys() {
			keep[k] = struct{}{}
			v, _ := n.Get(k)
			o.Set(k, Unwrap(v))
		}
		for _, k := range o.Keys() {
			if _, ok := keep[k]; !ok {
				o.Delete(k)
			}
		}
	case *UnkeyedSet:
		n := next.(*UnkeyedSet)
		keep := map[any]struct{}{}
		for _, v := range n.Values() {
			keep[v] = struct{}{}
			o.Add(v)
		}
		for _, v := range o.Values() {
			if _, ok := keep[v]; !ok {
				o.Delete(v)
			}
		}
	}
}
