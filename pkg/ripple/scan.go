package ripple

// scanStep is one intermediate record of a Scan: one per item occurrence
// (duplicates get their own), linking to its predecessor through a reactive
// cell so relinking invalidates only the suffix.
type scanStep struct {
	item any
	prev *cell // holds *scanStep, nil for the first position
}

// Scan produces a sequence of running accumulations: position i equals
// step(result[i-1], source[i]) with result[-1] = init.
//
// Items must be weak-keyable objects (pointers or maps): the
// accumulator of every intermediate is a memoized getter keyed by the
// intermediate's identity, so moving or inserting an item re-invokes step
// only from the affected position onward — intermediates in front are
// reused, their cached accumulations untouched.
func Scan(source *Sequence, step func(acc, item any) any, init any) (*Sequence, func()) {
	r := source.realm
	out := r.newDerivedSequence()

	// accOf pulls the accumulator chain. Recursion bottoms out at the first
	// position; every hop is cached and invalidated independently.
	var accOf func(args ...any) any
	accOf = r.Memoize(func(args ...any) any {
		st := args[0].(*scanStep)
		prevAny, _ := st.prev.get()
		acc := init
		if prevStep, ok := prevAny.(*scanStep); ok && prevStep != nil {
			acc = accOf(prevStep)
		}
		return step(acc, r.Wrap(st.item))
	})

	// steps in play, grouped by item identity to survive moves and to give
	// each duplicate occurrence its own intermediate.
	pool := make(map[uintptr][]*scanStep)
	var mirrors []scanMirror

	watcher := r.NewEffect(func(at Access) Cleanup {
		n := source.Len()
		items := make([]any, n)
		for i := 0; i < n; i++ {
			items[i] = Unwrap(source.Get(i))
		}

		// Re-link: reuse intermediates by (identity, occurrence), then wire
		// predecessors. Cells no-op on identical writes, so steps whose
		// neighborhood is unchanged stay quiet.
		used := make(map[uintptr]int)
		ordered := make([]*scanStep, n)
		for i, item := range items {
			id, ok := identityOf(item)
			if !ok || id == 0 {
				panic(newError(KindTracking,
					"scan item of type %T is not weak-keyable", item))
			}
			occ := used[id]
			used[id] = occ + 1
			var st *scanStep
			if occ < len(pool[id]) {
				st = pool[id][occ]
			} else {
				st = &scanStep{item: item, prev: r.newCell()}
				pool[id] = append(pool[id], st)
			}
			ordered[i] = st
		}
		for id, list := range pool {
			keep := used[id]
			if keep < len(list) {
				pool[id] = list[:keep]
			}
			if keep == 0 {
				delete(pool, id)
			}
		}
		for i, st := range ordered {
			var prev *scanStep
			if i > 0 {
				prev = ordered[i-1]
			}
			st.prev.set(prev)
		}

		// Per-position mirrors copy the pulled accumulator into the output.
		// They belong to the owner: restructuring must not reset them.
		posCellsSync(at, r, &mirrors, ordered, accOf, out)
		return nil
	}, WithName("scan"))

	return out, func() {
		watcher.Stop()
		for _, m := range mirrors {
			m.handle.Stop()
		}
		mirrors = nil
	}
}

// scanMirror is one per-position sync effect plus the cell carrying the
// step currently at that position.
type scanMirror struct {
	handle *Handle
	step   *cell
}

// posCellsSync reconciles the per-position mirror effects with the current
// step ordering: grows the mirror list, retargets position cells, trims the
// output on shrink.
func posCellsSync(at Access, r *Realm, mirrors *[]scanMirror, ordered []*scanStep, accOf func(...any) any, out *Sequence) {
	for len(*mirrors) < len(ordered) {
		i := len(*mirrors)
		stepCell := r.newCell()
		var h *Handle
		at.Ascend(func() {
			h = r.NewEffect(func(Access) Cleanup {
				stAny, ok := stepCell.get()
				if !ok {
					return nil
				}
				out.Set(i, accOf(stAny.(*scanStep)))
				return nil
			}, WithName("scan-pos"))
		})
		*mirrors = append(*mirrors, scanMirror{handle: h, step: stepCell})
	}
	for len(*mirrors) > len(ordered) {
		last := (*mirrors)[len(*mirrors)-1]
		last.handle.Stop()
		*mirrors = (*mirrors)[:len(*mirrors)-1]
	}
	for i, st := range ordered {
		(*mirrors)[i].step.set(st)
	}
	Untracked(func() {
		if out.rawLen() > len(ordered) {
			out.Splice(len(ordered), out.rawLen()-len(ordered))
		}
	})
}
