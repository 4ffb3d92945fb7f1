package ripple

// registerDep subscribes the active effect to (obs, key). No-op when no
// effect is tracking, when tracking is suspended by Untracked, or when the
// active effect is stopped.
func (r *Realm) registerDep(obs *observable, key PropKey) {
	e := activeEffect()
	if e == nil || e.stopped {
		return
	}
	var stack string
	opts := r.options()
	if opts.Introspection.GatherReasons {
		stack = r.captureStack()
	}

	r.mu.Lock()
	props := r.watchers[obs]
	if props == nil {
		props = make(map[PropKey]map[*Effect]string)
		r.watchers[obs] = props
	}
	set := props[key]
	if set == nil {
		set = make(map[*Effect]string)
		props[key] = set
	}
	set[e] = stack
	reads := r.effectReads[e]
	if reads == nil {
		reads = make(map[*observable]struct{})
		r.effectReads[e] = reads
	}
	reads[obs] = struct{}{}
	r.mu.Unlock()

	if e.depHook != nil {
		e.depHook(obs.self, key)
	}
}

// captureStack asks the introspection collaborator for a stack snapshot.
func (r *Realm) captureStack() string {
	if in := r.introspector(); in != nil {
		return in.CaptureStack()
	}
	return ""
}

// pendingTrigger is one (object, evolution) pair queued against an effect.
type pendingTrigger struct {
	obs   *observable
	evo   Evolution
	stack string
}

// emit translates a mutation of obs into enqueued effect re-runs.
//
// For every evolution, the union of watchers over {its prop, AllProps, and
// KeysOf for structural changes} is gathered; the currently-active effect is
// filtered out, so an effect's own writes never re-enqueue it for the write
// it caused. Outside a batch, a batch is created on the fly.
func (r *Realm) emit(obs *observable, evos ...Evolution) {
	r.emitWhere(obs, nil, evos...)
}

// emitOpaqueOnly delivers only to effects flagged opaque. Used when a write
// was folded by recursive touching: opaque effects opted out of the folding
// and still observe the parent-level change.
func (r *Realm) emitOpaqueOnly(obs *observable, evos ...Evolution) {
	r.emitWhere(obs, func(e *Effect) bool { return e.opaque }, evos...)
}

func (r *Realm) emitWhere(obs *observable, accept func(*Effect) bool, evos ...Evolution) {
	if r.sched.isBroken() {
		panic(newError(KindBroken, "write rejected: a previous batch failed; call Reset()"))
	}
	if inComputedScope() {
		panic(newError(KindWriteInComputed,
			"memoized computations must be pure over their reactive inputs"))
	}

	caller := causalEffect()
	targets := map[*Effect]pendingTrigger{}

	r.mu.Lock()
	props := r.watchers[obs]
	for _, evo := range evos {
		keys := []PropKey{AllProps}
		if evo.Kind != EvoBunch {
			keys = append(keys, evo.Prop)
		}
		if evo.structural() {
			keys = append(keys, KeysOf)
		}
		for _, k := range keys {
			for e, stack := range props[k] {
				if e == caller || e.stopped {
					continue
				}
				if accept != nil && !accept(e) {
					continue
				}
				if _, seen := targets[e]; !seen {
					targets[e] = pendingTrigger{obs: obs, evo: evo, stack: stack}
				}
			}
		}
	}
	r.mu.Unlock()

	r.recordTriggers(obs, caller, targets)
	if len(targets) == 0 {
		return
	}
	r.sched.enqueueTargets(targets, caller)
}

// recordTriggers feeds the introspection collaborator and the history ring.
func (r *Realm) recordTriggers(obs *observable, caller *Effect, targets map[*Effect]pendingTrigger) {
	in := r.introspector()
	hist := r.History()
	if in == nil && hist == nil {
		return
	}
	var src EffectInfo
	if caller != nil {
		src = caller.info()
	}
	for e, pt := range targets {
		if in != nil {
			in.OnRecordTrigger(src, e.info(), obs.self, pt.evo)
		}
		if hist != nil {
			hist.record(TriggerRecord{
				Source:    src,
				Target:    e.info(),
				ObjectID:  obs.id,
				Kind:      obs.kind.String(),
				Evolution: pt.evo.String(),
			})
		}
	}
}

// dropEffectReads removes every dependency entry of e: the inverse set is
// walked and the forward entries pruned, deleting emptied sets.
func (r *Realm) dropEffectReads(e *Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for obs := range r.effectReads[e] {
		props := r.watchers[obs]
		for key, set := range props {
			delete(set, e)
			if len(set) == 0 {
				delete(props, key)
			}
		}
		if len(props) == 0 {
			delete(r.watchers, obs)
		}
	}
	delete(r.effectReads, e)
}

// effectWatches reports whether e currently appears in any watcher set or in
// the inverse read table.
func (r *Realm) effectWatches(e *Effect) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.effectReads[e]; ok {
		return true
	}
	for _, props := range r.watchers {
		for _, set := range props {
			if _, ok := set[e]; ok {
				return true
			}
		}
	}
	return false
}
