package ripple

// scheduler runs enqueued effects so that when effect A's execution writes a
// dependency of effect B, A runs before B. It keeps a persistent causal
// graph over effect ids — direct edges plus incrementally-maintained
// transitive closures — so the cycle check on edge insertion is a set probe.
//
// Scheduling is single-threaded cooperative: one goroutine drives writes and
// the batches they open.
type scheduler struct {
	realm *Realm

	current *batchState
	broken  bool

	// direct[A] holds B when A's execution caused B to enqueue.
	direct map[uint64]map[uint64]struct{}
	// causesOf[V] holds every U with a path U ->* V.
	causesOf map[uint64]map[uint64]struct{}
	// consequencesOf[U] holds every V with a path U ->* V.
	consequencesOf map[uint64]map[uint64]struct{}
	// nodeInfo names graph nodes for error payloads; the graph itself never
	// references effects strongly.
	nodeInfo map[uint64]EffectInfo
}

// batchState is the unit within which all cascaded re-runs caused by a
// triggering write occur.
type batchState struct {
	id        uint64
	all       map[uint64]*Effect
	executed  map[uint64]struct{}
	runCounts map[uint64]int
	chain     int
	active    *Effect
	cleanups  []func()
	stopped   bool
}

func newScheduler(r *Realm) *scheduler {
	return &scheduler{
		realm:          r,
		direct:         make(map[uint64]map[uint64]struct{}),
		causesOf:       make(map[uint64]map[uint64]struct{}),
		consequencesOf: make(map[uint64]map[uint64]struct{}),
		nodeInfo:       make(map[uint64]EffectInfo),
	}
}

func (s *scheduler) isBroken() bool { return s.broken }

func newBatchState() *batchState {
	return &batchState{
		id:        nextID(),
		all:       make(map[uint64]*Effect),
		executed:  make(map[uint64]struct{}),
		runCounts: make(map[uint64]int),
	}
}

// enqueueTargets places triggered effects into the running batch, or opens a
// batch on the fly for a write performed outside any batch.
func (s *scheduler) enqueueTargets(targets map[*Effect]pendingTrigger, caller *Effect) {
	if s.current != nil {
		for e, pt := range targets {
			if !s.addEdge(caller, e) {
				continue
			}
			e.addTrigger(pt)
			s.current.all[e.id] = e
		}
		return
	}
	b := newBatchState()
	s.current = b
	for e, pt := range targets {
		e.addTrigger(pt)
		b.all[e.id] = e
	}
	s.runToCompletion(false)
}

// runImmediate executes e synchronously as (or within) a batch. Immediate
// scheduling declines causality attribution: no edge from the active effect
// is recorded. Used for initial effect runs and for re-runs released by a
// finished asynchronous tail.
func (s *scheduler) runImmediate(e *Effect) {
	if s.current != nil {
		s.execute(s.current, e)
		return
	}
	b := newBatchState()
	s.current = b
	b.all[e.id] = e
	s.runToCompletion(true)
}

// atomicScope runs fn inside a batch, opening one when none is running.
// Writes inside enqueue their consumers; cascades drain before return.
func (s *scheduler) atomicScope(fn func()) {
	if s.current != nil {
		fn()
		return
	}
	b := newBatchState()
	s.current = b
	s.runFnThenDrain(fn)
}

func (s *scheduler) runFnThenDrain(fn func()) {
	defer s.closeBatch(true)
	fn()
	s.drain(s.current)
}

// runToCompletion drains the current batch. A panic escaping a non-immediate
// batch — or a cycle/depth error escaping any batch — flags the scheduler
// broken; further writes raise ErrBrokenEffects until Reset.
func (s *scheduler) runToCompletion(immediate bool) {
	defer s.closeBatch(immediate)
	s.drain(s.current)
}

func (s *scheduler) closeBatch(immediate bool) {
	b := s.current
	s.current = nil
	if p := recover(); p != nil {
		if !immediate || isSchedulingError(p) {
			s.broken = true
		}
		panic(p)
	}
	cleanups := b.cleanups
	b.cleanups = nil
	for _, fn := range cleanups {
		runSwallowing(s.realm, fn)
	}
	if Debug.LogBatches {
		logger.Debug("ripple: batch done", "batch", b.id, "executed", len(b.executed), "runs", b.chain)
	}
}

// isSchedulingError reports whether a panic payload is a scheduler-produced
// error that always breaks the runtime (cycle and limit errors).
func isSchedulingError(p any) bool {
	err, ok := p.(*Error)
	if !ok {
		return false
	}
	switch err.Kind {
	case KindCycle, KindMaxDepth, KindMaxReaction:
		return true
	}
	return false
}

// drain picks and executes effects until the batch's all-set is empty.
func (s *scheduler) drain(b *batchState) {
	for len(b.all) > 0 && !b.stopped {
		e := s.pick(b)
		if e == nil {
			e = s.handleStuck(b)
			if e == nil {
				continue // Break policy removed an effect
			}
		}
		s.execute(b, e)
	}
}

// pick selects the next effect: first one with strict in-degree zero among
// all (no pending transitive cause in the batch, excluding itself and the
// active effect), then one whose remaining causes have all executed.
func (s *scheduler) pick(b *batchState) *Effect {
	var fallback *Effect
	for id, e := range b.all {
		pending, anyCause := false, false
		for uid := range s.causesOf[id] {
			if uid == id {
				continue
			}
			if b.active != nil && uid == b.active.id {
				continue
			}
			if _, inAll := b.all[uid]; inAll {
				pending = true
				anyCause = true
				break
			}
			if _, ran := b.executed[uid]; ran {
				anyCause = true
			}
		}
		if !pending {
			if !anyCause {
				return e
			}
			if fallback == nil {
				fallback = e
			}
		}
	}
	return fallback
}

// handleStuck applies the cycle policy when no effect is selectable while
// the batch is non-empty.
func (s *scheduler) handleStuck(b *batchState) *Effect {
	policy := s.realm.options().CycleHandling
	switch policy {
	case CycleBreak:
		for id := range b.all {
			delete(b.all, id)
			b.executed[id] = struct{}{}
			return nil
		}
		return nil
	case CycleWarn:
		logger.Warn("ripple: effect cycle in batch; running anyway",
			"batch", b.id, "pending", len(b.all))
		for _, e := range b.all {
			return e
		}
		return nil
	default:
		var chain []EffectInfo
		for id := range b.all {
			chain = s.witness(id, id)
			if chain != nil {
				break
			}
		}
		panic(newError(KindCycle, "no runnable effect in batch: effects form a cycle").
			withChain(chain))
	}
}

// execute runs one effect: bounds checks, removal from all, execution with
// the batch marked active, then the executed set.
func (s *scheduler) execute(b *batchState, e *Effect) {
	delete(b.all, e.id)
	if e.stopped {
		return
	}

	opts := s.realm.options()
	b.chain++
	if b.chain > opts.MaxEffectChain {
		s.overflow(b, e, KindMaxDepth,
			"batch executed more than %d effects", opts.MaxEffectChain)
		return
	}
	b.runCounts[e.id]++
	if b.runCounts[e.id] > opts.MaxTriggerPerBatch {
		s.overflow(b, e, KindMaxReaction,
			"effect re-ran more than %d times in one batch", opts.MaxTriggerPerBatch)
		return
	}

	prevActive := b.active
	b.active = e
	defer func() { b.active = prevActive }()

	e.run()
	b.executed[e.id] = struct{}{}
}

// overflow applies the chain-bound policy.
func (s *scheduler) overflow(b *batchState, e *Effect, kind ErrorKind, format string, args ...any) {
	switch s.realm.options().MaxEffectReaction {
	case ChainWarn:
		logger.Warn("ripple: effect chain bound exceeded; stopping batch",
			"batch", b.id, "effect", e.id)
		b.stopped = true
		clear(b.all)
	case ChainDebug:
		logger.Debug("ripple: effect chain bound exceeded",
			"batch", b.id, "effect", e.id, "name", e.name,
			"causes", len(s.causesOf[e.id]), "consequences", len(s.consequencesOf[e.id]))
		b.stopped = true
		clear(b.all)
	default:
		panic(newError(kind, format, args...).withEffect(e.info()))
	}
}

// addEdge records that caller's execution caused target to enqueue, updating
// the transitive closures, and reports whether the target should be
// enqueued. Self-loops are never inserted. If target already reaches caller,
// the edge would close a cycle: the cycle policy is applied and the edge is
// not added — Break additionally drops the enqueue so the batch can finish.
func (s *scheduler) addEdge(caller, target *Effect) bool {
	if caller == nil || target == nil || caller.id == target.id {
		return true
	}
	u, v := caller.id, target.id
	s.nodeInfo[u] = caller.info()
	s.nodeInfo[v] = target.info()
	if _, ok := s.direct[u][v]; ok {
		return true
	}
	if _, reaches := s.consequencesOf[v][u]; reaches {
		switch s.realm.options().CycleHandling {
		case CycleBreak:
			return false
		case CycleWarn:
			logger.Warn("ripple: causal edge would close a cycle; dropped",
				"from", u, "to", v)
			return true
		default:
			panic(newError(KindCycle, "effect %s would re-trigger its own cause %s",
				nodeName(target.info()), nodeName(caller.info())).
				withChain(append(s.witness(v, u), target.info())))
		}
	}

	if s.direct[u] == nil {
		s.direct[u] = make(map[uint64]struct{})
	}
	s.direct[u][v] = struct{}{}

	up := make([]uint64, 0, len(s.causesOf[u])+1)
	up = append(up, u)
	for x := range s.causesOf[u] {
		up = append(up, x)
	}
	down := make([]uint64, 0, len(s.consequencesOf[v])+1)
	down = append(down, v)
	for y := range s.consequencesOf[v] {
		down = append(down, y)
	}
	for _, y := range down {
		set := s.causesOf[y]
		if set == nil {
			set = make(map[uint64]struct{})
			s.causesOf[y] = set
		}
		for _, x := range up {
			if x != y {
				set[x] = struct{}{}
			}
		}
	}
	for _, x := range up {
		set := s.consequencesOf[x]
		if set == nil {
			set = make(map[uint64]struct{})
			s.consequencesOf[x] = set
		}
		for _, y := range down {
			if y != x {
				set[y] = struct{}{}
			}
		}
	}
	return true
}

// witness enumerates a path from -> to over direct edges by DFS, for error
// payloads. Returns nil when no path exists.
func (s *scheduler) witness(from, to uint64) []EffectInfo {
	seen := map[uint64]struct{}{}
	var dfs func(at uint64, path []EffectInfo) []EffectInfo
	dfs = func(at uint64, path []EffectInfo) []EffectInfo {
		if _, dup := seen[at]; dup {
			return nil
		}
		seen[at] = struct{}{}
		path = append(path, s.nodeInfo[at])
		if at == to && len(path) > 1 {
			return path
		}
		for next := range s.direct[at] {
			if found := dfs(next, path); found != nil {
				return found
			}
		}
		return nil
	}
	if from == to {
		for next := range s.direct[from] {
			if found := dfs(next, []EffectInfo{s.nodeInfo[from]}); found != nil {
				return found
			}
		}
		return nil
	}
	return dfs(from, nil)
}

// dropNode removes every graph edge involving id. Called on effect disposal.
func (s *scheduler) dropNode(id uint64) {
	delete(s.direct, id)
	for _, peers := range s.direct {
		delete(peers, id)
	}
	delete(s.causesOf, id)
	for _, set := range s.causesOf {
		delete(set, id)
	}
	delete(s.consequencesOf, id)
	for _, set := range s.consequencesOf {
		delete(set, id)
	}
	delete(s.nodeInfo, id)
	if s.current != nil {
		delete(s.current.all, id)
	}
}

// onBatchEnd registers fn to run after the current batch completes, or runs
// it immediately when no batch is open.
func (s *scheduler) onBatchEnd(fn func()) {
	if s.current == nil {
		fn()
		return
	}
	s.current.cleanups = append(s.current.cleanups, fn)
}

func nodeName(info EffectInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return "#" + uitoa(info.ID)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v = v/10
	}
	return string(buf[i:])
}

// runSwallowing runs a cleanup-like callback, logging and swallowing any
// panic so disposal always completes.
func runSwallowing(r *Realm, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			if Debug.LogCleanupErrors || r.options().Introspection.LogErrors {
				logger.Error("ripple: error in cleanup", "panic", p)
			}
		}
	}()
	fn()
}
