package ripple

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// Cleanup is the closure an effect body may return; it runs before the next
// execution and at disposal, receiving the reason for the tear-down.
type Cleanup func(reason Reason)

// Body is a reactive computation. Reads performed inside are attributed to
// the effect and re-run it when they change. The Access argument carries the
// effect-scoped capabilities (Tracked, Ascend, Reason, Go).
type Body func(at Access) Cleanup

// ErrAsyncCanceled is the cause reported by the context of asynchronous work
// aborted under AsyncCancel.
var ErrAsyncCanceled = errors.New("ripple: pending work canceled")

// Effect is the runtime node behind a reactive computation. It is not
// constructed directly; see the Effect function and Handle.
type Effect struct {
	realm *Realm
	id    uint64
	name  string
	body  Body

	// parent/children form the composition tree: effects created during a
	// run are children and are stopped when the parent cleans up.
	parent   *Effect
	children map[uint64]*Effect

	// creationActive is the effect that was active when this one was
	// created; Ascend re-enters it.
	creationActive *Effect

	// cleanup is the closure the last run returned; extraCleanups come from
	// error handlers that resolved a throw.
	cleanup       Cleanup
	extraCleanups []Cleanup

	stopped bool
	opaque  bool

	asyncMode AsyncMode // 0 = inherit realm default
	depHook   func(obj Reactive, key PropKey)

	// handlers is the per-run error handler chain; cleared before each run.
	handlers []ThrowHandler

	pendingTriggers []Trigger
	runReason       Reason

	pending     *pendingWork
	queuedRerun bool
}

// ThrowHandler is an error handler registered via OnEffectThrow. It reports
// whether it handled the error; a non-nil Cleanup is attached to the
// effect's next dispose.
type ThrowHandler func(err error) (Cleanup, bool)

// Handle is the stop handle returned by Effect. For root effects, dropping
// the handle lets the garbage collector dispose the effect (best-effort);
// child effects are owned by their parent and need no handle at all.
type Handle struct {
	e *Effect
}

// Stop disposes the effect: its last cleanup runs with a Stopped reason, its
// dependency entries are pruned, and every descendant is stopped before
// Stop returns.
func (h *Handle) Stop() { h.e.stopWith(Stopped{}) }

// Stopped reports whether the effect was disposed.
func (h *Handle) Stopped() bool { return h.e.stopped }

// Access is the capability handed to an effect body.
type Access struct {
	e *Effect
}

// Tracked runs fn with this effect active again. Use it to resume dependency
// attribution after a suspension (callbacks, async tails).
func (at Access) Tracked(fn func()) {
	prev := setActiveEffect(at.e)
	defer setActiveEffect(prev)
	fn()
}

// Ascend runs fn with the creation-context's active effect as the active
// one, so reads — and effects created inside — are attributed to the owner
// rather than to this effect. Derived collections use it to keep per-key
// computations alive across re-runs of their structure watcher.
func (at Access) Ascend(fn func()) {
	prev := setActiveEffect(at.e.creationActive)
	defer setActiveEffect(prev)
	fn()
}

// Reason returns nil on the effect's first run and the re-run reason
// afterwards.
func (at Access) Reason() Reason { return at.e.runReason }

// Go launches the asynchronous tail of this run. The previous run's
// outstanding work, if any, was already reconciled per the effect's async
// mode before the body started. ctx is canceled (with ErrAsyncCanceled as
// cause) when a re-run aborts this work under AsyncCancel, or when the
// effect is disposed. Use Tracked inside fn to attribute late reads.
func (at Access) Go(fn func(ctx context.Context)) {
	e := at.e
	if e.effectiveAsyncMode() == AsyncDisabled {
		panic(newError(KindTracking, "effect %s launched async work with AsyncDisabled", nodeName(e.info())))
	}
	pw := newPendingWork()
	e.pending = pw
	go func() {
		defer e.asyncDone(pw)
		fn(pw.ctx)
	}()
}

// pendingWork is the cancellation token of one asynchronous tail.
type pendingWork struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newPendingWork() *pendingWork {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &pendingWork{ctx: ctx, cancel: cancel}
}

// asyncDone retires a finished tail and releases a queued re-run, if any.
func (e *Effect) asyncDone(pw *pendingWork) {
	if e.pending != pw {
		return // superseded by a newer run
	}
	e.pending = nil
	if e.queuedRerun && !e.stopped {
		e.queuedRerun = false
		e.realm.sched.runImmediate(e)
	}
}

// EffectOption configures an effect at creation.
type EffectOption interface {
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// WithName sets a debug label used in logs and error payloads.
func WithName(name string) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.name = name })
}

// Opaque exempts the effect from deep-touch folding: it observes
// object-identity changes even when RecursiveTouching folds a write into
// per-field updates.
func Opaque() EffectOption {
	return effectOptionFunc(func(e *Effect) { e.opaque = true })
}

// WithAsyncMode overrides the realm's default async arbitration for this
// effect. AsyncDisabled, the zero value, leaves the realm default in force.
func WithAsyncMode(m AsyncMode) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.asyncMode = m })
}

// WithDependencyHook installs a debug callback invoked on each dependency
// registration of this effect.
func WithDependencyHook(hook func(obj Reactive, key PropKey)) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.depHook = hook })
}

// NewEffect creates a reactive effect in this realm and runs it immediately
// as an immediate single-effect batch. See the package-level Effect.
func (r *Realm) NewEffect(body Body, opts ...EffectOption) *Handle {
	e := &Effect{
		realm:          r,
		id:             nextID(),
		body:           body,
		creationActive: causalEffect(),
	}
	for _, opt := range opts {
		opt.applyEffect(e)
	}
	if p := e.creationActive; p != nil && !p.stopped {
		e.parent = p
		if p.children == nil {
			p.children = make(map[uint64]*Effect)
		}
		p.children[e.id] = e
	}
	if in := r.introspector(); in != nil {
		in.OnRegisterEffect(e.info())
	}
	h := &Handle{e: e}
	if e.parent == nil {
		// Dropping a root handle disposes the effect once the collector
		// notices. Children are held by their parent instead.
		runtime.AddCleanup(h, func(ee *Effect) { ee.stopWith(Collected{}) }, e)
	}
	r.sched.runImmediate(e)
	return h
}

// Effect creates a reactive effect in the default realm: body runs now and
// re-runs whenever any property it read changes. The returned handle stops
// it; for root effects, dropping the handle eventually stops it too.
func Effect(body Body, opts ...EffectOption) *Handle {
	return DefaultRealm().NewEffect(body, opts...)
}

// OnEffectThrow registers a handler on the currently-running effect.
// Handlers are tried in registration order when the body panics; they are
// cleared before every run and must be re-registered. No-op outside an
// effect body.
func OnEffectThrow(h ThrowHandler) {
	e := causalEffect()
	if e == nil || h == nil {
		return
	}
	e.handlers = append(e.handlers, h)
}

// Atomic runs fn as an immediate batch: writes inside enqueue their
// consumers, which run in causal order before Atomic returns. Nested calls
// join the already-running batch.
func Atomic(fn func()) { DefaultRealm().Atomic(fn) }

// Atomic runs fn as an immediate batch in this realm.
func (r *Realm) Atomic(fn func()) { r.sched.atomicScope(fn) }

// OnBatchEnd registers fn to run after the current batch completes (or
// immediately when no batch is open).
func OnBatchEnd(fn func()) { DefaultRealm().OnBatchEnd(fn) }

// OnBatchEnd registers fn against this realm's current batch.
func (r *Realm) OnBatchEnd(fn func()) { r.sched.onBatchEnd(fn) }

func (e *Effect) info() EffectInfo {
	return EffectInfo{ID: e.id, Name: e.name}
}

func (e *Effect) effectiveAsyncMode() AsyncMode {
	if e.asyncMode != 0 {
		return e.asyncMode
	}
	return e.realm.options().AsyncMode
}

// addTrigger queues one trigger for the effect's next run reason.
func (e *Effect) addTrigger(pt pendingTrigger) {
	e.pendingTriggers = append(e.pendingTriggers, Trigger{
		Object:    pt.obs.self,
		Evolution: pt.evo,
		Stack:     pt.stack,
	})
}

// takeReason converts accumulated triggers into this run's reason.
func (e *Effect) takeReason() Reason {
	if e.pendingTriggers == nil {
		return nil
	}
	ts := e.pendingTriggers
	e.pendingTriggers = nil
	return PropChange{Triggers: ts}
}

// run executes the effect: previous cleanup, async arbitration, tracking,
// body, error handling.
func (e *Effect) run() {
	if e.stopped {
		return
	}
	reason := e.takeReason()

	if e.pending != nil {
		switch e.effectiveAsyncMode() {
		case AsyncQueue:
			e.pendingTriggers = reasonTriggers(reason)
			e.queuedRerun = true
			return
		case AsyncIgnore:
			return
		default: // AsyncCancel and the zero value
			e.pending.cancel(ErrAsyncCanceled)
			e.pending = nil
		}
	}

	e.teardown(reason)
	if e.stopped {
		// A cleanup may stop its own effect (memo nodes do, to lazily
		// re-create on next read).
		return
	}
	e.handlers = nil
	e.runReason = reason

	if Debug.LogEffectRuns {
		logger.Debug("ripple: effect run", "effect", e.id, "name", e.name, "reason", reasonString(reason))
	}

	prev := setActiveEffect(e)
	defer setActiveEffect(prev)

	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		if p == nil {
			return
		}
		if isSchedulingError(p) {
			// Cycle and limit errors are never caught by effect handlers.
			panic(p)
		}
		err := asError(p)
		if cl, handled := e.tryHandlers(err); handled {
			if cl != nil {
				e.extraCleanups = append(e.extraCleanups, cl)
			}
			e.runReason = Failed{Err: err}
			return
		}
		panic(p)
	}()

	cleanup := e.body(Access{e: e})
	e.cleanup = cleanup
	done = true
}

func reasonTriggers(r Reason) []Trigger {
	if pc, ok := r.(PropChange); ok {
		return pc.Triggers
	}
	return nil
}

func reasonString(r Reason) string {
	if r == nil {
		return "initial"
	}
	return r.String()
}

// tryHandlers walks the handler chain of this effect, then of its ancestors.
// The first handler to report handled wins.
func (e *Effect) tryHandlers(err error) (Cleanup, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		for _, h := range cur.handlers {
			if cl, handled := h(err); handled {
				return cl, true
			}
		}
	}
	return nil, false
}

// teardown runs the previous run's cleanups, stops children, and prunes the
// effect's dependency entries. It does not touch the causal graph — that
// survives across re-runs; see stopWith for full disposal.
func (e *Effect) teardown(reason Reason) {
	if c := e.cleanup; c != nil {
		e.cleanup = nil
		runSwallowing(e.realm, func() { c(reason) })
	}
	for _, c := range e.extraCleanups {
		cl := c
		runSwallowing(e.realm, func() { cl(reason) })
	}
	e.extraCleanups = nil

	kids := e.children
	e.children = nil
	for _, kid := range kids {
		kid.stopWith(Lineage{Parent: reason})
	}

	e.realm.dropEffectReads(e)
}

// stopWith disposes the effect: cleanup with the given reason, dependency
// pruning, cascaded child disposal, and removal from the causal graph.
// Every transitive descendant is stopped before stopWith returns.
func (e *Effect) stopWith(reason Reason) {
	if e.stopped {
		return
	}
	e.stopped = true
	if e.pending != nil {
		e.pending.cancel(ErrAsyncCanceled)
		e.pending = nil
	}
	e.teardown(reason)
	e.realm.sched.dropNode(e.id)
	if e.parent != nil && e.parent.children != nil {
		delete(e.parent.children, e.id)
	}
}

// asError normalizes a panic payload.
func asError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}
