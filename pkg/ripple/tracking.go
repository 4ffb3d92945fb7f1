package ripple

import (
	"sync"

	"github.com/petermattis/goid"
)

// trackingContext holds the reactive state of one goroutine: which effect is
// currently tracking reads, and whether tracking is suspended.
//
// The runtime is single-threaded cooperative — one goroutine drives reads,
// writes and effect runs — but contexts are kept per goroutine so that test
// parallelism and host integrations that hop goroutines (via BindCallback)
// stay correct.
type trackingContext struct {
	// active is the effect reads are attributed to. nil means no tracking.
	active *Effect

	// untracked counts nested Untracked scopes.
	untracked int

	// inComputed is true while a memoized computation runs; observable writes
	// are rejected there.
	inComputed bool
}

var trackingContexts sync.Map // goroutine id -> *trackingContext

// currentTracking returns the tracking context for the calling goroutine,
// creating it on first use.
func currentTracking() *trackingContext {
	gid := goid.Get()
	if c, ok := trackingContexts.Load(gid); ok {
		return c.(*trackingContext)
	}
	c := &trackingContext{}
	trackingContexts.Store(gid, c)
	return c
}

// activeEffect returns the effect reads should be attributed to, or nil.
func activeEffect() *Effect {
	c := currentTracking()
	if c.untracked > 0 {
		return nil
	}
	return c.active
}

// causalEffect returns the executing effect for write-causality attribution.
// Unlike activeEffect it ignores Untracked scopes: suspending read tracking
// does not detach a write from the effect performing it.
func causalEffect() *Effect {
	return currentTracking().active
}

// setActiveEffect installs e as the active effect and returns the previous
// one for restoration.
func setActiveEffect(e *Effect) *Effect {
	c := currentTracking()
	old := c.active
	c.active = e
	return old
}

// Untracked runs fn with dependency tracking suspended: reads performed
// inside do not subscribe the active effect. Writes inside are still
// attributed to the executing effect for causality and self-retrigger
// filtering (see causalEffect).
func Untracked(fn func()) {
	c := currentTracking()
	c.untracked++
	defer func() { c.untracked-- }()
	fn()
}

// withComputed runs fn with the write-in-computed guard raised.
func withComputed(fn func()) {
	c := currentTracking()
	old := c.inComputed
	c.inComputed = true
	defer func() { c.inComputed = old }()
	fn()
}

// inComputedScope reports whether a memoized computation is running on the
// calling goroutine.
func inComputedScope() bool {
	return currentTracking().inComputed
}
