// Package rippletest provides testing helpers for reactive code.
//
// The central helper is Isolated, which hands the test a fresh realm so that
// watcher tables, the causal graph and options never leak between tests:
//
//	func TestCounter(t *testing.T) {
//	    rt := rippletest.Isolated(t)
//	    state := rt.WrapRecord(map[string]any{"count": 0})
//	    runs := rt.CountRuns(func(ripple.Access) { _ = state.Get("count") })
//	    state.Set("count", 1)
//	    runs.Expect(t, 2)
//	}
package rippletest

import (
	"testing"

	"github.com/ripplekit/ripple/pkg/ripple"
)

// RT wraps an isolated realm with test conveniences.
type RT struct {
	// Realm is the isolated realm under test.
	Realm *ripple.Realm

	t       *testing.T
	handles []*ripple.Handle
}

// Isolated returns a fresh realm-backed fixture. Effects created through it
// are stopped at test cleanup.
func Isolated(t *testing.T) *RT {
	t.Helper()
	rt := &RT{Realm: ripple.NewRealm(), t: t}
	t.Cleanup(rt.StopAll)
	return rt
}

// WithOptions configures the realm and returns the fixture for chaining.
func (rt *RT) WithOptions(o ripple.Options) *RT {
	rt.Realm.Configure(o)
	return rt
}

// WrapRecord wraps a map as a Record in the fixture realm.
func (rt *RT) WrapRecord(m map[string]any) *ripple.Record {
	return rt.Realm.Wrap(m).(*ripple.Record)
}

// WrapSequence copies items into a fresh slice and wraps it.
func (rt *RT) WrapSequence(items ...any) *ripple.Sequence {
	sl := make([]any, len(items))
	copy(sl, items)
	return rt.Realm.Wrap(&sl).(*ripple.Sequence)
}

// Effect creates an effect in the fixture realm, registered for cleanup.
func (rt *RT) Effect(body ripple.Body, opts ...ripple.EffectOption) *ripple.Handle {
	h := rt.Realm.NewEffect(body, opts...)
	rt.handles = append(rt.handles, h)
	return h
}

// StopAll stops every effect created through the fixture.
func (rt *RT) StopAll() {
	for _, h := range rt.handles {
		h.Stop()
	}
	rt.handles = nil
}

// Runs counts executions of an effect body.
type Runs struct {
	n      int
	handle *ripple.Handle
}

// CountRuns creates an effect around body and counts its runs. The initial
// run counts, so the count is 1 when CountRuns returns.
func (rt *RT) CountRuns(body func(at ripple.Access)) *Runs {
	runs := &Runs{}
	runs.handle = rt.Effect(func(at ripple.Access) ripple.Cleanup {
		runs.n++
		body(at)
		return nil
	})
	return runs
}

// Count returns the number of runs so far.
func (r *Runs) Count() int { return r.n }

// Handle returns the effect's stop handle.
func (r *Runs) Handle() *ripple.Handle { return r.handle }

// Expect fails the test unless the effect ran exactly want times.
func (r *Runs) Expect(t *testing.T, want int) {
	t.Helper()
	if r.n != want {
		t.Errorf("expected %d run(s), got %d", want, r.n)
	}
}
