package rippletest

import (
	"testing"

	"github.com/ripplekit/ripple/pkg/ripple"
)

func TestIsolatedRealmsDoNotLeak(t *testing.T) {
	rt1 := Isolated(t)
	rt2 := Isolated(t)

	state1 := rt1.WrapRecord(map[string]any{"n": 0})
	state2 := rt2.WrapRecord(map[string]any{"n": 0})

	runs1 := rt1.CountRuns(func(ripple.Access) { _ = state1.Get("n") })
	runs2 := rt2.CountRuns(func(ripple.Access) { _ = state2.Get("n") })

	state1.Set("n", 1)
	runs1.Expect(t, 2)
	runs2.Expect(t, 1)
}

func TestStopAll(t *testing.T) {
	rt := Isolated(t)
	state := rt.WrapRecord(map[string]any{"n": 0})
	runs := rt.CountRuns(func(ripple.Access) { _ = state.Get("n") })

	rt.StopAll()
	state.Set("n", 5)
	runs.Expect(t, 1)
	if !runs.Handle().Stopped() {
		t.Error("StopAll should stop fixture effects")
	}
}

func TestWrapSequence(t *testing.T) {
	rt := Isolated(t)
	seq := rt.WrapSequence(1, 2, 3)
	if seq.Len() != 3 {
		t.Errorf("len=%d", seq.Len())
	}
}
