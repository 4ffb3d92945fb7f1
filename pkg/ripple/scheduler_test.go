package ripple

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCascadedUpdateOrdering covers the canonical a -> b -> c chain: a write
// to a must run the b-producer before the c-producer, every time.
func TestCascadedUpdateOrdering(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"a": 0, "b": 0, "c": 0}).(*Record)

	var order []string
	r.NewEffect(func(Access) Cleanup {
		order = append(order, "X")
		state.Set("b", state.Get("a").(int)+1)
		return nil
	}, WithName("X"))
	r.NewEffect(func(Access) Cleanup {
		order = append(order, "Y")
		state.Set("c", state.Get("b").(int)+1)
		return nil
	}, WithName("Y"))

	require.Equal(t, 1, state.Get("b"), "initial b")
	require.Equal(t, 2, state.Get("c"), "initial c")

	order = nil
	state.Set("a", 3)

	require.Equal(t, 4, state.Get("b"))
	require.Equal(t, 5, state.Get("c"))
	require.Equal(t, []string{"X", "Y"}, order, "X must run before Y")
}

// TestGhostCycleFreeChain creates the consumers out of order (D, B, C) and
// checks the causal graph still schedules B, C, D on a write to a.
func TestGhostCycleFreeChain(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"a": 0, "b": 0, "c": 0, "d": 0}).(*Record)

	var order []string
	r.NewEffect(func(Access) Cleanup {
		order = append(order, "D")
		state.Set("d", state.Get("c").(int)+1)
		return nil
	}, WithName("D"))
	r.NewEffect(func(Access) Cleanup {
		order = append(order, "B")
		state.Set("b", state.Get("a").(int)+1)
		return nil
	}, WithName("B"))
	r.NewEffect(func(Access) Cleanup {
		order = append(order, "C")
		state.Set("c", state.Get("b").(int)+1)
		return nil
	}, WithName("C"))

	order = nil
	state.Set("a", 5)

	require.Equal(t, 6, state.Get("b"))
	require.Equal(t, 7, state.Get("c"))
	require.Equal(t, 8, state.Get("d"))
	require.Equal(t, []string{"B", "C", "D"}, order)
}

// TestDirectCycleThrows covers the α/β mutual-trigger pair: under the
// default Throw policy the cycle is reported at β's first run.
func TestDirectCycleThrows(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"a": 0, "b": 0}).(*Record)

	r.NewEffect(func(Access) Cleanup {
		state.Set("b", state.Get("a").(int)+1)
		return nil
	}, WithName("alpha"))

	err := catchPanicErr(func() {
		r.NewEffect(func(Access) Cleanup {
			state.Set("a", state.Get("b").(int)+1)
			return nil
		}, WithName("beta"))
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCycleDetected)

	var structured *Error
	require.ErrorAs(t, err, &structured)
	require.Equal(t, KindCycle, structured.Kind)
}

func TestBrokenStateAndReset(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"a": 0, "b": 0}).(*Record)

	r.NewEffect(func(Access) Cleanup {
		state.Set("b", state.Get("a").(int)+1)
		return nil
	})
	_ = catchPanicErr(func() {
		r.NewEffect(func(Access) Cleanup {
			state.Set("a", state.Get("b").(int)+1)
			return nil
		})
	})

	// After a scheduling error, writes raise BrokenEffects...
	err := catchPanicErr(func() { state.Set("a", 1) })
	require.ErrorIs(t, err, ErrBrokenEffects)

	// ...until Reset clears the registries.
	r.Reset()
	require.NotPanics(t, func() { state.Set("a", 1) })
}

func TestCycleBreakPolicyMakesProgress(t *testing.T) {
	r := NewRealm()
	r.Configure(Options{CycleHandling: CycleBreak})
	state := r.Wrap(map[string]any{"a": 0, "b": 0}).(*Record)

	r.NewEffect(func(Access) Cleanup {
		state.Set("b", state.Get("a").(int)+1)
		return nil
	})
	require.NotPanics(t, func() {
		r.NewEffect(func(Access) Cleanup {
			state.Set("a", state.Get("b").(int)+1)
			return nil
		})
	})
	require.NotPanics(t, func() { state.Set("a", 100) })
}

func TestAtomicBatchesWrites(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"x": 0, "y": 0}).(*Record)

	runs := 0
	r.NewEffect(func(Access) Cleanup {
		runs++
		_ = state.Get("x")
		_ = state.Get("y")
		return nil
	})

	r.Atomic(func() {
		state.Set("x", 1)
		state.Set("y", 2)
	})
	if runs != 2 {
		t.Errorf("two writes in one batch should re-run the reader once; runs=%d", runs)
	}

	// Unbatched, the same two writes re-run it twice.
	state.Set("x", 10)
	state.Set("y", 20)
	if runs != 4 {
		t.Errorf("unbatched writes: runs=%d", runs)
	}
}

func TestEffectDoesNotRetriggerItself(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"n": 0}).(*Record)

	runs := 0
	r.NewEffect(func(Access) Cleanup {
		runs++
		// Reads n and writes it back incremented: without the active-effect
		// filter this would loop forever.
		state.Set("n", state.Get("n").(int)+1)
		return nil
	})
	state.Set("n", 10)
	if runs != 2 {
		t.Errorf("runs=%d, want 2", runs)
	}
	if got := state.Get("n"); got != 11 {
		t.Errorf("n=%v, want 11", got)
	}
}

func TestOnBatchEnd(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"n": 0}).(*Record)

	var trail []string
	r.NewEffect(func(Access) Cleanup {
		if state.Get("n").(int) > 0 {
			trail = append(trail, "effect")
			r.OnBatchEnd(func() { trail = append(trail, "after") })
		}
		return nil
	})

	state.Set("n", 1)
	require.Equal(t, []string{"effect", "after"}, trail)

	// Outside a batch the callback runs immediately.
	ran := false
	r.OnBatchEnd(func() { ran = true })
	require.True(t, ran)
}

func TestMaxEffectChainThrow(t *testing.T) {
	r := NewRealm()
	r.Configure(Options{MaxEffectChain: 8})

	// A 12-property propagation chain: a write to the first property executes
	// 11 effects in one batch, which exceeds the bound of 8.
	const depth = 12
	state := r.Wrap(map[string]any{}).(*Record)
	for i := 0; i < depth; i++ {
		state.Set(propName(i), 0)
	}
	for i := 0; i < depth-1; i++ {
		from, to := propName(i), propName(i+1)
		r.NewEffect(func(Access) Cleanup {
			state.Set(to, state.Get(from).(int)+1)
			return nil
		})
	}

	err := catchPanicErr(func() { state.Set(propName(0), 100) })
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestMaxEffectChainWarnStopsQuietly(t *testing.T) {
	r := NewRealm()
	r.Configure(Options{MaxEffectChain: 4, MaxEffectReaction: ChainWarn})

	const depth = 8
	state := r.Wrap(map[string]any{}).(*Record)
	for i := 0; i < depth; i++ {
		state.Set(propName(i), 0)
	}
	for i := 0; i < depth-1; i++ {
		from, to := propName(i), propName(i+1)
		r.NewEffect(func(Access) Cleanup {
			state.Set(to, state.Get(from).(int)+1)
			return nil
		})
	}

	require.NotPanics(t, func() { state.Set(propName(0), 100) })
}

func propName(i int) string {
	return "p" + string(rune('a'+i))
}

// catchPanicErr runs fn and converts a panic into an error.
func catchPanicErr(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = e
				return
			}
			err = errors.New("panic")
		}
	}()
	fn()
	return nil
}
