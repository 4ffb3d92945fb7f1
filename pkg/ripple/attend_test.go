package ripple

import (
	"sort"
	"testing"
)

func TestAttendRunsBodyPerKey(t *testing.T) {
	r := NewRealm()
	src := r.Wrap(map[string]any{"a": 1, "b": 2}).(*Record)

	var keys []string
	stop := r.Attend(src, func(key any) {
		keys = append(keys, key.(string))
	})
	defer stop()

	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys=%v", keys)
	}

	keys = nil
	src.Set("c", 3)
	if len(keys) != 1 || keys[0] != "c" {
		t.Errorf("only the new key should run; keys=%v", keys)
	}
}

func TestAttendDisposesDisappearedKeys(t *testing.T) {
	r := NewRealm()
	src := r.Wrap(map[string]any{"a": 1, "b": 2}).(*Record)

	// Disposal is observable through cleanups of effects the bodies create.
	cleanups := map[string]int{}
	stop := r.Attend(src, func(key any) {
		k := key.(string)
		r.NewEffect(func(Access) Cleanup {
			return func(Reason) { cleanups[k]++ }
		})
	})
	defer stop()

	src.Delete("a")
	if cleanups["a"] != 1 {
		t.Errorf("a's effect should be disposed when the key disappears: %v", cleanups)
	}
	if cleanups["b"] != 0 {
		t.Errorf("b must survive a's removal: %v", cleanups)
	}
}

func TestAttendSequenceKeysAreIndices(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, "x", "y")

	var keys []int
	stop := r.Attend(src, func(key any) {
		keys = append(keys, key.(int))
	})
	defer stop()

	if len(keys) != 2 {
		t.Fatalf("keys=%v", keys)
	}
	keys = nil
	src.Push("z")
	if len(keys) != 1 || keys[0] != 2 {
		t.Errorf("growth attends the new index; keys=%v", keys)
	}
}

func TestAttendSet(t *testing.T) {
	r := NewRealm()
	src := r.Wrap(map[string]struct{}{"m": {}}).(*UnkeyedSet)

	seen := map[any]int{}
	stop := r.Attend(src, func(key any) { seen[key]++ })
	defer stop()

	src.Add("n")
	if seen["m"] != 1 || seen["n"] != 1 {
		t.Errorf("seen=%v", seen)
	}
}

func TestAttendEnumeratorCallback(t *testing.T) {
	r := NewRealm()
	state := r.Wrap(map[string]any{"n": 1}).(*Record)

	var keys []any
	stop := r.Attend(func(yield func(key any)) {
		for i := 0; i < state.Get("n").(int); i++ {
			yield(i)
		}
	}, func(key any) { keys = append(keys, key) })
	defer stop()

	if len(keys) != 1 {
		t.Fatalf("keys=%v", keys)
	}
	state.Set("n", 3)
	if len(keys) != 3 {
		t.Errorf("the enumerator is reactive through its own reads; keys=%v", keys)
	}
}

func TestAttendStopDisposesEverything(t *testing.T) {
	r := NewRealm()
	src := r.Wrap(map[string]any{"a": 1}).(*Record)

	bodyRuns := 0
	stop := r.Attend(src, func(key any) { bodyRuns++ })
	stop()

	src.Set("b", 2)
	if bodyRuns != 1 {
		t.Errorf("stopped attend must not react; runs=%d", bodyRuns)
	}
}
