package ripple

import "testing"

func TestKeyedMapEntrySubscription(t *testing.T) {
	r := NewRealm()
	m := r.Wrap(map[any]any{"x": 1, "y": 2}).(*KeyedMap)

	runs := 0
	var seen any
	r.NewEffect(func(Access) Cleanup {
		runs++
		seen, _ = m.Get("x")
		return nil
	})

	m.Set("y", 20)
	if runs != 1 {
		t.Errorf("write to another entry re-ran the reader; runs=%d", runs)
	}
	m.Set("x", 10)
	if runs != 2 || seen != 10 {
		t.Errorf("entry write: runs=%d seen=%v", runs, seen)
	}
	m.Set("x", 10)
	if runs != 2 {
		t.Errorf("identical write should be a no-op; runs=%d", runs)
	}
}

func TestKeyedMapStructuralReads(t *testing.T) {
	r := NewRealm()
	m := r.Wrap(map[any]any{"x": 1}).(*KeyedMap)

	hasRuns := 0
	r.NewEffect(func(Access) Cleanup {
		hasRuns++
		_ = m.Has("z")
		return nil
	})

	m.Set("x", 2)
	if hasRuns != 1 {
		t.Errorf("value update is not structural; runs=%d", hasRuns)
	}
	m.Set("z", 3)
	if hasRuns != 2 {
		t.Errorf("key add should trigger structural readers; runs=%d", hasRuns)
	}
	m.Delete("z")
	if hasRuns != 3 {
		t.Errorf("key delete should trigger structural readers; runs=%d", hasRuns)
	}
}

func TestKeyedMapTypedBacking(t *testing.T) {
	r := NewRealm()
	raw := map[int]string{1: "one"}
	m := r.Wrap(raw).(*KeyedMap)

	if v, ok := m.Get(1); !ok || v != "one" {
		t.Fatalf("typed read: %v %v", v, ok)
	}
	m.Set(2, "two")
	if raw[2] != "two" {
		t.Errorf("typed write should hit the raw map: %v", raw)
	}
}

func TestUnkeyedSetMembership(t *testing.T) {
	r := NewRealm()
	s := r.Wrap(map[string]struct{}{"a": {}}).(*UnkeyedSet)

	runs := 0
	var has bool
	r.NewEffect(func(Access) Cleanup {
		runs++
		has = s.Has("b")
		return nil
	})
	if has {
		t.Fatal("b should be absent")
	}

	s.Add("b")
	if runs != 2 || !has {
		t.Errorf("membership readers re-run on add: runs=%d has=%v", runs, has)
	}

	s.Add("b")
	if runs != 2 {
		t.Errorf("adding a present member is a no-op; runs=%d", runs)
	}

	s.Delete("b")
	if runs != 3 || has {
		t.Errorf("membership readers re-run on delete: runs=%d has=%v", runs, has)
	}
}

func TestUnkeyedSetClear(t *testing.T) {
	r := NewRealm()
	s := r.Wrap(map[int]struct{}{1: {}, 2: {}}).(*UnkeyedSet)

	sizes := []int{}
	r.NewEffect(func(Access) Cleanup {
		sizes = append(sizes, s.Len())
		return nil
	})

	s.Clear()
	if len(sizes) != 2 || sizes[1] != 0 {
		t.Errorf("clear should notify once with the emptied set: %v", sizes)
	}
}
