package ripple

import "testing"

func TestMorphMaterializesLazily(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, 1, 2, 3)

	mapCalls := 0
	out, stop := Morph(src, func(v any) any {
		mapCalls++
		return v.(int) * 2
	})
	defer stop()

	if mapCalls != 0 {
		t.Fatalf("nothing should materialize before a read; calls=%d", mapCalls)
	}
	if got := out.Get(1); got != 4 {
		t.Fatalf("out[1]=%v", got)
	}
	if mapCalls != 1 {
		t.Errorf("only the read index materializes; calls=%d", mapCalls)
	}
}

func TestMorphTracksSourceChanges(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, 1, 2, 3)

	mapCalls := 0
	out, stop := Morph(src, func(v any) any {
		mapCalls++
		return v.(int) * 2
	})
	defer stop()

	_ = out.Get(0)
	_ = out.Get(2)
	mapCalls = 0

	src.Set(2, 30)
	if got := out.Get(2); got != 60 {
		t.Errorf("out[2]=%v", got)
	}
	if mapCalls != 1 {
		t.Errorf("only the affected index recomputes; calls=%d", mapCalls)
	}

	// An unmaterialized index stays lazy through source writes.
	src.Set(1, 20)
	if mapCalls != 1 {
		t.Errorf("unread indices must not compute; calls=%d", mapCalls)
	}
}

func TestMorphShrinkTrimsOutput(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, 1, 2, 3)

	out, stop := Morph(src, func(v any) any { return v.(int) * 2 })
	defer stop()

	_ = out.Get(0)
	_ = out.Get(1)
	_ = out.Get(2)

	src.Pop()
	if n := out.Len(); n != 2 {
		t.Errorf("output length should follow the source; len=%d", n)
	}
}

func TestMorphStop(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, 1)
	mapCalls := 0
	out, stop := Morph(src, func(v any) any { mapCalls++; return v })
	_ = out.Get(0)
	stop()
	mapCalls = 0

	src.Set(0, 9)
	if mapCalls != 0 {
		t.Errorf("stopped morph must not react; calls=%d", mapCalls)
	}
}
