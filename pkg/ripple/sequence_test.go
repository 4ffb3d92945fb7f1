package ripple

import (
	"reflect"
	"testing"
)

func newSeq(r *Realm, items ...any) *Sequence {
	sl := make([]any, len(items))
	copy(sl, items)
	return r.Wrap(&sl).(*Sequence)
}

func TestSequenceIndexSubscription(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2, 3)

	runs := 0
	var seen any
	r.NewEffect(func(Access) Cleanup {
		runs++
		seen = s.Get(1)
		return nil
	})

	s.Set(0, 10)
	if runs != 1 {
		t.Errorf("write to unread index re-ran reader; runs=%d", runs)
	}
	s.Set(1, 20)
	if runs != 2 || seen != 20 {
		t.Errorf("write to read index: runs=%d seen=%v", runs, seen)
	}
}

func TestSequenceOutOfRangeReadSubscribesLength(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1)

	runs := 0
	var seen any
	r.NewEffect(func(Access) Cleanup {
		runs++
		seen = s.Get(3)
		return nil
	})
	if seen != nil {
		t.Fatalf("out-of-range read should be nil, got %v", seen)
	}

	// Assigning at that index sets the value and triggers the length
	// subscriber.
	s.Set(3, 42)
	if runs != 2 || seen != 42 {
		t.Errorf("growth should re-run the reader: runs=%d seen=%v", runs, seen)
	}
}

func TestSequenceShortCircuitEvery(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2, 3, 4)

	runs := 0
	r.NewEffect(func(Access) Cleanup {
		runs++
		_ = s.Every(func(v any) bool { return v.(int) < 2 })
		return nil
	})
	if runs != 1 {
		t.Fatalf("initial runs=%d", runs)
	}

	// The scan answered at index 1; index 3 was never visited.
	s.Set(3, 40)
	if runs != 1 {
		t.Errorf("write beyond the scanned window re-ran the effect; runs=%d", runs)
	}
	s.Set(1, 0)
	if runs != 2 {
		t.Errorf("write inside the scanned window should re-run; runs=%d", runs)
	}
}

func TestSequenceExhaustedScanSubscribesLength(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2)

	runs := 0
	var found bool
	r.NewEffect(func(Access) Cleanup {
		runs++
		found = s.Some(func(v any) bool { return v.(int) > 10 })
		return nil
	})
	if found {
		t.Fatal("nothing should match yet")
	}

	// The scan ran to the end without answering, so growth re-runs it.
	s.Push(11)
	if runs != 2 || !found {
		t.Errorf("append should re-run an exhausted scan: runs=%d found=%v", runs, found)
	}
}

func TestSequenceSpliceWindow(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2, 3, 4, 5)

	early, late := 0, 0
	r.NewEffect(func(Access) Cleanup {
		early++
		_ = s.Get(0)
		return nil
	})
	r.NewEffect(func(Access) Cleanup {
		late++
		_ = s.Get(3)
		return nil
	})

	removed := s.Splice(2, 1) // drop the 3; indices >= 2 shift
	if len(removed) != 1 || removed[0] != 3 {
		t.Fatalf("removed=%v", removed)
	}
	if early != 1 {
		t.Errorf("index before the splice window re-ran; runs=%d", early)
	}
	if late != 2 {
		t.Errorf("index inside the window should re-run; runs=%d", late)
	}
	if got := s.Values(); !reflect.DeepEqual(got, []any{1, 2, 4, 5}) {
		t.Errorf("values=%v", got)
	}
}

func TestSequenceFillWindow(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2, 3, 4)

	outside, inside := 0, 0
	r.NewEffect(func(Access) Cleanup {
		outside++
		_ = s.Get(0)
		return nil
	})
	r.NewEffect(func(Access) Cleanup {
		inside++
		_ = s.Get(2)
		return nil
	})

	s.Fill(9, 1, 3)
	if outside != 1 {
		t.Errorf("fill touched an index outside [start,end); runs=%d", outside)
	}
	if inside != 2 {
		t.Errorf("fill should touch indices inside the window; runs=%d", inside)
	}
	if got := s.Values(); !reflect.DeepEqual(got, []any{1, 9, 9, 4}) {
		t.Errorf("values=%v", got)
	}
}

func TestSequenceCopyWithinTouchesOverwrittenOnly(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1, 2, 3, 4, 5)

	src, dst := 0, 0
	r.NewEffect(func(Access) Cleanup {
		src++
		_ = s.Get(3)
		return nil
	})
	r.NewEffect(func(Access) Cleanup {
		dst++
		_ = s.Get(0)
		return nil
	})

	s.CopyWithin(0, 3, 5) // overwrites indices 0 and 1
	if src != 1 {
		t.Errorf("source indices are reads, not writes; runs=%d", src)
	}
	if dst != 2 {
		t.Errorf("overwritten index should re-run its reader; runs=%d", dst)
	}
	if got := s.Values(); !reflect.DeepEqual(got, []any{4, 5, 3, 4, 5}) {
		t.Errorf("values=%v", got)
	}
}

func TestSequencePushPopLength(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 1)

	lengths := []int{}
	r.NewEffect(func(Access) Cleanup {
		lengths = append(lengths, s.Len())
		return nil
	})

	s.Push(2, 3)
	s.Pop()
	if !reflect.DeepEqual(lengths, []int{1, 3, 2}) {
		t.Errorf("length observations: %v", lengths)
	}
}

func TestSequenceSortTouchesAll(t *testing.T) {
	r := NewRealm()
	s := newSeq(r, 3, 1, 2)
	runs := 0
	r.NewEffect(func(Access) Cleanup {
		runs++
		_ = s.Get(2)
		return nil
	})
	s.Sort(func(a, b any) bool { return a.(int) < b.(int) })
	if got := s.Values(); !reflect.DeepEqual(got, []any{1, 2, 3}) {
		t.Errorf("sorted=%v", got)
	}
	if runs != 2 {
		t.Errorf("sort should touch every index; runs=%d", runs)
	}
}

func TestSequenceTypedSliceViaReflection(t *testing.T) {
	r := NewRealm()
	ints := []int{1, 2, 3}
	s := r.Wrap(&ints).(*Sequence)
	if got := s.Get(1); got != 2 {
		t.Fatalf("typed read: %v", got)
	}
	s.Set(1, 9)
	if ints[1] != 9 {
		t.Errorf("typed write should hit the raw slice: %v", ints)
	}
	s.Push(4)
	if len(ints) != 4 || ints[3] != 4 {
		t.Errorf("typed push: %v", ints)
	}
}
