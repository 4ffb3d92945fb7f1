package ripple

import (
	"reflect"
	"testing"
)

func TestScanComputesRunningAccumulation(t *testing.T) {
	r := NewRealm()
	a := map[string]any{"v": 1}
	b := map[string]any{"v": 2}
	c := map[string]any{"v": 3}
	src := newSeq(r, a, b, c)

	out, stop := Scan(src, func(acc, item any) any {
		return acc.(int) + item.(*Record).Get("v").(int)
	}, 0)
	defer stop()

	if got := out.Values(); !reflect.DeepEqual(got, []any{1, 3, 6}) {
		t.Fatalf("initial scan: %v", got)
	}
}

func TestScanReusesIntermediatesOnRotation(t *testing.T) {
	r := NewRealm()
	a := map[string]any{"v": 1}
	b := map[string]any{"v": 2}
	c := map[string]any{"v": 3}
	src := newSeq(r, a, b, c)

	stepCalls := 0
	out, stop := Scan(src, func(acc, item any) any {
		stepCalls++
		return acc.(int) + item.(*Record).Get("v").(int)
	}, 0)
	defer stop()

	if got := out.Values(); !reflect.DeepEqual(got, []any{1, 3, 6}) {
		t.Fatalf("initial scan: %v", got)
	}
	if stepCalls != 3 {
		t.Fatalf("initial stepCalls=%d", stepCalls)
	}

	// Move b to the end: a, c, b. Only the positions from the move point
	// onward recompute — one invocation for c (now after a), one for b (now
	// after c). a's accumulation is reused.
	r.Atomic(func() {
		moved := src.Splice(1, 1)
		src.Push(moved...)
	})

	if got := out.Values(); !reflect.DeepEqual(got, []any{1, 4, 6}) {
		t.Errorf("after rotation: %v", got)
	}
	if stepCalls != 5 {
		t.Errorf("rotation should cost exactly two step invocations; total=%d", stepCalls)
	}
}

func TestScanItemValueChangeInvalidatesSuffix(t *testing.T) {
	r := NewRealm()
	a := map[string]any{"v": 1}
	b := map[string]any{"v": 2}
	c := map[string]any{"v": 3}
	src := newSeq(r, a, b, c)

	stepCalls := 0
	out, stop := Scan(src, func(acc, item any) any {
		stepCalls++
		return acc.(int) + item.(*Record).Get("v").(int)
	}, 0)
	defer stop()
	stepCalls = 0

	r.Wrap(b).(*Record).Set("v", 20)
	if got := out.Values(); !reflect.DeepEqual(got, []any{1, 21, 24}) {
		t.Errorf("after item change: %v", got)
	}
	if stepCalls != 2 {
		t.Errorf("only b and its suffix recompute; calls=%d", stepCalls)
	}
}

func TestScanAppendOnlyComputesNewTail(t *testing.T) {
	r := NewRealm()
	a := map[string]any{"v": 1}
	b := map[string]any{"v": 2}
	src := newSeq(r, a, b)

	stepCalls := 0
	out, stop := Scan(src, func(acc, item any) any {
		stepCalls++
		return acc.(int) + item.(*Record).Get("v").(int)
	}, 0)
	defer stop()
	stepCalls = 0

	src.Push(map[string]any{"v": 10})
	if got := out.Values(); !reflect.DeepEqual(got, []any{1, 3, 13}) {
		t.Errorf("after append: %v", got)
	}
	if stepCalls != 1 {
		t.Errorf("appending computes only the new position; calls=%d", stepCalls)
	}
}

func TestScanSupportsDuplicateItems(t *testing.T) {
	r := NewRealm()
	x := map[string]any{"v": 2}
	src := newSeq(r, x, x, x)

	out, stop := Scan(src, func(acc, item any) any {
		return acc.(int) + item.(*Record).Get("v").(int)
	}, 0)
	defer stop()

	if got := out.Values(); !reflect.DeepEqual(got, []any{2, 4, 6}) {
		t.Errorf("duplicates get one intermediate per occurrence: %v", got)
	}
}

func TestScanRejectsNonWeakKeyableItems(t *testing.T) {
	r := NewRealm()
	src := newSeq(r, 1, 2)
	err := catchPanicErr(func() {
		_, stop := Scan(src, func(acc, item any) any { return acc }, 0)
		stop()
	})
	if err == nil {
		t.Error("primitive scan items should be rejected")
	}
}
