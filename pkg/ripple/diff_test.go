package ripple

import (
	"reflect"
	"testing"
)

func TestDiffSequencesRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		old  []any
		new  []any
	}{
		{"empty to empty", nil, nil},
		{"append", []any{1, 2}, []any{1, 2, 3}},
		{"prepend", []any{2, 3}, []any{1, 2, 3}},
		{"delete middle", []any{1, 2, 3}, []any{1, 3}},
		{"replace", []any{1, 2, 3}, []any{1, 9, 3}},
		{"rotate", []any{"a", "b", "c"}, []any{"b", "c", "a"}},
		{"clear", []any{1, 2, 3}, nil},
		{"from empty", nil, []any{1, 2, 3}},
		{"disjoint", []any{1, 2, 3}, []any{4, 5, 6, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := diffSequences(tc.old, tc.new, 0)
			got := applySeqEdits(tc.old, script)
			if len(got) == 0 && len(tc.new) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.new) {
				t.Errorf("applying the script to old must reconstruct new\nold=%v script=%+v got=%v want=%v",
					tc.old, script, got, tc.new)
			}
		})
	}
}

func TestDiffSequencesMinimalForSmallEdits(t *testing.T) {
	old := []any{1, 2, 3, 4, 5}
	next := []any{1, 2, 9, 4, 5}
	script := diffSequences(old, next, 0)
	dels, ins := 0, 0
	for _, e := range script {
		dels += e.Del
		ins += len(e.Ins)
	}
	if dels != 1 || ins != 1 {
		t.Errorf("single replacement should cost one delete and one insert: %+v", script)
	}
}

func TestDiffSequencesBailOut(t *testing.T) {
	old := make([]any, 40)
	next := make([]any, 40)
	for i := range old {
		old[i] = i
		next[i] = i + 1000
	}
	script := diffSequences(old, next, 8)
	if len(script) != 1 || script[0].Del != len(old) || len(script[0].Ins) != len(next) {
		t.Fatalf("past the cap the script degenerates to one replacement: %+v", script)
	}
	if got := applySeqEdits(old, script); !reflect.DeepEqual(got, next) {
		t.Errorf("the replacement patch still reconstructs new")
	}
}
