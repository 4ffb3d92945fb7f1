package ripple

import "reflect"

// SeqEdit is one step of a sequence edit script, applied left to right:
// keep Keep elements, delete Del elements, insert Ins. Scripts produced by
// diffSequences transform the old sequence into the new one exactly.
type SeqEdit struct {
	Keep int
	Del  int
	Ins  []any
}

// diffEqual is the element comparison used by the differ: identity first,
// deep equality as the fallback for value-shaped elements.
func diffEqual(a, b any) bool {
	if identical(a, b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// diffSequences computes a minimal edit script between a and b (Myers).
// When the edit distance exceeds maxEdits the search bails out and the
// script degenerates to a single whole-sequence replacement.
func diffSequences(a, b []any, maxEdits int) []SeqEdit {
	n, m := len(a), len(b)
	total := n + m
	if total == 0 {
		return nil
	}
	if maxEdits <= 0 || maxEdits > total {
		maxEdits = total
	}

	// Greedy forward Myers with a trace for backtracking.
	offset := maxEdits
	v := make([]int, 2*maxEdits+2)
	var trace [][]int

	found := false
	var dFound int
	for d := 0; d <= maxEdits && !found; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && diffEqual(a[x], b[y]) {
				x, y = x+1, y+1
			}
			v[offset+k] = x
			if x >= n && y >= m {
				found = true
				dFound = d
				break
			}
		}
	}
	if !found {
		// Bail out: one replacement patch.
		return []SeqEdit{{Del: n, Ins: append([]any(nil), b...)}}
	}

	// Backtrack into per-element ops, then coalesce.
	type op struct {
		kind byte // '=', '-', '+'
		item any
	}
	var ops []op
	x, y := n, m
	for d := dFound; d > 0; d-- {
		vPrev := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && vPrev[offset+k-1] < vPrev[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vPrev[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			x, y = x-1, y-1
			ops = append(ops, op{kind: '='})
		}
		if prevK == k+1 {
			y--
			ops = append(ops, op{kind: '+', item: b[y]})
		} else {
			x--
			ops = append(ops, op{kind: '-'})
		}
	}
	for x > 0 && y > 0 {
		x, y = x-1, y-1
		ops = append(ops, op{kind: '='})
	}

	var script []SeqEdit
	cur := SeqEdit{}
	flush := func() {
		if cur.Keep > 0 || cur.Del > 0 || len(cur.Ins) > 0 {
			script = append(script, cur)
			cur = SeqEdit{}
		}
	}
	for i := len(ops) - 1; i >= 0; i-- {
		switch ops[i].kind {
		case '=':
			if cur.Del > 0 || len(cur.Ins) > 0 {
				flush()
			}
			cur.Keep++
		case '-':
			if cur.Keep > 0 && (cur.Del > 0 || len(cur.Ins) > 0) {
				flush()
			}
			cur.Del++
		case '+':
			if cur.Keep > 0 && (cur.Del > 0 || len(cur.Ins) > 0) {
				flush()
			}
			cur.Ins = append(cur.Ins, ops[i].item)
		}
	}
	flush()
	return script
}

// applySeqEdits applies a script to old, returning the reconstructed
// sequence. Used by tests to check the diff round-trip and by Lift's
// documentation of the patch contract.
func applySeqEdits(old []any, script []SeqEdit) []any {
	var out []any
	pos := 0
	for _, e := range script {
		out = append(out, old[pos:pos+e.Keep]...)
		pos += e.Keep + e.Del
		out = append(out, e.Ins...)
	}
	out = append(out, old[pos:]...)
	return out
}
