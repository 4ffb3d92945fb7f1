package ripple

// liftMaxEdits caps the Myers search in Lift: past this edit distance the
// diff degenerates to one whole-sequence replacement, which costs less than
// a long patch script would.
const liftMaxEdits = 64

// Lift maintains a reactive collection equal to producer's output. The
// producer runs in an effect; each re-run is diffed against the previous
// output and only the differences are applied — a Myers edit script for
// sequences (bailing out to a single replacement once the edit distance
// exceeds a cap), a keyed diff for records.
//
// producer must return []any (lifted to a *Sequence) or map[string]any
// (lifted to a *Record) and must not change shape across runs.
func Lift(producer func() any) (Reactive, func()) {
	return DefaultRealm().Lift(producer)
}

// Lift is the realm-bound variant. See the package-level Lift.
func (r *Realm) Lift(producer func() any) (Reactive, func()) {
	var outSeq *Sequence
	var outRec *Record
	var prevSeq []any
	var prevRec map[string]any

	h := r.NewEffect(func(at Access) Cleanup {
		next := producer()
		switch nv := next.(type) {
		case []any:
			if outRec != nil {
				panic(newError(KindTracking, "lift producer changed shape: record, then sequence"))
			}
			if outSeq == nil {
				outSeq = r.newDerivedSequence()
				Untracked(func() { outSeq.Push(nv...) })
			} else {
				applyScript(outSeq, diffSequences(prevSeq, nv, liftMaxEdits))
			}
			prevSeq = append([]any(nil), nv...)
		case map[string]any:
			if outSeq != nil {
				panic(newError(KindTracking, "lift producer changed shape: sequence, then record"))
			}
			if outRec == nil {
				outRec = r.Wrap(map[string]any{}).(*Record)
			}
			Untracked(func() { applyRecordDiff(outRec, prevRec, nv) })
			prevRec = cloneRecord(nv)
		default:
			panic(newError(KindTracking, "lift producer returned %T; want []any or map[string]any", next))
		}
		return nil
	}, WithName("lift"))

	if outSeq != nil {
		return outSeq, h.Stop
	}
	return outRec, h.Stop
}

// applyScript applies a sequence edit script through the minimal Splice
// calls.
func applyScript(out *Sequence, script []SeqEdit) {
	Untracked(func() {
		pos := 0
		for _, e := range script {
			pos += e.Keep
			if e.Del > 0 || len(e.Ins) > 0 {
				out.Splice(pos, e.Del, e.Ins...)
				pos += len(e.Ins)
			}
		}
	})
}

// applyRecordDiff applies the keyed diff between prev and next to out.
func applyRecordDiff(out *Record, prev, next map[string]any) {
	for k, v := range next {
		out.Set(k, v)
	}
	for k := range prev {
		if _, keep := next[k]; !keep {
			out.Delete(k)
		}
	}
}

func cloneRecord(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
