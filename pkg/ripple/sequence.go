package ripple

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Sequence is the reactive facade of an indexed sequence: a pointer to a
// slice. Element reads subscribe the exact index; length reads (and
// out-of-range index reads) subscribe the length pseudo-property; bulk
// mutations emit a Bunch evolution plus per-index evolutions for the exact
// affected window where that window is cheaply determinable.
type Sequence struct {
	observable

	// sp is the pointer-to-slice value; elem is the slice element type.
	sp   reflect.Value
	elem reflect.Type

	// lazyFill, when set, materializes an index on first read. Used by Morph.
	lazyFill func(i int)
}

// wrapSequence wraps a pointer to a slice.
func (r *Realm) wrapSequence(x any, v reflect.Value) any {
	id := v.Pointer()
	if w := r.lookup(id); w != nil {
		return w
	}
	s := &Sequence{
		observable: r.newObservable(KindSequence, id),
		sp:         v,
		elem:       v.Type().Elem().Elem(),
	}
	s.self = s
	r.register(&s.observable)
	return s
}

// NewSequence creates a reactive sequence over a fresh []any, pre-filled
// with items. Convenience for building derived outputs and tests.
func NewSequence(items ...any) *Sequence {
	sl := make([]any, len(items))
	copy(sl, items)
	return DefaultRealm().Wrap(&sl).(*Sequence)
}

// Raw returns the pointer to the underlying slice.
func (s *Sequence) Raw() any { return s.sp.Interface() }

// slice returns the current slice value.
func (s *Sequence) slice() reflect.Value { return s.sp.Elem() }

// rawLen is the untracked length.
func (s *Sequence) rawLen() int { return s.slice().Len() }

// rawGet is the untracked element read.
func (s *Sequence) rawGet(i int) any { return s.slice().Index(i).Interface() }

// rawSet stores v at i, converting to the element type.
func (s *Sequence) rawSet(i int, v any) {
	s.slice().Index(i).Set(s.conv(v))
}

func (s *Sequence) conv(v any) reflect.Value {
	if v == nil {
		return reflect.Zero(s.elem)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != s.elem && rv.Type().ConvertibleTo(s.elem) {
		rv = rv.Convert(s.elem)
	}
	return rv
}

// setSlice replaces the whole backing slice.
func (s *Sequence) setSlice(v reflect.Value) { s.sp.Elem().Set(v) }

// Len returns the length, subscribing the length pseudo-property.
func (s *Sequence) Len() int {
	s.realm.registerDep(&s.observable, LengthProp)
	return s.rawLen()
}

// Get returns the element at i, subscribing that index. Reading at or past
// the current length subscribes length instead, so the reader re-runs when
// the sequence grows.
func (s *Sequence) Get(i int) any {
	if s.lazyFill != nil {
		s.lazyFill(i)
	}
	if i < 0 {
		return nil
	}
	if i >= s.rawLen() {
		s.realm.registerDep(&s.observable, LengthProp)
		return nil
	}
	s.realm.registerDep(&s.observable, Index(i))
	return s.realm.wrapValue(s.rawGet(i))
}

// Set assigns the element at i. Identical assignments are no-ops. Assigning
// at or past the length extends the sequence (padding with zero values) and
// notifies length subscribers along with the new index.
func (s *Sequence) Set(i int, v any) {
	if i < 0 {
		return
	}
	r := s.realm
	v = Unwrap(v)
	n := s.rawLen()
	if i < n {
		old := s.rawGet(i)
		if identical(old, v) {
			return
		}
		if r.touchInstead(old, v) {
			r.touchEmitParent(&s.observable, Index(i))
			return
		}
		s.rawSet(i, v)
		r.emit(&s.observable, Set(Index(i)))
		return
	}
	grown := s.slice()
	for j := n; j <= i; j++ {
		grown = reflect.Append(grown, reflect.Zero(s.elem))
	}
	grown.Index(i).Set(s.conv(v))
	s.setSlice(grown)
	r.emit(&s.observable, Add(Index(i)), Set(LengthProp))
}

// Push appends items. Emits the new indices and the length change.
func (s *Sequence) Push(items ...any) {
	if len(items) == 0 {
		return
	}
	n := s.rawLen()
	sl := s.slice()
	evos := []Evolution{Bunch("push")}
	for j, it := range items {
		sl = reflect.Append(sl, s.conv(Unwrap(it)))
		evos = append(evos, Add(Index(n+j)))
	}
	s.setSlice(sl)
	evos = append(evos, Set(LengthProp))
	s.realm.emit(&s.observable, evos...)
}

// Pop removes and returns the last element, or nil on an empty sequence.
func (s *Sequence) Pop() any {
	n := s.rawLen()
	if n == 0 {
		return nil
	}
	out := s.rawGet(n - 1)
	s.setSlice(s.slice().Slice(0, n-1))
	s.realm.emit(&s.observable, Bunch("pop"), Del(Index(n-1)), Set(LengthProp))
	return out
}

// Shift removes and returns the first element. Every surviving index moves,
// so all of them are touched.
func (s *Sequence) Shift() any {
	n := s.rawLen()
	if n == 0 {
		return nil
	}
	out := s.rawGet(0)
	s.setSlice(s.slice().Slice(1, n))
	evos := []Evolution{Bunch("shift")}
	for i := 0; i < n-1; i++ {
		evos = append(evos, Set(Index(i)))
	}
	evos = append(evos, Del(Index(n-1)), Set(LengthProp))
	s.realm.emit(&s.observable, evos...)
	return out
}

// Unshift prepends items.
func (s *Sequence) Unshift(items ...any) {
	if len(items) == 0 {
		return
	}
	s.Splice(0, 0, items...)
}

// Splice removes deleteCount elements at start and inserts items in their
// place, returning the removed elements. Only the affected window — start
// through the end of the longer of the two shapes — is touched.
func (s *Sequence) Splice(start, deleteCount int, items ...any) []any {
	n := s.rawLen()
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > n {
		deleteCount = n - start
	}
	removed := make([]any, deleteCount)
	for i := 0; i < deleteCount; i++ {
		removed[i] = s.rawGet(start + i)
	}

	out := reflect.MakeSlice(s.sp.Type().Elem(), 0, n-deleteCount+len(items))
	out = reflect.AppendSlice(out, s.slice().Slice(0, start))
	for _, it := range items {
		out = reflect.Append(out, s.conv(Unwrap(it)))
	}
	out = reflect.AppendSlice(out, s.slice().Slice(start+deleteCount, n))
	s.setSlice(out)

	newLen := out.Len()
	evos := []Evolution{Bunch("splice")}
	hi := max(n, newLen)
	for i := start; i < hi; i++ {
		switch {
		case i < n && i < newLen:
			evos = append(evos, Set(Index(i)))
		case i < newLen:
			evos = append(evos, Add(Index(i)))
		default:
			evos = append(evos, Del(Index(i)))
		}
	}
	if newLen != n {
		evos = append(evos, Set(LengthProp))
	}
	s.realm.emit(&s.observable, evos...)
	return removed
}

// Sort sorts the sequence by less. All indices are touched.
func (s *Sequence) Sort(less func(a, b any) bool) {
	n := s.rawLen()
	tmp := make([]any, n)
	for i := range tmp {
		tmp[i] = s.rawGet(i)
	}
	sort.SliceStable(tmp, func(i, j int) bool { return less(tmp[i], tmp[j]) })
	for i, v := range tmp {
		s.slice().Index(i).Set(s.conv(v))
	}
	evos := []Evolution{Bunch("sort")}
	for i := 0; i < n; i++ {
		evos = append(evos, Set(Index(i)))
	}
	s.realm.emit(&s.observable, evos...)
}

// Reverse reverses the sequence in place.
func (s *Sequence) Reverse() {
	n := s.rawLen()
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		a, b := s.rawGet(i), s.rawGet(j)
		s.rawSet(i, b)
		s.rawSet(j, a)
	}
	evos := []Evolution{Bunch("reverse")}
	for i := 0; i < n; i++ {
		evos = append(evos, Set(Index(i)))
	}
	s.realm.emit(&s.observable, evos...)
}

// Fill assigns v to indices [start, end). Only that window is touched.
func (s *Sequence) Fill(v any, start, end int) {
	n := s.rawLen()
	start, end = clampRange(start, end, n)
	if start >= end {
		return
	}
	v = Unwrap(v)
	evos := []Evolution{Bunch("fill")}
	for i := start; i < end; i++ {
		s.rawSet(i, v)
		evos = append(evos, Set(Index(i)))
	}
	s.realm.emit(&s.observable, evos...)
}

// CopyWithin copies the window [start, end) to target. Only the overwritten
// indices are touched.
func (s *Sequence) CopyWithin(target, start, end int) {
	n := s.rawLen()
	start, end = clampRange(start, end, n)
	if target < 0 {
		target += n
	}
	if target < 0 {
		target = 0
	}
	count := end - start
	if count > n-target {
		count = n - target
	}
	if count <= 0 || target == start {
		return
	}
	tmp := make([]any, count)
	for i := 0; i < count; i++ {
		tmp[i] = s.rawGet(start + i)
	}
	evos := []Evolution{Bunch("copyWithin")}
	for i := 0; i < count; i++ {
		s.rawSet(target+i, tmp[i])
		evos = append(evos, Set(Index(target+i)))
	}
	s.realm.emit(&s.observable, evos...)
}

// Clear empties the sequence.
func (s *Sequence) Clear() {
	n := s.rawLen()
	if n == 0 {
		return
	}
	s.setSlice(s.slice().Slice(0, 0))
	evos := []Evolution{Bunch("clear")}
	for i := 0; i < n; i++ {
		evos = append(evos, Del(Index(i)))
	}
	evos = append(evos, Set(LengthProp))
	s.realm.emit(&s.observable, evos...)
}

// scan drives the short-circuiting searches: it visits indices in order,
// subscribing each visited index, until pred answers. When the scan runs to
// the end without answering, length is subscribed too — growing the
// sequence could change the answer.
func (s *Sequence) scan(pred func(i int, v any) bool) int {
	n := s.rawLen()
	for i := 0; i < n; i++ {
		s.realm.registerDep(&s.observable, Index(i))
		if pred(i, s.realm.wrapValue(s.rawGet(i))) {
			return i
		}
	}
	s.realm.registerDep(&s.observable, LengthProp)
	return -1
}

// Find returns the first element satisfying pred, or nil. Subscribes only
// the indices actually scanned.
func (s *Sequence) Find(pred func(v any) bool) any {
	if i := s.scan(func(_ int, v any) bool { return pred(v) }); i >= 0 {
		return s.realm.wrapValue(s.rawGet(i))
	}
	return nil
}

// FindIndex returns the index of the first element satisfying pred, or -1.
func (s *Sequence) FindIndex(pred func(v any) bool) int {
	return s.scan(func(_ int, v any) bool { return pred(v) })
}

// Some reports whether any element satisfies pred, scanning only as far as
// the first hit.
func (s *Sequence) Some(pred func(v any) bool) bool {
	return s.scan(func(_ int, v any) bool { return pred(v) }) >= 0
}

// Every reports whether all elements satisfy pred, scanning only as far as
// the first miss.
func (s *Sequence) Every(pred func(v any) bool) bool {
	return s.scan(func(_ int, v any) bool { return !pred(v) }) < 0
}

// IndexOf returns the index of the first element identical to v, or -1.
func (s *Sequence) IndexOf(v any) int {
	v = Unwrap(v)
	return s.scan(func(_ int, e any) bool { return identical(Unwrap(e), v) })
}

// Includes reports whether the sequence contains v.
func (s *Sequence) Includes(v any) bool { return s.IndexOf(v) >= 0 }

// ForEach visits every element. A full-iteration read: subscribes AllProps
// and length.
func (s *Sequence) ForEach(fn func(i int, v any)) {
	s.realm.registerDep(&s.observable, AllProps)
	s.realm.registerDep(&s.observable, LengthProp)
	for i := 0; i < s.rawLen(); i++ {
		fn(i, s.realm.wrapValue(s.rawGet(i)))
	}
}

// Map returns the plain slice produced by fn over every element.
func (s *Sequence) Map(fn func(v any) any) []any {
	var out []any
	s.ForEach(func(_ int, v any) { out = append(out, fn(v)) })
	return out
}

// Filter returns the plain slice of elements satisfying pred.
func (s *Sequence) Filter(pred func(v any) bool) []any {
	var out []any
	s.ForEach(func(_ int, v any) {
		if pred(v) {
			out = append(out, v)
		}
	})
	return out
}

// Reduce folds the sequence left-to-right.
func (s *Sequence) Reduce(fn func(acc, v any) any, init any) any {
	acc := init
	s.ForEach(func(_ int, v any) { acc = fn(acc, v) })
	return acc
}

// Join renders every element with fmt and joins with sep.
func (s *Sequence) Join(sep string) string {
	var parts []string
	s.ForEach(func(_ int, v any) { parts = append(parts, fmt.Sprint(Unwrap(v))) })
	return strings.Join(parts, sep)
}

// Slice returns a copy of the window [start, end). A full-iteration read:
// subscribes AllProps and length.
func (s *Sequence) Slice(start, end int) []any {
	s.realm.registerDep(&s.observable, AllProps)
	s.realm.registerDep(&s.observable, LengthProp)
	start, end = clampRange(start, end, s.rawLen())
	if start >= end {
		return nil
	}
	out := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.rawGet(i))
	}
	return out
}

// Values returns a copy of the raw elements. A full-iteration read.
func (s *Sequence) Values() []any {
	s.realm.registerDep(&s.observable, AllProps)
	s.realm.registerDep(&s.observable, LengthProp)
	out := make([]any, s.rawLen())
	for i := range out {
		out[i] = s.rawGet(i)
	}
	return out
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end += n
	}
	if end > n {
		end = n
	}
	return start, end
}
