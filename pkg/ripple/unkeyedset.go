package ripple

import "reflect"

// UnkeyedSet is the reactive facade of a membership set: a map[T]struct{}.
// Sets have no per-member values, so every mutation is structural: Add and
// Delete emit on the member entry and on KeysOf; membership tests and
// iteration subscribe KeysOf.
type UnkeyedSet struct {
	observable

	mv reflect.Value
}

// wrapSet wraps a raw map[T]struct{}.
func (r *Realm) wrapSet(x any, v reflect.Value) any {
	id := v.Pointer()
	if w := r.lookup(id); w != nil {
		return w
	}
	s := &UnkeyedSet{observable: r.newObservable(KindUnkeyedSet, id), mv: v}
	s.self = s
	r.register(&s.observable)
	return s
}

// Raw returns the raw map[T]struct{}.
func (s *UnkeyedSet) Raw() any { return s.mv.Interface() }

func (s *UnkeyedSet) member(v any) reflect.Value {
	mv := reflect.ValueOf(v)
	kt := s.mv.Type().Key()
	if mv.IsValid() && mv.Type() != kt && mv.Type().ConvertibleTo(kt) {
		mv = mv.Convert(kt)
	}
	return mv
}

// Add inserts v. Present members are no-ops.
func (s *UnkeyedSet) Add(v any) {
	v = Unwrap(v)
	mv := s.member(v)
	if s.mv.MapIndex(mv).IsValid() {
		return
	}
	s.mv.SetMapIndex(mv, reflect.Zero(s.mv.Type().Elem()))
	s.realm.emit(&s.observable, Add(Entry(v)))
}

// Delete removes v. Absent members are no-ops.
func (s *UnkeyedSet) Delete(v any) {
	v = Unwrap(v)
	mv := s.member(v)
	if !s.mv.MapIndex(mv).IsValid() {
		return
	}
	s.mv.SetMapIndex(mv, reflect.Value{})
	s.realm.emit(&s.observable, Del(Entry(v)))
}

// Has reports membership. Subscribes KeysOf.
func (s *UnkeyedSet) Has(v any) bool {
	s.realm.registerDep(&s.observable, KeysOf)
	return s.mv.MapIndex(s.member(Unwrap(v))).IsValid()
}

// Len returns the member count. Subscribes KeysOf.
func (s *UnkeyedSet) Len() int {
	s.realm.registerDep(&s.observable, KeysOf)
	return s.mv.Len()
}

// Values enumerates the members (unordered). Subscribes AllProps and KeysOf.
func (s *UnkeyedSet) Values() []any {
	s.realm.registerDep(&s.observable, AllProps)
	s.realm.registerDep(&s.observable, KeysOf)
	out := make([]any, 0, s.mv.Len())
	for _, kv := range s.mv.MapKeys() {
		out = append(out, kv.Interface())
	}
	return out
}

// Clear removes every member.
func (s *UnkeyedSet) Clear() {
	keys := s.mv.MapKeys()
	if len(keys) == 0 {
		return
	}
	evos := []Evolution{Bunch("clear")}
	for _, kv := range keys {
		s.mv.SetMapIndex(kv, reflect.Value{})
		evos = append(evos, Del(Entry(kv.Interface())))
	}
	s.realm.emit(&s.observable, evos...)
}
