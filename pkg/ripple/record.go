package ripple

import (
	"reflect"
	"sort"
)

// Record is the reactive facade of a keyed record: a map[string]any or a
// struct pointer. Reads register dependencies on the property read; writes
// emit evolutions to the watchers of that property.
//
// For struct-backed records, promoted fields of embedded structs behave like
// an inheritance chain: a read that resolves through an embedded struct
// subscribes both the outer record (shadowing writes) and each embedded hop,
// so writes through the embedded wrapper propagate. Zero-argument methods
// act as derived properties when no field matches; whether their inner reads
// are traversed or treated opaquely follows Options.IgnoreAccessors.
type Record struct {
	observable

	// entries backs map records.
	entries map[string]any

	// sptr/sv back struct records: the pointer and its addressable elem.
	sptr reflect.Value
	sv   reflect.Value
}

// wrapMapOrRecord dispatches a raw map to Record (string keys, any values)
// or KeyedMap (everything else).
func (r *Realm) wrapMapOrRecord(x any, v reflect.Value) any {
	m, ok := x.(map[string]any)
	if !ok {
		return r.wrapKeyedMap(x, v)
	}
	id := v.Pointer()
	if w := r.lookup(id); w != nil {
		return w
	}
	rec := &Record{observable: r.newObservable(KindRecord, id), entries: m}
	rec.self = rec
	r.register(&rec.observable)
	return rec
}

// wrapStructRecord wraps a struct pointer.
func (r *Realm) wrapStructRecord(x any, v reflect.Value) any {
	id := v.Pointer()
	if w := r.lookup(id); w != nil {
		return w
	}
	rec := &Record{observable: r.newObservable(KindRecord, id), sptr: v, sv: v.Elem()}
	rec.self = rec
	r.register(&rec.observable)
	return rec
}

// Raw returns the raw map or struct pointer.
func (rec *Record) Raw() any {
	if rec.entries != nil {
		return rec.entries
	}
	return rec.sptr.Interface()
}

// mapBacked reports the backing shape.
func (rec *Record) mapBacked() bool { return rec.entries != nil }

// Get returns the value of the named property, subscribing the active
// effect to it. Aggregate values are returned wrapped, so nested access
// auto-becomes reactive.
func (rec *Record) Get(name string) any {
	r := rec.realm
	if rec.mapBacked() {
		r.registerDep(&rec.observable, Key(name))
		return r.wrapValue(rec.entries[name])
	}
	return rec.structGet(name)
}

// structGet resolves name against the struct: own field, then promoted
// fields via the embedded chain, then accessor methods.
func (rec *Record) structGet(name string) any {
	r := rec.realm
	t := rec.sv.Type()
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		r.registerDep(&rec.observable, Key(name))
		if len(f.Index) == 1 {
			return rec.fieldValue(rec.sv.FieldByIndex(f.Index))
		}
		// Promoted field: the read resolved through one or more embedded
		// structs. Subscribe each hop so writes through the embedded wrapper
		// trigger this reader too.
		if r.options().InstanceMembersOnly {
			return nil
		}
		embedded := rec.sv.Field(f.Index[0])
		if embedded.Kind() == reflect.Struct && embedded.CanAddr() {
			if inner, ok := r.Wrap(embedded.Addr().Interface()).(*Record); ok && inner != rec {
				return inner.structGet(name)
			}
		}
		return rec.fieldValue(rec.sv.FieldByIndex(f.Index))
	}
	if m := rec.sptr.MethodByName(name); m.IsValid() &&
		m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
		r.registerDep(&rec.observable, Key(name))
		var out any
		call := func() { out = m.Call(nil)[0].Interface() }
		if r.options().IgnoreAccessors {
			Untracked(call)
		} else {
			call()
		}
		return out
	}
	r.registerDep(&rec.observable, Key(name))
	return nil
}

// fieldValue surfaces a struct field, wrapping nested aggregates.
func (rec *Record) fieldValue(f reflect.Value) any {
	if f.Kind() == reflect.Struct && f.CanAddr() {
		return rec.realm.Wrap(f.Addr().Interface())
	}
	return rec.realm.wrapValue(f.Interface())
}

// Set assigns the named property.
//
// Identical assignments are no-ops. When RecursiveTouching is on and both
// the old and the new value are aggregates of the same shape, the write is
// folded: differing entries are copied into the existing nested aggregate
// and per-field evolutions are emitted on it instead of a parent Set (opaque
// effects still receive the parent notification).
func (rec *Record) Set(name string, value any) {
	r := rec.realm
	value = Unwrap(value)
	if rec.mapBacked() {
		old, existed := rec.entries[name]
		if existed && identical(old, value) {
			return
		}
		if existed && r.touchInstead(old, value) {
			r.touchEmitParent(&rec.observable, Key(name))
			return
		}
		rec.entries[name] = value
		if existed {
			r.emit(&rec.observable, Set(Key(name)))
		} else {
			r.emit(&rec.observable, Add(Key(name)))
		}
		return
	}
	f := rec.sv.FieldByName(name)
	if !f.IsValid() || !f.CanSet() {
		return
	}
	var old any
	if f.Kind() == reflect.Struct {
		old = f.Addr().Interface()
	} else {
		old = f.Interface()
	}
	if identical(old, value) {
		return
	}
	if r.touchInstead(old, value) {
		r.touchEmitParent(&rec.observable, Key(name))
		return
	}
	nv := reflect.ValueOf(value)
	if !nv.IsValid() {
		f.Set(reflect.Zero(f.Type()))
	} else {
		if nv.Type() != f.Type() && nv.Type().ConvertibleTo(f.Type()) {
			nv = nv.Convert(f.Type())
		}
		f.Set(nv)
	}
	r.emit(&rec.observable, Set(Key(name)))
}

// Delete removes a key from a map-backed record. Emits Del (and, through the
// fan-out, KeysOf) — never Set. Struct records cannot lose fields.
func (rec *Record) Delete(name string) {
	if !rec.mapBacked() {
		return
	}
	if _, ok := rec.entries[name]; !ok {
		return
	}
	delete(rec.entries, name)
	rec.realm.emit(&rec.observable, Del(Key(name)))
}

// Has reports key existence. A structural read: subscribes KeysOf.
func (rec *Record) Has(name string) bool {
	rec.realm.registerDep(&rec.observable, KeysOf)
	if rec.mapBacked() {
		_, ok := rec.entries[name]
		return ok
	}
	f, ok := rec.sv.Type().FieldByName(name)
	return ok && f.IsExported()
}

// Keys enumerates the record's keys, sorted. Subscribes KeysOf.
func (rec *Record) Keys() []string {
	rec.realm.registerDep(&rec.observable, KeysOf)
	var keys []string
	if rec.mapBacked() {
		keys = make([]string, 0, len(rec.entries))
		for k := range rec.entries {
			keys = append(keys, k)
		}
	} else {
		t := rec.sv.Type()
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() && !f.Anonymous {
				keys = append(keys, f.Name)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys. Subscribes KeysOf.
func (rec *Record) Len() int {
	rec.realm.registerDep(&rec.observable, KeysOf)
	if rec.mapBacked() {
		return len(rec.entries)
	}
	n := 0
	t := rec.sv.Type()
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() && !f.Anonymous {
			n++
		}
	}
	return n
}

// ForEach visits every entry. A full-iteration read: subscribes AllProps and
// KeysOf.
func (rec *Record) ForEach(fn func(name string, value any)) {
	rec.realm.registerDep(&rec.observable, AllProps)
	for _, k := range rec.Keys() {
		fn(k, rec.Get(k))
	}
}

// identical is the no-op comparison for writes: same primitive value or same
// reference. Wrappers compare as their raws. Deliberately not deep equality
// — that is RecursiveTouching's job.
func identical(a, b any) bool {
	a, b = Unwrap(a), Unwrap(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return false
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
