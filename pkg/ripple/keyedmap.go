package ripple

import "reflect"

// KeyedMap is the reactive facade of a map with arbitrary comparable keys.
// Entry reads subscribe the exact key; enumeration subscribes KeysOf and
// AllProps following the same contract as Record.
type KeyedMap struct {
	observable

	mv reflect.Value
}

// wrapKeyedMap wraps any raw map that is not a map[string]any record or a
// struct{}-valued set.
func (r *Realm) wrapKeyedMap(x any, v reflect.Value) any {
	id := v.Pointer()
	if w := r.lookup(id); w != nil {
		return w
	}
	m := &KeyedMap{observable: r.newObservable(KindKeyedMap, id), mv: v}
	m.self = m
	r.register(&m.observable)
	return m
}

// Raw returns the raw map.
func (m *KeyedMap) Raw() any { return m.mv.Interface() }

func (m *KeyedMap) keyValue(k any) reflect.Value {
	kv := reflect.ValueOf(k)
	kt := m.mv.Type().Key()
	if kv.IsValid() && kv.Type() != kt && kv.Type().ConvertibleTo(kt) {
		kv = kv.Convert(kt)
	}
	return kv
}

// Get returns the value at k, subscribing the active effect to that entry.
func (m *KeyedMap) Get(k any) (any, bool) {
	m.realm.registerDep(&m.observable, Entry(k))
	out := m.mv.MapIndex(m.keyValue(k))
	if !out.IsValid() {
		return nil, false
	}
	return m.realm.wrapValue(out.Interface()), true
}

// Set assigns k to v. New keys emit Add; identical assignments are no-ops.
func (m *KeyedMap) Set(k, v any) {
	v = Unwrap(v)
	kv := m.keyValue(k)
	old := m.mv.MapIndex(kv)
	existed := old.IsValid()
	if existed && identical(old.Interface(), v) {
		return
	}
	if existed && m.realm.touchInstead(old.Interface(), v) {
		m.realm.touchEmitParent(&m.observable, Entry(k))
		return
	}
	vv := reflect.ValueOf(v)
	vt := m.mv.Type().Elem()
	if !vv.IsValid() {
		vv = reflect.Zero(vt)
	} else if vv.Type() != vt && vv.Type().ConvertibleTo(vt) {
		vv = vv.Convert(vt)
	}
	m.mv.SetMapIndex(kv, vv)
	if existed {
		m.realm.emit(&m.observable, Set(Entry(k)))
	} else {
		m.realm.emit(&m.observable, Add(Entry(k)))
	}
}

// Delete removes k. Emits Del, never Set.
func (m *KeyedMap) Delete(k any) {
	kv := m.keyValue(k)
	if !m.mv.MapIndex(kv).IsValid() {
		return
	}
	m.mv.SetMapIndex(kv, reflect.Value{})
	m.realm.emit(&m.observable, Del(Entry(k)))
}

// Has reports key presence. A structural read: subscribes KeysOf.
func (m *KeyedMap) Has(k any) bool {
	m.realm.registerDep(&m.observable, KeysOf)
	return m.mv.MapIndex(m.keyValue(k)).IsValid()
}

// Len returns the entry count. Subscribes KeysOf.
func (m *KeyedMap) Len() int {
	m.realm.registerDep(&m.observable, KeysOf)
	return m.mv.Len()
}

// Keys enumerates the keys (unordered). Subscribes KeysOf.
func (m *KeyedMap) Keys() []any {
	m.realm.registerDep(&m.observable, KeysOf)
	out := make([]any, 0, m.mv.Len())
	for _, kv := range m.mv.MapKeys() {
		out = append(out, kv.Interface())
	}
	return out
}

// ForEach visits every entry. Subscribes AllProps and KeysOf.
func (m *KeyedMap) ForEach(fn func(k, v any)) {
	m.realm.registerDep(&m.observable, AllProps)
	m.realm.registerDep(&m.observable, KeysOf)
	it := m.mv.MapRange()
	for it.Next() {
		fn(it.Key().Interface(), m.realm.wrapValue(it.Value().Interface()))
	}
}

// Clear removes every entry.
func (m *KeyedMap) Clear() {
	keys := m.mv.MapKeys()
	if len(keys) == 0 {
		return
	}
	evos := []Evolution{Bunch("clear")}
	for _, kv := range keys {
		m.mv.SetMapIndex(kv, reflect.Value{})
		evos = append(evos, Del(Entry(kv.Interface())))
	}
	m.realm.emit(&m.observable, evos...)
}
