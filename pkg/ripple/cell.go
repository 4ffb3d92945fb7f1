package ripple

// cell is a one-slot internal observable. The memoization nodes and the
// derived-collection intermediates use it to participate in dependency
// tracking without fronting a raw aggregate.
type cell struct {
	observable
	value any
	has   bool
}

var cellProp = Key("value")

func (r *Realm) newCell() *cell {
	c := &cell{observable: r.newObservable(KindRecord, 0)}
	c.self = c
	return c
}

func (c *cell) Raw() any { return nil }

// get reads the slot, subscribing the active effect.
func (c *cell) get() (any, bool) {
	c.realm.registerDep(&c.observable, cellProp)
	return c.value, c.has
}

// peek reads the slot without subscribing.
func (c *cell) peek() (any, bool) {
	return c.value, c.has
}

// set stores v, notifying watchers when the value changed.
func (c *cell) set(v any) {
	if c.has && identical(c.value, v) {
		return
	}
	c.value = v
	c.has = true
	c.realm.emit(&c.observable, Set(cellProp))
}

// evict clears the slot and tells watchers to re-read.
func (c *cell) evict() {
	c.value = nil
	c.has = false
	c.realm.emit(&c.observable, Invalidate(cellProp))
}
