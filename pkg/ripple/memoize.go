package ripple

import (
	"reflect"
	"runtime"
	"sync"
)

// Discrepancy is reported to Options.OnMemoizationDiscrepancy when a cache
// hit disagrees with an untracked recomputation. Never fatal.
type Discrepancy struct {
	Args   []any
	Cached any
	Fresh  any
}

// memoNode is one branch of the argument-identity tree. Leaves own a cell
// (so callers subscribe to invalidations) and an internal root effect that
// keeps the cached result in sync with its reads.
type memoNode struct {
	children map[uintptr]*memoNode
	cell     *cell
	handle   *Handle
}

// Memoize caches fn's results keyed by the identity of its arguments,
// invalidated exactly when the properties the computation read change.
//
// Every argument must carry a reference identity — a pointer, a reactive
// wrapper, a map, or nil — so cache branches can be keyed by it. Branches
// keyed by a pointer or wrapper are dropped when that argument is collected;
// branches keyed by a map or nil are kept. Primitives and other value-shaped arguments
// panic with a tracking error; use MemoizeLenient for those.
//
// The cached result is shared between all callers; a dependency change
// propagates to them exactly like a reactive write.
func Memoize(fn func(args ...any) any) func(args ...any) any {
	return DefaultRealm().Memoize(fn)
}

// Memoize caches fn in this realm. See the package-level Memoize.
func (r *Realm) Memoize(fn func(args ...any) any) func(args ...any) any {
	return r.memoize(fn, false)
}

// MemoizeLenient is Memoize for mixed argument shapes: calls with any
// non-weak-keyable argument skip the cache and recompute instead of
// panicking.
func MemoizeLenient(fn func(args ...any) any) func(args ...any) any {
	return DefaultRealm().MemoizeLenient(fn)
}

// MemoizeLenient caches fn leniently in this realm.
func (r *Realm) MemoizeLenient(fn func(args ...any) any) func(args ...any) any {
	return r.memoize(fn, true)
}

func (r *Realm) memoize(fn func(args ...any) any, lenient bool) func(args ...any) any {
	root := &memoNode{}
	return func(args ...any) any {
		node := root
		for _, arg := range args {
			key, ok := identityOf(arg)
			if !ok {
				if lenient {
					var out any
					withComputed(func() { out = fn(args...) })
					return out
				}
				panic(newError(KindTracking,
					"memoized argument of type %T is not weakly-referenceable", arg))
			}
			child := node.children[key]
			if child == nil {
				child = &memoNode{}
				if node.children == nil {
					node.children = make(map[uintptr]*memoNode)
				}
				node.children[key] = child
				parent, k := node, key
				onCollected(arg, func() { delete(parent.children, k) })
			}
			node = child
		}
		return r.memoRead(node, fn, args)
	}
}

// memoRead subscribes the caller to the node and returns the cached result,
// computing it through a fresh internal effect when absent.
func (r *Realm) memoRead(node *memoNode, fn func(args ...any) any, args []any) any {
	if node.cell == nil {
		node.cell = r.newCell()
	}
	if v, ok := node.cell.peek(); ok {
		if report := r.options().OnMemoizationDiscrepancy; report != nil {
			var fresh any
			Untracked(func() { withComputed(func() { fresh = fn(args...) }) })
			if !reflect.DeepEqual(v, fresh) {
				report(Discrepancy{Args: args, Cached: v, Fresh: fresh})
			}
		}
		node.cell.get() // subscribe the caller to invalidations
		return v
	}

	// The computing effect is a root, detached from the calling effect's
	// lineage: callers come and go without tearing the cache down.
	func() {
		prev := setActiveEffect(nil)
		defer setActiveEffect(prev)
		node.handle = r.NewEffect(func(at Access) Cleanup {
			var out any
			withComputed(func() { out = fn(args...) })
			node.cell.set(out)
			return func(Reason) {
				// Evict, wake the readers, and stop: the next read
				// re-creates the effect lazily.
				node.cell.evict()
				if node.handle != nil {
					node.handle.Stop()
				}
			}
		}, WithName("memo"))
	}()

	v, _ := node.cell.get()
	return v
}

// identityOf returns the weak-keyable identity of an argument: reactive
// wrappers key by their core, other pointer-shaped values by their pointer.
func identityOf(x any) (uintptr, bool) {
	if x == nil {
		return 0, true
	}
	if w, ok := x.(Reactive); ok {
		return uintptr(reflect.ValueOf(w.core()).Pointer()), true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		// Maps are reference-shaped and key by their header; eviction for
		// them is skipped (the host runtime cannot watch map lifetimes).
		return v.Pointer(), true
	}
	return 0, false
}

// collectWatch dispatches at most one runtime finalizer per object and fans
// callbacks out from it, so independent caches can watch the same key.
var collectWatch struct {
	sync.Mutex
	cbs map[uintptr][]func()
}

// onCollected arranges for fn to run after x becomes unreachable.
// Best-effort: eviction is an optimization, not a correctness requirement.
func onCollected(x any, fn func()) {
	if x == nil {
		return
	}
	if w, ok := x.(Reactive); ok {
		runtime.AddCleanup(w.core(), func(f func()) { f() }, fn)
		return
	}
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Pointer {
		return
	}
	key := v.Pointer()
	collectWatch.Lock()
	defer collectWatch.Unlock()
	if collectWatch.cbs == nil {
		collectWatch.cbs = make(map[uintptr][]func())
	}
	if _, exists := collectWatch.cbs[key]; exists {
		collectWatch.cbs[key] = append(collectWatch.cbs[key], fn)
		return
	}
	collectWatch.cbs[key] = []func(){fn}
	fin := reflect.MakeFunc(
		reflect.FuncOf([]reflect.Type{v.Type()}, nil, false),
		func([]reflect.Value) []reflect.Value {
			collectWatch.Lock()
			cbs := collectWatch.cbs[key]
			delete(collectWatch.cbs, key)
			collectWatch.Unlock()
			for _, cb := range cbs {
				cb()
			}
			return nil
		})
	runtime.SetFinalizer(x, fin.Interface())
}
