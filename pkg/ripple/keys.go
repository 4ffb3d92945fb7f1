package ripple

import (
	"fmt"
	"strconv"
)

// propKind discriminates the flavors of property keys.
type propKind uint8

const (
	propString propKind = iota
	propIndex
	propLength
	propAll
	propKeys
	propEntry
)

// PropKey identifies a property of an observable. Keys are comparable and
// used directly as map keys in the watcher tables.
//
// Beyond ordinary string and integer-index keys, two synthetic keys exist:
//
//   - [AllProps] subscribes to "the value of any property may have changed".
//     Full-iteration reads (ForEach, Map, Values, ...) register it.
//   - [KeysOf] subscribes to structural changes (key add/delete) but not to
//     value updates. Key-enumeration reads (Keys, Has, Len, ...) register it.
type PropKey struct {
	kind  propKind
	name  string
	idx   int
	entry any
}

// AllProps is the synthetic key matched by every value change.
var AllProps = PropKey{kind: propAll}

// KeysOf is the synthetic key matched by structural (add/delete) changes only.
var KeysOf = PropKey{kind: propKeys}

// LengthProp is the length pseudo-property of a Sequence. Out-of-range index
// reads subscribe to it, and every length change emits on it.
var LengthProp = PropKey{kind: propLength}

// Key returns the PropKey for a named property.
func Key(name string) PropKey {
	return PropKey{kind: propString, name: name}
}

// Index returns the PropKey for an integer sequence index.
func Index(i int) PropKey {
	return PropKey{kind: propIndex, idx: i}
}

// Entry returns the PropKey for an arbitrary comparable map key or set
// member. k must be comparable; non-comparable keys cannot index a map in
// the first place.
func Entry(k any) PropKey {
	return PropKey{kind: propEntry, entry: k}
}

// IsSynthetic reports whether the key is one of the synthetic subscription
// keys (AllProps, KeysOf) rather than an addressable property.
func (k PropKey) IsSynthetic() bool {
	return k.kind == propAll || k.kind == propKeys
}

// Name returns the string form of a named key, or "" for other kinds.
func (k PropKey) Name() string { return k.name }

// Idx returns the index of an index key, or -1 for other kinds.
func (k PropKey) Idx() int {
	if k.kind != propIndex {
		return -1
	}
	return k.idx
}

func (k PropKey) String() string {
	switch k.kind {
	case propString:
		return k.name
	case propIndex:
		return strconv.Itoa(k.idx)
	case propLength:
		return "length"
	case propAll:
		return "<all>"
	case propKeys:
		return "<keys>"
	case propEntry:
		return "entry(" + fmt.Sprint(k.entry) + ")"
	}
	return "<invalid>"
}
