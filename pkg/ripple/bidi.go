package ripple

// BiDi wires a reactive value to an external one, both ways.
//
// It creates an effect pushing reactive changes outward through externalSet
// (reading via get), and returns a provide function for the external side to
// push values in. provide runs as an atomic batch and suppresses the
// re-trigger of its own push effect, so echoing the value straight back does
// not bounce.
//
// The second return value disposes the binding.
func BiDi[T any](externalSet func(T), get func() T, set func(T)) (provide func(T), stop func()) {
	suppressed := false
	h := Effect(func(at Access) Cleanup {
		v := get()
		if !suppressed {
			Untracked(func() { externalSet(v) })
		}
		return nil
	}, WithName("bidi"))
	provide = func(v T) {
		suppressed = true
		defer func() { suppressed = false }()
		Atomic(func() { set(v) })
	}
	return provide, h.Stop
}
