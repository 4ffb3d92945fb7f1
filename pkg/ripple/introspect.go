package ripple

// Introspector is the interface the core exposes to debug collaborators
// (DevTools bridges, metrics exporters). The core calls it; it never calls
// back into the core during a notification.
type Introspector interface {
	// OnRegisterEffect is called once per effect creation.
	OnRegisterEffect(effect EffectInfo)
	// OnRecordTrigger is called for every (source, target) enqueue decision:
	// source's write of obj enqueued target. Source is the zero EffectInfo
	// for external writes.
	OnRecordTrigger(source, target EffectInfo, obj Reactive, evo Evolution)
	// CaptureStack returns an opaque stack snapshot, attached to dependency
	// registrations and triggers when Introspection.GatherReasons is on.
	CaptureStack() string
}
