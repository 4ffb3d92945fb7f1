package ripple

// CyclePolicy decides what happens when enqueueing an effect would close a
// cycle in the causal graph.
type CyclePolicy uint8

const (
	// CycleThrow raises a CycleDetected error out of the triggering write.
	CycleThrow CyclePolicy = iota
	// CycleWarn logs a warning and leaves the offending edge out of the
	// graph (the effect is still enqueued); a batch stuck on a cycle logs a
	// warning and runs one of its pending effects anyway.
	CycleWarn
	// CycleBreak silently removes one effect from the batch to make progress.
	CycleBreak
)

// ChainPolicy decides what happens when a batch executes more effects than
// MaxEffectChain allows, or one effect re-runs more often than
// MaxTriggerPerBatch allows.
type ChainPolicy uint8

const (
	// ChainThrow raises a MaxDepthExceeded error.
	ChainThrow ChainPolicy = iota
	// ChainDebug logs the offending effect with the sizes of its cause and
	// consequence sets at debug level, then stops the batch.
	ChainDebug
	// ChainWarn logs a one-line warning and stops the batch.
	ChainWarn
)

// AsyncMode arbitrates between an effect re-run and its previous invocation's
// outstanding asynchronous work.
type AsyncMode uint8

const (
	// AsyncDisabled means effects may not launch asynchronous tails.
	AsyncDisabled AsyncMode = iota
	// AsyncCancel aborts the outstanding work (its context is canceled) and
	// lets the re-run observe the newest inputs immediately.
	AsyncCancel
	// AsyncQueue defers the new run until the outstanding work completes.
	AsyncQueue
	// AsyncIgnore drops the new run while work is outstanding.
	AsyncIgnore
)

// IntrospectionOptions gates the optional debug plumbing. The zero value
// disables everything.
type IntrospectionOptions struct {
	// GatherReasons records a stack snapshot at each dependency registration
	// and attaches it to the triggers (and so the cleanup reasons) that the
	// registration later produces.
	GatherReasons bool
	// LogErrors logs errors swallowed during cleanup.
	LogErrors bool
	// EnableHistory keeps a bounded ring of trigger records, dumpable via
	// Realm.History.
	EnableHistory bool
	// HistorySize bounds the ring. Zero means a default of 1024.
	HistorySize int
}

// Options is the process-wide (per-Realm) configuration bag.
type Options struct {
	// MaxEffectChain bounds the number of effect executions within a single
	// batch. Zero means the default of 1000.
	MaxEffectChain int
	// MaxTriggerPerBatch bounds how often a single effect may re-run within
	// one batch. Zero means the default of 100.
	MaxTriggerPerBatch int
	// MaxEffectReaction selects the reaction to an exceeded chain bound.
	MaxEffectReaction ChainPolicy
	// CycleHandling selects the cycle policy.
	CycleHandling CyclePolicy
	// AsyncMode is the default async arbitration for effects that don't set
	// their own.
	AsyncMode AsyncMode
	// InstanceMembersOnly ignores promoted (embedded-struct) fields when
	// resolving record reads.
	InstanceMembersOnly bool
	// IgnoreAccessors treats method-backed derived properties opaquely
	// instead of traversing into their reads.
	IgnoreAccessors bool
	// RecursiveTouching enables the deep-equal replacement optimization:
	// assigning a same-shaped aggregate emits per-field evolutions for the
	// differing fields (nothing when all are equal) instead of a parent Set.
	RecursiveTouching bool
	// Introspection gates the debug collaborator plumbing.
	Introspection IntrospectionOptions
	// OnMemoizationDiscrepancy, when set, makes every memoized cache hit
	// re-run the function untracked and report mismatches. Never fatal.
	OnMemoizationDiscrepancy func(d Discrepancy)
}

const (
	defaultMaxEffectChain     = 1000
	defaultMaxTriggerPerBatch = 100
	defaultHistorySize        = 1024
)

// withDefaults fills unset numeric bounds.
func (o Options) withDefaults() Options {
	if o.MaxEffectChain == 0 {
		o.MaxEffectChain = defaultMaxEffectChain
	}
	if o.MaxTriggerPerBatch == 0 {
		o.MaxTriggerPerBatch = defaultMaxTriggerPerBatch
	}
	if o.Introspection.HistorySize == 0 {
		o.Introspection.HistorySize = defaultHistorySize
	}
	return o
}

// Configure replaces the default realm's options atomically.
// It does not disturb live effects; bounds and policies are read at each
// check, so they take effect immediately.
func Configure(o Options) { DefaultRealm().Configure(o) }
