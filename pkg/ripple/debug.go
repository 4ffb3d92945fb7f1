package ripple

import (
	"log/slog"
	"os"
)

// DebugConfig controls development-time logging. All flags default to off;
// flipping them has no effect on semantics, only on output.
type DebugConfig struct {
	// LogEffectRuns logs each effect execution with its reason.
	LogEffectRuns bool
	// LogBatches logs each completed batch with its execution counts.
	LogBatches bool
	// LogCleanupErrors logs errors recovered from cleanup closures.
	// Cleanup errors are always swallowed; this only controls visibility.
	LogCleanupErrors bool
	// IncludeSourceLocations is accepted but not read by the runtime; debug
	// records carry no source positions.
	IncludeSourceLocations bool
}

// Debug is the global debug configuration.
// Modify at startup; the runtime reads it without synchronization.
var Debug DebugConfig

// logger is the structured logger behind the debug flags.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger replaces the logger used for debug and warning output.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
