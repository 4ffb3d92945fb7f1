// Package ripplemetrics exports the ripple runtime's introspection stream to
// Prometheus and OpenTelemetry. Install an adapter with
// ripple.SetIntrospector; combine several with Multi.
package ripplemetrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ripplekit/ripple/pkg/ripple"
)

// MetricsConfig configures the Prometheus introspection adapter.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ripple").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// CaptureStacks makes CaptureStack return real stack snapshots. Off by
	// default: snapshots are for reason-gathering debuggers, not for metrics.
	CaptureStacks bool
}

// MetricsOption configures the Prometheus introspection adapter.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithStackCapture enables real stack snapshots.
func WithStackCapture(enable bool) MetricsOption {
	return func(c *MetricsConfig) {
		c.CaptureStacks = enable
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ripple",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Prometheus is a ripple.Introspector exporting counters for effect
// registrations and trigger propagation.
//
// Metrics collected:
//   - ripple_effects_registered_total: Counter of effect creations
//   - ripple_triggers_total: Counter of enqueue decisions by evolution kind
//     and observable kind
//   - ripple_external_triggers_total: Counter of triggers from writes outside
//     any effect
type Prometheus struct {
	config MetricsConfig

	effectsRegistered prometheus.Counter
	triggersTotal     *prometheus.CounterVec
	externalTriggers  prometheus.Counter
}

var (
	globalProm     *Prometheus
	globalPromOnce sync.Once
)

// NewPrometheus builds the adapter. Metric registration panics if the same
// registry sees it twice; use the package-level Default for the common
// single-registry case.
func NewPrometheus(opts ...MetricsOption) *Prometheus {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Prometheus{
		config: config,

		effectsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_registered_total",
			Help:        "Total number of effects created",
			ConstLabels: config.ConstLabels,
		}),

		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of effect enqueues by evolution and observable kind",
			ConstLabels: config.ConstLabels,
		}, []string{"evolution", "kind"}),

		externalTriggers: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "external_triggers_total",
			Help:        "Total number of triggers caused by writes outside any effect",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Default returns the process-wide adapter on the default registry.
func Default() *Prometheus {
	globalPromOnce.Do(func() {
		globalProm = NewPrometheus()
	})
	return globalProm
}

// OnRegisterEffect implements ripple.Introspector.
func (p *Prometheus) OnRegisterEffect(ripple.EffectInfo) {
	p.effectsRegistered.Inc()
}

// OnRecordTrigger implements ripple.Introspector.
func (p *Prometheus) OnRecordTrigger(source, target ripple.EffectInfo, obj ripple.Reactive, evo ripple.Evolution) {
	p.triggersTotal.WithLabelValues(evo.Kind.String(), obj.Kind().String()).Inc()
	if source.ID == 0 {
		p.externalTriggers.Inc()
	}
}

// CaptureStack implements ripple.Introspector.
func (p *Prometheus) CaptureStack() string {
	if !p.config.CaptureStacks {
		return ""
	}
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)
	return string(buf[:n])
}

// Multi fans the introspection stream out to several adapters. CaptureStack
// returns the first non-empty snapshot.
func Multi(adapters ...ripple.Introspector) ripple.Introspector {
	return multi(adapters)
}

type multi []ripple.Introspector

func (m multi) OnRegisterEffect(e ripple.EffectInfo) {
	for _, in := range m {
		in.OnRegisterEffect(e)
	}
}

func (m multi) OnRecordTrigger(source, target ripple.EffectInfo, obj ripple.Reactive, evo ripple.Evolution) {
	for _, in := range m {
		in.OnRecordTrigger(source, target, obj, evo)
	}
}

func (m multi) CaptureStack() string {
	for _, in := range m {
		if s := in.CaptureStack(); s != "" {
			return s
		}
	}
	return ""
}
