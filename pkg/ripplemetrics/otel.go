package ripplemetrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ripplekit/ripple/pkg/ripple"
)

// Default tracer name for ripple runtimes.
const defaultTracerName = "ripple"

// OTelConfig configures the OpenTelemetry introspection adapter.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "ripple").
	TracerName string

	// IncludeNames includes effect debug names as span attributes.
	// Enabled by default.
	IncludeNames bool

	// Filter determines which triggers to record.
	// Return true to record; if nil, all triggers are recorded.
	Filter func(source, target ripple.EffectInfo) bool

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry introspection adapter.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeNames enables/disables effect names on spans.
func WithIncludeNames(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeNames = include
	}
}

// WithTriggerFilter sets a filter for trigger records.
func WithTriggerFilter(filter func(source, target ripple.EffectInfo) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// OTel is a ripple.Introspector that records every enqueue decision as a
// span on the configured tracer, carrying source/target effect ids, the
// mutated observable and the evolution kind.
//
// The tracer comes from the global OpenTelemetry tracer provider; configure
// that in main() before wiring the adapter:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	ripple.SetIntrospector(ripplemetrics.NewOTel())
type OTel struct {
	config OTelConfig
}

// NewOTel builds the adapter.
func NewOTel(opts ...OTelOption) *OTel {
	config := OTelConfig{
		TracerName:   defaultTracerName,
		IncludeNames: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &OTel{config: config}
}

// OnRegisterEffect implements ripple.Introspector.
func (o *OTel) OnRegisterEffect(e ripple.EffectInfo) {
	_, span := o.config.tracer.Start(context.Background(), "ripple.effect.register",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(o.effectAttrs("ripple.effect", e)...))
	span.End()
}

// OnRecordTrigger implements ripple.Introspector.
func (o *OTel) OnRecordTrigger(source, target ripple.EffectInfo, obj ripple.Reactive, evo ripple.Evolution) {
	if o.config.Filter != nil && !o.config.Filter(source, target) {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ripple.evolution", evo.String()),
		attribute.String("ripple.object_kind", obj.Kind().String()),
		attribute.Int64("ripple.object_id", int64(obj.ObservableID())),
	}
	attrs = append(attrs, o.effectAttrs("ripple.source", source)...)
	attrs = append(attrs, o.effectAttrs("ripple.target", target)...)
	_, span := o.config.tracer.Start(context.Background(), "ripple.trigger",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
	span.End()
}

// CaptureStack implements ripple.Introspector. The tracing adapter never
// captures stacks; combine with a Prometheus adapter configured for it, or a
// custom one.
func (o *OTel) CaptureStack() string { return "" }

func (o *OTel) effectAttrs(prefix string, e ripple.EffectInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64(prefix+"_id", int64(e.ID)),
	}
	if o.config.IncludeNames && e.Name != "" {
		attrs = append(attrs, attribute.String(prefix+"_name", e.Name))
	}
	return attrs
}
