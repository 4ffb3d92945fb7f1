package ripplemetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ripplekit/ripple/pkg/ripple"
)

func TestPrometheusAdapterCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	adapter := NewPrometheus(WithRegistry(reg), WithNamespace("test"))

	realm := ripple.NewRealm()
	realm.SetIntrospector(adapter)

	state := realm.Wrap(map[string]any{"n": 0}).(*ripple.Record)
	realm.NewEffect(func(ripple.Access) ripple.Cleanup {
		_ = state.Get("n")
		return nil
	})

	state.Set("n", 1)
	state.Set("n", 2)

	if got := testutil.ToFloat64(adapter.effectsRegistered); got != 1 {
		t.Errorf("effects_registered_total=%v, want 1", got)
	}
	if got := testutil.ToFloat64(adapter.triggersTotal.WithLabelValues("set", "record")); got != 2 {
		t.Errorf("triggers_total{set,record}=%v, want 2", got)
	}
	if got := testutil.ToFloat64(adapter.externalTriggers); got != 2 {
		t.Errorf("external_triggers_total=%v, want 2", got)
	}
}

func TestMultiFansOut(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	a := NewPrometheus(WithRegistry(reg1))
	b := NewPrometheus(WithRegistry(reg2))

	realm := ripple.NewRealm()
	realm.SetIntrospector(Multi(a, b))
	realm.NewEffect(func(ripple.Access) ripple.Cleanup { return nil })

	if testutil.ToFloat64(a.effectsRegistered) != 1 || testutil.ToFloat64(b.effectsRegistered) != 1 {
		t.Error("both adapters should observe the registration")
	}
}

func TestCaptureStackGated(t *testing.T) {
	reg := prometheus.NewRegistry()
	off := NewPrometheus(WithRegistry(reg))
	if off.CaptureStack() != "" {
		t.Error("stack capture should be off by default")
	}
	reg2 := prometheus.NewRegistry()
	on := NewPrometheus(WithRegistry(reg2), WithStackCapture(true))
	if on.CaptureStack() == "" {
		t.Error("stack capture should produce a snapshot when enabled")
	}
}
