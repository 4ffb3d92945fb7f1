package ripple

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := newError(KindCycle, "between %s and %s", "a", "b")
	if !errors.Is(err, ErrCycleDetected) {
		t.Error("cycle errors should match ErrCycleDetected")
	}
	if errors.Is(err, ErrBrokenEffects) {
		t.Error("kinds must not cross-match")
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("inner")
	err := newError(KindTracking, "outer").wrap(cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped causes should match through errors.Is")
	}
	if !errors.Is(err, ErrTracking) {
		t.Error("the sentinel should still match")
	}
}

func TestErrorMessageCarriesChain(t *testing.T) {
	err := newError(KindCycle, "cycle").withChain([]EffectInfo{
		{ID: 1, Name: "producer"},
		{ID: 2},
	})
	msg := err.Error()
	if !strings.Contains(msg, "producer") || !strings.Contains(msg, "#2") {
		t.Errorf("chain should render into the message: %q", msg)
	}
}

func TestEvolutionStrings(t *testing.T) {
	cases := map[string]Evolution{
		"set(a)":       Set(Key("a")),
		"add(3)":       Add(Index(3)),
		"del(length)":  Del(LengthProp),
		"bunch(sort)":  Bunch("sort"),
		"invalidate(<all>)": Invalidate(AllProps),
	}
	for want, evo := range cases {
		if got := evo.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", evo.Kind, got, want)
		}
	}
}
