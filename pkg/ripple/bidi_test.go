package ripple

import "testing"

func TestBiDiPushesReactiveChangesOut(t *testing.T) {
	state := DefaultRealm().Wrap(map[string]any{"v": 1}).(*Record)

	var external []int
	provide, stop := BiDi(
		func(v int) { external = append(external, v) },
		func() int { return state.Get("v").(int) },
		func(v int) { state.Set("v", v) },
	)
	defer stop()

	if len(external) != 1 || external[0] != 1 {
		t.Fatalf("initial push: %v", external)
	}

	state.Set("v", 2)
	if len(external) != 2 || external[1] != 2 {
		t.Errorf("reactive change should push out: %v", external)
	}

	// External -> reactive must not echo back out.
	provide(9)
	if got := state.Get("v"); got != 9 {
		t.Errorf("provide should write the reactive side: %v", got)
	}
	if len(external) != 2 {
		t.Errorf("provide must suppress its own re-trigger: %v", external)
	}

	// And the binding keeps working afterwards.
	state.Set("v", 10)
	if len(external) != 3 || external[2] != 10 {
		t.Errorf("binding should stay live after provide: %v", external)
	}
}
