package forge

import (
	"testing"
)

func TestSignalSubscribeEmit(t *testing.T) {
	var sig Signal[int]

	var got []int
	sig.Subscribe(func(v int) { got = append(got, v) })
	sig.Subscribe(func(v int) { got = append(got, v*10) })

	sig.Emit(3)

	if len(got) != 2 || got[0] != 3 || got[1] != 30 {
		t.Errorf("every subscriber sees the value, got %v", got)
	}
}

func TestSignalUnsubscribe(t *testing.T) {
	var sig Signal[string]

	calls := 0
	handle := sig.Subscribe(func(string) { calls++ })
	keep := 0
	sig.Subscribe(func(string) { keep++ })

	sig.Emit("a")
	handle()
	sig.Emit("b")

	if calls != 1 {
		t.Errorf("unsubscribed handlers stop firing, got %d", calls)
	}
	if keep != 2 {
		t.Errorf("other handlers are unaffected, got %d", keep)
	}
	if sig.Len() != 1 {
		t.Errorf("Len reflects live subscriptions, got %d", sig.Len())
	}

	// Unsubscribing twice is harmless.
	handle()
}

func TestSignalEmitDuringSubscribeSnapshot(t *testing.T) {
	var sig Signal[int]

	calls := 0
	sig.Subscribe(func(int) {
		calls++
		if calls == 1 {
			// Adding a subscriber mid-emit must not make it fire for
			// the in-flight event.
			sig.Subscribe(func(int) { calls += 100 })
		}
	})

	sig.Emit(1)
	if calls != 1 {
		t.Errorf("mid-emit subscribers wait for the next event, got %d", calls)
	}
}
