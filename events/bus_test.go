package events

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

func TestBroadcastDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got []string
	bus.On(scene.NoEntity, "k", func(env Envelope) error {
		got = append(got, "first:"+env.Payload.(string))
		return nil
	})
	bus.On(scene.NoEntity, "k", func(env Envelope) error {
		got = append(got, "second:"+env.Payload.(string))
		return nil
	})

	bus.Emit("k", "a")
	bus.Emit("k", "b")
	bus.Pump()

	// FIFO by emit order, registration order per event.
	want := []string{"first:a", "second:a", "first:b", "second:b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTargetedEmitSkipsGlobalSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	e1 := scene.EntityID(1)

	globalFired := 0
	scopedFired := 0
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		globalFired++
		return nil
	})
	bus.OnEntity(e1, e1, "k", func(Envelope) error {
		scopedFired++
		return nil
	})

	bus.EmitTo(e1, "k", nil)
	bus.Pump()

	if scopedFired != 1 {
		t.Fatalf("scoped subscriber fired %d times, want 1", scopedFired)
	}
	if globalFired != 0 {
		t.Fatalf("global subscriber fired %d times on targeted emit, want 0", globalFired)
	}
}

func TestBroadcastSkipsEntityScopedSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	e1 := scene.EntityID(1)

	fired := 0
	bus.OnEntity(e1, e1, "k", func(Envelope) error {
		fired++
		return nil
	})

	bus.Emit("k", nil)
	bus.Pump()

	if fired != 0 {
		t.Fatalf("entity-scoped subscriber fired %d times on broadcast, want 0", fired)
	}
}

func TestEmitDuringDeliveryQueuesForNextPump(t *testing.T) {
	bus := NewBus(zap.NewNop())

	fired := 0
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		fired++
		if fired == 1 {
			bus.Emit("k", nil)
		}
		return nil
	})

	bus.Emit("k", nil)
	bus.Pump()
	if fired != 1 {
		t.Fatalf("re-emitted event delivered in same pump: fired %d", fired)
	}

	bus.Pump()
	if fired != 2 {
		t.Fatalf("re-emitted event lost: fired %d", fired)
	}
}

func TestHandlerErrorIsolated(t *testing.T) {
	bus := NewBus(zap.NewNop())

	fired := false
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		return errors.New("boom")
	})
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		fired = true
		return nil
	})

	bus.Emit("k", nil)
	bus.Pump()

	if !fired {
		t.Fatal("later subscriber starved by failing handler")
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	bus := NewBus(zap.NewNop())

	fired := false
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		panic("boom")
	})
	bus.On(scene.NoEntity, "k", func(Envelope) error {
		fired = true
		return nil
	})

	bus.Emit("k", nil)
	bus.Pump()

	if !fired {
		t.Fatal("later subscriber starved by panicking handler")
	}
}

func TestOff(t *testing.T) {
	bus := NewBus(zap.NewNop())

	fired := 0
	id := bus.On(scene.NoEntity, "k", func(Envelope) error {
		fired++
		return nil
	})

	bus.Emit("k", nil)
	bus.Pump()
	bus.Off(id)
	bus.Emit("k", nil)
	bus.Pump()

	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
}

func TestDropOwnerRemovesAllSubscriptions(t *testing.T) {
	bus := NewBus(zap.NewNop())
	e1 := scene.EntityID(1)

	fired := 0
	bus.On(e1, "k", func(Envelope) error {
		fired++
		return nil
	})
	bus.OnEntity(e1, e1, "k", func(Envelope) error {
		fired++
		return nil
	})

	bus.DropOwner(e1)
	bus.Emit("k", nil)
	bus.EmitTo(e1, "k", nil)
	bus.Pump()

	if fired != 0 {
		t.Fatalf("destroyed owner still received %d events", fired)
	}
}

func TestEmitToMany(t *testing.T) {
	bus := NewBus(zap.NewNop())
	targets := []scene.EntityID{1, 2, 3}

	var got []scene.EntityID
	for _, id := range targets {
		id := id
		bus.OnEntity(id, id, "k", func(Envelope) error {
			got = append(got, id)
			return nil
		})
	}

	bus.EmitToMany(targets, "k", nil)
	bus.Pump()

	if len(got) != 3 {
		t.Fatalf("got %v, want all of %v", got, targets)
	}
	for i, id := range targets {
		if got[i] != id {
			t.Fatalf("got %v, want %v", got, targets)
		}
	}
}
