package scene

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/decoder"
)

func newTestState(t *testing.T) (*State, *decoder.Registry) {
	t.Helper()
	return NewState(), decoder.NewDefaultRegistry(zap.NewNop())
}

func mustCreate(t *testing.T, st *State, dec ComponentDecoder, cmd CreateEntity) EntityID {
	t.Helper()
	changes := ApplyCommands(st, dec, zap.NewNop(), []Command{cmd})
	if len(changes) == 0 || changes[0].Kind != ChangeEntityCreated {
		t.Fatalf("create produced no entity: %+v", changes)
	}
	return changes[0].Entity
}

func TestCreateEntityWithComponents(t *testing.T) {
	st, reg := newTestState(t)

	id := mustCreate(t, st, reg, CreateEntity{
		PersistentID: "e1",
		Name:         "player",
		Components: []ComponentInit{
			{Kind: component.KindTransform, Data: json.RawMessage(`{"position":[1,2,3]}`)},
			{Kind: component.KindRigidBody, Data: json.RawMessage(`{"type":"dynamic"}`)},
		},
	})

	e, ok := st.Entity(id)
	if !ok {
		t.Fatal("entity not found after create")
	}
	if e.Name != "player" || !e.Active {
		t.Fatalf("entity = %+v", e)
	}
	tr, ok := e.Component(component.KindTransform).(component.Transform)
	if !ok {
		t.Fatalf("transform missing: %+v", e.Components)
	}
	if tr.Position != (component.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position = %+v", tr.Position)
	}

	// Hash-derived ids are stable across reloads.
	if id != HashPersistentID("e1") {
		t.Fatalf("id %d not derived from persistent id", id)
	}
}

func TestCreateEntityDropsBadComponent(t *testing.T) {
	st, reg := newTestState(t)

	id := mustCreate(t, st, reg, CreateEntity{
		PersistentID: "e1",
		Components: []ComponentInit{
			{Kind: component.KindScript, Data: json.RawMessage(`{"enabled":true}`)},
			{Kind: component.KindTransform, Data: json.RawMessage(`{}`)},
		},
	})

	e, _ := st.Entity(id)
	if e.HasComponent(component.KindScript) {
		t.Fatal("script with missing required field should be dropped")
	}
	if !e.HasComponent(component.KindTransform) {
		t.Fatal("entity should survive with remaining components")
	}
}

func TestDestroyCascades(t *testing.T) {
	st, reg := newTestState(t)

	a := mustCreate(t, st, reg, CreateEntity{PersistentID: "a"})
	b := mustCreate(t, st, reg, CreateEntity{PersistentID: "b", Parent: a})
	c := mustCreate(t, st, reg, CreateEntity{PersistentID: "c", Parent: b})

	changes := ApplyCommands(st, reg, zap.NewNop(), []Command{DestroyEntity{Entity: a}})
	if len(changes) != 3 {
		t.Fatalf("got %d destroy changes, want 3: %+v", len(changes), changes)
	}
	for _, id := range []EntityID{a, b, c} {
		if _, ok := st.Entity(id); ok {
			t.Fatalf("entity %d survived cascade", id)
		}
	}
	if st.Len() != 0 {
		t.Fatalf("state has %d entities, want 0", st.Len())
	}
}

func TestSetComponentAfterDestroyIsNoop(t *testing.T) {
	st, reg := newTestState(t)
	e1 := mustCreate(t, st, reg, CreateEntity{PersistentID: "e1"})

	before := st.Len()
	ApplyCommands(st, reg, zap.NewNop(), []Command{
		DestroyEntity{Entity: e1},
		SetComponent{Entity: e1, Kind: component.KindTransform, Data: json.RawMessage(`{}`)},
	})
	if st.Len() != before-1 {
		t.Fatalf("state has %d entities, want %d", st.Len(), before-1)
	}
	if _, ok := st.Entity(e1); ok {
		t.Fatal("destroyed entity resurrected by later SetComponent")
	}
}

func TestDestroyedIDNeverReissued(t *testing.T) {
	st, reg := newTestState(t)

	first := mustCreate(t, st, reg, CreateEntity{PersistentID: "e1"})
	ApplyCommands(st, reg, zap.NewNop(), []Command{DestroyEntity{Entity: first}})

	second := mustCreate(t, st, reg, CreateEntity{PersistentID: "e1"})
	if second == first {
		t.Fatalf("id %d was reissued after destroy", first)
	}
	if _, ok := st.Entity(first); ok {
		t.Fatalf("destroyed entity %d still resolvable", first)
	}
	e, ok := st.ByPersistentID("e1")
	if !ok || e.ID != second {
		t.Fatalf("persistent id resolves to %v, want %d", e, second)
	}
}

func TestSetParentCycleRejected(t *testing.T) {
	st, reg := newTestState(t)

	a := mustCreate(t, st, reg, CreateEntity{PersistentID: "a"})
	b := mustCreate(t, st, reg, CreateEntity{PersistentID: "b", Parent: a})

	changes := ApplyCommands(st, reg, zap.NewNop(), []Command{SetParent{Entity: a, Parent: b}})
	if len(changes) != 0 {
		t.Fatalf("cycle-forming reparent produced changes: %+v", changes)
	}
	ea, _ := st.Entity(a)
	if ea.Parent != NoEntity {
		t.Fatalf("a.Parent = %d, want root", ea.Parent)
	}
	eb, _ := st.Entity(b)
	if eb.Parent != a {
		t.Fatalf("b.Parent = %d, want %d", eb.Parent, a)
	}
}

func TestSelfParentRejected(t *testing.T) {
	st, reg := newTestState(t)
	a := mustCreate(t, st, reg, CreateEntity{PersistentID: "a"})

	changes := ApplyCommands(st, reg, zap.NewNop(), []Command{SetParent{Entity: a, Parent: a}})
	if len(changes) != 0 {
		t.Fatal("self-parenting should be rejected")
	}
}

// The parent graph stays a forest under any command sequence.
func TestParentGraphIsForest(t *testing.T) {
	st, reg := newTestState(t)

	a := mustCreate(t, st, reg, CreateEntity{PersistentID: "a"})
	b := mustCreate(t, st, reg, CreateEntity{PersistentID: "b"})
	c := mustCreate(t, st, reg, CreateEntity{PersistentID: "c"})

	ApplyCommands(st, reg, zap.NewNop(), []Command{
		SetParent{Entity: b, Parent: a},
		SetParent{Entity: c, Parent: b},
		SetParent{Entity: a, Parent: c}, // rejected
		SetParent{Entity: c, Parent: a},
		SetParent{Entity: b, Parent: c},
	})

	for _, id := range st.Entities() {
		seen := map[EntityID]struct{}{}
		for cur := id; cur != NoEntity; {
			if _, dup := seen[cur]; dup {
				t.Fatalf("cycle reachable from entity %d", id)
			}
			seen[cur] = struct{}{}
			e, ok := st.Entity(cur)
			if !ok {
				t.Fatalf("dangling parent pointer from %d", id)
			}
			cur = e.Parent
		}
	}
}

func TestSetComponentUnknownKindRejected(t *testing.T) {
	st, reg := newTestState(t)
	e1 := mustCreate(t, st, reg, CreateEntity{PersistentID: "e1"})

	changes := ApplyCommands(st, reg, zap.NewNop(), []Command{
		SetComponent{Entity: e1, Kind: "Bogus", Data: json.RawMessage(`{}`)},
	})
	if len(changes) != 0 {
		t.Fatalf("unknown kind produced changes: %+v", changes)
	}
}

func TestSetActiveEmitsChangeOnEdgeOnly(t *testing.T) {
	st, reg := newTestState(t)
	e1 := mustCreate(t, st, reg, CreateEntity{PersistentID: "e1"})

	changes := ApplyCommands(st, reg, zap.NewNop(), []Command{
		SetActive{Entity: e1, Active: true}, // already active
		SetActive{Entity: e1, Active: false},
	})
	if len(changes) != 1 || changes[0].Kind != ChangeActiveChanged {
		t.Fatalf("changes = %+v, want one ActiveChanged", changes)
	}
	e, _ := st.Entity(e1)
	if e.Active {
		t.Fatal("entity still active")
	}
}

func TestCommandBufferDrainOrder(t *testing.T) {
	buf := NewCommandBuffer()
	buf.Enqueue(SetActive{Entity: 1, Active: false})
	buf.Enqueue(SetActive{Entity: 2, Active: false}, SetActive{Entity: 3, Active: false})

	cmds := buf.Drain()
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}
	for i, want := range []EntityID{1, 2, 3} {
		if got := cmds[i].(SetActive).Entity; got != want {
			t.Fatalf("cmds[%d].Entity = %d, want %d", i, got, want)
		}
	}
	if buf.Len() != 0 {
		t.Fatal("buffer not empty after drain")
	}
}
