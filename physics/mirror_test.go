package physics

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/decoder"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

func newPhysicsScene(t *testing.T, bodyType string, y float64) (*scene.State, *decoder.Registry, *Mirror, scene.EntityID) {
	t.Helper()
	reg := decoder.NewDefaultRegistry(zap.NewNop())
	st := scene.NewState()
	bus := events.NewBus(zap.NewNop())
	mirror := NewMirror(bus, zap.NewNop())

	changes := scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
		scene.CreateEntity{
			PersistentID: "e1",
			Components: []scene.ComponentInit{
				{Kind: component.KindTransform, Data: mustJSON(t, map[string]any{"position": []float64{0, y, 0}})},
				{Kind: component.KindRigidBody, Data: mustJSON(t, map[string]any{"type": bodyType})},
				{Kind: component.KindMeshCollider, Data: json.RawMessage(`{"shape":"box"}`)},
			},
		},
	})
	mirror.Sync(st, changes)

	e, _ := st.ByPersistentID("e1")
	return st, reg, mirror, e.ID
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestDynamicBodyFallsUnderGravity(t *testing.T) {
	st, reg, mirror, id := newPhysicsScene(t, "dynamic", 10)

	cmds := mirror.Step(st, 1.0/60)
	if len(cmds) != 1 {
		t.Fatalf("got %d readback commands, want 1", len(cmds))
	}
	scene.ApplyCommands(st, reg, zap.NewNop(), cmds)

	e, _ := st.Entity(id)
	tr := e.Component(component.KindTransform).(component.Transform)
	if tr.Position.Y >= 10 {
		t.Fatalf("y = %v, want < 10 after gravity step", tr.Position.Y)
	}
	if tr.Position.Z != 0 {
		t.Fatalf("z leaked: %v", tr.Position.Z)
	}
}

func TestFixedBodyStaysPut(t *testing.T) {
	st, _, mirror, _ := newPhysicsScene(t, "static", 10)

	cmds := mirror.Step(st, 1.0/60)
	if len(cmds) != 0 {
		t.Fatalf("fixed body produced readback: %+v", cmds)
	}
}

func TestTransformPushOverridesDynamicBody(t *testing.T) {
	st, reg, mirror, id := newPhysicsScene(t, "dynamic", 0)

	// Let it fall, then teleport it back up through the scene.
	scene.ApplyCommands(st, reg, zap.NewNop(), mirror.Step(st, 1.0/60))

	changes := scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
		scene.SetComponent{
			Entity: id,
			Kind:   component.KindTransform,
			Data:   json.RawMessage(`{"position":[0,10,0]}`),
		},
	})
	mirror.Sync(st, changes)

	scene.ApplyCommands(st, reg, zap.NewNop(), mirror.Step(st, 1.0/60))
	e, _ := st.Entity(id)
	tr := e.Component(component.KindTransform).(component.Transform)
	if tr.Position.Y >= 10 || tr.Position.Y < 9 {
		t.Fatalf("y = %v, want just under 10", tr.Position.Y)
	}
}

func TestDestroyRemovesBody(t *testing.T) {
	st, reg, mirror, id := newPhysicsScene(t, "dynamic", 0)
	if mirror.BodyCount() != 1 {
		t.Fatalf("bodies = %d, want 1", mirror.BodyCount())
	}

	changes := scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
		scene.DestroyEntity{Entity: id},
	})
	mirror.Sync(st, changes)

	if mirror.BodyCount() != 0 {
		t.Fatalf("bodies = %d, want 0", mirror.BodyCount())
	}
	if cmds := mirror.Step(st, 1.0/60); len(cmds) != 0 {
		t.Fatalf("dead body produced readback: %+v", cmds)
	}
}

func TestRemoveRigidBodyComponentRemovesBody(t *testing.T) {
	st, reg, mirror, id := newPhysicsScene(t, "dynamic", 0)

	changes := scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
		scene.RemoveComponent{Entity: id, Kind: component.KindRigidBody},
	})
	mirror.Sync(st, changes)

	if mirror.BodyCount() != 0 {
		t.Fatalf("bodies = %d, want 0", mirror.BodyCount())
	}
}

func TestCollisionEmitsBusEvents(t *testing.T) {
	reg := decoder.NewDefaultRegistry(zap.NewNop())
	st := scene.NewState()
	bus := events.NewBus(zap.NewNop())
	mirror := NewMirror(bus, zap.NewNop())

	mkEntity := func(pid string, y float64, bodyType string) scene.EntityID {
		changes := scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
			scene.CreateEntity{
				PersistentID: pid,
				Components: []scene.ComponentInit{
					{Kind: component.KindTransform, Data: mustJSON(t, map[string]any{"position": []float64{0, y, 0}})},
					{Kind: component.KindRigidBody, Data: mustJSON(t, map[string]any{"type": bodyType})},
					{Kind: component.KindMeshCollider, Data: json.RawMessage(`{"shape":"box","sizeX":100,"sizeY":1}`)},
				},
			},
		})
		mirror.Sync(st, changes)
		e, _ := st.ByPersistentID(pid)
		return e.ID
	}

	mkEntity("floor", 0, "static")
	faller := mkEntity("faller", 2, "dynamic")

	var collisions []map[string]any
	bus.On(scene.NoEntity, events.KeyPhysicsCollision, func(env events.Envelope) error {
		collisions = append(collisions, env.Payload.(map[string]any))
		return nil
	})

	for i := 0; i < 240 && len(collisions) == 0; i++ {
		scene.ApplyCommands(st, reg, zap.NewNop(), mirror.Step(st, 1.0/60))
		bus.Pump()
	}

	if len(collisions) == 0 {
		t.Fatal("no collision event after 4 simulated seconds")
	}
	c := collisions[0]
	if c["entityA"] != uint64(faller) && c["entityB"] != uint64(faller) {
		t.Fatalf("collision %+v does not involve the falling body", c)
	}
}
