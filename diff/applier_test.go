package diff

import (
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/decoder"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

func newTestScene(t *testing.T) (*scene.State, *decoder.Registry, *Applier) {
	t.Helper()
	reg := decoder.NewDefaultRegistry(zap.NewNop())
	st := scene.NewState()
	scene.ApplyCommands(st, reg, zap.NewNop(), []scene.Command{
		scene.CreateEntity{
			PersistentID: "e1",
			Components: []scene.ComponentInit{
				{Kind: component.KindTransform, Data: json.RawMessage(`{"position":[0,0,0]}`)},
			},
		},
	})
	return st, reg, NewApplier(reg, zap.NewNop())
}

func TestApplySetComponent(t *testing.T) {
	st, _, applier := newTestScene(t)

	batch := Batch{
		Sequence: 1,
		Diffs: []Diff{{
			Type:               TypeSetComponent,
			EntityPersistentID: "e1",
			Component: &ComponentDiff{
				Type: component.KindTransform,
				Data: json.RawMessage(`{"position":[1,2,3]}`),
			},
		}},
	}

	next, changes, err := applier.Apply(st, batch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != scene.ChangeComponentSet {
		t.Fatalf("changes = %+v", changes)
	}

	e, _ := next.ByPersistentID("e1")
	tr := e.Component(component.KindTransform).(component.Transform)
	if tr.Position != (component.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position = %+v, want [1,2,3]", tr.Position)
	}

	// Original untouched until swap.
	orig, _ := st.ByPersistentID("e1")
	otr := orig.Component(component.KindTransform).(component.Transform)
	if otr.Position != (component.Vec3{}) {
		t.Fatalf("input state mutated: %+v", otr.Position)
	}
}

func TestApplyOutOfOrderSequence(t *testing.T) {
	st, _, applier := newTestScene(t)

	first := Batch{Sequence: 1}
	st2, _, err := applier.Apply(st, first)
	if err != nil {
		t.Fatalf("apply seq 1: %v", err)
	}

	_, _, err = applier.Apply(st2, Batch{Sequence: 3})
	var seqErr *SequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("got %v, want SequenceError", err)
	}
	if seqErr.Expected != 2 || seqErr.Got != 3 {
		t.Fatalf("got expected=%d got=%d", seqErr.Expected, seqErr.Got)
	}
}

func TestApplyBatchRollsBack(t *testing.T) {
	st, _, applier := newTestScene(t)

	batch := Batch{
		Sequence: 1,
		Diffs: []Diff{
			{
				Type:               TypeSetComponent,
				EntityPersistentID: "e1",
				Component: &ComponentDiff{
					Type: component.KindTransform,
					Data: json.RawMessage(`{"position":[9,9,9]}`),
				},
			},
			{
				Type:               TypeRemoveEntity,
				EntityPersistentID: "ghost",
			},
		},
	}

	next, _, err := applier.Apply(st, batch)
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("got %v, want BatchError", err)
	}
	if batchErr.Index != 1 {
		t.Fatalf("failed at diff %d, want 1", batchErr.Index)
	}
	if next != st {
		t.Fatal("failed batch should return the input state")
	}

	e, _ := st.ByPersistentID("e1")
	tr := e.Component(component.KindTransform).(component.Transform)
	if tr.Position != (component.Vec3{}) {
		t.Fatalf("partial batch leaked: %+v", tr.Position)
	}

	// A failed batch does not consume the sequence number.
	if _, _, err := applier.Apply(st, Batch{Sequence: 1}); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestApplyAddAndRemoveEntity(t *testing.T) {
	st, _, applier := newTestScene(t)

	name := "spawned"
	parent := "e1"
	add := Batch{
		Sequence: 1,
		Diffs: []Diff{{
			Type:               TypeAddEntity,
			EntityPersistentID: "e2",
			Name:               &name,
			ParentPersistentID: &parent,
			Components: map[string]json.RawMessage{
				component.KindTransform: json.RawMessage(`{}`),
			},
		}},
	}

	st2, _, err := applier.Apply(st, add)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	e2, ok := st2.ByPersistentID("e2")
	if !ok {
		t.Fatal("e2 not created")
	}
	e1, _ := st2.ByPersistentID("e1")
	if e2.Parent != e1.ID || e2.Name != "spawned" {
		t.Fatalf("e2 = %+v", e2)
	}

	st3, _, err := applier.Apply(st2, Batch{
		Sequence: 2,
		Diffs:    []Diff{{Type: TypeRemoveEntity, EntityPersistentID: "e2"}},
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := st3.ByPersistentID("e2"); ok {
		t.Fatal("e2 survived removal")
	}
}

func TestApplyUpdateEntityRename(t *testing.T) {
	st, _, applier := newTestScene(t)

	name := "renamed"
	st2, _, err := applier.Apply(st, Batch{
		Sequence: 1,
		Diffs:    []Diff{{Type: TypeUpdateEntity, EntityPersistentID: "e1", Name: &name}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	e, _ := st2.ByPersistentID("e1")
	if e.Name != "renamed" {
		t.Fatalf("name = %q", e.Name)
	}
}

func TestApplyUnknownKindSkipped(t *testing.T) {
	st, _, applier := newTestScene(t)

	st2, changes, err := applier.Apply(st, Batch{
		Sequence: 1,
		Diffs: []Diff{{
			Type:               TypeSetComponent,
			EntityPersistentID: "e1",
			Component:          &ComponentDiff{Type: "Bogus", Data: json.RawMessage(`{}`)},
		}},
	})
	if err != nil {
		t.Fatalf("unknown kind should be non-fatal: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("changes = %+v", changes)
	}
	e, _ := st2.ByPersistentID("e1")
	if e.HasComponent("Bogus") {
		t.Fatal("bogus component landed")
	}
}

func TestParseBatchWire(t *testing.T) {
	data := []byte(`{
		"sequence": 1,
		"diffs": [
			{"type": "SetComponent", "entity_persistent_id": "e1",
			 "component": {"type": "Transform", "data": {"position": [1, 2, 3]}}}
		]
	}`)
	batch, err := ParseBatch(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if batch.Sequence != 1 || len(batch.Diffs) != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	d := batch.Diffs[0]
	if d.Type != TypeSetComponent || d.EntityPersistentID != "e1" || d.Component.Type != "Transform" {
		t.Fatalf("diff = %+v", d)
	}
}
