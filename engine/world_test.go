package engine

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/diff"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/prefab"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

func newTestWorld(t *testing.T, scripts map[string]string) *World {
	t.Helper()
	cfg := DefaultConfig()
	if len(scripts) > 0 {
		dir := t.TempDir()
		for name, src := range scripts {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
				t.Fatalf("write script: %v", err)
			}
		}
		cfg.Script.Dir = dir
	}
	return NewWorld(zap.NewNop(), cfg, nil)
}

func transformOf(t *testing.T, w *World, pid string) component.Transform {
	t.Helper()
	e, ok := w.State().ByPersistentID(pid)
	if !ok {
		t.Fatalf("entity %s not found", pid)
	}
	tr, ok := e.Component(component.KindTransform).(component.Transform)
	if !ok {
		t.Fatalf("entity %s has no transform", pid)
	}
	return tr
}

func TestLoadSceneEmitsLoadedEvent(t *testing.T) {
	w := newTestWorld(t, nil)

	var loaded bool
	w.Bus().On(scene.NoEntity, events.KeySceneLoaded, func(env events.Envelope) error {
		loaded = true
		return nil
	})

	if err := w.LoadScene([]byte(`{
		"name": "demo", "version": 3,
		"entities": [
			{"persistentId": "root", "name": "Root", "components": {"Transform": {}}}
		]
	}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	w.Step(1.0 / 60)
	if !loaded {
		t.Fatal("scene:loaded never delivered")
	}
	if w.EntityCount() != 1 {
		t.Fatalf("entity count = %d, want 1", w.EntityCount())
	}
}

func TestScriptTeleportThenGravityPullsBackDown(t *testing.T) {
	w := newTestWorld(t, map[string]string{
		"teleport.tengo": `
onStart := func() {
	entity.setPosition([0, 10, 0])
}`,
	})
	if err := w.LoadScene([]byte(`{
		"name": "phys", "version": 1,
		"entities": [{
			"persistentId": "e1",
			"components": {
				"Transform": {"position": [0, 0, 0]},
				"RigidBody": {"type": "dynamic"},
				"MeshCollider": {"shape": "box"},
				"Script": {"scriptPath": "teleport.tengo", "enabled": true}
			}
		}]
	}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	w.Step(1.0 / 60)
	y1 := transformOf(t, w, "e1").Position.Y
	if y1 > 10 {
		t.Fatalf("frame 1 y = %v, want at most 10", y1)
	}
	if y1 < 9.9 {
		t.Fatalf("frame 1 y = %v, teleport did not land before physics", y1)
	}

	w.Step(1.0 / 60)
	y2 := transformOf(t, w, "e1").Position.Y
	if y2 >= y1 {
		t.Fatalf("frame 2 y = %v, want strictly below %v under gravity", y2, y1)
	}
}

func TestDiffBatchAppliesThroughStep(t *testing.T) {
	w := newTestWorld(t, nil)
	if err := w.LoadScene([]byte(`{
		"name": "d", "version": 1,
		"entities": [{"persistentId": "e1", "components": {"Transform": {}}}]
	}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	batch, err := diff.ParseBatch([]byte(`{
		"sequence": 1,
		"diffs": [{
			"type": "SetComponent",
			"entity_persistent_id": "e1",
			"component": {"type": "Transform", "data": {"position": [5, 0, 0]}}
		}]
	}`))
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	w.QueueDiff(batch)
	w.Step(1.0 / 60)

	if got := transformOf(t, w, "e1").Position.X; got != 5 {
		t.Fatalf("x = %v, want 5 from diff", got)
	}

	// A gap in sequence numbers is rejected, the scene stays put.
	gap := batch
	gap.Sequence = 3
	w.QueueDiff(gap)
	w.Step(1.0 / 60)
	if got := transformOf(t, w, "e1").Position.X; got != 5 {
		t.Fatalf("x = %v after rejected batch, want 5", got)
	}
}

func TestReservedEventsFollowSpawnAndDestroy(t *testing.T) {
	w := newTestWorld(t, map[string]string{
		"spawner.tengo": `
onStart := func() {
	entity.setComponent("Light", {lightType: "point"})
}
onUpdate := func(dt) {
	if time.frameCount > 1 {
		entity.destroy()
	}
}`,
	})
	if err := w.LoadScene([]byte(`{
		"name": "ev", "version": 1,
		"entities": [{
			"persistentId": "e1",
			"components": {
				"Transform": {},
				"Script": {"scriptPath": "spawner.tengo", "enabled": true}
			}
		}]
	}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	var added []string
	var destroyed int
	w.Bus().On(scene.NoEntity, events.KeyComponentAdded, func(env events.Envelope) error {
		payload := env.Payload.(map[string]any)
		added = append(added, payload["component"].(string))
		return nil
	})
	w.Bus().On(scene.NoEntity, events.KeyEntityDestroyed, func(env events.Envelope) error {
		destroyed++
		return nil
	})

	w.Step(1.0 / 60)
	w.Step(1.0 / 60)
	w.Step(1.0 / 60)
	w.Step(1.0 / 60)

	var sawLight bool
	for _, kind := range added {
		if kind == component.KindLight {
			sawLight = true
		}
	}
	if !sawLight {
		t.Fatalf("componentAdded events %v missing Light", added)
	}
	if destroyed != 1 {
		t.Fatalf("destroyed events = %d, want 1", destroyed)
	}
	if w.EntityCount() != 0 {
		t.Fatalf("entity count = %d after destroy, want 0", w.EntityCount())
	}
}

func TestRaycastHitsSceneEntity(t *testing.T) {
	w := newTestWorld(t, nil)
	if err := w.LoadScene([]byte(`{
		"name": "ray", "version": 1,
		"entities": [{
			"persistentId": "box",
			"components": {
				"Transform": {"position": [0, 0, 5]},
				"MeshCollider": {"shape": "box", "sizeX": 2, "sizeY": 2, "sizeZ": 2}
			}
		}]
	}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	hit, ok := w.Raycast(component.Vec3{}, component.Vec3{Z: 1}, 100)
	if !ok {
		t.Fatal("ray missed the box")
	}
	e, _ := w.State().ByPersistentID("box")
	if hit.Entity != e.ID {
		t.Fatalf("hit entity %d, want %d", hit.Entity, e.ID)
	}
}

func TestFrameTimingAdvances(t *testing.T) {
	w := newTestWorld(t, nil)
	for i := 0; i < 3; i++ {
		w.Step(0.5)
	}
	if w.Time() != 1.5 {
		t.Fatalf("time = %v, want 1.5", w.Time())
	}
	if w.FrameCount() != 3 {
		t.Fatalf("frames = %d, want 3", w.FrameCount())
	}
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vibed.yaml")
	if err := os.WriteFile(path, []byte("fixedStep: 0.02\nscript:\n  budgetMillis: 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.FixedStep != 0.02 {
		t.Fatalf("fixedStep = %v, want 0.02", cfg.FixedStep)
	}
	if cfg.Script.BudgetMillis != 4 {
		t.Fatalf("budgetMillis = %d, want 4", cfg.Script.BudgetMillis)
	}
	if cfg.Gravity.Y != -9.81 {
		t.Fatalf("gravity default lost: %v", cfg.Gravity.Y)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing config did not error")
	}
}

func TestSpawnPrefabAddsEntitiesNextFrame(t *testing.T) {
	w := newTestWorld(t, nil)
	if err := w.LoadScene([]byte(`{"name": "p", "version": 1, "entities": []}`)); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}

	p, err := prefab.Parse([]byte(`
id: crate
name: Crate
entities:
  - persistentId: body
    name: CrateBody
    components:
      Transform:
        position: [0, 1, 0]
`))
	if err != nil {
		t.Fatalf("parse prefab: %v", err)
	}
	w.RegisterPrefab(p)

	if err := w.SpawnPrefab("crate", nil, scene.NoEntity); err != nil {
		t.Fatalf("SpawnPrefab: %v", err)
	}
	if w.EntityCount() != 0 {
		t.Fatal("prefab applied before the frame flush")
	}

	w.Step(1.0 / 60)
	if w.EntityCount() != 1 {
		t.Fatalf("entity count = %d, want 1 after flush", w.EntityCount())
	}
}
