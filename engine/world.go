package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/decoder"
	"github.com/jonit-dev/vibe-coder-3d-sub003/diff"
	"github.com/jonit-dev/vibe-coder-3d-sub003/events"
	"github.com/jonit-dev/vibe-coder-3d-sub003/input"
	"github.com/jonit-dev/vibe-coder-3d-sub003/physics"
	"github.com/jonit-dev/vibe-coder-3d-sub003/prefab"
	"github.com/jonit-dev/vibe-coder-3d-sub003/render"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
	"github.com/jonit-dev/vibe-coder-3d-sub003/script"
	"github.com/jonit-dev/vibe-coder-3d-sub003/spatial"
)

// World is the facade over the whole runtime. One World, one scene,
// one frame loop. All methods are frame-thread only unless noted.
type World struct {
	lg       *zap.Logger
	cfg      Config
	registry *decoder.Registry
	bus      *events.Bus
	state    *scene.State
	cmds     *scene.CommandBuffer
	applier  *diff.Applier
	host     *script.Host
	physics  *physics.Mirror
	renderer *render.Mirror
	index    *spatial.Index
	prefabs  *prefab.Registry
	input    *input.Collector

	diffMu       sync.Mutex
	pendingDiffs []diff.Batch

	meshes  map[scene.EntityID]*spatial.MeshBVH
	indexed map[scene.EntityID]struct{}

	time       float64
	delta      float64
	frameCount uint64
}

// NewWorld wires the subsystems. backend may be nil for headless runs;
// render sync is skipped entirely then.
func NewWorld(lg *zap.Logger, cfg Config, backend render.Backend) *World {
	registry := decoder.NewDefaultRegistry(lg)
	bus := events.NewBus(lg)
	index := spatial.NewIndex(lg)

	loader := os.ReadFile
	if cfg.Script.Dir != "" {
		dir := cfg.Script.Dir
		loader = func(path string) ([]byte, error) {
			return os.ReadFile(filepath.Join(dir, path))
		}
	}

	w := &World{
		lg:       lg,
		cfg:      cfg,
		registry: registry,
		bus:      bus,
		state:    scene.NewState(),
		cmds:     scene.NewCommandBuffer(),
		applier:  diff.NewApplier(registry, lg),
		physics:  physics.NewMirror(bus, lg),
		index:    index,
		prefabs:  prefab.NewRegistry(lg),
		input:    input.NewCollector(),
		meshes:   map[scene.EntityID]*spatial.MeshBVH{},
		indexed:  map[scene.EntityID]struct{}{},
	}
	w.host = script.NewHost(lg, bus, index, script.Config{
		Loader:   loader,
		Budget:   time.Duration(cfg.Script.BudgetMillis) * time.Millisecond,
		Parallel: cfg.Script.Parallel,
	})
	if cfg.Gravity.X != 0 || cfg.Gravity.Y != 0 {
		w.physics.SetGravity(cfg.Gravity.X, cfg.Gravity.Y)
	}
	if backend != nil {
		w.renderer = render.NewMirror(backend, lg)
	}
	return w
}

// LoadScene replaces the current scene with the parsed document and
// resets the diff sequence. Emits scene:loaded once the state is built.
func (w *World) LoadScene(data []byte) error {
	doc, err := scene.ParseDocument(data)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	doc.Normalize()

	st, err := scene.BuildState(doc, w.registry, w.lg)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}

	if w.state.Len() > 0 {
		w.bus.Emit(events.KeySceneUnloaded, map[string]any{"name": w.state.Name})
	}
	w.state = st
	w.applier.Reset(0)
	w.input.BindActions(doc.InputAssets)
	w.meshes = map[scene.EntityID]*spatial.MeshBVH{}

	// Back-ends see the fresh scene as one big creation batch.
	created := make([]scene.Change, 0, st.Len())
	for _, id := range st.Entities() {
		created = append(created, scene.Change{Kind: scene.ChangeEntityCreated, Entity: id})
	}
	w.physics.Sync(st, created)
	w.updateSpatial()
	if w.renderer != nil {
		w.renderer.Sync(st)
	}

	w.bus.Emit(events.KeySceneLoaded, map[string]any{
		"name":        st.Name,
		"version":     st.Version,
		"entityCount": st.Len(),
	})
	w.lg.Info("scene loaded",
		zap.String("name", st.Name),
		zap.Uint32("version", st.Version),
		zap.Int("entities", st.Len()))
	return nil
}

// LoadSceneFile is LoadScene over a path.
func (w *World) LoadSceneFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	return w.LoadScene(data)
}

// QueueDiff hands an editor batch to the next frame. Safe to call from
// any goroutine.
func (w *World) QueueDiff(b diff.Batch) {
	w.diffMu.Lock()
	w.pendingDiffs = append(w.pendingDiffs, b)
	w.diffMu.Unlock()
}

func (w *World) takeDiffs() []diff.Batch {
	w.diffMu.Lock()
	batches := w.pendingDiffs
	w.pendingDiffs = nil
	w.diffMu.Unlock()
	sort.Slice(batches, func(i, j int) bool { return batches[i].Sequence < batches[j].Sequence })
	return batches
}

// Step runs one frame:
//
//	input sample, diff drain, pre pump, scripts, command flush,
//	post pump, physics, spatial refresh, render sync, timing.
func (w *World) Step(dt float64) {
	snap := w.input.Sample()

	var changes []scene.Change
	for _, batch := range w.takeDiffs() {
		next, ch, err := w.applier.Apply(w.state, batch)
		if err != nil {
			w.lg.Error("diff batch rejected",
				zap.Uint64("sequence", batch.Sequence),
				zap.Error(err))
			continue
		}
		w.state = next
		w.emitChanges(ch)
		changes = append(changes, ch...)
	}

	w.bus.Pump()

	w.cmds.Enqueue(w.host.Update(w.state, snap, w.time, dt)...)
	frameCh := scene.ApplyCommands(w.state, w.registry, w.lg, w.cmds.Drain())
	w.emitChanges(frameCh)
	changes = append(changes, frameCh...)

	w.bus.Pump()

	w.physics.Sync(w.state, changes)
	readback := w.physics.Step(w.state, dt)
	scene.ApplyCommands(w.state, w.registry, w.lg, readback)

	w.updateSpatial()

	if w.renderer != nil {
		w.renderer.Sync(w.state)
	}

	w.time += dt
	w.delta = dt
	w.frameCount++
}

// emitChanges translates the change feed into the reserved event keys.
// Physics readback is deliberately excluded; per-frame transform churn
// is not an authoring signal.
func (w *World) emitChanges(changes []scene.Change) {
	for _, ch := range changes {
		switch ch.Kind {
		case scene.ChangeEntityCreated:
			w.bus.Emit(events.KeyEntitySpawned, w.entityPayload(ch.Entity))
		case scene.ChangeEntityDestroyed:
			w.bus.DropOwner(ch.Entity)
			w.bus.Emit(events.KeyEntityDestroyed, map[string]any{"entityId": uint64(ch.Entity)})
		case scene.ChangeComponentSet:
			w.bus.Emit(events.KeyComponentAdded, map[string]any{
				"entityId":  uint64(ch.Entity),
				"component": ch.Component,
			})
		case scene.ChangeComponentRemoved:
			w.bus.Emit(events.KeyComponentRemoved, map[string]any{
				"entityId":  uint64(ch.Entity),
				"component": ch.Component,
			})
		}
	}
}

func (w *World) entityPayload(id scene.EntityID) map[string]any {
	payload := map[string]any{"entityId": uint64(id)}
	if e, ok := w.state.Entity(id); ok {
		payload["persistentId"] = e.PersistentID
		payload["name"] = e.Name
	}
	return payload
}

// updateSpatial refreshes the acceleration index from the scene: every
// transform-bearing entity gets an entry, destroyed ones drop out.
func (w *World) updateSpatial() {
	seen := make(map[scene.EntityID]struct{}, w.state.Len())
	for _, id := range w.state.Entities() {
		e, _ := w.state.Entity(id)
		tr, ok := e.Component(component.KindTransform).(component.Transform)
		if !ok {
			continue
		}
		seen[id] = struct{}{}

		half := component.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
		if col, ok := e.Component(component.KindMeshCollider).(component.MeshCollider); ok {
			half = component.Vec3{X: col.SizeX / 2, Y: col.SizeY / 2, Z: col.SizeZ / 2}
		}

		nonPickable := false
		if mat, ok := e.Component(component.KindMaterial).(component.Material); ok {
			nonPickable = mat.NonPickable
		}

		w.index.Upsert(id, spatial.Entry{
			Bounds:      spatial.BoundsFor(tr, half),
			Disabled:    !e.Active,
			NonPickable: nonPickable,
			Mesh:        w.meshes[id],
		})
	}
	for id := range w.indexed {
		if _, ok := seen[id]; !ok {
			w.index.Remove(id)
			delete(w.meshes, id)
		}
	}
	w.indexed = seen
}

// RegisterMesh attaches triangle-precise geometry to an entity for
// raycasts. Triangles are in local space of the entity's bounds entry.
func (w *World) RegisterMesh(id scene.EntityID, tris []spatial.Triangle) {
	w.meshes[id] = spatial.NewMeshBVH(tris, w.lg)
}

// RegisterPrefab adds a parsed prefab to the spawn registry.
func (w *World) RegisterPrefab(p *prefab.Prefab) {
	w.prefabs.Register(p)
}

// SpawnPrefab queues prefab instantiation; the entities appear after
// the next frame's command flush.
func (w *World) SpawnPrefab(prefabID string, override map[string]json.RawMessage, parent scene.EntityID) error {
	cmds, err := w.prefabs.Instantiate(prefabID, override, parent)
	if err != nil {
		return err
	}
	w.cmds.Enqueue(cmds...)
	return nil
}

// RegisterDecoder extends the component registry, e.g. for host-defined
// component kinds.
func (w *World) RegisterDecoder(d decoder.Decoder) {
	w.registry.Register(d)
}

func (w *World) State() *scene.State { return w.state }

func (w *World) Bus() *events.Bus { return w.bus }

func (w *World) Input() *input.Collector { return w.input }

func (w *World) EntityCount() int { return w.state.Len() }

func (w *World) Time() float64 { return w.time }

func (w *World) FrameCount() uint64 { return w.frameCount }

// Raycast queries the spatial index against the state of the last
// completed frame.
func (w *World) Raycast(origin, dir component.Vec3, maxDist float64) (spatial.Hit, bool) {
	return w.index.RaycastFirst(origin, dir, maxDist)
}

// ResetDiffSequence realigns the applier after an editor reconnect.
func (w *World) ResetDiffSequence(lastSeq uint64) {
	w.applier.Reset(lastSeq)
}
