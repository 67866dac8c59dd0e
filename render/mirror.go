package render

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

const (
	fallbackMesh     = "builtin:missing-mesh"
	fallbackMaterial = "builtin:default-material"
)

type instanceState struct {
	mesh     ResourceKey
	material ResourceKey
}

// Mirror keeps the backend's working set in step with the scene. Each
// Sync does a full reconcile: new renderables upload, dead ones
// release, moved ones update in place.
type Mirror struct {
	backend   Backend
	meshes    *refCache
	materials *refCache
	instances map[scene.EntityID]instanceState
	lights    map[scene.EntityID]struct{}
	cameras   map[scene.EntityID]struct{}
	lg        *zap.Logger
}

func NewMirror(backend Backend, lg *zap.Logger) *Mirror {
	return &Mirror{
		backend:   backend,
		meshes:    newRefCache(),
		materials: newRefCache(),
		instances: map[scene.EntityID]instanceState{},
		lights:    map[scene.EntityID]struct{}{},
		cameras:   map[scene.EntityID]struct{}{},
		lg:        lg,
	}
}

// Sync mirrors the final scene state of the frame into the backend.
func (m *Mirror) Sync(st *scene.State) {
	live := map[scene.EntityID]struct{}{}
	camPos := m.mainCameraPos(st)

	for _, id := range st.Entities() {
		e, ok := st.Entity(id)
		if !ok || !e.Active {
			if _, had := m.lights[id]; had {
				m.backend.RemoveLight(id)
				delete(m.lights, id)
			}
			if _, had := m.cameras[id]; had {
				m.backend.RemoveCamera(id)
				delete(m.cameras, id)
			}
			continue
		}

		if mr, ok := e.Component(component.KindMeshRenderer).(component.MeshRenderer); ok && mr.Enabled {
			live[id] = struct{}{}
			m.syncInstance(st, e, mr, camPos)
		}
		if light, ok := e.Component(component.KindLight).(component.Light); ok && light.Enabled {
			tr := transformOf(e)
			m.backend.SetLight(id, light, tr)
			m.lights[id] = struct{}{}
		} else if _, had := m.lights[id]; had {
			m.backend.RemoveLight(id)
			delete(m.lights, id)
		}
		if cam, ok := e.Component(component.KindCamera).(component.Camera); ok {
			m.backend.SetCamera(id, cam, transformOf(e))
			m.cameras[id] = struct{}{}
		} else if _, had := m.cameras[id]; had {
			m.backend.RemoveCamera(id)
			delete(m.cameras, id)
		}
	}

	// Release everything that disappeared this frame.
	for id, state := range m.instances {
		if _, alive := live[id]; alive {
			continue
		}
		m.backend.RemoveInstance(id)
		m.releaseMesh(state.mesh)
		m.releaseMaterial(state.material)
		delete(m.instances, id)
	}
	for id := range m.lights {
		if _, ok := st.Entity(id); !ok {
			m.backend.RemoveLight(id)
			delete(m.lights, id)
		}
	}
	for id := range m.cameras {
		if _, ok := st.Entity(id); !ok {
			m.backend.RemoveCamera(id)
			delete(m.cameras, id)
		}
	}
}

func (m *Mirror) syncInstance(st *scene.State, e *scene.Entity, mr component.MeshRenderer, camPos component.Vec3) {
	tr := transformOf(e)

	meshSource := m.meshSource(e, mr, tr, camPos)
	meshKey, fresh := m.meshes.acquire(meshSource)
	if fresh {
		if err := m.backend.UploadMesh(meshKey, meshSource); err != nil {
			m.lg.Error("mesh upload failed", zap.String("source", meshSource), zap.Error(err))
		}
	}

	matKey := m.materialKey(st, mr)

	prev, existed := m.instances[e.ID]
	if existed {
		if prev.mesh != meshKey {
			m.releaseMesh(prev.mesh)
		} else {
			// acquire above double-counted an unchanged mesh
			m.meshes.release(meshKey)
		}
		if prev.material != matKey {
			m.releaseMaterial(prev.material)
		} else {
			m.materials.release(matKey)
		}
	}

	inst := Instance{Mesh: meshKey, Material: matKey, Transform: tr}
	if ic, ok := e.Component(component.KindInstanced).(component.Instanced); ok && ic.Enabled {
		inst.Instanced = true
		inst.Count = ic.Count
	}
	m.backend.SetInstance(e.ID, inst)
	m.instances[e.ID] = instanceState{mesh: meshKey, material: matKey}
}

// meshSource resolves the mesh reference, applying LOD selection by
// camera distance when an LOD component is present.
func (m *Mirror) meshSource(e *scene.Entity, mr component.MeshRenderer, tr component.Transform, camPos component.Vec3) string {
	source := mr.ModelPath
	if source == "" {
		source = mr.MeshID
	}

	if lod, ok := e.Component(component.KindLOD).(component.LOD); ok {
		source = selectLOD(lod, tr.Position.Sub(camPos).Length())
	}

	if source == "" {
		m.lg.Warn("render mirror", zap.Error(&ResourceError{Kind: "mesh", Ref: mr.MeshID}))
		return fallbackMesh
	}
	return source
}

// selectLOD picks the variant for the camera distance. OverrideQuality
// pins a variant regardless of distance.
func selectLOD(lod component.LOD, dist float64) string {
	high := lod.HighFidelityPath
	if high == "" {
		high = lod.OriginalPath
	}
	low := lod.LowFidelityPath
	if low == "" {
		low = lod.OriginalPath
	}

	switch lod.OverrideQuality {
	case "high":
		return high
	case "original":
		return lod.OriginalPath
	case "low":
		return low
	}

	switch {
	case dist < lod.DistanceThresholds[0]:
		return high
	case dist < lod.DistanceThresholds[1]:
		return lod.OriginalPath
	default:
		return low
	}
}

func (m *Mirror) materialKey(st *scene.State, mr component.MeshRenderer) ResourceKey {
	source := mr.MaterialID
	mat := component.DefaultMaterial()

	if source != "" {
		raw, ok := st.Materials[source]
		if !ok {
			m.lg.Warn("render mirror", zap.Error(&ResourceError{Kind: "material", Ref: source}))
			source = fallbackMaterial
		} else if err := json.Unmarshal(raw, &mat); err != nil {
			m.lg.Warn("malformed material, substituting default", zap.String("id", source), zap.Error(err))
			source = fallbackMaterial
			mat = component.DefaultMaterial()
		}
	} else {
		source = fallbackMaterial
	}

	applyOverride(&mat, mr.MaterialOverride)
	source = overrideSource(source, mr.MaterialOverride)

	key, fresh := m.materials.acquire(source)
	if fresh {
		if err := m.backend.UploadMaterial(key, mat); err != nil {
			m.lg.Error("material upload failed", zap.String("id", source), zap.Error(err))
		}
	}
	return key
}

// overrideSource folds per-instance overrides into the content address
// so an overridden material never shares an upload with the base one.
func overrideSource(source string, o *component.MaterialOverride) string {
	if o == nil {
		return source
	}
	data, err := json.Marshal(o)
	if err != nil {
		return source
	}
	return fmt.Sprintf("%s#%016x", source, xxhash.Sum64(data))
}

func applyOverride(mat *component.Material, o *component.MaterialOverride) {
	if o == nil {
		return
	}
	if o.Color != nil {
		mat.Color = *o.Color
	}
	if o.Metalness != nil {
		mat.Metalness = *o.Metalness
	}
	if o.Roughness != nil {
		mat.Roughness = *o.Roughness
	}
	if o.Emissive != nil {
		mat.Emissive = *o.Emissive
	}
	if o.Opacity != nil {
		mat.Opacity = *o.Opacity
	}
}

func (m *Mirror) releaseMesh(key ResourceKey) {
	if m.meshes.release(key) {
		m.backend.ReleaseMesh(key)
	}
}

func (m *Mirror) releaseMaterial(key ResourceKey) {
	if m.materials.release(key) {
		m.backend.ReleaseMaterial(key)
	}
}

// mainCameraPos finds the main camera's position for LOD distance, the
// origin when no camera is flagged.
func (m *Mirror) mainCameraPos(st *scene.State) component.Vec3 {
	best := component.Vec3{}
	bestDist := math.Inf(1)
	for _, id := range st.Entities() {
		e, ok := st.Entity(id)
		if !ok {
			continue
		}
		cam, ok := e.Component(component.KindCamera).(component.Camera)
		if !ok {
			continue
		}
		tr := transformOf(e)
		if cam.IsMain {
			return tr.Position
		}
		if bestDist == math.Inf(1) {
			best = tr.Position
			bestDist = 0
		}
	}
	return best
}

func transformOf(e *scene.Entity) component.Transform {
	if tr, ok := e.Component(component.KindTransform).(component.Transform); ok {
		return tr
	}
	return component.DefaultTransform()
}
