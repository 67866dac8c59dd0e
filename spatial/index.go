package spatial

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// Hit is one raycast result. Barycentric and TriangleIndex are only
// meaningful when the entity carried a mesh BVH; box-level hits report
// TriangleIndex -1.
type Hit struct {
	Entity        scene.EntityID
	Distance      float64
	Point         component.Vec3
	Barycentric   component.Vec2
	TriangleIndex int
}

// Entry describes one indexed entity.
type Entry struct {
	Bounds   AABB
	Disabled bool
	// NonPickable entities are culled normally but invisible to rays.
	NonPickable bool
	// Mesh enables triangle-precise raycasts, world space.
	Mesh *MeshBVH
}

// Index is the spatial query facade the engine and script raycasts go
// through.
type Index struct {
	bvh     *sceneBVH
	entries map[scene.EntityID]Entry
	lg      *zap.Logger
}

func NewIndex(lg *zap.Logger) *Index {
	return &Index{
		bvh:     newSceneBVH(),
		entries: map[scene.EntityID]Entry{},
		lg:      lg,
	}
}

// Upsert installs or refreshes an entity's entry. Called from the
// spatial-update frame step for entities whose transform or geometry
// changed.
func (x *Index) Upsert(id scene.EntityID, e Entry) {
	x.entries[id] = e
	x.bvh.update(id, e.Bounds)
}

func (x *Index) Remove(id scene.EntityID) {
	delete(x.entries, id)
	x.bvh.remove(id)
}

func (x *Index) Len() int { return len(x.entries) }

// RaycastFirst returns the nearest pickable hit within maxDist.
func (x *Index) RaycastFirst(origin, dir component.Vec3, maxDist float64) (Hit, bool) {
	hits := x.RaycastAll(origin, dir, maxDist)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

// RaycastAll returns every pickable hit within maxDist, nearest first.
func (x *Index) RaycastAll(origin, dir component.Vec3, maxDist float64) []Hit {
	ray := Ray{Origin: origin, Dir: dir.Normalize()}
	var hits []Hit
	for _, id := range x.bvh.rayCandidates(ray, maxDist) {
		entry := x.entries[id]
		if entry.Disabled || entry.NonPickable {
			continue
		}
		if entry.Mesh != nil && entry.Mesh.Len() > 0 {
			th, ok := entry.Mesh.Raycast(ray, maxDist)
			if !ok {
				continue
			}
			hits = append(hits, Hit{
				Entity:        id,
				Distance:      th.Distance,
				Point:         ray.Origin.Add(ray.Dir.Scale(th.Distance)),
				Barycentric:   component.Vec2{X: th.U, Y: th.V},
				TriangleIndex: th.Index,
			})
			continue
		}
		t, ok := ray.IntersectAABB(entry.Bounds)
		if !ok || t > maxDist {
			continue
		}
		hits = append(hits, Hit{
			Entity:        id,
			Distance:      t,
			Point:         ray.Origin.Add(ray.Dir.Scale(t)),
			TriangleIndex: -1,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

// Cull returns entities whose bounds touch the frustum, disabled ones
// excluded.
func (x *Index) Cull(f Frustum) []scene.EntityID {
	var out []scene.EntityID
	for _, id := range x.bvh.cull(f) {
		if entry := x.entries[id]; !entry.Disabled {
			out = append(out, id)
		}
	}
	return out
}

// BoundsFor computes a world AABB for a transform and unit-cube local
// bounds scaled by the entity's scale. Used when no precise geometry is
// available.
func BoundsFor(tr component.Transform, halfExtents component.Vec3) AABB {
	he := component.Vec3{
		X: math.Abs(halfExtents.X * tr.Scale.X),
		Y: math.Abs(halfExtents.Y * tr.Scale.Y),
		Z: math.Abs(halfExtents.Z * tr.Scale.Z),
	}
	// Conservative: bound the rotated box by its sphere.
	r := he.Length()
	c := tr.Position
	return AABB{
		Min: component.Vec3{X: c.X - r, Y: c.Y - r, Z: c.Z - r},
		Max: component.Vec3{X: c.X + r, Y: c.Y + r, Z: c.Z + r},
	}
}
