// Package spatial maintains bounding-volume hierarchies over the scene
// for raycasts and frustum culling.
package spatial

import (
	"fmt"
	"math"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
)

type AABB struct {
	Min component.Vec3
	Max component.Vec3
}

// EmptyAABB is the identity for Union.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: component.Vec3{X: inf, Y: inf, Z: inf},
		Max: component.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

func AABBFromPoints(points ...component.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

func (a AABB) Union(b AABB) AABB {
	return AABB{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

func (a AABB) Center() component.Vec3 {
	return a.Min.Add(a.Max).Scale(0.5)
}

func (a AABB) Valid() bool {
	return a.Min.X <= a.Max.X && a.Min.Y <= a.Max.Y && a.Min.Z <= a.Max.Z
}

type Ray struct {
	Origin component.Vec3
	Dir    component.Vec3
}

// IntersectAABB is the slab test. Returns the entry distance along the
// ray, clamped to zero when the origin is inside the box.
func (r Ray) IntersectAABB(box AABB) (float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)

	for _, axis := range [3][3]float64{
		{r.Origin.X, r.Dir.X, 0},
		{r.Origin.Y, r.Dir.Y, 1},
		{r.Origin.Z, r.Dir.Z, 2},
	} {
		origin, dir := axis[0], axis[1]
		lo, hi := axisBounds(box, int(axis[2]))
		if dir == 0 {
			if origin < lo || origin > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - origin) / dir
		t2 := (hi - origin) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

func axisBounds(box AABB, axis int) (float64, float64) {
	switch axis {
	case 0:
		return box.Min.X, box.Max.X
	case 1:
		return box.Min.Y, box.Max.Y
	default:
		return box.Min.Z, box.Max.Z
	}
}

type Triangle struct {
	A, B, C component.Vec3
}

func (t Triangle) Bounds() AABB {
	return AABBFromPoints(t.A, t.B, t.C)
}

func (t Triangle) Degenerate() bool {
	n := t.B.Sub(t.A).Cross(t.C.Sub(t.A))
	return n.Length() < 1e-12
}

// IntersectTriangle runs Möller-Trumbore. u and v are the barycentric
// coordinates of the hit.
func (r Ray) IntersectTriangle(tri Triangle) (t, u, v float64, ok bool) {
	const eps = 1e-9
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(tri.A)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * inv
	if t < eps {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// Plane is n·x + d = 0 with the normal pointing inside the frustum.
type Plane struct {
	Normal component.Vec3
	D      float64
}

type Frustum [6]Plane

// IntersectsAABB tests the box against each plane using the positive
// vertex. Conservative: may report true for boxes near a corner.
func (f Frustum) IntersectsAABB(box AABB) bool {
	for _, p := range f {
		v := component.Vec3{X: box.Min.X, Y: box.Min.Y, Z: box.Min.Z}
		if p.Normal.X >= 0 {
			v.X = box.Max.X
		}
		if p.Normal.Y >= 0 {
			v.Y = box.Max.Y
		}
		if p.Normal.Z >= 0 {
			v.Z = box.Max.Z
		}
		if p.Normal.Dot(v)+p.D < 0 {
			return false
		}
	}
	return true
}

// DegenerateTriangleError reports zero-area geometry dropped from a
// mesh BVH build.
type DegenerateTriangleError struct {
	Index int
}

func (e *DegenerateTriangleError) Error() string {
	return fmt.Sprintf("degenerate triangle %d dropped from BVH", e.Index)
}
