package spatial

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/component"
)

// MeshBVH accelerates triangle-precise raycasts against one mesh.
// Triangles are expected in world space; the engine rebuilds the BVH
// when the owning entity's transform or geometry changes.
type MeshBVH struct {
	nodes []meshNode
	tris  []Triangle
	// src maps surviving triangles back to the caller's indices.
	src []int
}

type meshNode struct {
	bounds      AABB
	leaf        []int
	left, right int
}

// TriangleHit is a triangle-precise intersection with barycentric
// coordinates.
type TriangleHit struct {
	Index    int
	Distance float64
	U, V     float64
}

const meshLeafSize = 4

// NewMeshBVH builds over the given triangles. Degenerate (zero-area)
// triangles are dropped with a log and never show up in hits.
func NewMeshBVH(tris []Triangle, lg *zap.Logger) *MeshBVH {
	b := &MeshBVH{}
	for i, tri := range tris {
		if tri.Degenerate() {
			lg.Warn("spatial index build", zap.Error(&DegenerateTriangleError{Index: i}))
			continue
		}
		b.tris = append(b.tris, tri)
		b.src = append(b.src, i)
	}
	if len(b.tris) == 0 {
		return b
	}
	order := make([]int, len(b.tris))
	for i := range order {
		order[i] = i
	}
	b.build(order)
	return b
}

func (b *MeshBVH) Len() int { return len(b.tris) }

// build appends nodes depth-first, splitting at the median of the
// longest axis.
func (b *MeshBVH) build(order []int) int {
	bounds := EmptyAABB()
	for _, i := range order {
		bounds = bounds.Union(b.tris[i].Bounds())
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, meshNode{bounds: bounds})

	if len(order) <= meshLeafSize {
		b.nodes[idx].leaf = order
		return idx
	}

	axis := longestAxis(bounds)
	sort.Slice(order, func(i, j int) bool {
		return axisValue(b.tris[order[i]].Bounds().Center(), axis) <
			axisValue(b.tris[order[j]].Bounds().Center(), axis)
	})
	mid := len(order) / 2

	left := b.build(append([]int(nil), order[:mid]...))
	right := b.build(append([]int(nil), order[mid:]...))
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx
}

// Raycast returns the nearest triangle hit within maxDist.
func (b *MeshBVH) Raycast(ray Ray, maxDist float64) (TriangleHit, bool) {
	best := TriangleHit{Distance: math.Inf(1)}
	found := false
	b.walk(ray, maxDist, 0, func(hit TriangleHit) {
		if hit.Distance < best.Distance {
			best = hit
			found = true
		}
	})
	return best, found
}

// RaycastAll returns every triangle hit within maxDist, nearest first.
func (b *MeshBVH) RaycastAll(ray Ray, maxDist float64) []TriangleHit {
	var hits []TriangleHit
	b.walk(ray, maxDist, 0, func(hit TriangleHit) {
		hits = append(hits, hit)
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (b *MeshBVH) walk(ray Ray, maxDist float64, node int, visit func(TriangleHit)) {
	if len(b.nodes) == 0 {
		return
	}
	n := b.nodes[node]
	if t, ok := ray.IntersectAABB(n.bounds); !ok || t > maxDist {
		return
	}
	if n.leaf != nil {
		for _, i := range n.leaf {
			t, u, v, ok := ray.IntersectTriangle(b.tris[i])
			if !ok || t > maxDist {
				continue
			}
			visit(TriangleHit{Index: b.src[i], Distance: t, U: u, V: v})
		}
		return
	}
	b.walk(ray, maxDist, n.left, visit)
	b.walk(ray, maxDist, n.right, visit)
}

func longestAxis(box AABB) int {
	d := box.Max.Sub(box.Min)
	if d.X >= d.Y && d.X >= d.Z {
		return 0
	}
	if d.Y >= d.Z {
		return 1
	}
	return 2
}

func axisValue(v component.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
