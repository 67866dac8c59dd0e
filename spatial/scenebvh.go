package spatial

import (
	"sort"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// sceneBVH is the entity-level hierarchy over world-space AABBs. When
// the entity set is unchanged the tree is refit in place; adding or
// removing entities triggers a rebuild on next query.
type sceneBVH struct {
	leaves map[scene.EntityID]AABB
	nodes  []sceneNode
	// leafNode locates each entity's leaf for refits.
	leafNode map[scene.EntityID]int
	stale    bool
	// dirty means leaf bounds moved since the last query; internal
	// nodes refit once, lazily, instead of per moved leaf.
	dirty bool
}

type sceneNode struct {
	bounds      AABB
	entity      scene.EntityID
	left, right int
	isLeaf      bool
}

func newSceneBVH() *sceneBVH {
	return &sceneBVH{
		leaves:   map[scene.EntityID]AABB{},
		leafNode: map[scene.EntityID]int{},
	}
}

// update sets the entity's world AABB. Moving an existing entity only
// refits; a new entity marks the tree for rebuild.
func (b *sceneBVH) update(id scene.EntityID, box AABB) {
	old, existed := b.leaves[id]
	if existed && old == box {
		return
	}
	b.leaves[id] = box
	if !existed {
		b.stale = true
		return
	}
	if b.stale {
		return
	}
	if node, ok := b.leafNode[id]; ok {
		b.nodes[node].bounds = box
		b.dirty = true
	}
}

func (b *sceneBVH) remove(id scene.EntityID) {
	if _, ok := b.leaves[id]; !ok {
		return
	}
	delete(b.leaves, id)
	b.stale = true
}

// refitInternal recomputes internal bounds bottom-up. Children are
// always appended before their parent during build, so a forward sweep
// sees every child before the node that unions it.
func (b *sceneBVH) refitInternal() {
	for i := 0; i < len(b.nodes); i++ {
		n := &b.nodes[i]
		if n.isLeaf {
			continue
		}
		n.bounds = b.nodes[n.left].bounds.Union(b.nodes[n.right].bounds)
	}
}

func (b *sceneBVH) ensureBuilt() {
	if !b.stale && (b.nodes != nil || len(b.leaves) == 0) {
		if b.dirty {
			b.refitInternal()
			b.dirty = false
		}
		return
	}
	b.nodes = b.nodes[:0]
	b.leafNode = map[scene.EntityID]int{}
	b.stale = false
	b.dirty = false
	if len(b.leaves) == 0 {
		return
	}
	ids := make([]scene.EntityID, 0, len(b.leaves))
	for id := range b.leaves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	b.build(ids)
}

func (b *sceneBVH) build(ids []scene.EntityID) int {
	if len(ids) == 1 {
		idx := len(b.nodes)
		b.nodes = append(b.nodes, sceneNode{
			bounds: b.leaves[ids[0]],
			entity: ids[0],
			isLeaf: true,
		})
		b.leafNode[ids[0]] = idx
		return idx
	}

	bounds := EmptyAABB()
	for _, id := range ids {
		bounds = bounds.Union(b.leaves[id])
	}
	axis := longestAxis(bounds)
	sort.Slice(ids, func(i, j int) bool {
		return axisValue(b.leaves[ids[i]].Center(), axis) <
			axisValue(b.leaves[ids[j]].Center(), axis)
	})
	mid := len(ids) / 2

	left := b.build(append([]scene.EntityID(nil), ids[:mid]...))
	right := b.build(append([]scene.EntityID(nil), ids[mid:]...))
	idx := len(b.nodes)
	b.nodes = append(b.nodes, sceneNode{
		bounds: b.nodes[left].bounds.Union(b.nodes[right].bounds),
		left:   left,
		right:  right,
	})
	return idx
}

// root is always the last node appended.
func (b *sceneBVH) root() int { return len(b.nodes) - 1 }

func (b *sceneBVH) rayCandidates(ray Ray, maxDist float64) []scene.EntityID {
	b.ensureBuilt()
	if len(b.nodes) == 0 {
		return nil
	}
	var out []scene.EntityID
	b.walkRay(ray, maxDist, b.root(), &out)
	return out
}

func (b *sceneBVH) walkRay(ray Ray, maxDist float64, node int, out *[]scene.EntityID) {
	n := b.nodes[node]
	if t, ok := ray.IntersectAABB(n.bounds); !ok || t > maxDist {
		return
	}
	if n.isLeaf {
		*out = append(*out, n.entity)
		return
	}
	b.walkRay(ray, maxDist, n.left, out)
	b.walkRay(ray, maxDist, n.right, out)
}

func (b *sceneBVH) cull(f Frustum) []scene.EntityID {
	b.ensureBuilt()
	if len(b.nodes) == 0 {
		return nil
	}
	var out []scene.EntityID
	b.walkFrustum(f, b.root(), &out)
	return out
}

func (b *sceneBVH) walkFrustum(f Frustum, node int, out *[]scene.EntityID) {
	n := b.nodes[node]
	if !f.IntersectsAABB(n.bounds) {
		return
	}
	if n.isLeaf {
		*out = append(*out, n.entity)
		return
	}
	b.walkFrustum(f, n.left, out)
	b.walkFrustum(f, n.right, out)
}
