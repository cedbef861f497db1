package scene

import (
	"sort"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// triangleRef identifies one face of one primitive
type triangleRef struct {
	prim int
	face int
	box  core.AABB
}

// bvhNode represents a node in the Bounding Volume Hierarchy
type bvhNode struct {
	box         core.AABB
	left, right *bvhNode
	triangles   []triangleRef // non-nil for leaf nodes
}

// bvh is a median-split BVH over every triangle in the scene
type bvh struct {
	root  *bvhNode
	prims []*Primitive
}

// Leaf threshold: if we have this many or fewer triangles, store them in a leaf node
const leafThreshold = 8

func newBVH(prims []*Primitive) *bvh {
	var refs []triangleRef
	for p, prim := range prims {
		for f := 0; f < prim.Mesh.NumFaces(); f++ {
			// Degenerate faces can never produce a consistent hit
			if prim.Mesh.FaceArea(f) <= 0 {
				continue
			}
			refs = append(refs, triangleRef{prim: p, face: f, box: prim.Mesh.FaceBounds(f)})
		}
	}
	b := &bvh{prims: prims}
	if len(refs) > 0 {
		b.root = buildBVH(refs)
	}
	return b
}

func buildBVH(refs []triangleRef) *bvhNode {
	box := refs[0].box
	for _, r := range refs[1:] {
		box = box.Union(r.box)
	}

	if len(refs) <= leafThreshold {
		return &bvhNode{box: box, triangles: refs}
	}

	// Median split along the longest axis
	axis := box.LongestAxis()
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].box.Center().Axis(axis) < refs[j].box.Center().Axis(axis)
	})
	mid := len(refs) / 2
	return &bvhNode{
		box:   box,
		left:  buildBVH(refs[:mid]),
		right: buildBVH(refs[mid:]),
	}
}

// intersect returns the closest triangle hit in (tMin, tMax)
func (b *bvh) intersect(ray core.Ray, tMin, tMax float64) (triangleRef, float64, bool) {
	if b.root == nil {
		return triangleRef{}, 0, false
	}
	return b.intersectNode(b.root, ray, tMin, tMax)
}

func (b *bvh) intersectNode(node *bvhNode, ray core.Ray, tMin, tMax float64) (triangleRef, float64, bool) {
	if !node.box.Hit(ray, tMin, tMax) {
		return triangleRef{}, 0, false
	}

	var closest triangleRef
	closestT := tMax
	hitAnything := false

	if node.triangles != nil {
		for _, ref := range node.triangles {
			if t, ok := b.prims[ref.prim].Mesh.IntersectFace(ref.face, ray, tMin, closestT); ok {
				closest, closestT, hitAnything = ref, t, true
			}
		}
		return closest, closestT, hitAnything
	}

	if ref, t, ok := b.intersectNode(node.left, ray, tMin, closestT); ok {
		closest, closestT, hitAnything = ref, t, true
	}
	if ref, t, ok := b.intersectNode(node.right, ray, tMin, closestT); ok {
		closest, closestT, hitAnything = ref, t, true
	}
	return closest, closestT, hitAnything
}
