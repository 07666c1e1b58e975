package geometry

import (
	"math"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// leafThreshold is the largest sphere count stored in a single leaf
const leafThreshold = 8

// BVHNode is a node in the bounding volume hierarchy. Leaves hold sphere
// indices; internal nodes hold two children.
type BVHNode struct {
	Bounds  AABB
	Left    *BVHNode
	Right   *BVHNode
	Indices []int
}

// BVH indexes a snapshot of a sphere list for nearest-hit queries. It
// returns exactly what a front-to-back linear scan over the same list
// returns, including which sphere wins an exact distance tie.
type BVH struct {
	Root    *BVHNode
	spheres []Sphere
}

// NewBVH builds a hierarchy over a copy of spheres using median splits
// along the longest axis
func NewBVH(spheres []Sphere) *BVH {
	bvh := &BVH{spheres: append([]Sphere(nil), spheres...)}
	if len(spheres) == 0 {
		return bvh
	}

	indices := make([]int, len(spheres))
	for i := range indices {
		indices[i] = i
	}
	bvh.Root = bvh.build(indices)
	return bvh
}

func (bvh *BVH) build(indices []int) *BVHNode {
	bounds := SphereBounds(bvh.spheres[indices[0]])
	for _, i := range indices[1:] {
		bounds = bounds.Union(SphereBounds(bvh.spheres[i]))
	}

	leaf := &BVHNode{Bounds: bounds, Indices: indices}
	if len(indices) <= leafThreshold {
		return leaf
	}

	axis := bounds.LongestAxis()
	lo, hi := component(bounds.Min, axis), component(bounds.Max, axis)
	if hi <= lo {
		return leaf
	}
	split := (lo + hi) * 0.5

	var left, right []int
	for _, i := range indices {
		if component(bvh.spheres[i].Center, axis) < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	return &BVHNode{
		Bounds: bounds,
		Left:   bvh.build(left),
		Right:  bvh.build(right),
	}
}

// Len returns the number of indexed spheres
func (bvh *BVH) Len() int {
	return len(bvh.spheres)
}

// bvhHit tracks the nearest accepted hit during traversal
type bvhHit struct {
	record *HitRecord
	index  int
	t      float64
}

// Hit returns the nearest sphere hit strictly inside (tMin, tMax) and the
// index of that sphere in the list the BVH was built from
func (bvh *BVH) Hit(ray core.Ray, tMin, tMax float64) (*HitRecord, int, bool) {
	if bvh.Root == nil {
		return nil, -1, false
	}

	best := bvhHit{index: -1, t: tMax}
	bvh.hitNode(bvh.Root, ray, tMin, &best)
	return best.record, best.index, best.record != nil
}

func (bvh *BVH) hitNode(node *BVHNode, ray core.Ray, tMin float64, best *bvhHit) {
	// A sphere at exactly the current best distance can still win on index,
	// so the box test and the leaf tests reach one ulp past it.
	limit := best.t
	if best.record != nil {
		limit = math.Nextafter(best.t, math.Inf(1))
	}
	if !node.Bounds.Hit(ray, tMin, limit) {
		return
	}

	if node.Indices != nil {
		for _, i := range node.Indices {
			limit := best.t
			if best.record != nil {
				limit = math.Nextafter(best.t, math.Inf(1))
			}
			hit, ok := bvh.spheres[i].Intersect(ray, tMin, limit)
			if !ok {
				continue
			}
			if best.record == nil || hit.T < best.t || (hit.T == best.t && i < best.index) {
				*best = bvhHit{record: hit, index: i, t: hit.T}
			}
		}
		return
	}

	bvh.hitNode(node.Left, ray, tMin, best)
	bvh.hitNode(node.Right, ray, tMin, best)
}

// stats returns the node count, leaf count and maximum depth of the tree
func (bvh *BVH) stats() (nodes, leaves, maxDepth int) {
	var walk func(node *BVHNode, depth int)
	walk = func(node *BVHNode, depth int) {
		if node == nil {
			return
		}
		nodes++
		maxDepth = max(maxDepth, depth)
		if node.Indices != nil {
			leaves++
			return
		}
		walk(node.Left, depth+1)
		walk(node.Right, depth+1)
	}
	walk(bvh.Root, 0)
	return nodes, leaves, maxDepth
}
