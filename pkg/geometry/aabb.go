package geometry

import (
	"math"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min core.Vec3
	Max core.Vec3
}

// boundsPadding widens sphere bounds so the near-parallel shortcut in Hit
// never culls a ray that grazes a sphere
const boundsPadding = 1e-4

// SphereBounds returns the padded bounding box of s
func SphereBounds(s Sphere) AABB {
	r := math.Abs(s.Radius) + boundsPadding
	extent := core.Splat(r)
	return AABB{Min: s.Center.Subtract(extent), Max: s.Center.Add(extent)}
}

// Hit tests if a ray intersects the box within [tMin, tMax] using the slab method
func (b AABB) Hit(ray core.Ray, tMin, tMax float64) bool {
	for axis := 0; axis < 3; axis++ {
		lo, hi := component(b.Min, axis), component(b.Max, axis)
		origin, direction := component(ray.Origin, axis), component(ray.Direction, axis)

		if math.Abs(direction) < 1e-8 {
			if origin < lo || origin > hi {
				return false
			}
			continue
		}

		inv := 1.0 / direction
		t1 := (lo - origin) * inv
		t2 := (hi - origin) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

// Union returns a box bounding both b and other
func (b AABB) Union(other AABB) AABB {
	return AABB{
		Min: core.NewVec3(math.Min(b.Min.X, other.Min.X), math.Min(b.Min.Y, other.Min.Y), math.Min(b.Min.Z, other.Min.Z)),
		Max: core.NewVec3(math.Max(b.Max.X, other.Max.X), math.Max(b.Max.Y, other.Max.Y), math.Max(b.Max.Z, other.Max.Z)),
	}
}

// LongestAxis returns the axis (0=X, 1=Y, 2=Z) with the longest extent
func (b AABB) LongestAxis() int {
	size := b.Max.Subtract(b.Min)
	if size.X > size.Y && size.X > size.Z {
		return 0
	}
	if size.Y > size.Z {
		return 1
	}
	return 2
}

func component(v core.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
