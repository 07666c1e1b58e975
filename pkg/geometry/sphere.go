package geometry

import (
	"math"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// Sphere is an analytic sphere primitive. Radius must be positive.
type Sphere struct {
	Center     core.Vec3 `json:"center"`
	Radius     float64   `json:"radius"`
	MaterialID uint32    `json:"materialId"`
}

// NewSphere creates a new sphere
func NewSphere(center core.Vec3, radius float64, materialID uint32) Sphere {
	return Sphere{
		Center:     center,
		Radius:     radius,
		MaterialID: materialID,
	}
}

// DefaultSphere is the sphere appended by editor "add sphere" commands
func DefaultSphere() Sphere {
	return NewSphere(core.NewVec3(0, 0, 0), 0.5, 0)
}

// Intersect tests if a ray hits the sphere strictly inside (tMin, tMax).
// tMin keeps secondary rays from re-hitting the surface they leave.
func (s *Sphere) Intersect(ray core.Ray, tMin, tMax float64) (*HitRecord, bool) {
	// Vector from sphere center to ray origin
	oc := ray.Origin.Subtract(s.Center)

	// Quadratic equation coefficients: a*t² + 2*halfB*t + c = 0
	a := ray.Direction.Dot(ray.Direction)
	halfB := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return nil, false
	}
	sqrtD := math.Sqrt(discriminant)

	// Try the closer intersection point first. Written so that a NaN root
	// is a miss.
	root := (-halfB - sqrtD) / a
	if !(root > tMin && root < tMax) {
		root = (-halfB + sqrtD) / a
		if !(root > tMin && root < tMax) {
			return nil, false
		}
	}

	hit := &HitRecord{
		T:          root,
		Point:      ray.At(root),
		MaterialID: s.MaterialID,
	}
	outwardNormal := hit.Point.Subtract(s.Center).Multiply(1.0 / s.Radius)
	hit.SetFaceNormal(ray, outwardNormal)

	return hit, true
}
