package geometry

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// HitRecord contains information about a ray-object intersection
type HitRecord struct {
	Point      core.Vec3 // Point of intersection
	Normal     core.Vec3 // Unit normal, always facing against the incoming ray
	T          float64   // Parameter t along the ray
	FrontFace  bool      // Whether the ray arrived from the outward side
	MaterialID uint32    // Index into the owning scene's material list
}

// SetFaceNormal sets the normal vector and determines front/back face
func (h *HitRecord) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}
