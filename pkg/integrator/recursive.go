package integrator

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// RecursiveIntegrator computes the same estimate as PathTracingIntegrator
// by recursion, applying each bounce's attenuation on the way back up.
// It draws from the sampler in the same order, so the two agree up to
// floating point rounding.
type RecursiveIntegrator struct{}

// NewRecursiveIntegrator creates a new recursive integrator
func NewRecursiveIntegrator() *RecursiveIntegrator {
	return &RecursiveIntegrator{}
}

// TraceRay returns the radiance along ray with at most depth bounces
func (ri *RecursiveIntegrator) TraceRay(ray core.Ray, s *scene.Scene, depth int, sampler core.Sampler) core.Vec3 {
	if depth < 0 {
		return core.Vec3{}
	}

	hit, isHit := s.Intersect(ray)
	if !isHit {
		return core.Vec3{}
	}
	mat, ok := s.Material(hit.MaterialID)
	if !ok {
		return core.Vec3{}
	}

	scatter, didScatter := mat.Scatter(ray, *hit, sampler)
	emitted := mat.Emitted()
	if !didScatter {
		return emitted
	}

	incoming := ri.TraceRay(scatter.Scattered, s, depth-1, sampler)
	return emitted.Add(scatter.Attenuation.MultiplyVec(incoming))
}
