package integrator

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// PathTracingIntegrator implements unidirectional path tracing with a fixed
// bounce budget: no light sampling, no Russian roulette, black background
type PathTracingIntegrator struct{}

// NewPathTracingIntegrator creates a new path tracing integrator
func NewPathTracingIntegrator() *PathTracingIntegrator {
	return &PathTracingIntegrator{}
}

// TraceRay follows the path iteratively. The path ends when it escapes the
// scene, reaches a light, or has made depth+1 intersections.
func (pt *PathTracingIntegrator) TraceRay(ray core.Ray, s *scene.Scene, depth int, sampler core.Sampler) core.Vec3 {
	incomingLight := core.Vec3{}
	throughput := core.Splat(1)

	for bounce := 0; bounce <= depth; bounce++ {
		hit, isHit := s.Intersect(ray)
		if !isHit {
			break
		}

		mat, ok := s.Material(hit.MaterialID)
		if !ok {
			// Dangling material reference; Validate rejects these before a
			// render, so treat it as an absorber
			break
		}

		scatter, didScatter := mat.Scatter(ray, *hit, sampler)
		incomingLight = incomingLight.Add(mat.Emitted().MultiplyVec(throughput))
		if !didScatter {
			break
		}

		throughput = throughput.MultiplyVec(scatter.Attenuation)
		ray = scatter.Scattered
	}

	return incomingLight
}
