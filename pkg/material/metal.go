package material

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
)

// scatterMetal mixes two lobes. With probability SpecularProbability the
// ray takes a white, roughness-blurred reflection; otherwise it takes a
// mirror reflection tinted by the albedo.
func (m *Material) scatterMetal(rayIn core.Ray, hit geometry.HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	specular := 0.0
	if m.SpecularProbability >= sampler.RandomValue() {
		specular = 1.0
	}

	// The perturbation is drawn for both lobes so every bounce consumes the
	// same amount of the random stream
	perturbation := sampler.RandomUnitVector().Multiply(m.Roughness * specular)
	reflected := rayIn.Direction.Reflect(hit.Normal)
	direction := reflected.Add(perturbation).Normalize()

	return ScatterResult{
		Attenuation: m.Albedo.Lerp(core.Splat(1), specular),
		Scattered:   core.NewRay(hit.Point, direction),
	}, true
}
