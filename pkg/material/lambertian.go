package material

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
)

// scatterLambertian bounces around the normal using a unit vector offset,
// which is cosine distributed. It always scatters.
func (m *Material) scatterLambertian(hit geometry.HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	direction := hit.Normal.Add(sampler.RandomUnitVector()).Normalize()

	return ScatterResult{
		Attenuation: m.Albedo,
		Scattered:   core.NewRay(hit.Point, direction),
	}, true
}
