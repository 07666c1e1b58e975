package scene

import (
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
)

// NewDefaultScene creates the demo scene: a ground sphere, two diffuse
// spheres, an orange light, a metal sphere and a glass sphere
func NewDefaultScene() *Scene {
	s := &Scene{
		Camera: geometry.NewCamera(
			core.NewVec3(0, 1.0, 6.0),
			core.NewVec3(0, -0.15, -1).Normalize(),
			core.NewVec3(0, 1, 0),
			45,
		),
		Samples: 64,
		Depth:   8,
	}

	ground := s.AddMaterial(material.NewLambertian(core.NewVec3(0.8, 0.8, 0.8)))
	pink := s.AddMaterial(material.NewLambertian(core.NewVec3(1.0, 0.0, 1.0)))
	blue := s.AddMaterial(material.NewLambertian(core.NewVec3(0.2, 0.3, 1.0)))
	light := s.AddMaterial(material.NewDiffuseLight(core.NewVec3(0.8, 0.5, 0.2).Multiply(20)))
	metal := s.AddMaterial(material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.1, 0.25))
	glass := s.AddMaterial(material.NewDielectric(core.NewVec3(1.0, 1.0, 1.0), 0.0, 1.5))

	s.AddSphere(geometry.NewSphere(core.NewVec3(0, -101, 0), 100, ground))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, 0), 1, pink))
	s.AddSphere(geometry.NewSphere(core.NewVec3(-2.2, 0, -1), 1, blue))
	s.AddSphere(geometry.NewSphere(core.NewVec3(3.5, 3.0, -6), 2, light))
	s.AddSphere(geometry.NewSphere(core.NewVec3(2.2, 0, -0.5), 1, metal))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0.9, -0.5, 1.8), 0.5, glass))

	return s
}
