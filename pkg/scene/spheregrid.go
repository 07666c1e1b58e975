package scene

import (
	"math"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
)

// SphereGridSceneID names the built-in grid of metal spheres
const SphereGridSceneID = "spheregrid"

// oklchToRGB converts OKLCH color values to RGB
// L: lightness (0-1), C: chroma (0-0.4+), H: hue (0-360 degrees)
func oklchToRGB(l, c, h float64) core.Vec3 {
	hRad := h * math.Pi / 180.0

	// OKLCH -> OKLAB
	a := c * math.Cos(hRad)
	b := c * math.Sin(hRad)

	// OKLAB -> LMS
	lms := core.NewVec3(
		l+0.3963377774*a+0.2158037573*b,
		l-0.1055613458*a-0.0638541728*b,
		l-0.0894841775*a-1.2914855480*b,
	).Pow(3)

	// LMS -> linear RGB
	rgb := core.NewVec3(
		+4.0767416621*lms.X-3.3077115913*lms.Y+0.2309699292*lms.Z,
		-1.2684380046*lms.X+2.6097574011*lms.Y-0.3413193965*lms.Z,
		-0.0041960863*lms.X-0.7034186147*lms.Y+1.7076147010*lms.Z,
	)
	return rgb.Clamp(0, 1)
}

// NewSphereGridScene creates a gridSize×gridSize field of tinted metal
// spheres with a rough white sheen on a large ground sphere, lit by a warm
// sphere light. Hue varies along X and chroma along Z.
func NewSphereGridScene() *Scene {
	const (
		gridSize   = 20
		targetArea = 9.0 // grid side length in world units
		center     = 4.5
	)

	s := &Scene{
		Camera: geometry.NewCamera(
			core.NewVec3(center, 6, 18),
			core.NewVec3(center, 0.8, center).Subtract(core.NewVec3(center, 6, 18)).Normalize(),
			core.NewVec3(0, 1, 0),
			40,
		),
		Samples: 32,
		Depth:   12,
	}

	ground := s.AddMaterial(material.NewLambertian(core.Splat(0.5)))
	sun := s.AddMaterial(material.NewDiffuseLight(core.NewVec3(12.0, 11.5, 10.0)))

	s.AddSphere(geometry.NewSphere(core.NewVec3(center, -1000, center), 1000, ground))
	s.AddSphere(geometry.NewSphere(core.NewVec3(20, 25, 20), 8, sun))

	spacing := targetArea / float64(gridSize-1)
	radius := math.Max(0.02, math.Min(0.35, spacing*0.35))

	const (
		baseLightness = 0.65
		minChroma     = 0.05
		maxChroma     = 0.25
	)

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			x := float64(i)*spacing - targetArea/2.0 + center
			z := float64(j)*spacing - targetArea/2.0 + center

			hue := float64(i) / float64(gridSize-1) * 360.0
			chroma := minChroma + float64(j)/float64(gridSize-1)*(maxChroma-minChroma)
			lightness := baseLightness + 0.1*math.Sin(float64(i+j)*0.5)
			roughness := 0.05 + 0.1*float64((i+j)%3)/2.0

			metal := s.AddMaterial(material.NewMetal(oklchToRGB(lightness, chroma, hue), roughness, 0.2))
			s.AddSphere(geometry.NewSphere(core.NewVec3(x, radius, z), radius, metal))
		}
	}

	return s
}
