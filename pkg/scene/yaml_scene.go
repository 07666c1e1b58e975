package scene

import (
	"fmt"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/loaders"
	"github.com/df07/go-reference-pathtracer/pkg/material"
)

const (
	defaultFileSamples = 16
	defaultFileDepth   = 5
	defaultVFov        = 45.0
	defaultIOR         = 1.5
)

// LoadYAML reads a scene file from disk and builds the scene it describes
func LoadYAML(path string) (*Scene, error) {
	sceneFile, err := loaders.LoadSceneFile(path)
	if err != nil {
		return nil, err
	}
	return FromSceneFile(sceneFile)
}

// FromSceneFile builds a scene from a parsed scene file
func FromSceneFile(f *loaders.SceneFile) (*Scene, error) {
	s := &Scene{
		Camera:  cameraFromSpec(f.Camera),
		Samples: defaultFileSamples,
		Depth:   defaultFileDepth,
	}
	if f.Samples > 0 {
		s.Samples = f.Samples
	}
	if f.Depth != nil {
		s.Depth = *f.Depth
	}

	for i, def := range f.Materials {
		m, err := materialFromSpec(def)
		if err != nil {
			return nil, fmt.Errorf("material %d (%s): %w", i, def.Name, err)
		}
		s.AddMaterial(m)
	}

	for i, def := range f.Spheres {
		materialID, err := f.MaterialIndex(def.Material)
		if err != nil {
			return nil, fmt.Errorf("sphere %d: %w", i, err)
		}
		s.AddSphere(geometry.NewSphere(def.Center.ToCore(), def.Radius, materialID))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func cameraFromSpec(def *loaders.CameraSpec) *geometry.Camera {
	camera := geometry.DefaultCamera()
	if def == nil {
		return camera
	}
	if def.Position != nil {
		camera.Position = def.Position.ToCore()
	}
	if def.Up != nil {
		camera.Up = def.Up.ToCore()
	}
	switch {
	case def.LookAt != nil:
		camera.Front = def.LookAt.ToCore().Subtract(camera.Position).Normalize()
	case def.Front != nil:
		camera.Front = def.Front.ToCore().Normalize()
	}
	if def.VFov > 0 {
		camera.VerticalFOV = def.VFov
	}
	return camera
}

func materialFromSpec(def loaders.MaterialSpec) (material.Material, error) {
	kind, err := material.ParseKind(def.Kind)
	if err != nil {
		return material.Material{}, err
	}

	albedo := core.Splat(1)
	if def.Albedo != nil {
		albedo = def.Albedo.ToCore()
	}

	m := material.Default()
	switch kind {
	case material.Lambertian:
		m.SetLambertian(albedo)
	case material.Metal:
		m.SetMetal(albedo, def.Roughness, def.SpecularProbability)
	case material.Dielectric:
		ior := def.IOR
		if ior == 0 {
			ior = defaultIOR
		}
		m.SetDielectric(albedo, def.Roughness, ior)
	case material.DiffuseLight:
		emission := albedo
		if def.Emission != nil {
			emission = def.Emission.ToCore()
		}
		if def.Strength > 0 {
			emission = emission.Multiply(def.Strength)
		}
		m.SetDiffuseLight(emission)
	}
	return m, m.Validate()
}

// ToSceneFile converts the scene back into its file form. Materials are
// named by position so dangling sphere references survive the round trip
// as a load error rather than silently pointing elsewhere.
func (s *Scene) ToSceneFile(name, description string) *loaders.SceneFile {
	depth := s.Depth
	f := &loaders.SceneFile{
		Name:        name,
		Description: description,
		Samples:     s.Samples,
		Depth:       &depth,
		Materials:   make([]loaders.MaterialSpec, 0, len(s.Materials)),
		Spheres:     make([]loaders.SphereSpec, 0, len(s.Spheres)),
	}

	if s.Camera != nil {
		position := loaders.FromCore(s.Camera.Position)
		front := loaders.FromCore(s.Camera.Front)
		up := loaders.FromCore(s.Camera.Up)
		f.Camera = &loaders.CameraSpec{
			Position: &position,
			Front:    &front,
			Up:       &up,
			VFov:     s.Camera.VerticalFOV,
		}
	}

	for _, m := range s.Materials {
		albedo := loaders.FromCore(m.Albedo)
		def := loaders.MaterialSpec{
			Kind:   m.Kind.String(),
			Albedo: &albedo,
		}
		switch m.Kind {
		case material.Metal:
			def.Roughness = m.Roughness
			def.SpecularProbability = m.SpecularProbability
		case material.Dielectric:
			def.Roughness = m.Roughness
			def.IOR = m.IOR
		case material.DiffuseLight:
			emission := loaders.FromCore(m.Emission)
			def.Emission = &emission
		}
		f.Materials = append(f.Materials, def)
	}

	for _, sphere := range s.Spheres {
		f.Spheres = append(f.Spheres, loaders.SphereSpec{
			Center:   loaders.FromCore(sphere.Center),
			Radius:   sphere.Radius,
			Material: fmt.Sprintf("%d", sphere.MaterialID),
		})
	}
	return f
}
