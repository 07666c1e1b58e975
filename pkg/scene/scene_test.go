package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
)

func twoSphereScene() *Scene {
	s := New()
	red := s.AddMaterial(material.NewLambertian(core.NewVec3(1, 0, 0)))
	green := s.AddMaterial(material.NewLambertian(core.NewVec3(0, 1, 0)))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, -5), 1, red))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, -10), 1, green))
	return s
}

func TestScene_IntersectNearest(t *testing.T) {
	s := twoSphereScene()
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))

	hit, ok := s.Intersect(ray)
	require.True(t, ok)
	assert.InDelta(t, 4.0, hit.T, 1e-9)
	assert.Equal(t, uint32(0), hit.MaterialID)

	_, index, ok := s.IntersectSphere(ray)
	require.True(t, ok)
	assert.Equal(t, 0, index)

	// Order of the list must not matter
	s.Spheres[0], s.Spheres[1] = s.Spheres[1], s.Spheres[0]
	hit, ok = s.Intersect(ray)
	require.True(t, ok)
	assert.InDelta(t, 4.0, hit.T, 1e-9)
	assert.Equal(t, uint32(0), hit.MaterialID)
}

func TestScene_IntersectMissAndFarCutoff(t *testing.T) {
	s := twoSphereScene()

	_, index, ok := s.IntersectSphere(core.NewRay(core.Vec3{}, core.NewVec3(0, 1, 0)))
	assert.False(t, ok)
	assert.Equal(t, -1, index)

	s.Spheres = []geometry.Sphere{geometry.NewSphere(core.NewVec3(0, 0, -200), 1, 0)}
	_, ok = s.Intersect(core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1)))
	assert.False(t, ok, "hits beyond the far cutoff are ignored")
}

func TestScene_IntersectIgnoresSelfHit(t *testing.T) {
	s := New()
	s.AddMaterial(material.Default())
	s.AddSphere(geometry.NewSphere(core.Vec3{}, 1, 0))

	// Leaving the surface outward must not report the surface itself
	origin := core.NewVec3(0, 1, 0)
	_, ok := s.Intersect(core.NewRay(origin, core.NewVec3(0, 1, 0)))
	assert.False(t, ok)
}

func TestScene_PushDefaults(t *testing.T) {
	s := New()

	id := s.PushMaterial()
	assert.Equal(t, uint32(0), id)
	assert.Equal(t, material.Default(), s.Materials[0])

	index := s.PushSphere()
	assert.Equal(t, 0, index)
	assert.Equal(t, geometry.DefaultSphere(), s.Spheres[0])
	assert.Equal(t, 1, s.PushSphere())
}

func TestScene_EraseSphere(t *testing.T) {
	s := twoSphereScene()
	s.AddSphere(geometry.NewSphere(core.NewVec3(3, 0, 0), 2, 1))

	require.NoError(t, s.EraseSphere(1))
	require.Len(t, s.Spheres, 2)
	assert.Equal(t, core.NewVec3(0, 0, -5), s.Spheres[0].Center)
	assert.Equal(t, core.NewVec3(3, 0, 0), s.Spheres[1].Center)

	for _, index := range []int{-1, 2, 100} {
		err := s.EraseSphere(index)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Len(t, s.Spheres, 2)
}

func TestScene_EraseMaterialLeavesIDs(t *testing.T) {
	s := twoSphereScene()

	require.NoError(t, s.EraseMaterial(0))
	require.Len(t, s.Materials, 1)
	assert.Equal(t, core.NewVec3(0, 1, 0), s.Materials[0].Albedo)

	// Ids are not rewritten: sphere 0 now uses the green material and
	// sphere 1 dangles
	assert.Equal(t, uint32(0), s.Spheres[0].MaterialID)
	assert.Equal(t, uint32(1), s.Spheres[1].MaterialID)
	assert.Equal(t, []int{1}, s.DanglingSpheres())

	err := s.Validate()
	assert.ErrorIs(t, err, ErrInvalidScene)
	assert.Contains(t, err.Error(), "sphere 1")

	assert.ErrorIs(t, s.EraseMaterial(5), ErrIndexOutOfRange)
}

func TestScene_MaterialLookup(t *testing.T) {
	s := twoSphereScene()

	m, ok := s.Material(1)
	require.True(t, ok)
	assert.Equal(t, core.NewVec3(0, 1, 0), m.Albedo)

	_, ok = s.Material(2)
	assert.False(t, ok)
}

func TestScene_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Scene)
		wantErr string
	}{
		{"valid", func(s *Scene) {}, ""},
		{"no camera", func(s *Scene) { s.Camera = nil }, "camera"},
		{"zero samples", func(s *Scene) { s.Samples = 0 }, "samples"},
		{"negative depth", func(s *Scene) { s.Depth = -1 }, "depth"},
		{"zero radius", func(s *Scene) { s.Spheres[0].Radius = 0 }, "radius"},
		{"bad ior", func(s *Scene) { s.Materials[0].SetDielectric(core.Splat(1), 0, 0) }, "ior"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := twoSphereScene()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScene)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScene_CloneIsIndependent(t *testing.T) {
	s := twoSphereScene()
	clone := s.Clone()

	clone.Spheres[0].Radius = 3
	clone.Materials[0].SetMetal(core.Splat(1), 0, 1)
	clone.Camera.VerticalFOV = 90

	assert.Equal(t, 1.0, s.Spheres[0].Radius)
	assert.Equal(t, material.Lambertian, s.Materials[0].Kind)
	assert.Equal(t, 45.0, s.Camera.VerticalFOV)
}

func gridScene(n int) *Scene {
	s := New()
	m := s.AddMaterial(material.NewLambertian(core.Splat(0.5)))
	for i := 0; i < n; i++ {
		x := float64(i%8)*1.5 - 6
		y := float64(i/8)*1.5 - 3
		s.AddSphere(geometry.NewSphere(core.NewVec3(x, y, -8-float64(i%3)), 0.6, m))
	}
	return s
}

func TestScene_AccelerateMatchesLinear(t *testing.T) {
	linear := gridScene(48)
	accelerated := linear.Clone()
	require.True(t, accelerated.Accelerate())

	for x := -10; x <= 10; x++ {
		for y := -6; y <= 6; y++ {
			ray := core.NewRay(core.Vec3{}, core.NewVec3(float64(x)*0.07, float64(y)*0.07, -1))
			wantHit, wantIndex, wantOK := linear.IntersectSphere(ray)
			gotHit, gotIndex, gotOK := accelerated.IntersectSphere(ray)
			require.Equal(t, wantOK, gotOK)
			require.Equal(t, wantIndex, gotIndex)
			if wantOK {
				require.Equal(t, *wantHit, *gotHit)
			}
		}
	}
}

func TestScene_AccelerateThresholdAndInvalidation(t *testing.T) {
	small := twoSphereScene()
	assert.False(t, small.Accelerate())
	assert.Nil(t, small.bvh)

	s := gridScene(AccelerateThreshold + 1)
	require.True(t, s.Accelerate())
	require.NotNil(t, s.bvh)
	assert.Nil(t, s.Clone().bvh)

	require.NoError(t, s.EraseSphere(0))
	assert.Nil(t, s.bvh)

	require.True(t, s.Accelerate())
	s.PushSphere()
	assert.Nil(t, s.bvh)
}

func TestDefaultScene(t *testing.T) {
	s := NewDefaultScene()
	require.NoError(t, s.Validate())
	assert.Len(t, s.Spheres, 6)

	lights := 0
	for _, m := range s.Materials {
		if m.Kind == material.DiffuseLight {
			lights++
			assert.Greater(t, m.Emitted().MaxComponent(), 1.0)
		}
	}
	assert.Equal(t, 1, lights)

	// The camera looks at the pink sphere
	ray := s.Camera.PrimaryRay(50, 50, 100, 100)
	hit, ok := s.Intersect(ray)
	require.True(t, ok)
	assert.Equal(t, uint32(1), hit.MaterialID)
}

func TestSphereGridScene(t *testing.T) {
	s := NewSphereGridScene()
	require.NoError(t, s.Validate())
	assert.Len(t, s.Spheres, 402)
	assert.Len(t, s.Materials, 402)
	assert.True(t, s.Accelerate())

	for _, m := range s.Materials[2:] {
		assert.Equal(t, material.Metal, m.Kind)
		assert.GreaterOrEqual(t, m.Albedo.MinComponent(), 0.0)
		assert.LessOrEqual(t, m.Albedo.MaxComponent(), 1.0)
	}
}

func TestOklchToRGB(t *testing.T) {
	// Zero chroma is a neutral gray
	gray := oklchToRGB(0.5, 0, 123)
	assert.InDelta(t, gray.X, gray.Y, 1e-6)
	assert.InDelta(t, gray.Y, gray.Z, 1e-6)

	assert.InDelta(t, 1.0, oklchToRGB(1, 0, 0).X, 1e-6)
	assert.Equal(t, core.Vec3{}, oklchToRGB(0, 0, 0))
}
