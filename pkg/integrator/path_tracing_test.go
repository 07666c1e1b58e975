package integrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// lightScene has a single emissive sphere in front of the origin
func lightScene() *scene.Scene {
	s := scene.New()
	light := s.AddMaterial(material.NewDiffuseLight(core.Splat(2)))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, -1), 0.5, light))
	return s
}

// mirrorScene puts a half-grey mirror in front of the origin and a light
// behind it, so the light is only reachable after one bounce
func mirrorScene() *scene.Scene {
	s := scene.New()
	mirror := s.AddMaterial(material.NewMetal(core.Splat(0.5), 0, 0))
	light := s.AddMaterial(material.NewDiffuseLight(core.Splat(2)))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, -3), 1, mirror))
	s.AddSphere(geometry.NewSphere(core.NewVec3(0, 0, 3), 1, light))
	return s
}

func integrators() map[string]Integrator {
	return map[string]Integrator{
		PathTracing: NewPathTracingIntegrator(),
		Recursive:   NewRecursiveIntegrator(),
	}
}

func TestTraceRay_MissIsBlack(t *testing.T) {
	s := lightScene()
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 1, 0))

	for name, integ := range integrators() {
		t.Run(name, func(t *testing.T) {
			for _, depth := range []int{0, 1, 8} {
				got := integ.TraceRay(ray, s, depth, core.NewSharedSampler(1))
				assert.Equal(t, core.Vec3{}, got)
			}
		})
	}
}

func TestTraceRay_EmptySceneIsBlack(t *testing.T) {
	s := scene.New()
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))
	for name, integ := range integrators() {
		assert.Equal(t, core.Vec3{}, integ.TraceRay(ray, s, 4, core.NewSharedSampler(1)), name)
	}
}

func TestTraceRay_DirectLight(t *testing.T) {
	s := lightScene()
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))

	for name, integ := range integrators() {
		t.Run(name, func(t *testing.T) {
			// The light ends the path, so extra depth adds nothing
			for _, depth := range []int{0, 1, 5} {
				got := integ.TraceRay(ray, s, depth, core.NewSharedSampler(1))
				assert.Equal(t, core.Splat(2), got)
			}
		})
	}
}

func TestTraceRay_OneBounceMirror(t *testing.T) {
	s := mirrorScene()
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))

	for name, integ := range integrators() {
		t.Run(name, func(t *testing.T) {
			// Depth 0 allows the first intersection only
			assert.Equal(t, core.Vec3{}, integ.TraceRay(ray, s, 0, core.NewSharedSampler(3)))
			assert.Equal(t, core.Splat(1), integ.TraceRay(ray, s, 1, core.NewSharedSampler(3)))
		})
	}
}

func TestTraceRay_ClosedDiffuseBoxWithoutLightIsBlack(t *testing.T) {
	s := scene.New()
	white := s.AddMaterial(material.NewLambertian(core.Splat(1)))
	s.AddSphere(geometry.NewSphere(core.Vec3{}, 10, white))

	sampler := core.NewSharedSampler(9)
	for i := 0; i < 50; i++ {
		ray := core.NewRay(core.Vec3{}, sampler.RandomUnitVector())
		assert.Equal(t, core.Vec3{}, NewPathTracingIntegrator().TraceRay(ray, s, 16, sampler))
	}
}

func TestTraceRay_DanglingMaterialAbsorbs(t *testing.T) {
	s := lightScene()
	s.Spheres[0].MaterialID = 7
	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))

	for name, integ := range integrators() {
		assert.Equal(t, core.Vec3{}, integ.TraceRay(ray, s, 3, core.NewSharedSampler(1)), name)
	}
}

func TestIntegrators_Agree(t *testing.T) {
	s := scene.NewDefaultScene()
	const width, height = 16, 12
	s.Camera.Update(width, height)

	iterative := NewPathTracingIntegrator()
	recursive := NewRecursiveIntegrator()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ray := s.Camera.PrimaryRay(x, y, width, height)
			a := iterative.TraceRay(ray, s, s.Depth, core.NewPixelSampler(11, x, y))
			b := recursive.TraceRay(ray, s, s.Depth, core.NewPixelSampler(11, x, y))

			require.InDelta(t, a.X, b.X, 1e-9, "pixel (%d,%d)", x, y)
			require.InDelta(t, a.Y, b.Y, 1e-9, "pixel (%d,%d)", x, y)
			require.InDelta(t, a.Z, b.Z, 1e-9, "pixel (%d,%d)", x, y)
		}
	}
}

func TestTraceRay_Deterministic(t *testing.T) {
	s := scene.NewDefaultScene()
	ray := s.Camera.PrimaryRay(40, 40, 80, 80)
	integ := NewPathTracingIntegrator()

	a := integ.TraceRay(ray, s, s.Depth, core.NewSharedSampler(5))
	b := integ.TraceRay(ray, s, s.Depth, core.NewSharedSampler(5))
	assert.Equal(t, a, b)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    Integrator
		wantErr bool
	}{
		{"", NewPathTracingIntegrator(), false},
		{"path", NewPathTracingIntegrator(), false},
		{"Iterative", NewPathTracingIntegrator(), false},
		{"recursive", NewRecursiveIntegrator(), false},
		{"bdpt", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
