package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3_Reflect(t *testing.T) {
	tests := []struct {
		name     string
		v        Vec3
		normal   Vec3
		expected Vec3
	}{
		{"head on", NewVec3(0, -1, 0), NewVec3(0, 1, 0), NewVec3(0, 1, 0)},
		{"45 degrees", NewVec3(1, -1, 0), NewVec3(0, 1, 0), NewVec3(1, 1, 0)},
		{"grazing", NewVec3(1, 0, 0), NewVec3(0, 1, 0), NewVec3(1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.v.Reflect(tt.normal))
		})
	}
}

func TestVec3_RefractUnitRatioKeepsDirection(t *testing.T) {
	v := NewVec3(1, -2, 0.5).Normalize()
	normal := NewVec3(0, 1, 0)

	refracted := v.Refract(normal, 1.0)

	assert.InDelta(t, v.X, refracted.X, 1e-12)
	assert.InDelta(t, v.Y, refracted.Y, 1e-12)
	assert.InDelta(t, v.Z, refracted.Z, 1e-12)
}

func TestVec3_RefractBendsTowardNormal(t *testing.T) {
	v := NewVec3(1, -1, 0).Normalize()
	normal := NewVec3(0, 1, 0)

	refracted := v.Refract(normal, 1.0/1.5)

	// sin(theta_t) = sin(45°) / 1.5
	assert.InDelta(t, math.Sin(math.Pi/4)/1.5, refracted.X, 1e-9)
	assert.InDelta(t, 1.0, refracted.Length(), 1e-9)
	assert.Less(t, refracted.Y, 0.0)
}

func TestVec3_Lerp(t *testing.T) {
	a := NewVec3(0.2, 0.4, 0.6)
	white := Splat(1)

	assert.Equal(t, a, a.Lerp(white, 0))
	assert.Equal(t, white, a.Lerp(white, 1))
	mid := a.Lerp(white, 0.5)
	assert.InDelta(t, 0.6, mid.X, 1e-12)
	assert.InDelta(t, 0.7, mid.Y, 1e-12)
	assert.InDelta(t, 0.8, mid.Z, 1e-12)
}

func TestVec3_NormalizeZero(t *testing.T) {
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.InDelta(t, 1.0, NewVec3(3, 4, 12).Normalize().Length(), 1e-12)
}

func TestVec3_ComponentExtremes(t *testing.T) {
	v := NewVec3(0.3, -2, 7)
	assert.Equal(t, -2.0, v.MinComponent())
	assert.Equal(t, 7.0, v.MaxComponent())
}

func TestVec3_IsFinite(t *testing.T) {
	assert.True(t, NewVec3(1, 2, 3).IsFinite())
	assert.False(t, NewVec3(math.NaN(), 0, 0).IsFinite())
	assert.False(t, NewVec3(0, math.Inf(1), 0).IsFinite())
}

func TestRay_At(t *testing.T) {
	ray := NewRay(NewVec3(1, 0, 0), NewVec3(0, 0, -1))
	assert.Equal(t, NewVec3(1, 0, -2.5), ray.At(2.5))
}
