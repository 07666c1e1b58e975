package material

import (
	"fmt"
	"strings"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
)

// Kind selects which scattering rule a Material follows
type Kind uint8

const (
	Lambertian Kind = iota
	Metal
	Dielectric
	DiffuseLight
)

var kindNames = [...]string{
	Lambertian:   "lambertian",
	Metal:        "metal",
	Dielectric:   "dielectric",
	DiffuseLight: "diffuse_light",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind converts a kind name such as "metal" back into a Kind
func ParseKind(name string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k, n := range kindNames {
		if n == normalized {
			return Kind(k), nil
		}
	}
	if normalized == "light" || normalized == "emissive" {
		return DiffuseLight, nil
	}
	return 0, fmt.Errorf("unknown material kind %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown material kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Material is a closed sum over the four scattering models. Fields that a
// kind does not use are ignored by Scatter.
type Material struct {
	Kind                Kind      `json:"kind"`
	Albedo              core.Vec3 `json:"albedo"`
	Emission            core.Vec3 `json:"emission"`
	Roughness           float64   `json:"roughness"`
	IOR                 float64   `json:"ior"`
	SpecularProbability float64   `json:"specularProbability"`
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Attenuation core.Vec3 // Color attenuation applied to the path throughput
	Scattered   core.Ray  // The continuation ray, starting at the hit point
}

// Default returns the material appended by PushMaterial: a white diffuse
// surface with an index of refraction of 1
func Default() Material {
	return Material{
		Kind:   Lambertian,
		Albedo: core.Splat(1),
		IOR:    1.0,
	}
}

// NewLambertian creates a diffuse material
func NewLambertian(albedo core.Vec3) Material {
	m := Default()
	m.SetLambertian(albedo)
	return m
}

// NewMetal creates a two-lobe metal material
func NewMetal(albedo core.Vec3, roughness, specularProbability float64) Material {
	m := Default()
	m.SetMetal(albedo, roughness, specularProbability)
	return m
}

// NewDielectric creates a glass-like material
func NewDielectric(albedo core.Vec3, roughness, ior float64) Material {
	m := Default()
	m.SetDielectric(albedo, roughness, ior)
	return m
}

// NewDiffuseLight creates an emitter
func NewDiffuseLight(emission core.Vec3) Material {
	m := Default()
	m.SetDiffuseLight(emission)
	return m
}

// SetLambertian turns m into a diffuse surface
func (m *Material) SetLambertian(albedo core.Vec3) {
	m.Kind = Lambertian
	m.Albedo = albedo
	m.Emission = core.Vec3{}
}

// SetMetal turns m into a metal with the given roughness and probability of
// taking the specular lobe
func (m *Material) SetMetal(albedo core.Vec3, roughness, specularProbability float64) {
	m.Kind = Metal
	m.Albedo = albedo
	m.Roughness = roughness
	m.SpecularProbability = specularProbability
	m.Emission = core.Vec3{}
}

// SetDielectric turns m into a (possibly tinted, possibly frosted) dielectric
func (m *Material) SetDielectric(albedo core.Vec3, roughness, ior float64) {
	m.Kind = Dielectric
	m.Albedo = albedo
	m.Roughness = roughness
	m.IOR = ior
	m.Emission = core.Vec3{}
}

// SetDiffuseLight turns m into a light source
func (m *Material) SetDiffuseLight(emission core.Vec3) {
	m.Kind = DiffuseLight
	m.Emission = emission
}

// Emitted returns the radiance emitted by the surface
func (m *Material) Emitted() core.Vec3 {
	return m.Emission
}

// Scatter produces the continuation ray for a path arriving along rayIn at
// hit. It reports false when the path ends at this surface.
func (m *Material) Scatter(rayIn core.Ray, hit geometry.HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	switch m.Kind {
	case Lambertian:
		return m.scatterLambertian(hit, sampler)
	case Metal:
		return m.scatterMetal(rayIn, hit, sampler)
	case Dielectric:
		return m.scatterDielectric(rayIn, hit, sampler)
	case DiffuseLight:
		return ScatterResult{}, false
	default:
		return ScatterResult{}, false
	}
}

// Validate reports parameter combinations that produce NaN or negative energy
func (m *Material) Validate() error {
	if int(m.Kind) >= len(kindNames) {
		return fmt.Errorf("unknown material kind %d", m.Kind)
	}
	if m.Kind == Dielectric && m.IOR <= 0 {
		return fmt.Errorf("dielectric ior must be positive, got %g", m.IOR)
	}
	if m.Kind == Metal && (m.SpecularProbability < 0 || m.SpecularProbability > 1) {
		return fmt.Errorf("specular probability must be in [0,1], got %g", m.SpecularProbability)
	}
	if !m.Albedo.IsFinite() || !m.Emission.IsFinite() {
		return fmt.Errorf("material colors must be finite")
	}
	return nil
}
