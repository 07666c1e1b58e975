package loaders

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// Vec3 is a vector written as a three element YAML sequence, e.g. [0, 1, 0]
type Vec3 [3]float64

// ToCore converts the YAML triple to a core vector
func (v Vec3) ToCore() core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}

// FromCore converts a core vector to its YAML triple
func FromCore(v core.Vec3) Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// SceneFile is the on-disk description of a scene
type SceneFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Samples     int            `yaml:"samples,omitempty"`
	Depth       *int           `yaml:"depth,omitempty"`
	Camera      *CameraSpec    `yaml:"camera,omitempty"`
	Materials   []MaterialSpec `yaml:"materials"`
	Spheres     []SphereSpec   `yaml:"spheres"`
}

// CameraSpec describes the camera; zero fields take the built-in defaults
type CameraSpec struct {
	Position *Vec3   `yaml:"position,omitempty"`
	LookAt   *Vec3   `yaml:"look_at,omitempty"`
	Front    *Vec3   `yaml:"front,omitempty"`
	Up       *Vec3   `yaml:"up,omitempty"`
	VFov     float64 `yaml:"vfov,omitempty"`
}

// MaterialSpec describes one material. Spheres refer to it by name or by
// its position in the list.
type MaterialSpec struct {
	Name                string  `yaml:"name,omitempty"`
	Kind                string  `yaml:"kind"`
	Albedo              *Vec3   `yaml:"albedo,omitempty"`
	Emission            *Vec3   `yaml:"emission,omitempty"`
	Strength            float64 `yaml:"strength,omitempty"`
	Roughness           float64 `yaml:"roughness,omitempty"`
	IOR                 float64 `yaml:"ior,omitempty"`
	SpecularProbability float64 `yaml:"specular_probability,omitempty"`
}

// SphereSpec describes one sphere
type SphereSpec struct {
	Center   Vec3    `yaml:"center"`
	Radius   float64 `yaml:"radius"`
	Material string  `yaml:"material"`
}

// LoadSceneFile reads and parses a YAML scene description
func LoadSceneFile(path string) (*SceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	sceneFile, err := ParseSceneFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sceneFile, nil
}

// ParseSceneFile parses a YAML scene description and checks that every
// sphere refers to a known material
func ParseSceneFile(data []byte) (*SceneFile, error) {
	var sceneFile SceneFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sceneFile); err != nil {
		return nil, fmt.Errorf("failed to parse scene YAML: %w", err)
	}

	for i, sphere := range sceneFile.Spheres {
		if _, err := sceneFile.MaterialIndex(sphere.Material); err != nil {
			return nil, fmt.Errorf("sphere %d: %w", i, err)
		}
	}
	return &sceneFile, nil
}

// MaterialIndex resolves a sphere's material reference, which is either a
// material name or a decimal index into Materials
func (f *SceneFile) MaterialIndex(ref string) (uint32, error) {
	for i, m := range f.Materials {
		if m.Name != "" && m.Name == ref {
			return uint32(i), nil
		}
	}
	if index, err := strconv.ParseUint(ref, 10, 32); err == nil && int(index) < len(f.Materials) {
		return uint32(index), nil
	}
	return 0, fmt.Errorf("unknown material %q", ref)
}

// Marshal encodes the scene file as YAML
func (f *SceneFile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode scene YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SceneMetadata is the descriptive header of a scene file
type SceneMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ReadSceneMetadata reads only the name and description of a scene file
func ReadSceneMetadata(path string) (SceneMetadata, error) {
	var metadata SceneMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read scene file: %w", err)
	}
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse scene metadata: %w", err)
	}
	return metadata, nil
}
