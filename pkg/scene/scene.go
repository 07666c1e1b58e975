package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
)

const (
	// IntersectNear is the closest accepted hit distance; it keeps scattered
	// rays from re-hitting the surface they start on
	IntersectNear = 0.001
	// IntersectFar is the far-plane cutoff for every scene query
	IntersectFar = 150.0
	// AccelerateThreshold is the sphere count from which Accelerate builds
	// a BVH; below it the linear scan is faster
	AccelerateThreshold = 32
)

var (
	// ErrIndexOutOfRange is returned by erase and update operations given a
	// position outside the sphere or material list
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidScene wraps every problem reported by Validate
	ErrInvalidScene = errors.New("invalid scene")
)

// Scene owns the primitives and materials of a render. Spheres refer to
// materials by their position in Materials.
//
// Erasing a material shifts the positions of every later material but does
// not touch Sphere.MaterialID, so spheres may end up pointing at a different
// material or past the end of the list. Validate reports the latter.
type Scene struct {
	Camera    *geometry.Camera
	Spheres   []geometry.Sphere
	Materials []material.Material
	Samples   int // Paths traced per pixel
	Depth     int // Maximum number of bounces

	bvh *geometry.BVH
}

// New creates an empty scene with the default camera
func New() *Scene {
	return &Scene{
		Camera:  geometry.DefaultCamera(),
		Samples: 1,
		Depth:   5,
	}
}

// Intersect returns the nearest hit along ray within
// (IntersectNear, IntersectFar)
func (s *Scene) Intersect(ray core.Ray) (*geometry.HitRecord, bool) {
	hit, _, isHit := s.IntersectSphere(ray)
	return hit, isHit
}

// IntersectSphere is Intersect that also reports which sphere was hit
func (s *Scene) IntersectSphere(ray core.Ray) (*geometry.HitRecord, int, bool) {
	if s.bvh != nil && s.bvh.Len() == len(s.Spheres) {
		return s.bvh.Hit(ray, IntersectNear, IntersectFar)
	}

	var closestHit *geometry.HitRecord
	closestIndex := -1
	closestSoFar := IntersectFar

	for i := range s.Spheres {
		if hit, isHit := s.Spheres[i].Intersect(ray, IntersectNear, closestSoFar); isHit {
			closestSoFar = hit.T
			closestHit = hit
			closestIndex = i
		}
	}

	return closestHit, closestIndex, closestHit != nil
}

// Accelerate indexes the current sphere list in a BVH when it has at least
// AccelerateThreshold spheres. The index is a snapshot: the scene's own
// mutators drop it, but code that assigns into Spheres directly must call
// Accelerate again. It reports whether a BVH is in use.
func (s *Scene) Accelerate() bool {
	s.bvh = nil
	if len(s.Spheres) < AccelerateThreshold {
		return false
	}
	s.bvh = geometry.NewBVH(s.Spheres)
	return true
}

// Material returns the material a hit refers to
func (s *Scene) Material(id uint32) (*material.Material, bool) {
	if int(id) >= len(s.Materials) {
		return nil, false
	}
	return &s.Materials[id], true
}

// PushMaterial appends a default material and returns its index
func (s *Scene) PushMaterial() uint32 {
	s.Materials = append(s.Materials, material.Default())
	return uint32(len(s.Materials) - 1)
}

// AddMaterial appends m and returns its index
func (s *Scene) AddMaterial(m material.Material) uint32 {
	s.Materials = append(s.Materials, m)
	return uint32(len(s.Materials) - 1)
}

// PushSphere appends a default sphere and returns its index
func (s *Scene) PushSphere() int {
	return s.AddSphere(geometry.DefaultSphere())
}

// AddSphere appends sphere and returns its index
func (s *Scene) AddSphere(sphere geometry.Sphere) int {
	s.bvh = nil
	s.Spheres = append(s.Spheres, sphere)
	return len(s.Spheres) - 1
}

// EraseSphere removes the sphere at index, keeping the order of the rest
func (s *Scene) EraseSphere(index int) error {
	if index < 0 || index >= len(s.Spheres) {
		return fmt.Errorf("erase sphere %d of %d: %w", index, len(s.Spheres), ErrIndexOutOfRange)
	}
	s.bvh = nil
	s.Spheres = slices.Delete(s.Spheres, index, index+1)
	return nil
}

// EraseMaterial removes the material at index, keeping the order of the
// rest. Sphere material ids are left as they are.
func (s *Scene) EraseMaterial(index int) error {
	if index < 0 || index >= len(s.Materials) {
		return fmt.Errorf("erase material %d of %d: %w", index, len(s.Materials), ErrIndexOutOfRange)
	}
	s.Materials = slices.Delete(s.Materials, index, index+1)
	return nil
}

// DanglingSpheres returns the indices of spheres whose material id is past
// the end of the material list
func (s *Scene) DanglingSpheres() []int {
	var dangling []int
	for i, sphere := range s.Spheres {
		if int(sphere.MaterialID) >= len(s.Materials) {
			dangling = append(dangling, i)
		}
	}
	return dangling
}

// Validate checks the invariants the renderer relies on but never tests
// itself: a usable camera, positive sample count, non-negative depth, positive
// radii, sane materials and in-range material ids.
func (s *Scene) Validate() error {
	var errs []error
	if s.Camera == nil {
		errs = append(errs, errors.New("scene has no camera"))
	} else if err := s.Camera.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Samples <= 0 {
		errs = append(errs, fmt.Errorf("samples must be positive, got %d", s.Samples))
	}
	if s.Depth < 0 {
		errs = append(errs, fmt.Errorf("depth must not be negative, got %d", s.Depth))
	}
	for i, sphere := range s.Spheres {
		if !(sphere.Radius > 0) {
			errs = append(errs, fmt.Errorf("sphere %d: radius must be positive, got %g", i, sphere.Radius))
		}
		if !sphere.Center.IsFinite() {
			errs = append(errs, fmt.Errorf("sphere %d: center must be finite", i))
		}
		if int(sphere.MaterialID) >= len(s.Materials) {
			errs = append(errs, fmt.Errorf("sphere %d: material %d does not exist (%d materials)", i, sphere.MaterialID, len(s.Materials)))
		}
	}
	for i := range s.Materials {
		if err := s.Materials[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("material %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidScene, errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy that can be rendered while the original is
// being edited
func (s *Scene) Clone() *Scene {
	clone := *s
	if s.Camera != nil {
		camera := *s.Camera
		clone.Camera = &camera
	}
	clone.Spheres = slices.Clone(s.Spheres)
	clone.Materials = slices.Clone(s.Materials)
	clone.bvh = nil
	return &clone
}
