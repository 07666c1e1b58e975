package geometry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// Camera holds the view parameters edited by the user and the inverse
// matrices derived from them once per frame by Update.
type Camera struct {
	Position    core.Vec3 `json:"position"`
	Front       core.Vec3 `json:"front"`
	Up          core.Vec3 `json:"up"`
	VerticalFOV float64   `json:"verticalFov"` // degrees
	Near        float64   `json:"near"`
	Far         float64   `json:"far"`

	inverseProjection mgl64.Mat4
	inverseView       mgl64.Mat4
	updated           bool
}

// NewCamera creates a camera at position looking along front
func NewCamera(position, front, up core.Vec3, verticalFOV float64) *Camera {
	return &Camera{
		Position:    position,
		Front:       front,
		Up:          up,
		VerticalFOV: verticalFOV,
		Near:        0.1,
		Far:         100.0,
	}
}

// DefaultCamera looks down -Z from the origin with a 45° field of view
func DefaultCamera() *Camera {
	return NewCamera(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, -1), core.NewVec3(0, 1, 0), 45)
}

// Validate reports a view basis that would turn every primary ray into NaN:
// zero or parallel Front and Up, a field of view outside (0, 180) degrees,
// or a non-finite position
func (c *Camera) Validate() error {
	if !c.Position.IsFinite() || !c.Front.IsFinite() || !c.Up.IsFinite() {
		return errors.New("camera position, front and up must be finite")
	}
	if c.Front.LengthSquared() == 0 || c.Up.LengthSquared() == 0 {
		return errors.New("camera front and up must be non-zero")
	}
	if c.Front.Normalize().Cross(c.Up.Normalize()).LengthSquared() < 1e-12 {
		return errors.New("camera front and up must not be parallel")
	}
	if !(c.VerticalFOV > 0 && c.VerticalFOV < 180) {
		return fmt.Errorf("camera vertical fov must be in (0, 180), got %g", c.VerticalFOV)
	}
	return nil
}

// Update recomputes the inverse projection and view matrices for a render
// target of the given size
func (c *Camera) Update(width, height int) {
	aspect := float64(width) / float64(height)
	near, far := c.Near, c.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = near + 100.0
	}

	projection := mgl64.Perspective(mgl64.DegToRad(c.VerticalFOV), aspect, near, far)
	eye := toMgl(c.Position)
	view := mgl64.LookAtV(eye, eye.Add(toMgl(c.Front)), toMgl(c.Up))

	c.inverseProjection = projection.Inv()
	c.inverseView = view.Inv()
	c.updated = true
}

// RayDirection returns the world-space unit direction through pixel (x, y)
// of a width×height image. Update must have been called for that size.
func (c *Camera) RayDirection(x, y, width, height int) core.Vec3 {
	u := float64(x) / float64(width)
	v := 1.0 - float64(y)/float64(height)
	u = u*2 - 1
	v = v*2 - 1

	target := c.inverseProjection.Mul4x1(mgl64.Vec4{u, v, 1, 1})
	viewDir := target.Vec3().Mul(1.0 / target.W()).Normalize()
	worldDir := c.inverseView.Mul4x1(viewDir.Vec4(0)).Vec3().Normalize()

	return core.NewVec3(worldDir.X(), worldDir.Y(), worldDir.Z())
}

// PrimaryRay generates the camera ray for pixel (x, y)
func (c *Camera) PrimaryRay(x, y, width, height int) core.Ray {
	if !c.updated {
		c.Update(width, height)
	}
	return core.NewRay(c.Position, c.RayDirection(x, y, width, height))
}

func toMgl(v core.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
