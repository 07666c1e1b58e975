package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/material"
	"github.com/df07/go-reference-pathtracer/pkg/renderer"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit         bool               `json:"hit"`
	SphereIndex int                `json:"sphereIndex"`
	MaterialID  uint32             `json:"materialId"`
	Material    *material.Material `json:"material,omitempty"` // nil when the id dangles
	Point       core.Vec3          `json:"point"`
	Normal      core.Vec3          `json:"normal"`
	Distance    float64            `json:"distance"`
	FrontFace   bool               `json:"frontFace"`
	Color       string             `json:"color,omitempty"`       // Albedo, or emission for lights, as #rrggbb
	Radiance    core.Vec3          `json:"radiance"`              // Mean traced radiance before gamma and tone mapping
	TracedColor string             `json:"tracedColor,omitempty"` // Display color of the traced pixel as #rrggbb
}

// inspectPixel casts the camera ray through pixel (x, y) of a width×height
// image, describes what it hits first and traces the pixel the way a render
// of the same size would. A scene that cannot be rendered still reports the
// hit, without a traced color.
func inspectPixel(s *scene.Scene, options renderer.Options, width, height, x, y int) InspectResponse {
	var response InspectResponse
	if radiance, pixel, err := renderer.NewRaytracer(s, options).TracePixel(x, y, width, height); err == nil {
		response.Radiance = radiance
		response.TracedColor = fmt.Sprintf("#%02x%02x%02x", pixel.R, pixel.G, pixel.B)
	}

	s.Camera.Update(width, height)
	ray := s.Camera.PrimaryRay(x, y, width, height)

	hit, index, isHit := s.IntersectSphere(ray)
	if !isHit {
		response.SphereIndex = -1
		return response
	}

	response = InspectResponse{
		Radiance:    response.Radiance,
		TracedColor: response.TracedColor,
		Hit:         true,
		SphereIndex: index,
		MaterialID:  hit.MaterialID,
		Point:       hit.Point,
		Normal:      hit.Normal,
		Distance:    hit.T,
		FrontFace:   hit.FrontFace,
	}
	if m, ok := s.Material(hit.MaterialID); ok {
		mat := *m
		response.Material = &mat
		swatch := mat.Albedo
		if mat.Kind == material.DiffuseLight {
			swatch = mat.Emission
		}
		swatch = swatch.Clamp(0, 1)
		response.Color = fmt.Sprintf("#%02x%02x%02x", int(swatch.X*255), int(swatch.Y*255), int(swatch.Z*255))
	}
	return response
}

// handleInspect handles ray casting inspection requests
func (s *Server) handleInspect(c echo.Context) error {
	s.mu.Lock()
	snapshot := s.scene.Clone()
	cfg := s.config
	s.mu.Unlock()

	width, height := cfg.Width, cfg.Height

	var err error
	if width, err = queryInt(c, "width", width); err != nil {
		return err
	}
	if height, err = queryInt(c, "height", height); err != nil {
		return err
	}

	pixelX, errX := strconv.Atoi(c.QueryParam("x"))
	pixelY, errY := strconv.Atoi(c.QueryParam("y"))
	if errX != nil || errY != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "x and y must be integers")
	}
	if pixelX < 0 || pixelX >= width || pixelY < 0 || pixelY >= height {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("pixel (%d,%d) is outside %dx%d", pixelX, pixelY, width, height))
	}

	options, err := cfg.RenderOptions(core.NopLogger{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, inspectPixel(snapshot, options, width, height, pixelX, pixelY))
}
