package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// SceneResponse is the editor's view of the current scene
type SceneResponse struct {
	ID        string              `json:"id"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Samples   int                 `json:"samples"`
	Depth     int                 `json:"depth"`
	ToneMap   string              `json:"toneMap"`
	Camera    geometry.Camera     `json:"camera"`
	Spheres   []geometry.Sphere   `json:"spheres"`
	Materials []material.Material `json:"materials"`
	Dangling  []int               `json:"danglingSpheres"` // Spheres whose material no longer exists
}

// SettingsRequest changes render settings; omitted fields are left alone
type SettingsRequest struct {
	Samples    *int    `json:"samples"`
	Depth      *int    `json:"depth"`
	Width      *int    `json:"width"`
	Height     *int    `json:"height"`
	ToneMap    *string `json:"toneMap"`
	Integrator *string `json:"integrator"`
}

// CameraRequest moves the camera; omitted fields are left alone
type CameraRequest struct {
	Position    *core.Vec3 `json:"position"`
	Front       *core.Vec3 `json:"front"`
	Up          *core.Vec3 `json:"up"`
	VerticalFOV *float64   `json:"verticalFov"`
}

// IndexResponse reports the position of an added element
type IndexResponse struct {
	Index int `json:"index"`
}

func (s *Server) sceneResponse() SceneResponse {
	return SceneResponse{
		ID:        s.sceneID,
		Width:     s.config.Width,
		Height:    s.config.Height,
		Samples:   s.scene.Samples,
		Depth:     s.scene.Depth,
		ToneMap:   s.config.ToneMap,
		Camera:    *s.scene.Camera,
		Spheres:   append([]geometry.Sphere{}, s.scene.Spheres...),
		Materials: append([]material.Material{}, s.scene.Materials...),
		Dangling:  s.scene.DanglingSpheres(),
	}
}

func (s *Server) handleGetScene(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.sceneResponse())
}

// handleExportScene returns the scene as a YAML scene file
func (s *Server) handleExportScene(c echo.Context) error {
	s.mu.Lock()
	data, err := s.scene.ToSceneFile(s.sceneID, "Exported from the editor").Marshal()
	s.mu.Unlock()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/yaml", data)
}

func (s *Server) handleSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config
	samples, depth := s.scene.Samples, s.scene.Depth
	if req.Samples != nil {
		samples = *req.Samples
	}
	if req.Depth != nil {
		depth = *req.Depth
	}
	if req.Width != nil {
		cfg.Width = *req.Width
	}
	if req.Height != nil {
		cfg.Height = *req.Height
	}
	if req.ToneMap != nil {
		cfg.ToneMap = *req.ToneMap
	}
	if req.Integrator != nil {
		cfg.Integrator = *req.Integrator
	}

	if samples <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("samples must be positive, got %d", samples))
	}
	if depth < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("depth must not be negative, got %d", depth))
	}
	if err := cfg.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.config = cfg
	s.scene.Samples = samples
	s.scene.Depth = depth
	s.logger.Printf("Settings: %dx%d, %d samples, depth %d, tone map %s\n", cfg.Width, cfg.Height, samples, depth, cfg.ToneMap)
	return c.JSON(http.StatusOK, s.sceneResponse())
}

func (s *Server) handleCamera(c echo.Context) error {
	var req CameraRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	camera := *s.scene.Camera
	if req.Position != nil {
		camera.Position = *req.Position
	}
	if req.Front != nil {
		camera.Front = req.Front.Normalize()
	}
	if req.Up != nil {
		camera.Up = req.Up.Normalize()
	}
	if req.VerticalFOV != nil {
		camera.VerticalFOV = *req.VerticalFOV
	}

	if err := camera.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.scene.Camera = geometry.NewCamera(camera.Position, camera.Front, camera.Up, camera.VerticalFOV)
	s.scene.Camera.Near, s.scene.Camera.Far = camera.Near, camera.Far
	return c.JSON(http.StatusOK, s.scene.Camera)
}

func validateSphere(sphere geometry.Sphere) error {
	if !(sphere.Radius > 0) {
		return fmt.Errorf("radius must be positive, got %g", sphere.Radius)
	}
	if !sphere.Center.IsFinite() {
		return fmt.Errorf("center must be finite")
	}
	return nil
}

// handleAddSphere appends the posted sphere, or the default sphere when the
// body is empty
func (s *Server) handleAddSphere(c echo.Context) error {
	sphere := geometry.DefaultSphere()
	if err := c.Bind(&sphere); err != nil {
		return err
	}
	if err := validateSphere(sphere); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.scene.AddSphere(sphere)
	if int(sphere.MaterialID) >= len(s.scene.Materials) {
		s.logger.Printf("Warning: sphere %d uses missing material %d\n", index, sphere.MaterialID)
	}
	return c.JSON(http.StatusCreated, IndexResponse{Index: index})
}

func (s *Server) handleUpdateSphere(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.scene.Spheres) {
		return httpError(fmt.Errorf("sphere %d: %w", index, scene.ErrIndexOutOfRange))
	}
	sphere := s.scene.Spheres[index]
	if err := c.Bind(&sphere); err != nil {
		return err
	}
	if err := validateSphere(sphere); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.scene.Spheres[index] = sphere
	return c.JSON(http.StatusOK, sphere)
}

func (s *Server) handleDeleteSphere(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scene.EraseSphere(index); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// applyMaterial sets dst from req through the kind's setter, so switching a
// light to another kind clears its emission
func applyMaterial(dst *material.Material, req material.Material) error {
	switch req.Kind {
	case material.Lambertian:
		dst.SetLambertian(req.Albedo)
	case material.Metal:
		dst.SetMetal(req.Albedo, req.Roughness, req.SpecularProbability)
	case material.Dielectric:
		dst.SetDielectric(req.Albedo, req.Roughness, req.IOR)
	case material.DiffuseLight:
		dst.SetDiffuseLight(req.Emission)
	default:
		return fmt.Errorf("unknown material kind %d", req.Kind)
	}
	return dst.Validate()
}

// handleAddMaterial appends the posted material, or the default material
// when the body is empty
func (s *Server) handleAddMaterial(c echo.Context) error {
	req := material.Default()
	if err := c.Bind(&req); err != nil {
		return err
	}
	m := material.Default()
	if err := applyMaterial(&m, req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.scene.PushMaterial()
	s.scene.Materials[id] = m
	return c.JSON(http.StatusCreated, IndexResponse{Index: int(id)})
}

func (s *Server) handleUpdateMaterial(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.scene.Materials) {
		return httpError(fmt.Errorf("material %d: %w", index, scene.ErrIndexOutOfRange))
	}
	req := s.scene.Materials[index]
	if err := c.Bind(&req); err != nil {
		return err
	}
	m := s.scene.Materials[index]
	if err := applyMaterial(&m, req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.scene.Materials[index] = m
	return c.JSON(http.StatusOK, m)
}

// handleDeleteMaterial erases a material. Sphere material ids are not
// rewritten; the response lists spheres left without a material.
func (s *Server) handleDeleteMaterial(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scene.EraseMaterial(index); err != nil {
		return httpError(err)
	}
	dangling := s.scene.DanglingSpheres()
	if len(dangling) > 0 {
		s.logger.Printf("Warning: spheres %v now reference missing materials\n", dangling)
	}
	return c.JSON(http.StatusOK, map[string][]int{"danglingSpheres": dangling})
}

func (s *Server) handleListScenes(c echo.Context) error {
	s.mu.Lock()
	dir := s.config.ScenesDir
	s.mu.Unlock()

	scenes, err := scene.ListAllScenes(dir, s.logger)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, scenes)
}

// LoadSceneRequest selects a scene by the id returned from /api/scenes
type LoadSceneRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleLoadScene(c echo.Context) error {
	var req LoadSceneRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	builtin := scene.IsBuiltin(req.ID)
	name := strings.TrimPrefix(req.ID, "yaml:")
	if !builtin && (name == req.ID || name == "" || name != filepath.Base(name)) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown scene id %q", req.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := scene.Load(req.ID, s.config.ScenesDir)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	s.scene = loaded
	s.sceneID = req.ID
	s.logger.Printf("Loaded scene %s (%d spheres, %d materials)\n", req.ID, len(loaded.Spheres), len(loaded.Materials))
	return c.JSON(http.StatusOK, s.sceneResponse())
}
