package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-reference-pathtracer/pkg/config"
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/geometry"
	"github.com/df07/go-reference-pathtracer/pkg/material"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Width = 16
	cfg.Height = 12
	cfg.Workers = 2
	cfg.ScenesDir = t.TempDir()

	s := scene.NewDefaultScene()
	s.Samples = 1
	s.Depth = 2

	srv, err := NewServer(s, scene.DefaultSceneID, cfg, nil)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetScene(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/scene", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SceneResponse](t, rec)
	assert.Equal(t, scene.DefaultSceneID, resp.ID)
	assert.Len(t, resp.Spheres, 6)
	assert.Len(t, resp.Materials, 6)
	assert.Equal(t, material.DiffuseLight, resp.Materials[3].Kind)
	assert.Empty(t, resp.Dangling)
	assert.Contains(t, rec.Body.String(), `"kind":"metal"`)
}

func TestSpheres_AddUpdateDelete(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/spheres", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 6, decode[IndexResponse](t, rec).Index)
	assert.Equal(t, geometry.DefaultSphere(), srv.scene.Spheres[6])

	rec = do(t, srv, http.MethodPost, "/api/spheres", `{"center":{"x":1,"y":2,"z":3},"radius":0.25,"materialId":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, geometry.NewSphere(core.NewVec3(1, 2, 3), 0.25, 2), srv.scene.Spheres[7])

	rec = do(t, srv, http.MethodPut, "/api/spheres/7", `{"radius":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, srv.scene.Spheres[7].Radius)
	assert.Equal(t, core.NewVec3(1, 2, 3), srv.scene.Spheres[7].Center, "omitted fields are kept")

	rec = do(t, srv, http.MethodDelete, "/api/spheres/0", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, srv.scene.Spheres, 7)
}

func TestSpheres_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"zero radius", http.MethodPost, "/api/spheres", `{"radius":0}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/spheres", `{"radius":`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/spheres/99", `{"radius":1}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/spheres/99", "", http.StatusNotFound},
		{"delete negative", http.MethodDelete, "/api/spheres/-1", "", http.StatusNotFound},
		{"non numeric index", http.MethodDelete, "/api/spheres/abc", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
	assert.Len(t, srv.scene.Spheres, 6)
}

func TestMaterials_AddUpdateDelete(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/materials", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 6, decode[IndexResponse](t, rec).Index)
	assert.Equal(t, material.Default(), srv.scene.Materials[6])

	rec = do(t, srv, http.MethodPost, "/api/materials", `{"kind":"metal","albedo":{"x":0.5,"y":0.5,"z":0.5},"roughness":0.3,"specularProbability":0.4}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	m := srv.scene.Materials[7]
	assert.Equal(t, material.Metal, m.Kind)
	assert.Equal(t, 0.3, m.Roughness)
	assert.Equal(t, 0.4, m.SpecularProbability)

	// Turning the light into glass clears its emission
	rec = do(t, srv, http.MethodPut, "/api/materials/3", `{"kind":"dielectric","ior":1.33}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, material.Dielectric, srv.scene.Materials[3].Kind)
	assert.Equal(t, 1.33, srv.scene.Materials[3].IOR)
	assert.Equal(t, core.Vec3{}, srv.scene.Materials[3].Emission)

	rec = do(t, srv, http.MethodPut, "/api/materials/3", `{"kind":"plastic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/materials/3", `{"kind":"metal","specularProbability":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, material.Dielectric, srv.scene.Materials[3].Kind)
}

func TestMaterials_DeleteLeavesDanglingSpheres(t *testing.T) {
	srv := newTestServer(t)

	// Drop the last material; the glass sphere now points past the end
	rec := do(t, srv, http.MethodDelete, "/api/materials/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"danglingSpheres":[5]}`, rec.Body.String())
	assert.Equal(t, uint32(5), srv.scene.Spheres[5].MaterialID)

	rec = do(t, srv, http.MethodGet, "/api/render", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/materials/40", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/settings", `{"samples":4,"depth":0,"width":32,"toneMap":"aces"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SceneResponse](t, rec)
	assert.Equal(t, 4, resp.Samples)
	assert.Equal(t, 0, resp.Depth)
	assert.Equal(t, 32, resp.Width)
	assert.Equal(t, 12, resp.Height)
	assert.Equal(t, "aces", resp.ToneMap)

	for _, body := range []string{`{"samples":0}`, `{"depth":-1}`, `{"width":-5}`, `{"toneMap":"sepia"}`, `{"integrator":"bdpt"}`} {
		rec = do(t, srv, http.MethodPut, "/api/settings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 4, srv.scene.Samples)
	assert.Equal(t, "aces", srv.config.ToneMap)
}

func TestCamera(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/camera", `{"position":{"x":0,"y":2,"z":8},"front":{"x":0,"y":0,"z":-2},"verticalFov":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.NewVec3(0, 2, 8), srv.scene.Camera.Position)
	assert.Equal(t, core.NewVec3(0, 0, -1), srv.scene.Camera.Front)
	assert.Equal(t, 60.0, srv.scene.Camera.VerticalFOV)

	for _, body := range []string{
		`{"verticalFov":0}`,
		`{"front":{"x":0,"y":0,"z":0}}`,
		`{"front":{"x":0,"y":1,"z":0}}`,
	} {
		rec = do(t, srv, http.MethodPut, "/api/camera", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRender(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/render?width=8&height=6", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "48", rec.Header().Get("X-Render-Samples"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())

	rec = do(t, srv, http.MethodGet, "/api/render?width=8&height=6&preview=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err = png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	for _, query := range []string{"width=0", "height=abc", "width=10000", "samples=-1", "samples=10001"} {
		rec = do(t, srv, http.MethodGet, "/api/render?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestRender_Deterministic(t *testing.T) {
	srv := newTestServer(t)
	a := do(t, srv, http.MethodGet, "/api/render?width=8&height=8", "")
	b := do(t, srv, http.MethodGet, "/api/render?width=8&height=8", "")
	require.Equal(t, http.StatusOK, a.Code)
	assert.Equal(t, a.Body.Bytes(), b.Body.Bytes())
}

func TestInspect(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/inspect?x=50&y=50&width=100&height=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[InspectResponse](t, rec)
	assert.True(t, resp.Hit)
	assert.Equal(t, 1, resp.SphereIndex)
	require.NotNil(t, resp.Material)
	assert.Equal(t, material.Lambertian, resp.Material.Kind)
	assert.Equal(t, "#ff00ff", resp.Color)

	// Looking straight up, the center pixel misses everything
	rec = do(t, srv, http.MethodPut, "/api/camera", `{"front":{"x":0,"y":1,"z":0},"up":{"x":0,"y":0,"z":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/inspect?x=8&y=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[InspectResponse](t, rec).Hit)

	rec = do(t, srv, http.MethodGet, "/api/inspect?x=100&y=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInspect_TracedColorMatchesRender(t *testing.T) {
	srv := newTestServer(t)
	srv.scene.Samples = 4

	rec := do(t, srv, http.MethodGet, "/api/render?width=16&height=12", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	for _, p := range [][2]int{{8, 6}, {0, 0}, {15, 11}, {3, 9}} {
		rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/inspect?x=%d&y=%d", p[0], p[1]), "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[InspectResponse](t, rec)

		r, g, b, _ := img.At(p[0], p[1]).RGBA()
		assert.Equal(t, fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8), resp.TracedColor, "pixel %v", p)
	}
}

func TestScenes_ListAndLoad(t *testing.T) {
	srv := newTestServer(t)
	yaml := "name: Single\nmaterials:\n  - name: white\n    kind: lambertian\nspheres:\n  - center: [0, 0, -3]\n    radius: 1\n    material: white\n"
	require.NoError(t, os.WriteFile(filepath.Join(srv.config.ScenesDir, "single.yaml"), []byte(yaml), 0o644))

	rec := do(t, srv, http.MethodGet, "/api/scenes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	scenes := decode[[]scene.SceneInfo](t, rec)
	require.Len(t, scenes, 3)
	assert.Equal(t, "yaml:single", scenes[2].ID)

	rec = do(t, srv, http.MethodPost, "/api/scenes/load", `{"id":"yaml:single"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.scene.Spheres, 1)
	assert.Equal(t, "yaml:single", srv.sceneID)

	rec = do(t, srv, http.MethodPost, "/api/scenes/load", `{"id":"spheregrid"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.scene.Spheres, 402)

	rec = do(t, srv, http.MethodPost, "/api/scenes/load", `{"id":"yaml:single"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, id := range []string{"yaml:missing", "yaml:../single", "/etc/passwd", "yaml:"} {
		rec = do(t, srv, http.MethodPost, "/api/scenes/load", `{"id":"`+id+`"}`)
		assert.NotEqual(t, http.StatusOK, rec.Code, id)
	}
	assert.Equal(t, "yaml:single", srv.sceneID)
}

func TestExportScene(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/scene/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kind: diffuse_light")
	assert.Contains(t, rec.Body.String(), "name: default")
}

func TestConsole(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/health", "")

	rec := do(t, srv, http.MethodGet, "/api/console", "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[[]ConsoleMessage](t, rec)
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Message, "/api/health")

	rec = do(t, srv, http.MethodGet, "/api/console?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Width = 0
	_, err := NewServer(nil, "", cfg, nil)
	assert.Error(t, err)
}
