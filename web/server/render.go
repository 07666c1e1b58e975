package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/df07/go-reference-pathtracer/pkg/output"
	"github.com/df07/go-reference-pathtracer/pkg/renderer"
)

const (
	// maxRenderSize caps each dimension of an on-demand render
	maxRenderSize = 4096
	// maxRenderSamples caps the samples query parameter
	maxRenderSamples = 10000
)

// queryInt reads an optional positive integer query parameter
func queryInt(c echo.Context, name string, fallback int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
	}
	return n, nil
}

// handleRender renders a snapshot of the scene and returns it as PNG. The
// optional width, height, samples and preview query parameters override
// the current settings for this request only.
func (s *Server) handleRender(c echo.Context) error {
	s.mu.Lock()
	snapshot := s.scene.Clone()
	cfg := s.config
	s.mu.Unlock()

	width, err := queryInt(c, "width", cfg.Width)
	if err != nil {
		return err
	}
	height, err := queryInt(c, "height", cfg.Height)
	if err != nil {
		return err
	}
	if width > maxRenderSize || height > maxRenderSize {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("image size is limited to %dx%d", maxRenderSize, maxRenderSize))
	}
	if snapshot.Samples, err = queryInt(c, "samples", snapshot.Samples); err != nil {
		return err
	}
	if snapshot.Samples > maxRenderSamples {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("samples is limited to %d", maxRenderSamples))
	}
	preview, err := queryInt(c, "preview", 0)
	if err != nil {
		return err
	}

	options, err := cfg.RenderOptions(s.logger)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	img, stats, err := renderer.NewRaytracer(snapshot, options).RenderImage(c.Request().Context(), width, height)
	if err != nil {
		if renderer.IsCancelled(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return httpError(err)
	}

	data, err := output.EncodePNG(output.Thumbnail(img, preview))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	header := c.Response().Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Render-Samples", strconv.Itoa(stats.TotalSamples))
	header.Set("X-Render-Time-Ms", strconv.FormatInt(stats.Elapsed.Milliseconds(), 10))
	return c.Blob(http.StatusOK, "image/png", data)
}
