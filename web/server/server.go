package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/df07/go-reference-pathtracer/pkg/config"
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// Server exposes the scene editor over HTTP. Every handler takes mu, so
// edits never interleave with each other or with the start of a render;
// renders work on a clone and release the lock while tracing.
type Server struct {
	mu      sync.Mutex
	scene   *scene.Scene
	sceneID string
	config  config.Config

	console *Console
	logger  core.Logger
	echo    *echo.Echo
}

// NewServer creates a server editing s. cfg supplies the image size,
// renderer options and scene directory.
func NewServer(s *scene.Scene, sceneID string, cfg config.Config, logger core.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		s = scene.NewDefaultScene()
		sceneID = scene.DefaultSceneID
	}

	console := NewConsole(200)
	srv := &Server{
		scene:   s,
		sceneID: sceneID,
		config:  cfg,
		console: console,
		logger:  NewWebLogger(console, logger),
	}
	srv.echo = srv.routes()
	return srv, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Printf("%s %s -> %d\n", v.Method, v.URI, v.Status)
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/console", s.handleConsole)

	api.GET("/scene", s.handleGetScene)
	api.GET("/scene/export", s.handleExportScene)
	api.PUT("/settings", s.handleSettings)
	api.PUT("/camera", s.handleCamera)

	api.POST("/spheres", s.handleAddSphere)
	api.PUT("/spheres/:index", s.handleUpdateSphere)
	api.DELETE("/spheres/:index", s.handleDeleteSphere)

	api.POST("/materials", s.handleAddMaterial)
	api.PUT("/materials/:index", s.handleUpdateMaterial)
	api.DELETE("/materials/:index", s.handleDeleteMaterial)

	api.GET("/scenes", s.handleListScenes)
	api.POST("/scenes/load", s.handleLoadScene)

	api.GET("/render", s.handleRender)
	api.GET("/inspect", s.handleInspect)
	return e
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured address until Shutdown is called
func (s *Server) Start() error {
	s.logger.Printf("Starting web server on %s\n", s.config.ServerAddr)
	if err := s.echo.Start(s.config.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleConsole returns recent log lines, optionally only those after ?since=
func (s *Server) handleConsole(c echo.Context) error {
	since := 0
	if v := c.QueryParam("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an integer")
		}
		since = n
	}
	return c.JSON(http.StatusOK, s.console.Since(since))
}

// indexParam parses the :index path parameter
func indexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	return index, nil
}

// httpError maps scene errors onto HTTP status codes
func httpError(err error) error {
	switch {
	case errors.Is(err, scene.ErrIndexOutOfRange):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scene.ErrInvalidScene):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
