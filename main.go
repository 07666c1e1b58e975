package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/df07/go-reference-pathtracer/pkg/config"
	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/loaders"
	"github.com/df07/go-reference-pathtracer/pkg/output"
	"github.com/df07/go-reference-pathtracer/pkg/renderer"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
	"github.com/df07/go-reference-pathtracer/web/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every command
type globalOptions struct {
	configPath string
	envPath    string
	scenesDir  string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:          "pathtracer",
		Short:        "Reference Monte Carlo path tracer for sphere scenes",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "TOML config file")
	flags.StringVar(&g.envPath, "env-file", ".env", "dotenv file with PATHTRACER_* variables")
	flags.StringVar(&g.scenesDir, "scenes-dir", "", "directory holding *.yaml scene files")
	flags.StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newRenderCommand(g),
		newServeCommand(g),
		newScenesCommand(g),
		newCompareCommand(g),
	)
	return root
}

// newLogger builds the process logger writing text lines to w
func (g *globalOptions) newLogger(w io.Writer) (core.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return core.NewSlogLogger(slog.New(handler)), nil
}

// loadConfig layers the config sources and then the flags the user set
func (g *globalOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath, g.envPath)
	if err != nil {
		return cfg, err
	}
	if g.scenesDir != "" {
		cfg.ScenesDir = g.scenesDir
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyFlags copies explicitly set command flags into cfg
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	ints := map[string]*int{
		"width":   &cfg.Width,
		"height":  &cfg.Height,
		"samples": &cfg.Samples,
		"depth":   &cfg.Depth,
		"workers": &cfg.Workers,
		"preview": &cfg.PreviewWidth,
	}
	strs := map[string]*string{
		"out":        &cfg.OutputDir,
		"tone-map":   &cfg.ToneMap,
		"integrator": &cfg.Integrator,
		"addr":       &cfg.ServerAddr,
	}

	for name, field := range ints {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*field = v
	}
	for name, field := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*field = v
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		v, err := flags.GetUint64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = v
	}
	if flags.Lookup("shared-stream") != nil && flags.Changed("shared-stream") {
		v, err := flags.GetBool("shared-stream")
		if err != nil {
			return err
		}
		cfg.SharedStream = v
	}
	return nil
}

func newRenderCommand(g *globalOptions) *cobra.Command {
	var sceneRef string
	var watch bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a scene to an image file",
		Long: "Render the built-in scene, a discovered scene id such as yaml:glass, or a scene file.\n" +
			"Output is saved to <out>/<scene>/render_<timestamp>.png.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			logHostInfo(logger)

			renderFn := func(ctx context.Context) error {
				_, err := renderScene(ctx, cfg, sceneRef, logger)
				return err
			}
			if !watch {
				return renderFn(cmd.Context())
			}
			path, err := scenePath(sceneRef, cfg.ScenesDir)
			if err != nil {
				return err
			}
			return watchScene(cmd.Context(), path, renderFn, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sceneRef, "scene", scene.DefaultSceneID, "scene id or YAML scene file")
	flags.BoolVar(&watch, "watch", false, "re-render whenever the scene file changes")
	flags.String("out", "", "output directory")
	flags.Int("width", 0, "image width")
	flags.Int("height", 0, "image height")
	flags.Int("samples", 0, "samples per pixel (0 keeps the scene's value)")
	flags.Int("depth", -1, "maximum bounces (-1 keeps the scene's value)")
	flags.Int("workers", 0, "parallel tile workers (0 = CPU count)")
	flags.Int("preview", 0, "also save a thumbnail this many pixels wide")
	flags.Uint64("seed", 0, "random seed")
	flags.Bool("shared-stream", false, "trace from one random stream in pixel order on a single worker")
	flags.String("tone-map", "", "pbr-neutral, aces or none")
	flags.String("integrator", "", "path or recursive")
	return cmd
}

// renderScene loads, renders and publishes one image
func renderScene(ctx context.Context, cfg config.Config, sceneRef string, logger core.Logger) (output.Result, error) {
	s, err := scene.Load(sceneRef, cfg.ScenesDir)
	if err != nil {
		return output.Result{}, err
	}
	cfg.ApplyToScene(s)

	options, err := cfg.RenderOptions(logger)
	if err != nil {
		return output.Result{}, err
	}
	img, _, err := renderer.NewRaytracer(s, options).RenderImage(ctx, cfg.Width, cfg.Height)
	if err != nil {
		return output.Result{}, err
	}

	publisher := &output.Publisher{
		OutputDir:    cfg.OutputDir,
		PreviewWidth: cfg.PreviewWidth,
		Logger:       logger,
	}
	if cfg.S3.Enabled() {
		uploader, err := output.NewUploader(cfg.S3, logger)
		if err != nil {
			return output.Result{}, err
		}
		publisher.Uploader = uploader
	}
	return publisher.Publish(ctx, img, sceneRef)
}

func newServeCommand(g *globalOptions) *cobra.Command {
	var sceneRef string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scene editor API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := scene.Load(sceneRef, cfg.ScenesDir)
			if err != nil {
				return err
			}
			cfg.ApplyToScene(s)
			logHostInfo(logger)

			srv, err := server.NewServer(s, sceneRef, cfg, logger)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				logger.Printf("Shutting down web server\n")
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&sceneRef, "scene", scene.DefaultSceneID, "scene to start editing")
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Int("width", 0, "default render width")
	cmd.Flags().Int("height", 0, "default render height")
	cmd.Flags().Int("workers", 0, "parallel tile workers (0 = CPU count)")
	return cmd
}

func newScenesCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the built-in scene and the scene files found in the scenes directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			scenes, err := scene.ListAllScenes(cfg.ScenesDir, logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, info := range scenes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.DisplayName, info.Description)
			}
			return w.Flush()
		},
	}
}

func newCompareCommand(g *globalOptions) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "compare <image> <reference>",
		Short: "Print the RMSE between two renders",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loaders.LoadImage(args[0])
			if err != nil {
				return err
			}
			b, err := loaders.LoadImage(args[1])
			if err != nil {
				return err
			}
			rmse, err := loaders.RMSE(a, b)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "RMSE: %.6f\n", rmse)
			if threshold > 0 && rmse > threshold {
				return fmt.Errorf("RMSE %.6f exceeds threshold %.6f", rmse, threshold)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "fail when the RMSE is above this value")
	return cmd
}

// scenePath resolves the file behind a scene reference for watching
func scenePath(sceneRef, scenesDir string) (string, error) {
	info, err := scene.ParseYAMLMetadata(sceneRef)
	if err == nil {
		return info.FilePath, nil
	}
	if sceneRef == "" {
		sceneRef = scene.DefaultSceneID
	}
	if scene.IsBuiltin(sceneRef) {
		return "", fmt.Errorf("--watch needs a scene file; built-in scene %q has none", sceneRef)
	}
	scenes, listErr := scene.ListYAMLScenes(scenesDir, nil)
	if listErr != nil {
		return "", listErr
	}
	for _, s := range scenes {
		if s.ID == sceneRef {
			return s.FilePath, nil
		}
	}
	return "", fmt.Errorf("cannot watch scene %q: %w", sceneRef, err)
}

// logHostInfo records the machine a render ran on
func logHostInfo(logger core.Logger) {
	cpuInfo, err := cpu.Info()
	if err != nil || len(cpuInfo) == 0 {
		logger.Printf("Warning: CPU information unavailable: %v\n", err)
		return
	}
	logical, err := cpu.Counts(true)
	if err != nil {
		logical = len(cpuInfo)
	}
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Printf("Host: %s, %d logical CPUs\n", cpuInfo[0].ModelName, logical)
		return
	}
	logger.Printf("Host: %s, %d logical CPUs, %.1f GiB RAM\n",
		cpuInfo[0].ModelName, logical, float64(memInfo.Total)/(1<<30))
}
