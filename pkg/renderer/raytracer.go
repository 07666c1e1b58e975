package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/integrator"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// Gamma is the display gamma applied before tone mapping
const Gamma = 2.2

// Options controls how a scene is turned into pixels
type Options struct {
	Workers      int                   // Number of parallel tile workers (0 = use CPU count)
	TileSize     int                   // Size of each tile (0 = DefaultTileSize)
	Seed         uint64                // Seed of every random stream
	SharedStream bool                  // Consume one stream in row-major order on a single worker
	ToneMap      ToneMapFunc           // nil = PBRNeutral
	Integrator   integrator.Integrator // nil = iterative path tracer
	Logger       core.Logger           // nil = discard
}

// DefaultOptions returns sensible default values
func DefaultOptions() Options {
	return Options{
		TileSize: DefaultTileSize,
		Seed:     42,
	}
}

// Raytracer renders a scene into an RGBA framebuffer
type Raytracer struct {
	scene   *scene.Scene
	options Options
}

// NewRaytracer creates a raytracer for s. The scene must not be modified
// while Render is running.
func NewRaytracer(s *scene.Scene, options Options) *Raytracer {
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU()
	}
	if options.TileSize <= 0 {
		options.TileSize = DefaultTileSize
	}
	if options.ToneMap == nil {
		options.ToneMap = PBRNeutral
	}
	if options.Integrator == nil {
		options.Integrator = integrator.NewPathTracingIntegrator()
	}
	if options.Logger == nil {
		options.Logger = core.NopLogger{}
	}
	if options.SharedStream {
		options.Workers = 1
	}
	return &Raytracer{scene: s, options: options}
}

// RenderImage allocates a width×height framebuffer and renders into it
func (rt *Raytracer) RenderImage(ctx context.Context, width, height int) (*image.RGBA, RenderStats, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stats, err := rt.Render(ctx, img)
	return img, stats, err
}

// Render writes every pixel of img. For each pixel the camera ray is traced
// Samples times, averaged, gamma corrected, tone mapped and quantized.
// Pixels of tiles that were not reached before ctx was cancelled are left
// untouched.
func (rt *Raytracer) Render(ctx context.Context, img *image.RGBA) (RenderStats, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	stats := RenderStats{Width: width, Height: height, Workers: rt.options.Workers}

	if width <= 0 || height <= 0 {
		return stats, fmt.Errorf("render target must not be empty, got %dx%d", width, height)
	}
	if err := rt.scene.Validate(); err != nil {
		return stats, fmt.Errorf("cannot render: %w", err)
	}

	start := time.Now()
	rt.scene.Camera.Update(width, height)
	if rt.scene.Accelerate() {
		rt.options.Logger.Printf("Built BVH over %d spheres\n", len(rt.scene.Spheres))
	}
	rt.options.Logger.Printf("Rendering %dx%d with %d samples/pixel, depth %d (using %d workers)...\n",
		width, height, rt.scene.Samples, rt.scene.Depth, rt.options.Workers)

	var err error
	if rt.options.SharedStream {
		err = rt.renderShared(ctx, img, &stats)
	} else {
		err = rt.renderTiles(ctx, img, &stats)
	}
	stats.finalize(time.Since(start))
	if err != nil {
		rt.options.Logger.Printf("Rendering stopped after %d of %d pixels: %v\n", stats.TotalPixels, width*height, err)
		return stats, err
	}

	rt.options.Logger.Printf("Render completed: %s\n", stats)
	return stats, nil
}

// renderTiles distributes the tile grid over the worker goroutines. Every
// pixel owns its random stream, so the output does not depend on scheduling.
func (rt *Raytracer) renderTiles(ctx context.Context, img *image.RGBA, stats *RenderStats) error {
	bounds := img.Bounds()
	tiles := NewTileGrid(bounds.Dx(), bounds.Dy(), rt.options.TileSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rt.options.Workers)

	var mu sync.Mutex
	for _, tile := range tiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tileStats := rt.renderTile(img, tile.Bounds, func(x, y int) core.Sampler {
				return core.NewPixelSampler(rt.options.Seed, x, y)
			})

			mu.Lock()
			stats.merge(tileStats)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("render cancelled: %w", err)
	}
	// A cancellation that landed after the last tile was scheduled but
	// before its goroutine checked the context
	if err := ctx.Err(); err != nil && stats.TotalPixels < bounds.Dx()*bounds.Dy() {
		return fmt.Errorf("render cancelled: %w", err)
	}
	return nil
}

// renderShared traces every pixel in row-major order from a single stream,
// which is the reference consumption order
func (rt *Raytracer) renderShared(ctx context.Context, img *image.RGBA, stats *RenderStats) error {
	bounds := img.Bounds()
	sampler := core.NewSharedSampler(rt.options.Seed)
	stats.Workers = 1

	for y := 0; y < bounds.Dy(); y++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("render cancelled: %w", err)
		}
		row := image.Rect(0, y, bounds.Dx(), y+1)
		stats.merge(rt.renderTile(img, row, func(int, int) core.Sampler { return sampler }))
	}
	return nil
}

// renderTile renders pixels within the specified bounds. Bounds are
// relative to the image origin.
func (rt *Raytracer) renderTile(img *image.RGBA, tileBounds image.Rectangle, samplerFor func(x, y int) core.Sampler) RenderStats {
	s := rt.scene
	origin := img.Bounds().Min
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	stats := RenderStats{Tiles: 1}

	for y := tileBounds.Min.Y; y < tileBounds.Max.Y; y++ {
		for x := tileBounds.Min.X; x < tileBounds.Max.X; x++ {
			ray := s.Camera.PrimaryRay(x, y, width, height)
			if _, isHit := s.Intersect(ray); !isHit {
				stats.PrimaryMisses++
			}

			radiance := rt.samplePixel(ray, samplerFor(x, y))
			img.SetRGBA(origin.X+x, origin.Y+y, rt.toRGBA(radiance))
			stats.TotalPixels++
			stats.TotalSamples += s.Samples
		}
	}
	return stats
}

// samplePixel averages Samples integrator calls along the primary ray
func (rt *Raytracer) samplePixel(ray core.Ray, sampler core.Sampler) core.Vec3 {
	s := rt.scene
	colorAccum := core.Vec3{}
	for sample := 0; sample < s.Samples; sample++ {
		colorAccum = colorAccum.Add(rt.options.Integrator.TraceRay(ray, s, s.Depth, sampler))
	}
	return colorAccum.Multiply(1.0 / float64(s.Samples))
}

// TracePixel traces pixel (x, y) of a width×height image on its own and
// returns the mean radiance and the display pixel. The result equals the
// pixel Render writes unless SharedStream is set, whose stream depends on
// every pixel traced before.
func (rt *Raytracer) TracePixel(x, y, width, height int) (core.Vec3, color.RGBA, error) {
	if x < 0 || x >= width || y < 0 || y >= height {
		return core.Vec3{}, color.RGBA{}, fmt.Errorf("pixel (%d,%d) is outside %dx%d", x, y, width, height)
	}
	if err := rt.scene.Validate(); err != nil {
		return core.Vec3{}, color.RGBA{}, fmt.Errorf("cannot render: %w", err)
	}

	rt.scene.Camera.Update(width, height)
	ray := rt.scene.Camera.PrimaryRay(x, y, width, height)
	radiance := rt.samplePixel(ray, core.NewPixelSampler(rt.options.Seed, x, y))
	return radiance, rt.toRGBA(radiance), nil
}

// toRGBA converts mean radiance to a display pixel
func (rt *Raytracer) toRGBA(radiance core.Vec3) color.RGBA {
	mapped := rt.options.ToneMap(radiance.GammaCorrect(Gamma))
	return color.RGBA{
		R: toByte(mapped.X),
		G: toByte(mapped.Y),
		B: toByte(mapped.Z),
		A: 255,
	}
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(max(0, min(1, v)) * 255)
}

// IsCancelled reports whether err came from a cancelled or expired context
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
