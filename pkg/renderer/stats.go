package renderer

import (
	"fmt"
	"time"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	Width          int           // Image width in pixels
	Height         int           // Image height in pixels
	TotalPixels    int           // Total number of pixels rendered
	TotalSamples   int           // Total number of integrator calls
	AverageSamples float64       // Average samples per pixel
	PrimaryMisses  int           // Pixels whose camera ray left the scene
	Tiles          int           // Number of tiles rendered
	Workers        int           // Number of goroutines used
	Elapsed        time.Duration // Wall-clock render time
}

// merge folds the counters of one tile into stats
func (s *RenderStats) merge(tile RenderStats) {
	s.TotalPixels += tile.TotalPixels
	s.TotalSamples += tile.TotalSamples
	s.PrimaryMisses += tile.PrimaryMisses
	s.Tiles += tile.Tiles
}

// finalize calculates final statistics after all pixels are rendered
func (s *RenderStats) finalize(elapsed time.Duration) {
	if s.TotalPixels > 0 {
		s.AverageSamples = float64(s.TotalSamples) / float64(s.TotalPixels)
	}
	s.Elapsed = elapsed
}

// SamplesPerSecond returns the integrator throughput of the render
func (s RenderStats) SamplesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalSamples) / s.Elapsed.Seconds()
}

func (s RenderStats) String() string {
	return fmt.Sprintf("%dx%d, %d samples (%.1f/pixel), %d primary misses, %d tiles on %d workers in %v",
		s.Width, s.Height, s.TotalSamples, s.AverageSamples, s.PrimaryMisses, s.Tiles, s.Workers,
		s.Elapsed.Round(time.Millisecond))
}
