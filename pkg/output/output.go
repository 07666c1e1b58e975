package output

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// Save writes img to path, creating parent directories. The format follows
// the file extension (png, jpg, tif, bmp, gif).
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// EncodePNG returns img encoded as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img to width pixels, keeping the aspect ratio. Images
// already narrower than width are returned unchanged.
func Thumbnail(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return resize.Resize(uint(width), 0, img, resize.Bilinear)
}

// RenderPath returns output/<scene>/render_<timestamp>.png
func RenderPath(outputDir, sceneName string, at time.Time) string {
	return filepath.Join(outputDir, sanitize(sceneName), fmt.Sprintf("render_%s.png", at.Format("20060102_150405")))
}

// PreviewPath returns the thumbnail path that belongs to a render path
func PreviewPath(renderPath string) string {
	ext := filepath.Ext(renderPath)
	return strings.TrimSuffix(renderPath, ext) + "_preview" + ext
}

func sanitize(name string) string {
	name = strings.TrimPrefix(name, "yaml:")
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "scene"
	}
	return name
}

// Result lists everything Publish wrote
type Result struct {
	Path        string   // Full-size render on disk
	PreviewPath string   // Thumbnail on disk, empty when disabled
	Keys        []string // Uploaded object keys, empty when uploads are disabled
}

type savedImage struct {
	path string
	img  image.Image
}

// Publisher saves finished renders and optionally uploads them
type Publisher struct {
	OutputDir    string
	PreviewWidth int       // 0 disables thumbnails
	Uploader     *Uploader // nil disables uploads
	Logger       core.Logger
	Now          func() time.Time
}

// Publish saves img under OutputDir, writes a thumbnail if configured and
// uploads both when an uploader is set
func (p *Publisher) Publish(ctx context.Context, img image.Image, sceneName string) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	var result Result
	result.Path = RenderPath(p.OutputDir, sceneName, now())
	if err := Save(img, result.Path); err != nil {
		return result, err
	}
	logger.Printf("Render saved as %s\n", result.Path)

	files := []savedImage{{result.Path, img}}

	if p.PreviewWidth > 0 {
		preview := Thumbnail(img, p.PreviewWidth)
		result.PreviewPath = PreviewPath(result.Path)
		if err := Save(preview, result.PreviewPath); err != nil {
			return result, err
		}
		logger.Printf("Preview saved as %s (%dx%d)\n", result.PreviewPath, preview.Bounds().Dx(), preview.Bounds().Dy())
		files = append(files, savedImage{result.PreviewPath, preview})
	}

	if p.Uploader == nil {
		return result, nil
	}
	for _, f := range files {
		data, err := EncodePNG(f.img)
		if err != nil {
			return result, err
		}
		rel, err := filepath.Rel(p.OutputDir, f.path)
		if err != nil {
			rel = filepath.Base(f.path)
		}
		key, err := p.Uploader.Upload(ctx, filepath.ToSlash(rel), data, "image/png")
		if err != nil {
			return result, err
		}
		result.Keys = append(result.Keys, key)
	}
	return result, nil
}
