package loaders

import (
	"fmt"
	"math"

	"github.com/disintegration/imaging"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// ImageData holds a decoded image in row-major order. Pixels keep the file's
// display encoding (sRGB for PNG and JPEG), scaled from bytes to [0,1].
type ImageData struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// LoadImage decodes any format imaging understands (PNG, JPEG, TIFF, BMP, GIF)
func LoadImage(filename string) (*ImageData, error) {
	img, err := imaging.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	data := &ImageData{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: make([]core.Vec3, bounds.Dx()*bounds.Dy()),
	}

	for y := 0; y < data.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < data.Width; x++ {
			p := row[x*4 : x*4+3]
			data.Pixels[y*data.Width+x] = core.NewVec3(
				float64(p[0])/255.0,
				float64(p[1])/255.0,
				float64(p[2])/255.0,
			)
		}
	}
	return data, nil
}

// At returns the color at pixel (x, y)
func (d *ImageData) At(x, y int) core.Vec3 {
	return d.Pixels[y*d.Width+x]
}

// RMSE returns the root mean square per-channel difference of two images
// of equal size
func RMSE(a, b *ImageData) (float64, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return 0, fmt.Errorf("image sizes differ: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	if len(a.Pixels) == 0 {
		return 0, nil
	}

	sum := 0.0
	for i := range a.Pixels {
		d := a.Pixels[i].Subtract(b.Pixels[i])
		sum += d.LengthSquared()
	}
	return math.Sqrt(sum / float64(3*len(a.Pixels))), nil
}
