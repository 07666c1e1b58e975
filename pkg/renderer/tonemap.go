package renderer

import (
	"fmt"
	"strings"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// ToneMapFunc maps a gamma-corrected color into displayable range
type ToneMapFunc func(core.Vec3) core.Vec3

// Names of the available tone mapping operators
const (
	ToneMapPBRNeutral = "pbr-neutral"
	ToneMapACES       = "aces"
	ToneMapNone       = "none"
)

const (
	pbrStartCompression = 0.76
	pbrDesaturation     = 0.15
)

// PBRNeutral is the Khronos PBR Neutral operator: colors whose peak stays
// below the compression threshold only lose the small black-level offset,
// brighter colors are compressed toward white.
func PBRNeutral(color core.Vec3) core.Vec3 {
	x := color.MinComponent()
	offset := 0.04
	if x < 0.08 {
		offset = x - 6.25*x*x
	}
	color = color.Subtract(core.Splat(offset))

	peak := color.MaxComponent()
	if peak < pbrStartCompression {
		return color
	}

	d := 1.0 - pbrStartCompression
	newPeak := 1.0 - d*d/(peak+d-pbrStartCompression)
	color = color.Multiply(newPeak / peak)

	g := 1.0 - 1.0/(pbrDesaturation*(peak-newPeak)+1.0)
	return color.Lerp(core.Splat(newPeak), g)
}

// ACES is Narkowicz's fitted approximation of the ACES filmic curve
func ACES(color core.Vec3) core.Vec3 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	curve := func(x float64) float64 {
		return (x * (a*x + b)) / (x*(c*x+d) + e)
	}
	return core.NewVec3(curve(color.X), curve(color.Y), curve(color.Z)).Clamp(0, 1)
}

// NoToneMap passes colors through; values above one are clipped on output
func NoToneMap(color core.Vec3) core.Vec3 {
	return color
}

// ParseToneMap returns the operator registered under name. An empty name
// selects PBR Neutral.
func ParseToneMap(name string) (ToneMapFunc, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "", ToneMapPBRNeutral, "pbrneutral", "neutral":
		return PBRNeutral, nil
	case ToneMapACES:
		return ACES, nil
	case ToneMapNone, "linear":
		return NoToneMap, nil
	default:
		return nil, fmt.Errorf("unknown tone map %q", name)
	}
}
