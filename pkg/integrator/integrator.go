package integrator

import (
	"fmt"
	"strings"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// Integrator defines the interface for light transport algorithms
type Integrator interface {
	// TraceRay returns the radiance arriving along ray, following at most
	// depth bounces
	TraceRay(ray core.Ray, scene *scene.Scene, depth int, sampler core.Sampler) core.Vec3
}

// Names of the available integrators
const (
	PathTracing = "path"
	Recursive   = "recursive"
)

// New returns the integrator registered under name. An empty name selects
// the iterative path tracer.
func New(name string) (Integrator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PathTracing, "iterative":
		return NewPathTracingIntegrator(), nil
	case Recursive:
		return NewRecursiveIntegrator(), nil
	default:
		return nil, fmt.Errorf("unknown integrator %q", name)
	}
}
