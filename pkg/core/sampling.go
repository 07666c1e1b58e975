package core

import (
	"math/rand/v2"
)

// Sampler provides the random numbers consumed while tracing paths.
// Implementations are not safe for concurrent use; give every goroutine its own.
type Sampler interface {
	// RandomValue returns a uniform value in [0, 1)
	RandomValue() float64
	// RandomRange returns a uniform value in [lo, hi)
	RandomRange(lo, hi float64) float64
	// RandomVec3 returns a vector with components uniform in [0, 1)
	RandomVec3() Vec3
	// RandomVec3Range returns a vector with components uniform in [lo, hi)
	RandomVec3Range(lo, hi float64) Vec3
	// RandomUnitVector returns a uniformly distributed unit direction
	RandomUnitVector() Vec3
	// RandomInHemisphere returns a point in the unit ball on the normal's side
	RandomInHemisphere(normal Vec3) Vec3
	// RandomOnHemisphere returns a unit direction on the normal's side
	RandomOnHemisphere(normal Vec3) Vec3
}

// RandomSampler implements Sampler on top of a math/rand generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSharedSampler creates a single seeded stream. Every consumer draws from
// it in call order, so the numbers a pixel sees depend on everything traced
// before it.
func NewSharedSampler(seed uint64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)))
}

// NewPixelSampler creates an independent stream for pixel (x, y). The stream
// only depends on the seed and the pixel coordinates, so pixels can be traced
// in any order or in parallel without changing the result.
func NewPixelSampler(seed uint64, x, y int) *RandomSampler {
	stream := uint64(uint32(y))<<32 | uint64(uint32(x))
	return NewRandomSampler(rand.New(rand.NewPCG(seed, splitMix64(stream))))
}

// splitMix64 scrambles neighbouring pixel indices into unrelated stream ids
func splitMix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// RandomValue returns a random float64 in [0, 1)
func (r *RandomSampler) RandomValue() float64 {
	return r.random.Float64()
}

// RandomRange returns a random float64 in [lo, hi)
func (r *RandomSampler) RandomRange(lo, hi float64) float64 {
	return lo + (hi-lo)*r.RandomValue()
}

// RandomVec3 returns three random float64 values in [0, 1)
func (r *RandomSampler) RandomVec3() Vec3 {
	x := r.RandomValue()
	y := r.RandomValue()
	z := r.RandomValue()
	return NewVec3(x, y, z)
}

// RandomVec3Range returns three random float64 values in [lo, hi)
func (r *RandomSampler) RandomVec3Range(lo, hi float64) Vec3 {
	x := r.RandomRange(lo, hi)
	y := r.RandomRange(lo, hi)
	z := r.RandomRange(lo, hi)
	return NewVec3(x, y, z)
}

// RandomUnitVector rejection-samples the unit ball and projects the accepted
// point onto the sphere. About two candidates are drawn on average.
func (r *RandomSampler) RandomUnitVector() Vec3 {
	return r.randomInUnitBall().Normalize()
}

// RandomInHemisphere returns a point inside the unit ball flipped to the
// hemisphere around normal
func (r *RandomSampler) RandomInHemisphere(normal Vec3) Vec3 {
	return flipToHemisphere(r.randomInUnitBall(), normal)
}

// RandomOnHemisphere returns a unit direction flipped to the hemisphere
// around normal
func (r *RandomSampler) RandomOnHemisphere(normal Vec3) Vec3 {
	return flipToHemisphere(r.RandomUnitVector(), normal)
}

func (r *RandomSampler) randomInUnitBall() Vec3 {
	for {
		p := r.RandomVec3Range(-1, 1)
		if p.LengthSquared() < 1 {
			return p
		}
	}
}

func flipToHemisphere(direction, normal Vec3) Vec3 {
	if direction.Dot(normal) < 0 {
		return direction.Negate()
	}
	return direction
}
