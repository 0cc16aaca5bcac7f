// Package generator holds the key distributions used to pick which key a
// request touches. Every worker owns its own Distribution instance, so
// implementations need not be safe for concurrent use.
package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

func NewErrorf(format string, args ...interface{}) error {
	return errors.New(fmt.Sprintf(format, args...))
}

// Distribution picks a key id out of [0, max).
type Distribution interface {
	// Init prepares the distribution. iterations only matters to
	// distributions that sample repeatedly, others ignore it.
	Init(iterations int)
	// Random returns a value in [0, max). max must be positive.
	Random(max uint32) uint32
}

type MakeDistributionFunc func(seed int64) Distribution

var (
	Distributions = map[string]MakeDistributionFunc{
		"uniform": func(seed int64) Distribution {
			return NewUniformDistribution(seed)
		},
		"gaussian": func(seed int64) Distribution {
			return NewGaussianDistribution(seed)
		},
		"zipfian": func(seed int64) Distribution {
			return NewZipfianDistribution(seed, ZipfianConstant)
		},
		"hotspot": func(seed int64) Distribution {
			return NewHotspotDistribution(seed, HotsetFractionDefault, HotOpnFractionDefault)
		},
		"exponential": func(seed int64) Distribution {
			return NewExponentialDistribution(seed, ExponentialPercentileDefault, ExponentialFractionDefault)
		},
	}
)

// NewDistribution creates and initializes the distribution registered
// under name.
func NewDistribution(name string, seed int64, iterations int) (Distribution, error) {
	f, ok := Distributions[name]
	if !ok {
		return nil, NewErrorf("unsupported key distribution: %s", name)
	}
	d := f(seed)
	d.Init(iterations)
	return d, nil
}

// DistributionNames returns the registered names in sorted order.
func DistributionNames() []string {
	names := make([]string, 0, len(Distributions))
	for name := range Distributions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type source struct {
	random *rand.Rand
}

func newSource(seed int64) source {
	return source{
		random: rand.New(rand.NewSource(seed)),
	}
}

func (self source) nextUint32(max uint32) uint32 {
	return uint32(self.random.Int63n(int64(max)))
}

// nextFloat64 returns a value in (0, 1].
func (self source) nextFloat64() float64 {
	return 1.0 - self.random.Float64()
}

// UniformDistribution draws every key id with the same probability.
type UniformDistribution struct {
	source
}

func NewUniformDistribution(seed int64) *UniformDistribution {
	return &UniformDistribution{
		source: newSource(seed),
	}
}

func (self *UniformDistribution) Init(iterations int) {
	// nothing to do
}

func (self *UniformDistribution) Random(max uint32) uint32 {
	return self.nextUint32(max)
}

// GaussianDistribution approximates a normal distribution centered on
// max/2 by averaging several uniform draws. More iterations narrow the
// spread.
type GaussianDistribution struct {
	source
	iterations int
}

func NewGaussianDistribution(seed int64) *GaussianDistribution {
	return &GaussianDistribution{
		source:     newSource(seed),
		iterations: 1,
	}
}

func (self *GaussianDistribution) Init(iterations int) {
	if iterations <= 0 {
		iterations = 1
	}
	self.iterations = iterations
}

func (self *GaussianDistribution) Random(max uint32) uint32 {
	var sum uint64
	for i := 0; i < self.iterations; i++ {
		sum += uint64(self.nextUint32(max))
	}
	return uint32(sum / uint64(self.iterations))
}
