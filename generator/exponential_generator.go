package generator

import (
	"math"
)

const (
	ExponentialPercentileDefault = 95.0
	ExponentialFractionDefault   = 0.8571428571
)

// ExponentialDistribution favours low key ids: percentile percent of the
// draws fall into the lowest fraction of the key space.
type ExponentialDistribution struct {
	source
	percentile float64
	fraction   float64
}

func NewExponentialDistribution(seed int64, percentile, fraction float64) *ExponentialDistribution {
	return &ExponentialDistribution{
		source:     newSource(seed),
		percentile: percentile,
		fraction:   fraction,
	}
}

func (self *ExponentialDistribution) Init(iterations int) {
	// nothing to do
}

func (self *ExponentialDistribution) gamma(max uint32) float64 {
	return -math.Log(1.0-self.percentile/100.0) / (float64(max) * self.fraction)
}

// Mean returns the expected draw for key space max before folding.
func (self *ExponentialDistribution) Mean(max uint32) float64 {
	return 1.0 / self.gamma(max)
}

func (self *ExponentialDistribution) Random(max uint32) uint32 {
	next := uint64(-math.Log(self.nextFloat64()) / self.gamma(max))
	return uint32(next % uint64(max))
}
