package generator

import (
	"math"
)

const (
	ZipfianConstant = float64(0.99)
)

// Compute the zeta constant needed for the distribution. Do this
// incrementally for a distribution that has n items now but used to have
// st items, starting from the previously computed initialSum.
func zetaStatic(st, n int64, theta, initialSum float64) float64 {
	sum := initialSum
	for i := st; i < n; i++ {
		sum += 1 / math.Pow(float64(i+1), theta)
	}
	return sum
}

// ZipfianDistribution skews key ids toward zero: 0 is the most popular
// id, 1 the next most popular, and so on.
//
// The algorithm used here is from
// "Quickly Generating Billion-Record Synthetic Databases",
// Jim Gray et al, SIGMOD 1994.
//
// zeta is a sum over all items, so the first Random call for a given max
// costs O(max). Growing max is incremental, shrinking it recomputes from
// scratch.
type ZipfianDistribution struct {
	source
	theta      float64
	alpha      float64
	zeta2theta float64
	zetan      float64
	eta        float64
	// The number of items used to compute zetan the last time.
	countForZeta int64
}

func NewZipfianDistribution(seed int64, zipfianConstant float64) *ZipfianDistribution {
	return &ZipfianDistribution{
		source:     newSource(seed),
		theta:      zipfianConstant,
		alpha:      1.0 / (1.0 - zipfianConstant),
		zeta2theta: zetaStatic(0, 2, zipfianConstant, 0),
	}
}

func (self *ZipfianDistribution) Init(iterations int) {
	// nothing to do
}

func (self *ZipfianDistribution) prepare(items int64) {
	if items == self.countForZeta {
		return
	}
	if items > self.countForZeta {
		self.zetan = zetaStatic(self.countForZeta, items, self.theta, self.zetan)
	} else {
		self.zetan = zetaStatic(0, items, self.theta, 0)
	}
	self.countForZeta = items
	self.eta = (1 - math.Pow(2.0/float64(items), 1-self.theta)) / (1 - self.zeta2theta/self.zetan)
}

func (self *ZipfianDistribution) Random(max uint32) uint32 {
	items := int64(max)
	self.prepare(items)
	u := self.nextFloat64()
	uz := u * self.zetan
	if uz < 1.0 {
		return 0
	}
	if uz < 1.0+math.Pow(0.5, self.theta) && items > 1 {
		return 1
	}
	ret := int64(float64(items) * math.Pow(self.eta*u-self.eta+1.0, self.alpha))
	if ret >= items {
		ret = items - 1
	}
	return uint32(ret)
}
