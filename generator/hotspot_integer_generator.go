package generator

const (
	HotsetFractionDefault = 0.2
	HotOpnFractionDefault = 0.8
)

// HotspotDistribution sends hotOpnFraction of the draws to the lowest
// hotsetFraction of the key space and spreads the rest uniformly over the
// remaining keys.
type HotspotDistribution struct {
	source
	hotsetFraction float64
	hotOpnFraction float64
}

func checkFraction(value float64) float64 {
	if value < 0.0 || value > 1.0 {
		// fraction out of range
		value = 0.0
	}
	return value
}

func NewHotspotDistribution(seed int64, hotsetFraction, hotOpnFraction float64) *HotspotDistribution {
	return &HotspotDistribution{
		source:         newSource(seed),
		hotsetFraction: checkFraction(hotsetFraction),
		hotOpnFraction: checkFraction(hotOpnFraction),
	}
}

func (self *HotspotDistribution) Init(iterations int) {
	// nothing to do
}

func (self *HotspotDistribution) Random(max uint32) uint32 {
	hotInterval := uint32(float64(max) * self.hotsetFraction)
	coldInterval := max - hotInterval
	if hotInterval > 0 && (coldInterval == 0 || self.random.Float64() < self.hotOpnFraction) {
		// Choose a value from the hot set.
		return self.nextUint32(hotInterval)
	}
	// Choose a value from the cold set.
	return hotInterval + self.nextUint32(coldInterval)
}

func (self *HotspotDistribution) HotsetFraction() float64 {
	return self.hotsetFraction
}

func (self *HotspotDistribution) HotOpnFraction() float64 {
	return self.hotOpnFraction
}
