package generator

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const (
	testSeed = 42
)

func TestNewDistribution(t *testing.T) {
	for _, name := range DistributionNames() {
		d, err := NewDistribution(name, testSeed, 4)
		require.Nil(t, err, name)
		require.NotNil(t, d, name)
	}
	require.Equal(t, []string{"exponential", "gaussian", "hotspot", "uniform", "zipfian"}, DistributionNames())
	_, err := NewDistribution("latest", testSeed, 4)
	require.NotNil(t, err)
}

func TestUniformDistribution(t *testing.T) {
	d := NewUniformDistribution(testSeed)
	d.Init(0)
	max := uint32(10)
	seen := make(map[uint32]int)
	for i := 0; i < 10000; i++ {
		v := d.Random(max)
		require.True(t, v < max)
		seen[v]++
	}
	require.Equal(t, int(max), len(seen))
	for _, n := range seen {
		require.InDelta(t, 1000, n, 200)
	}
}

func TestGaussianDistribution(t *testing.T) {
	d := NewGaussianDistribution(testSeed)
	d.Init(8)
	max := uint32(1000)
	var sum uint64
	total := 10000
	center := 0
	for i := 0; i < total; i++ {
		v := d.Random(max)
		require.True(t, v < max)
		sum += uint64(v)
		if v >= 250 && v < 750 {
			center++
		}
	}
	require.InDelta(t, 500, float64(sum)/float64(total), 20)
	// far more concentrated than uniform, which would give about half
	require.True(t, center > total*9/10)

	// iterations below one act like one
	d.Init(0)
	require.Equal(t, 1, d.iterations)
}

func TestZipfianDistribution(t *testing.T) {
	d := NewZipfianDistribution(testSeed, ZipfianConstant)
	d.Init(0)
	max := uint32(1000)
	total := 10000
	low := 0
	for i := 0; i < total; i++ {
		v := d.Random(max)
		require.True(t, v < max)
		if v < 10 {
			low++
		}
	}
	require.True(t, low > total/3)

	// the key space may change between draws
	for i := 0; i < 100; i++ {
		require.True(t, d.Random(50) < 50)
		require.True(t, d.Random(5000) < 5000)
	}
	require.Equal(t, uint32(0), d.Random(1))
}

func TestHotspotDistribution(t *testing.T) {
	hotsetFraction := 0.2
	hotOpnFraction := 0.99
	d := NewHotspotDistribution(testSeed, hotsetFraction, hotOpnFraction)
	d.Init(0)
	max := uint32(1000)
	hotsetHigh := uint32(float64(max) * hotsetFraction)
	total := 10000
	hot := 0
	for i := 0; i < total; i++ {
		v := d.Random(max)
		require.True(t, v < max)
		if v < hotsetHigh {
			hot++
		}
	}
	require.InDelta(t, total*99/100, hot, float64(total)/50)

	d = NewHotspotDistribution(testSeed, 1.5, -1)
	require.Equal(t, 0.0, d.HotsetFraction())
	require.Equal(t, 0.0, d.HotOpnFraction())
	require.True(t, d.Random(10) < 10)
}

func TestExponentialDistribution(t *testing.T) {
	percentile := ExponentialPercentileDefault
	fraction := ExponentialFractionDefault
	d := NewExponentialDistribution(testSeed, percentile, fraction)
	d.Init(0)
	max := uint32(10000)
	require.InDelta(t, float64(max)*fraction/2.9957, d.Mean(max), 1)
	total := 10000
	below := 0
	limit := uint32(float64(max) * fraction)
	for i := 0; i < total; i++ {
		v := d.Random(max)
		require.True(t, v < max)
		if v < limit {
			below++
		}
	}
	require.True(t, below > total*9/10)
}

func TestDistributionInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	for _, name := range DistributionNames() {
		name := name
		properties.Property(name+" stays below max", prop.ForAll(
			func(seed int64, max uint32, iterations int) bool {
				d, err := NewDistribution(name, seed, iterations)
				if err != nil {
					return false
				}
				for i := 0; i < 20; i++ {
					if d.Random(max) >= max {
						return false
					}
				}
				return true
			},
			gen.Int64(),
			gen.UInt32Range(1, 1<<12),
			gen.IntRange(0, 16),
		))
	}
	properties.TestingRun(t)
}
