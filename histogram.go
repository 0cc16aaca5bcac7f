package nosqlbench

import (
	"fmt"
	"io"
	"math"
	"sort"
)

var (
	// Bucket upper bounds, compatible with the leveldb benchmark.
	HistogramBuckets = []float64{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 14, 16, 18, 20, 25, 30, 35, 40, 45,
		50, 60, 70, 80, 90, 100, 120, 140, 160, 180, 200, 250, 300, 350, 400, 450,
		500, 600, 700, 800, 900, 1000, 1200, 1400, 1600, 1800, 2000, 2500, 3000,
		3500, 4000, 4500, 5000, 6000, 7000, 8000, 9000, 10000, 12000, 14000,
		16000, 18000, 20000, 25000, 30000, 35000, 40000, 45000, 50000, 60000,
		70000, 80000, 90000, 100000, 120000, 140000, 160000, 180000, 200000,
		250000, 300000, 350000, 400000, 450000, 500000, 600000, 700000, 800000,
		900000, 1000000, 1200000, 1400000, 1600000, 1800000, 2000000, 2500000,
		3000000, 3500000, 4000000, 4500000, 5000000, 6000000, 7000000, 8000000,
		9000000, 10000000, 12000000, 14000000, 16000000, 18000000, 20000000,
		25000000, 30000000, 35000000, 40000000, 45000000, 50000000, 60000000,
		70000000, 80000000, 90000000, 100000000, 120000000, 140000000, 160000000,
		180000000, 200000000, 250000000, 300000000, 350000000, 400000000,
		450000000, 500000000, 600000000, 700000000, 800000000, 900000000,
		1000000000, 1200000000, 1400000000, 1600000000, 1800000000, 2000000000,
		2500000000, 3000000000, 3500000000, 4000000000, 4500000000,
		5000000000, 6000000000, 7000000000, 8000000000, 9000000000,
		1e200, math.Inf(1),
	}
)

// Histogram is a fixed log scale histogram of latencies. It is not safe
// for concurrent use, see LatencyRecorder.
type Histogram struct {
	buckets []uint64
	min     float64
	max     float64
	sum     float64
	size    uint64
}

func NewHistogram() *Histogram {
	object := &Histogram{
		buckets: make([]uint64, len(HistogramBuckets)),
	}
	object.Clear()
	return object
}

// Clear drops all samples.
func (self *Histogram) Clear() {
	for i := range self.buckets {
		self.buckets[i] = 0
	}
	self.min = math.Inf(1)
	self.max = 0
	self.sum = 0
	self.size = 0
}

// bucketOf returns the index of the first bucket bound not below value.
func bucketOf(value float64) int {
	return sort.SearchFloat64s(HistogramBuckets, value)
}

func (self *Histogram) Add(value float64) {
	i := bucketOf(value)
	if i >= len(self.buckets) {
		// NaN
		i = len(self.buckets) - 1
	}
	self.buckets[i]++
	if value < self.min {
		self.min = value
	}
	if value > self.max {
		self.max = value
	}
	self.sum += value
	self.size++
}

// Merge adds all samples of other. Merging an empty histogram is a no-op.
func (self *Histogram) Merge(other *Histogram) {
	if other.min < self.min {
		self.min = other.min
	}
	if other.max > self.max {
		self.max = other.max
	}
	self.sum += other.sum
	self.size += other.size
	for i := range self.buckets {
		self.buckets[i] += other.buckets[i]
	}
}

// Percentile returns the estimated value below which p (in [0, 1]) of the
// samples fall, interpolating linearly inside the bucket. The result is
// clamped to [Min, Max]. An empty histogram yields 0.
func (self *Histogram) Percentile(p float64) float64 {
	if self.size == 0 {
		return 0
	}
	threshold := float64(self.size) * p
	var count uint64
	for i, n := range self.buckets {
		if n == 0 {
			continue
		}
		count += n
		if float64(count) < threshold {
			continue
		}
		left := count - n
		leftValue := 0.0
		if i > 0 {
			leftValue = HistogramBuckets[i-1]
		}
		rightValue := HistogramBuckets[i]
		if math.IsInf(rightValue, 1) {
			return self.max
		}
		scale := (threshold - float64(left)) / float64(n)
		r := leftValue + (rightValue-leftValue)*scale
		if r < self.min {
			return self.min
		}
		if r > self.max {
			return self.max
		}
		return r
	}
	return self.max
}

func (self *Histogram) Size() uint64 {
	return self.size
}

func (self *Histogram) Sum() float64 {
	return self.sum
}

// Min returns the smallest sample, or 0 if there are none.
func (self *Histogram) Min() float64 {
	if self.size == 0 {
		return 0
	}
	return self.min
}

func (self *Histogram) Max() float64 {
	return self.max
}

func (self *Histogram) Mean() float64 {
	if self.size == 0 {
		return 0
	}
	return self.sum / float64(self.size)
}

// Dump writes the non-empty buckets, a summary and the requested
// percentiles to w. units names the unit of the samples.
func (self *Histogram) Dump(w io.Writer, units string, percentiles []float64) error {
	if self.size == 0 {
		_, err := fmt.Fprintf(w, "no samples\n")
		return err
	}
	ew := &errWriter{w: w}
	ew.printf("     count    proportion     interval %5s   \n", units)
	ew.printf("----------------------------------------------\n")
	for i, n := range self.buckets {
		if n == 0 {
			continue
		}
		left := 0.0
		if i > 0 {
			left = HistogramBuckets[i-1]
		}
		percents := float64(n) / float64(self.size) * 100
		ew.printf(" %9d       %5.2f%%   %7.0f - %7.0f  \n", n, percents, left, HistogramBuckets[i])
	}
	ew.printf("----------------------------------------------\n")
	ew.printf("Total %5s: %.2f; count: %d\n", units, self.sum, self.size)
	ew.printf("Min latency: %9.2f %5s\n", self.Min(), units)
	ew.printf("Avg latency: %9.2f %5s\n", self.Mean(), units)
	ew.printf("Max latency: %9.2f %5s\n\n", self.max, units)
	for _, p := range percentiles {
		ew.printf("%5.2f%% <   %.2f\n", p*100, self.Percentile(p))
	}
	return ew.err
}

// errWriter keeps the first write error and skips all later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (self *errWriter) printf(format string, args ...interface{}) {
	if self.err != nil {
		return
	}
	_, self.err = fmt.Fprintf(self.w, format, args...)
}
