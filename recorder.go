package nosqlbench

import (
	"encoding/json"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyRecorder collects the request latencies of one worker in
// microseconds. The worker records, the report path drains the period
// histogram with merge-then-clear, so both sides take the lock.
type LatencyRecorder struct {
	lock    sync.Mutex
	period  *Histogram
	total   *Histogram
	hdr     *hdrhistogram.Histogram
	dropped int64
}

// NewLatencyRecorder creates a recorder whose hdr histogram tracks values
// up to max microseconds with sig significant figures.
func NewLatencyRecorder(max int64, sig int) *LatencyRecorder {
	return &LatencyRecorder{
		period: NewHistogram(),
		total:  NewHistogram(),
		hdr:    hdrhistogram.New(1, max, sig),
	}
}

func (self *LatencyRecorder) Record(latency time.Duration) {
	us := NanosecondToMicrosecond(int64(latency))
	self.lock.Lock()
	defer self.lock.Unlock()
	self.period.Add(float64(us))
	self.total.Add(float64(us))
	if us < 1 {
		us = 1
	}
	if err := self.hdr.RecordValue(us); err != nil {
		// beyond hdr.max
		self.dropped++
	}
}

// DrainPeriod merges the samples recorded since the last drain into dest
// and clears them.
func (self *LatencyRecorder) DrainPeriod(dest *Histogram) {
	self.lock.Lock()
	defer self.lock.Unlock()
	dest.Merge(self.period)
	self.period.Clear()
}

// MergeTotal merges every sample recorded so far into dest and hdr.
func (self *LatencyRecorder) MergeTotal(dest *Histogram, hdr *hdrhistogram.Histogram) int64 {
	self.lock.Lock()
	defer self.lock.Unlock()
	if dest != nil {
		dest.Merge(self.total)
	}
	dropped := self.dropped
	if hdr != nil {
		dropped += hdr.Merge(self.hdr)
	}
	return dropped
}

// LatencySummary is the exact latency distribution of a whole run.
type LatencySummary struct {
	Count       int64                  `json:"count"`
	Dropped     int64                  `json:"dropped"`
	Min         int64                  `json:"min_us"`
	Max         int64                  `json:"max_us"`
	Mean        float64                `json:"mean_us"`
	StdDev      float64                `json:"stddev_us"`
	Percentiles map[string]int64       `json:"percentiles_us"`
	Snapshot    *hdrhistogram.Snapshot `json:"snapshot,omitempty"`
}

// Summarize reads percentiles, given in [0, 1], out of h.
func Summarize(h *hdrhistogram.Histogram, dropped int64, percentiles []float64) *LatencySummary {
	s := &LatencySummary{
		Count:       h.TotalCount(),
		Dropped:     dropped,
		Min:         h.Min(),
		Max:         h.Max(),
		Mean:        h.Mean(),
		StdDev:      h.StdDev(),
		Percentiles: make(map[string]int64, len(percentiles)),
	}
	for _, p := range percentiles {
		s.Percentiles[formatPercentile(p)] = h.ValueAtQuantile(p * 100)
	}
	return s
}

func formatPercentile(p float64) string {
	return "p" + strconv.FormatFloat(math.Round(p*1e6)/1e4, 'f', -1, 64)
}

// SaveHdrSnapshot writes the summary of h including its full snapshot as
// JSON to fileName.
func SaveHdrSnapshot(fileName string, h *hdrhistogram.Histogram, dropped int64, percentiles []float64) error {
	s := Summarize(h, dropped, percentiles)
	s.Snapshot = h.Export()
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadHdrSnapshot reads back a file written by SaveHdrSnapshot.
func LoadHdrSnapshot(fileName string) (*hdrhistogram.Histogram, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := &LatencySummary{}
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return nil, err
	}
	if s.Snapshot == nil {
		return nil, NewErrorf("no histogram snapshot in %s", fileName)
	}
	return hdrhistogram.Import(s.Snapshot), nil
}
