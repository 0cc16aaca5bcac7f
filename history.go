package nosqlbench

import (
	"time"
)

const (
	// Length of one History epoch.
	HistoryEpoch = time.Second
)

type HistoryEvent uint8

const (
	EventRead HistoryEvent = iota
	EventWrite
	EventMiss
)

func (self HistoryEvent) String() string {
	switch self {
	case EventRead:
		return "READ"
	case EventWrite:
		return "WRITE"
	case EventMiss:
		return "MISS"
	default:
		return "UNKNOWN_EVENT"
	}
}

// HistoryBucket holds the counters of a single epoch.
type HistoryBucket struct {
	Epoch        int64
	Reads        int
	Writes       int
	Misses       int
	LatencySum   time.Duration
	LatencyCount int
	Updated      time.Time
}

// History is a ring of per epoch counters, one worker each. A bucket is
// reused for a newer epoch the first time that epoch is written, so
// buckets older than the window never need an explicit clear.
type History struct {
	buckets []HistoryBucket
	start   time.Time
	missed  int
}

// NewHistory creates a window of size epochs whose epoch 0 starts at
// start.
func NewHistory(size int, start time.Time) *History {
	if size < 1 {
		size = 1
	}
	object := &History{
		buckets: make([]HistoryBucket, size),
		start:   start,
	}
	for i := range object.buckets {
		object.buckets[i].Epoch = -1
	}
	return object
}

func (self *History) Size() int {
	return len(self.buckets)
}

func (self *History) epoch(ts time.Time) int64 {
	d := ts.Sub(self.start)
	if d < 0 {
		return 0
	}
	return int64(d / HistoryEpoch)
}

func (self *History) bucket(ts time.Time) *HistoryBucket {
	e := self.epoch(ts)
	b := &self.buckets[e%int64(len(self.buckets))]
	if b.Epoch != e {
		*b = HistoryBucket{Epoch: e}
	}
	b.Updated = ts
	return b
}

// AddEvent counts count events of kind at ts.
func (self *History) AddEvent(kind HistoryEvent, count int, ts time.Time) {
	if count <= 0 {
		return
	}
	b := self.bucket(ts)
	switch kind {
	case EventRead:
		b.Reads += count
	case EventWrite:
		b.Writes += count
	case EventMiss:
		b.Misses += count
		self.missed += count
	}
}

// AddLatency records the latency of one completed request at ts.
func (self *History) AddLatency(latency time.Duration, ts time.Time) {
	b := self.bucket(ts)
	b.LatencySum += latency
	b.LatencyCount++
}

// Missed returns all misses since the History was created.
func (self *History) Missed() int {
	return self.missed
}

// WindowedAverage returns the per second rates over the epochs of the
// window ending at now. The current epoch only counts for the part that
// has already elapsed, and a window reaching back before start is cut at
// start. An empty or zero length window yields zero rates.
func (self *History) WindowedAverage(now time.Time) Stat {
	current := self.epoch(now)
	lowest := current - int64(len(self.buckets)) + 1
	windowStart := self.start
	if lowest > 0 {
		windowStart = self.start.Add(time.Duration(lowest) * HistoryEpoch)
	}
	var reads, writes, latencyCount int
	var latencySum time.Duration
	for i := range self.buckets {
		b := &self.buckets[i]
		if b.Epoch < lowest || b.Epoch > current {
			continue
		}
		reads += b.Reads
		writes += b.Writes
		latencySum += b.LatencySum
		latencyCount += b.LatencyCount
	}
	stat := Stat{
		Missed: self.missed,
	}
	if latencyCount > 0 {
		stat.Latency = DurationToMillisecond(latencySum) / float64(latencyCount)
	}
	elapsed := now.Sub(windowStart).Seconds()
	if elapsed <= 0 {
		return stat
	}
	stat.ReadPS = int(float64(reads) / elapsed)
	stat.WritePS = int(float64(writes) / elapsed)
	stat.ReqPS = int(float64(reads+writes) / elapsed)
	return stat
}
