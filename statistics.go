package nosqlbench

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Stat is one row of rates, either the latest window of a single worker
// or the sum over all workers at one report tick.
type Stat struct {
	Workers int     `json:"workers"`
	Time    int     `json:"time"`
	ReqPS   int     `json:"req_per_sec"`
	ReadPS  int     `json:"read_per_sec"`
	WritePS int     `json:"write_per_sec"`
	Missed  int     `json:"missed"`
	Latency float64 `json:"avg_latency_ms"`
}

// FinalStat summarizes the whole report log.
type FinalStat struct {
	ReadPSMin  int     `json:"read_per_sec_min"`
	ReadPSMax  int     `json:"read_per_sec_max"`
	ReadPSAvg  int     `json:"read_per_sec_avg"`
	WritePSMin int     `json:"write_per_sec_min"`
	WritePSMax int     `json:"write_per_sec_max"`
	WritePSAvg int     `json:"write_per_sec_avg"`
	ReqPSMin   int     `json:"req_per_sec_min"`
	ReqPSMax   int     `json:"req_per_sec_max"`
	ReqPSAvg   int     `json:"req_per_sec_avg"`
	LatencyMin float64 `json:"latency_min_ms"`
	LatencyMax float64 `json:"latency_max_ms"`
	LatencyAvg float64 `json:"latency_avg_ms"`
	Missed     int     `json:"missed"`
	Reports    int     `json:"reports"`
}

// Statistics is the table every worker publishes its latest window to,
// plus the log of aggregated report rows. One mutex guards all of it.
type Statistics struct {
	lock    sync.Mutex
	stats   []Stat
	log     []Stat
	current int
	final   FinalStat
}

func NewStatistics(size int) *Statistics {
	object := &Statistics{
		current: -1,
	}
	object.Resize(size)
	return object
}

// Resize makes room for size workers. The table never shrinks.
func (self *Statistics) Resize(size int) {
	self.lock.Lock()
	defer self.lock.Unlock()
	if size <= len(self.stats) {
		return
	}
	stats := make([]Stat, size)
	copy(stats, self.stats)
	self.stats = stats
}

func (self *Statistics) Size() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return len(self.stats)
}

// Publish stores the latest window of worker id. Ids outside the table
// are dropped.
func (self *Statistics) Publish(id int, stat Stat) {
	self.lock.Lock()
	defer self.lock.Unlock()
	if id < 0 || id >= len(self.stats) {
		return
	}
	self.stats[id] = stat
}

// sum must be called with the lock held.
func (self *Statistics) sum() Stat {
	var total Stat
	for i := range self.stats {
		s := &self.stats[i]
		total.ReqPS += s.ReqPS
		total.ReadPS += s.ReadPS
		total.WritePS += s.WritePS
		total.Missed += s.Missed
		total.Latency += s.Latency
	}
	if len(self.stats) > 0 {
		total.Latency /= float64(len(self.stats))
	}
	return total
}

// Report sums the table into a new row of the report log and returns it.
func (self *Statistics) Report(workers int, tick int) Stat {
	self.lock.Lock()
	defer self.lock.Unlock()
	row := self.sum()
	row.Workers = workers
	row.Time = tick
	self.log = append(self.log, row)
	self.current = len(self.log) - 1
	return row
}

// Current returns the latest report row, if any.
func (self *Statistics) Current() (Stat, bool) {
	self.lock.Lock()
	defer self.lock.Unlock()
	if self.current < 0 {
		return Stat{}, false
	}
	return self.log[self.current], true
}

// Log returns a copy of the report log.
func (self *Statistics) Log() []Stat {
	self.lock.Lock()
	defer self.lock.Unlock()
	ret := make([]Stat, len(self.log))
	copy(ret, self.log)
	return ret
}

// Finalize computes min, max and average over the report log. Misses are
// taken from the last row since they accumulate.
func (self *Statistics) Finalize() FinalStat {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.final = FinalStat{}
	if len(self.log) == 0 {
		return self.final
	}
	f := &self.final
	first := &self.log[0]
	f.ReqPSMin, f.ReadPSMin, f.WritePSMin = first.ReqPS, first.ReadPS, first.WritePS
	f.LatencyMin = first.Latency
	var reqSum, readSum, writeSum int
	var latencySum float64
	for i := range self.log {
		s := &self.log[i]
		f.ReqPSMin = minInt(f.ReqPSMin, s.ReqPS)
		f.ReqPSMax = maxInt(f.ReqPSMax, s.ReqPS)
		f.ReadPSMin = minInt(f.ReadPSMin, s.ReadPS)
		f.ReadPSMax = maxInt(f.ReadPSMax, s.ReadPS)
		f.WritePSMin = minInt(f.WritePSMin, s.WritePS)
		f.WritePSMax = maxInt(f.WritePSMax, s.WritePS)
		if s.Latency < f.LatencyMin {
			f.LatencyMin = s.Latency
		}
		if s.Latency > f.LatencyMax {
			f.LatencyMax = s.Latency
		}
		reqSum += s.ReqPS
		readSum += s.ReadPS
		writeSum += s.WritePS
		latencySum += s.Latency
	}
	n := len(self.log)
	f.ReqPSAvg = reqSum / n
	f.ReadPSAvg = readSum / n
	f.WritePSAvg = writeSum / n
	f.LatencyAvg = latencySum / float64(n)
	f.Missed = self.log[n-1].Missed
	f.Reports = n
	return self.final
}

// Final returns the result of the last Finalize.
func (self *Statistics) Final() FinalStat {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.final
}

// WriteCSV writes one line per report row:
// workers, time, req/s, read/s, write/s, average latency.
func (self *Statistics) WriteCSV(w io.Writer) error {
	buf := bufio.NewWriter(w)
	for _, s := range self.Log() {
		_, err := fmt.Fprintf(buf, "%d, %d, %d, %d, %d, %f\n",
			s.Workers, s.Time, s.ReqPS, s.ReadPS, s.WritePS, s.Latency)
		if err != nil {
			return err
		}
	}
	return buf.Flush()
}

// SaveCSV writes the report log to the named file.
func (self *Statistics) SaveCSV(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if err := self.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
