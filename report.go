package nosqlbench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Snapshot is the data of one periodic report.
type Snapshot struct {
	Stat
	// Latencies completed since the previous report, in microseconds.
	Period *Histogram
}

// FinalSnapshot is the data of the report at the end of a run.
type FinalSnapshot struct {
	FinalStat
	Requests    int64
	Errors      int64
	Percentiles []float64
	// All latencies of the run, in microseconds.
	Total   *Histogram
	Latency *LatencySummary
}

// Reporter presents the results of a run. All calls come from one
// goroutine.
type Reporter interface {
	Start(opts *Options)
	Report(s *Snapshot)
	Final(f *FinalSnapshot)
	// Progress shows how far the warmup got.
	Progress(done, total int)
}

type MakeReporterFunc func(w io.Writer) Reporter

var (
	Reporters = map[string]MakeReporterFunc{
		"default": func(w io.Writer) Reporter {
			return NewTextReporter(w)
		},
		"json": func(w io.Writer) Reporter {
			return NewJSONReporter(w)
		},
	}
)

func NewReporter(name string, w io.Writer) (Reporter, error) {
	f, ok := Reporters[name]
	if !ok {
		return nil, NewErrorf("unsupported report: %s", name)
	}
	return f(w), nil
}

func ReporterNames() []string {
	return sortedKeys(Reporters)
}

const (
	progressColumns = 40
)

// TextReporter writes human readable text.
type TextReporter struct {
	buf *bufio.Writer
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{
		buf: bufio.NewWriter(w),
	}
}

func (self *TextReporter) Start(opts *Options) {
	fmt.Fprintf(self.buf, "NoSQL Benchmark.\n\n")
	if opts != nil {
		fmt.Fprintf(self.buf, "db: %s, server: %s, threads: %s %d..%d, requests: %d, batch: %d\n\n",
			opts.DB, opts.Address(), opts.ThreadsPolicy, opts.InitialThreads(), opts.ThreadsMax,
			opts.RequestCount, opts.RequestBatchCount)
	}
	self.buf.Flush()
}

func (self *TextReporter) Report(s *Snapshot) {
	fmt.Fprintf(self.buf, "[%3d sec] [%2d threads] %7d req/s %7d read/s %7d write/s  %.2f ms\n",
		s.Time, s.Workers, s.ReqPS, s.ReadPS, s.WritePS, s.Latency)
	self.buf.Flush()
}

func (self *TextReporter) Final(f *FinalSnapshot) {
	report := "\n" +
		".----------.---------------.---------------.---------------.\n" +
		"|   type   |    minimal    |    average    |     maximum   |\n" +
		".----------.---------------.---------------.---------------.\n" +
		"| read/s   |    %7d    |    %7d    |    %8d   |\n" +
		"| write/s  |    %7d    |    %7d    |    %8d   |\n" +
		"| req/s    |    %7d    |    %7d    |    %8d   |\n" +
		"| rtt/ms   |    %.5f    |    %.5f    |    %.6f   |\n" +
		"'----------.---------------.---------------.---------------'\n" +
		"\n"
	fmt.Fprintf(self.buf, report,
		f.ReadPSMin, f.ReadPSAvg, f.ReadPSMax,
		f.WritePSMin, f.WritePSAvg, f.WritePSMax,
		f.ReqPSMin, f.ReqPSAvg, f.ReqPSMax,
		f.LatencyMin, f.LatencyAvg, f.LatencyMax)
	fmt.Fprintf(self.buf, "requests: %d, missed: %d, errors: %d\n\n", f.Requests, f.Missed, f.Errors)
	if f.Total != nil && f.Total.Size() > 0 {
		f.Total.Dump(self.buf, "us", f.Percentiles)
		fmt.Fprintf(self.buf, "\n")
	}
	if f.Latency != nil && f.Latency.Count > 0 {
		fmt.Fprintf(self.buf, "[LATENCY], Operations, %d\n", f.Latency.Count)
		fmt.Fprintf(self.buf, "[LATENCY], AverageLatency(us), %.2f\n", f.Latency.Mean)
		fmt.Fprintf(self.buf, "[LATENCY], MinLatency(us), %d\n", f.Latency.Min)
		fmt.Fprintf(self.buf, "[LATENCY], MaxLatency(us), %d\n", f.Latency.Max)
		for _, p := range f.Percentiles {
			name := formatPercentile(p)
			fmt.Fprintf(self.buf, "[LATENCY], %sLatency(us), %d\n", name, f.Latency.Percentiles[name])
		}
		if f.Latency.Dropped > 0 {
			fmt.Fprintf(self.buf, "[LATENCY], Dropped, %d\n", f.Latency.Dropped)
		}
	}
	self.buf.Flush()
}

func (self *TextReporter) Progress(done, total int) {
	if total <= 0 {
		return
	}
	percent := float64(done) * 100.0 / float64(total)
	filled := int(percent * progressColumns / 100.0)
	if filled > progressColumns {
		filled = progressColumns
	}
	fmt.Fprintf(self.buf, "Warmup [%s%s] %.2f%%\r",
		strings.Repeat(".", filled), strings.Repeat(" ", progressColumns-filled), percent)
	if done >= total {
		fmt.Fprintf(self.buf, "\n")
	}
	self.buf.Flush()
}

type jsonEvent struct {
	Event string      `json:"event"`
	Value interface{} `json:"value"`
}

type jsonProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type jsonStart struct {
	DB             string `json:"db"`
	Server         string `json:"server"`
	ThreadsPolicy  string `json:"threads_policy"`
	ThreadsMax     int    `json:"threads_max"`
	RequestCount   int    `json:"request_count"`
	RequestBatch   int    `json:"request_batch_count"`
	RPS            int    `json:"rps"`
	KeyType        string `json:"key"`
	KeyDistibution string `json:"key_dist"`
}

type jsonFinal struct {
	FinalStat
	Requests int64           `json:"requests"`
	Errors   int64           `json:"errors"`
	Latency  *LatencySummary `json:"latency,omitempty"`
}

// JSONReporter writes one JSON object per line.
type JSONReporter struct {
	lock sync.Mutex
	buf  *bufio.Writer
}

func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		buf: bufio.NewWriter(w),
	}
}

func (self *JSONReporter) write(event string, v interface{}) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	b, err := json.Marshal(&jsonEvent{
		Event: event,
		Value: v,
	})
	if err != nil {
		return err
	}
	if _, err = self.buf.Write(b); err != nil {
		return err
	}
	if err = self.buf.WriteByte('\n'); err != nil {
		return err
	}
	return self.buf.Flush()
}

func (self *JSONReporter) Start(opts *Options) {
	if opts == nil {
		self.write("start", nil)
		return
	}
	self.write("start", &jsonStart{
		DB:             opts.DB,
		Server:         opts.Address(),
		ThreadsPolicy:  opts.ThreadsPolicy.String(),
		ThreadsMax:     opts.ThreadsMax,
		RequestCount:   opts.RequestCount,
		RequestBatch:   opts.RequestBatchCount,
		RPS:            opts.RPS,
		KeyType:        opts.Key,
		KeyDistibution: opts.KeyDistribution,
	})
}

func (self *JSONReporter) Report(s *Snapshot) {
	self.write("report", &s.Stat)
}

func (self *JSONReporter) Final(f *FinalSnapshot) {
	var latency *LatencySummary
	if f.Latency != nil {
		copied := *f.Latency
		copied.Snapshot = nil
		latency = &copied
	}
	self.write("final", &jsonFinal{
		FinalStat: f.FinalStat,
		Requests:  f.Requests,
		Errors:    f.Errors,
		Latency:   latency,
	})
}

func (self *JSONReporter) Progress(done, total int) {
	self.write("progress", &jsonProgress{
		Done:  done,
		Total: total,
	})
}
