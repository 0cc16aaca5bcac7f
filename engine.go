package nosqlbench

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	g "github.com/hhkbp2/nosqlbench/generator"
)

// BenchmarkContext holds everything a benchmark run shares between the
// engine and its workers.
type BenchmarkContext struct {
	Options    *Options
	Statistics *Statistics
	Workload   *Workload
	Reporter   Reporter
	Metrics    *Metrics

	done    atomic.Bool
	alive   atomic.Int32
	tick    int
	start   time.Time
	workers []*Worker
	wg      sync.WaitGroup
}

// NewBenchmarkContext prepares a run of opts. metrics may be nil.
func NewBenchmarkContext(opts *Options, reporter Reporter, metrics *Metrics) *BenchmarkContext {
	return &BenchmarkContext{
		Options:    opts,
		Statistics: NewStatistics(opts.InitialThreads()),
		Workload:   NewWorkloadFromOptions(opts),
		Reporter:   reporter,
		Metrics:    metrics,
	}
}

// Done reports whether the run was asked to stop.
func (self *BenchmarkContext) Done() bool {
	return self.done.Load()
}

// Stop asks the workers to stop after their current request.
func (self *BenchmarkContext) Stop() {
	self.done.Store(true)
}

func (self *BenchmarkContext) Tick() int {
	return self.tick
}

func (self *BenchmarkContext) Workers() int {
	return len(self.workers)
}

func (self *BenchmarkContext) periodEqual(period int) bool {
	return self.tick > 0 && period > 0 && self.tick%period == 0
}

func (self *BenchmarkContext) createWorker(ctx context.Context) error {
	opts := self.Options
	id := len(self.workers)
	db, err := NewDriver(opts.DB)
	if err != nil {
		return err
	}
	dist, err := g.NewDistribution(opts.KeyDistribution, time.Now().UnixNano()+int64(id), opts.KeyDistributionIter)
	if err != nil {
		return err
	}
	keys, err := NewKeyGenerator(opts.Key, dist)
	if err != nil {
		return err
	}
	w := NewWorker(id, opts, self.Statistics, self.Metrics, &self.done, db, keys, self.Workload.Clone())
	self.workers = append(self.workers, w)
	self.alive.Add(1)
	self.wg.Add(1)
	go func() {
		defer self.wg.Done()
		defer self.alive.Add(-1)
		if err := w.Run(ctx); err != nil {
			Errorf("%s", err)
		}
	}()
	return nil
}

func (self *BenchmarkContext) createWorkers(ctx context.Context, count int) error {
	self.Statistics.Resize(len(self.workers) + count)
	for i := 0; i < count; i++ {
		if err := self.createWorker(ctx); err != nil {
			return err
		}
	}
	return nil
}

// createStep adds the next group of workers with the interval policy.
func (self *BenchmarkContext) createStep(ctx context.Context) error {
	opts := self.Options
	if opts.ThreadsPolicy == ThreadsAtOnce {
		return nil
	}
	count := len(self.workers)
	if count >= opts.ThreadsMax {
		return nil
	}
	top := opts.ThreadsIncrement
	if count+top > opts.ThreadsMax {
		top = opts.ThreadsMax - count
	}
	Infof("Add %d new thread(s) to benchmarking", top)
	return self.createWorkers(ctx, top)
}

func (self *BenchmarkContext) checkLimit(ctx context.Context) {
	if ctx.Err() != nil {
		self.Stop()
		return
	}
	opts := self.Options
	switch opts.Benchmark {
	case BenchmarkThreadLimit:
		if len(self.workers) >= opts.ThreadsMax {
			self.Stop()
		}
	case BenchmarkTimeLimit:
		if self.periodEqual(opts.TimeLimit) {
			self.Stop()
		}
	}
	if self.alive.Load() == 0 && len(self.workers) >= opts.ThreadsMax {
		Warnf("all workers exited, stopping")
		self.Stop()
	}
}

func (self *BenchmarkContext) report() {
	row := self.Statistics.Report(len(self.workers), self.tick)
	period := NewHistogram()
	for _, w := range self.workers {
		w.Recorder().DrainPeriod(period)
	}
	self.Metrics.Report(row)
	self.Reporter.Report(&Snapshot{
		Stat:   row,
		Period: period,
	})
}

// Run executes the benchmark until a limit is reached or ctx is done,
// then waits for all workers and emits the final report.
func (self *BenchmarkContext) Run(ctx context.Context) (*FinalSnapshot, error) {
	opts := self.Options
	self.start = time.Now()
	self.Reporter.Start(opts)
	if err := self.createWorkers(ctx, opts.InitialThreads()); err != nil {
		self.Stop()
		self.wg.Wait()
		return nil, err
	}

	ticker := time.NewTicker(opts.Tick)
	defer ticker.Stop()
	var err error
	for !self.Done() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
		self.checkLimit(ctx)
		if self.periodEqual(opts.ReportInterval) {
			self.report()
		}
		if self.periodEqual(opts.ThreadsInterval) {
			if err = self.createStep(ctx); err != nil {
				self.Stop()
			}
		}
		self.tick++
	}
	self.wg.Wait()
	if err != nil {
		return nil, err
	}
	return self.finish()
}

func (self *BenchmarkContext) finish() (*FinalSnapshot, error) {
	opts := self.Options
	f := &FinalSnapshot{
		FinalStat:   self.Statistics.Finalize(),
		Percentiles: opts.Percentiles,
		Total:       NewHistogram(),
	}
	hdr := hdrhistogram.New(1, opts.HdrMax, opts.HdrSig)
	var dropped int64
	for _, w := range self.workers {
		dropped += w.Recorder().MergeTotal(f.Total, hdr)
		f.Requests += w.Requests()
		f.Errors += w.Errors()
	}
	f.Latency = Summarize(hdr, dropped, opts.Percentiles)
	self.Reporter.Final(f)

	if len(opts.CSVFile) > 0 {
		fileName := FormatFileName(opts.CSVFile, self.start)
		if err := self.Statistics.SaveCSV(fileName); err != nil {
			return f, NewErrorf("fail to write csv file %s: %w", fileName, err)
		}
	}
	if len(opts.HdrOutput) > 0 {
		fileName := FormatFileName(opts.HdrOutput, self.start)
		if err := SaveHdrSnapshot(fileName, hdr, dropped, opts.Percentiles); err != nil {
			return f, NewErrorf("fail to write histogram file %s: %w", fileName, err)
		}
	}
	return f, nil
}
