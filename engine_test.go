package nosqlbench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collectingReporter keeps everything it is given.
type collectingReporter struct {
	started   bool
	snapshots []*Snapshot
	final     *FinalSnapshot
	progress  [][2]int
}

func (self *collectingReporter) Start(opts *Options) {
	self.started = true
}

func (self *collectingReporter) Report(s *Snapshot) {
	self.snapshots = append(self.snapshots, s)
}

func (self *collectingReporter) Final(f *FinalSnapshot) {
	self.final = f
}

func (self *collectingReporter) Progress(done, total int) {
	self.progress = append(self.progress, [2]int{done, total})
}

func (self *collectingReporter) workers() []int {
	ret := make([]int, 0, len(self.snapshots))
	for _, s := range self.snapshots {
		ret = append(ret, s.Workers)
	}
	return ret
}

// failingDriver never manages to connect.
type failingDriver struct {
	BasicDB
}

func (self *failingDriver) Connect(ctx context.Context, opts *Options) error {
	return fmt.Errorf("connection refused: %w", ErrConnection)
}

func basicProperties() Properties {
	return Properties{
		PropertyDB:                "basic",
		PropertyTick:              "10ms",
		PropertyRequestCount:      "100",
		PropertyRequestBatchCount: "10",
		PropertyThreadsMax:        "2",
	}
}

func TestEngineTimeLimit(t *testing.T) {
	props := basicProperties()
	props.Add(PropertyBenchmarkPolicy, "time_limit")
	props.Add(PropertyTimeLimit, "5")
	r := &collectingReporter{}
	m := NewMetrics()
	bc := NewBenchmarkContext(newTestOptions(t, props), r, m)
	f, err := bc.Run(context.Background())
	require.Nil(t, err)
	require.True(t, r.started)
	require.Equal(t, 5, len(r.snapshots))
	for i, s := range r.snapshots {
		require.Equal(t, i+1, s.Time)
		require.Equal(t, 2, s.Workers)
		require.NotNil(t, s.Period)
	}
	require.Equal(t, 5, bc.Tick())
	require.True(t, bc.Done())
	require.Equal(t, f, r.final)
	require.Equal(t, 5, f.Reports)
	require.True(t, f.Requests > 0)
	require.Equal(t, int64(0), f.Errors)
	require.Equal(t, uint64(f.Requests), f.Total.Size())
	require.Equal(t, f.Requests, f.Latency.Count)
}

func TestEngineIntervalRamp(t *testing.T) {
	props := basicProperties()
	props.Add(PropertyBenchmarkPolicy, "thread_limit")
	props.Add(PropertyThreadsPolicy, "interval")
	props.Add(PropertyThreadsStart, "1")
	props.Add(PropertyThreadsMax, "3")
	props.Add(PropertyThreadsIncrement, "1")
	props.Add(PropertyThreadsInterval, "2")
	r := &collectingReporter{}
	bc := NewBenchmarkContext(newTestOptions(t, props), r, nil)
	_, err := bc.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, []int{1, 1, 2, 2, 3}, r.workers())
	require.Equal(t, 3, bc.Workers())
	require.Equal(t, 3, bc.Statistics.Size())
}

func TestEngineIncrementClampedToMax(t *testing.T) {
	props := basicProperties()
	props.Add(PropertyBenchmarkPolicy, "thread_limit")
	props.Add(PropertyThreadsPolicy, "interval")
	props.Add(PropertyThreadsStart, "1")
	props.Add(PropertyThreadsMax, "4")
	props.Add(PropertyThreadsIncrement, "2")
	r := &collectingReporter{}
	bc := NewBenchmarkContext(newTestOptions(t, props), r, nil)
	_, err := bc.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, 4, bc.Workers())
	require.Equal(t, []int{1, 3, 4}, r.workers())
}

func TestEngineInterrupt(t *testing.T) {
	props := basicProperties()
	props.Add(PropertyTick, "1h")
	r := &collectingReporter{}
	bc := NewBenchmarkContext(newTestOptions(t, props), r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	f, err := bc.Run(ctx)
	require.Nil(t, err)
	require.True(t, time.Since(start) < time.Minute)
	require.NotNil(t, f)
	require.Equal(t, 0, len(r.snapshots))
	require.True(t, f.Requests > 0)
}

func TestEngineWritesOutputFiles(t *testing.T) {
	dir := t.TempDir()
	props := basicProperties()
	props.Add(PropertyBenchmarkPolicy, "time_limit")
	props.Add(PropertyTimeLimit, "3")
	props.Add(PropertyCSVFile, filepath.Join(dir, "stats.csv"))
	props.Add(PropertyHdrOutput, filepath.Join(dir, "latency.json"))
	bc := NewBenchmarkContext(newTestOptions(t, props), &collectingReporter{}, nil)
	f, err := bc.Run(context.Background())
	require.Nil(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	require.Nil(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Equal(t, 3, len(lines))
	require.True(t, strings.HasPrefix(lines[0], "2, 1, "))

	h, err := LoadHdrSnapshot(filepath.Join(dir, "latency.json"))
	require.Nil(t, err)
	require.Equal(t, f.Latency.Count, h.TotalCount())
}

func TestEngineStopsWhenAllWorkersFail(t *testing.T) {
	Drivers["failing"] = func() Driver {
		return &failingDriver{}
	}
	defer delete(Drivers, "failing")
	props := basicProperties()
	props.Add(PropertyDB, "failing")
	props.Add(PropertyConnectTimeout, "1s")
	r := &collectingReporter{}
	bc := NewBenchmarkContext(newTestOptions(t, props), r, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f, err := bc.Run(ctx)
	require.Nil(t, err)
	require.Nil(t, ctx.Err())
	require.Equal(t, int64(0), f.Requests)
	require.NotNil(t, r.final)
}

func TestEngineUnknownDriver(t *testing.T) {
	opts := newTestOptions(t, basicProperties())
	opts.DB = "nosuchdb"
	bc := NewBenchmarkContext(opts, &collectingReporter{}, nil)
	_, err := bc.Run(context.Background())
	require.ErrorIs(t, err, ErrUnknownDriver)
}
