package nosqlbench

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/stretchr/testify/require"
)

func TestStatisticsFinalize(t *testing.T) {
	s := NewStatistics(1)
	for i, req := range []int{100, 200, 150} {
		s.Publish(0, Stat{ReqPS: req, ReadPS: req / 2, WritePS: req / 2, Missed: i, Latency: float64(i + 1)})
		s.Report(1, i+1)
	}
	f := s.Finalize()
	require.Equal(t, 100, f.ReqPSMin)
	require.Equal(t, 200, f.ReqPSMax)
	require.Equal(t, 150, f.ReqPSAvg)
	require.Equal(t, 50, f.ReadPSMin)
	require.Equal(t, 100, f.WritePSMax)
	require.Equal(t, 1.0, f.LatencyMin)
	require.Equal(t, 3.0, f.LatencyMax)
	require.Equal(t, 2.0, f.LatencyAvg)
	require.Equal(t, 2, f.Missed)
	require.Equal(t, 3, f.Reports)
	require.Equal(t, f, s.Final())
}

func TestStatisticsFinalizeEmpty(t *testing.T) {
	s := NewStatistics(4)
	require.Equal(t, FinalStat{}, s.Finalize())
	_, ok := s.Current()
	require.False(t, ok)
}

func TestStatisticsReportSums(t *testing.T) {
	s := NewStatistics(2)
	s.Publish(0, Stat{ReqPS: 10, ReadPS: 4, WritePS: 6, Missed: 1, Latency: 2})
	s.Publish(1, Stat{ReqPS: 20, ReadPS: 5, WritePS: 15, Missed: 2, Latency: 4})
	// out of range ids are dropped
	s.Publish(7, Stat{ReqPS: 1000})
	row := s.Report(2, 5)
	require.Equal(t, Stat{Workers: 2, Time: 5, ReqPS: 30, ReadPS: 9, WritePS: 21, Missed: 3, Latency: 3}, row)
	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, row, current)
	require.Equal(t, []Stat{row}, s.Log())
}

func TestStatisticsResizeNeverShrinks(t *testing.T) {
	s := NewStatistics(2)
	s.Publish(1, Stat{ReqPS: 5})
	s.Resize(4)
	require.Equal(t, 4, s.Size())
	s.Resize(1)
	require.Equal(t, 4, s.Size())
	require.Equal(t, 5, s.Report(4, 1).ReqPS)
}

func TestStatisticsConcurrentPublish(t *testing.T) {
	s := NewStatistics(8)
	var wg sync.WaitGroup
	for id := 0; id < 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.Publish(id, Stat{ReqPS: 1})
			}
		}(id)
	}
	for i := 0; i < 10; i++ {
		s.Resize(8 + i)
		s.Report(8, i)
	}
	wg.Wait()
	require.Equal(t, 8, s.Report(8, 10).ReqPS)
}

func TestStatisticsCSV(t *testing.T) {
	s := NewStatistics(1)
	s.Publish(0, Stat{ReqPS: 30, ReadPS: 10, WritePS: 20, Latency: 1.5})
	s.Report(1, 1)
	s.Report(1, 2)
	var buf bytes.Buffer
	require.Nil(t, s.WriteCSV(&buf))
	require.Equal(t, "1, 1, 30, 10, 20, 1.500000\n1, 2, 30, 10, 20, 1.500000\n", buf.String())

	fileName := filepath.Join(t.TempDir(), "stats.csv")
	require.Nil(t, s.SaveCSV(fileName))
}

func TestLatencyRecorder(t *testing.T) {
	r := NewLatencyRecorder(60000000, 3)
	r.Record(100 * time.Microsecond)
	r.Record(2 * time.Millisecond)
	period := NewHistogram()
	r.DrainPeriod(period)
	require.Equal(t, uint64(2), period.Size())
	require.Equal(t, 100.0, period.Min())
	require.Equal(t, 2000.0, period.Max())
	again := NewHistogram()
	r.DrainPeriod(again)
	require.Equal(t, uint64(0), again.Size())

	r.Record(time.Millisecond)
	total := NewHistogram()
	hdr := hdrhistogram.New(1, 60000000, 3)
	dropped := r.MergeTotal(total, hdr)
	require.Equal(t, int64(0), dropped)
	require.Equal(t, uint64(3), total.Size())
	require.Equal(t, int64(3), hdr.TotalCount())
}

func TestLatencyRecorderDropsOutOfRange(t *testing.T) {
	r := NewLatencyRecorder(1000, 2)
	r.Record(time.Second)
	hdr := hdrhistogram.New(1, 1000, 2)
	require.Equal(t, int64(1), r.MergeTotal(nil, hdr))
}

func TestHdrSnapshotRoundTrip(t *testing.T) {
	h := hdrhistogram.New(1, 60000000, 3)
	for i := int64(1); i <= 1000; i++ {
		require.Nil(t, h.RecordValue(i))
	}
	s := Summarize(h, 0, []float64{0.5, 0.99})
	require.Equal(t, int64(1000), s.Count)
	require.Contains(t, s.Percentiles, "p50")
	require.Contains(t, s.Percentiles, "p99")
	require.InDelta(t, 500, s.Percentiles["p50"], 5)

	fileName := filepath.Join(t.TempDir(), "latency.json")
	require.Nil(t, SaveHdrSnapshot(fileName, h, 0, []float64{0.5}))
	loaded, err := LoadHdrSnapshot(fileName)
	require.Nil(t, err)
	require.Equal(t, h.TotalCount(), loaded.TotalCount())
	require.Equal(t, h.ValueAtQuantile(90), loaded.ValueAtQuantile(90))
}
