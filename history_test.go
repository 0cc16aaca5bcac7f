package nosqlbench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(start time.Time, seconds float64) time.Time {
	return start.Add(time.Duration(seconds * float64(time.Second)))
}

func TestHistoryEmptyWindow(t *testing.T) {
	start := time.Now()
	h := NewHistory(16, start)
	s := h.WindowedAverage(start)
	require.Equal(t, Stat{}, s)
	s = h.WindowedAverage(at(start, 3))
	require.Equal(t, 0, s.ReqPS)
	require.Equal(t, 0.0, s.Latency)
}

func TestHistoryUniformRate(t *testing.T) {
	start := time.Now()
	for _, w := range []int{1, 4, 16} {
		h := NewHistory(16, start)
		k := 100 * w
		for e := 0; e < w; e++ {
			for i := 0; i < k/w; i++ {
				kind := EventWrite
				if i%2 == 0 {
					kind = EventRead
				}
				h.AddEvent(kind, 1, at(start, float64(e)+0.5))
			}
		}
		s := h.WindowedAverage(at(start, float64(w)))
		require.InDelta(t, k/w, s.ReqPS, 1)
		require.InDelta(t, k/w/2, s.ReadPS, 1)
		require.InDelta(t, k/w/2, s.WritePS, 1)
	}
}

func TestHistoryPartialEpoch(t *testing.T) {
	start := time.Now()
	h := NewHistory(16, start)
	h.AddEvent(EventWrite, 50, at(start, 0.1))
	s := h.WindowedAverage(at(start, 0.5))
	require.Equal(t, 100, s.WritePS)
}

func TestHistoryStaleBucketsExpire(t *testing.T) {
	start := time.Now()
	h := NewHistory(2, start)
	for e := 0; e < 4; e++ {
		h.AddEvent(EventWrite, 10, at(start, float64(e)+0.2))
	}
	// epochs 2 and 3 remain, over 1.5 seconds
	s := h.WindowedAverage(at(start, 3.5))
	require.Equal(t, 13, s.WritePS)
	// the window moved past every bucket
	s = h.WindowedAverage(at(start, 10))
	require.Equal(t, 0, s.WritePS)
}

func TestHistoryMissesAccumulate(t *testing.T) {
	start := time.Now()
	h := NewHistory(2, start)
	h.AddEvent(EventMiss, 3, at(start, 0))
	h.AddEvent(EventMiss, 4, at(start, 5))
	h.AddEvent(EventMiss, 0, at(start, 6))
	require.Equal(t, 7, h.Missed())
	require.Equal(t, 7, h.WindowedAverage(at(start, 20)).Missed)
}

func TestHistoryLatency(t *testing.T) {
	start := time.Now()
	h := NewHistory(4, start)
	h.AddLatency(2*time.Millisecond, at(start, 0.1))
	h.AddLatency(4*time.Millisecond, at(start, 1.1))
	s := h.WindowedAverage(at(start, 2))
	require.InDelta(t, 3.0, s.Latency, 1e-9)
}
