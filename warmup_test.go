package nosqlbench

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withRecordingDriver(t *testing.T) *recordingDriver {
	db := newRecordingDriver(&atomic.Bool{}, 1<<30)
	Drivers["recording"] = func() Driver {
		return db
	}
	t.Cleanup(func() {
		delete(Drivers, "recording")
	})
	return db
}

func warmupOptions(t *testing.T, count, batch string) *Options {
	return newTestOptions(t, Properties{
		PropertyDB:                "recording",
		PropertyRequestCount:      count,
		PropertyRequestBatchCount: batch,
	})
}

func TestWarmupInsertsEveryKey(t *testing.T) {
	db := withRecordingDriver(t)
	r := &collectingReporter{}
	require.Nil(t, Warmup(context.Background(), warmupOptions(t, "25", "10"), r))

	require.Equal(t, 25, len(db.requests))
	for i, req := range db.requests {
		require.Equal(t, RequestInsert, req.Type)
		require.Equal(t, string(NewStringKeyGenerator(nil).GenerateByID(uint32(i))), req.Key)
	}
	require.Equal(t, []int{10, 10, 5}, db.recvs)
	require.Equal(t, [][2]int{{10, 25}, {20, 25}, {25, 25}}, r.progress)
	require.True(t, db.closed)
}

func TestWarmupExactBatches(t *testing.T) {
	db := withRecordingDriver(t)
	r := &collectingReporter{}
	require.Nil(t, Warmup(context.Background(), warmupOptions(t, "20", "10"), r))
	require.Equal(t, []int{10, 10}, db.recvs)
	require.Equal(t, [][2]int{{10, 20}, {20, 20}}, r.progress)
}

func TestWarmupInterrupted(t *testing.T) {
	db := withRecordingDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Warmup(ctx, warmupOptions(t, "20", "10"), &collectingReporter{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, len(db.requests))
}

func TestWarmupInsertFailure(t *testing.T) {
	db := withRecordingDriver(t)
	db.errs[RequestInsert] = ErrConnection
	err := Warmup(context.Background(), warmupOptions(t, "20", "10"), &collectingReporter{})
	require.ErrorIs(t, err, ErrConnection)
	require.Equal(t, 1, len(db.requests))
}

func TestWarmupPaced(t *testing.T) {
	db := withRecordingDriver(t)
	opts := newTestOptions(t, Properties{
		PropertyDB:                "recording",
		PropertyRequestCount:      "11",
		PropertyRequestBatchCount: "5",
		PropertyWarmupRPS:         "100",
	})
	start := time.Now()
	require.Nil(t, Warmup(context.Background(), opts, &collectingReporter{}))
	// the first insert uses the initial token
	require.True(t, time.Since(start) >= 90*time.Millisecond)
	require.Equal(t, 11, len(db.requests))
}
