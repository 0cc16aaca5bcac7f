package nosqlbench

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testMessageSize = 8
)

// countingHandler sends limit fixed size messages, or an unbounded number
// if limit is negative, and treats everything buffered as one response.
type countingHandler struct {
	limit    int
	nexts    int
	consumed int
	err      error
}

func (self *countingHandler) Next() ([]byte, bool) {
	self.nexts++
	if self.limit >= 0 && self.nexts > self.limit {
		return nil, false
	}
	return []byte("request!"), true
}

func (self *countingHandler) MessageLength(buf []byte) (int, error) {
	if self.err != nil {
		return 0, self.err
	}
	return len(buf), nil
}

func (self *countingHandler) Consume(buf []byte) (int, error) {
	self.consumed++
	return len(buf), nil
}

// echoServer answers every fixed size request with a copy of it, one
// write per response.
func echoServer(conn net.Conn) {
	go func() {
		buf := make([]byte, testMessageSize)
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			if _, err := conn.Write(buf); err != nil {
				return
			}
		}
	}()
}

func TestReactorFiveMessages(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	echoServer(server)

	h := &countingHandler{limit: 5}
	r := NewReactor(client, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Nil(t, r.Run(ctx))
	require.Equal(t, ReactorStats{Sent: 5, Received: 5}, r.Stats())
	require.Equal(t, 5, h.consumed)
	require.Equal(t, 6, h.nexts)
	require.Equal(t, ReactorClosed, r.State())
}

func TestReactorReusesReadBuffers(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	echoServer(server)

	total := 2000
	h := &countingHandler{limit: total}
	r := NewReactor(client, h)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	require.Nil(t, r.Run(ctx))
	runtime.ReadMemStats(&after)
	require.Equal(t, total, h.consumed)
	perResponse := (after.TotalAlloc - before.TotalAlloc) / uint64(total)
	// far below one read chunk per response
	require.Less(t, perResponse, uint64(4096))
}

func TestReactorNothingToSend(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	h := &countingHandler{limit: 0}
	r := NewReactor(client, h)
	require.Nil(t, r.Run(context.Background()))
	require.Equal(t, ReactorStats{}, r.Stats())
}

// splitHandler decodes responses of a fixed length that arrive in pieces.
type splitHandler struct {
	countingHandler
}

func (self *splitHandler) MessageLength(buf []byte) (int, error) {
	return testMessageSize, nil
}

func TestReactorReassemblesAndPipelines(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() {
		buf := make([]byte, 3*testMessageSize)
		if _, err := io.ReadFull(server, buf); err != nil {
			return
		}
		// one and a half responses, then the rest
		server.Write(buf[:12])
		server.Write(buf[12:])
	}()

	h := &splitHandler{countingHandler{limit: 3}}
	r := NewReactor(client, h)
	require.Nil(t, r.Run(context.Background()))
	require.Equal(t, 3, h.consumed)
	require.Equal(t, int64(3), r.Stats().Received)
}

func TestReactorCodecError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	echoServer(server)
	codecErr := errors.New("bad frame")
	h := &countingHandler{limit: -1, err: codecErr}
	r := NewReactor(client, h)
	err := r.Run(context.Background())
	require.True(t, errors.Is(err, codecErr))
}

func TestReactorConnectionClosed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	go func() {
		buf := make([]byte, testMessageSize)
		io.ReadFull(server, buf)
		server.Close()
	}()
	h := &countingHandler{limit: -1}
	r := NewReactor(client, h)
	require.NotNil(t, r.Run(context.Background()))
}

func TestReactorCancelDrains(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	echoServer(server)
	h := &countingHandler{limit: -1}
	r := NewReactor(client, h)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.Nil(t, r.Run(ctx))
	stats := r.Stats()
	require.True(t, stats.Sent > 0)
	require.Equal(t, stats.Sent, stats.Received)
	require.Equal(t, int(stats.Received), h.consumed)
}

func TestReactorIntervalClamp(t *testing.T) {
	r := NewReactorWithTargetRPS(nil, &countingHandler{}, 100)
	interval, perTick := r.Interval()
	require.Equal(t, 10*time.Millisecond, interval)
	require.Equal(t, 1.0, perTick)

	r = NewReactorWithTargetRPS(nil, &countingHandler{}, 4000)
	interval, perTick = r.Interval()
	require.Equal(t, ReactorMinInterval, interval)
	require.InDelta(t, 4.0, perTick, 1e-9)
}

func TestReactorObserveCorrects(t *testing.T) {
	r := NewReactorWithTargetRPS(nil, &countingHandler{}, 100)
	r.receivedLastTick = 80
	r.observe()
	require.Equal(t, 120, r.writesPS)
	require.Equal(t, int64(0), r.receivedLastTick)

	r.receivedLastTick = 400
	r.observe()
	// never below zero, start over from the target
	require.Equal(t, 100, r.writesPS)
}

func TestReactorTargetRPS(t *testing.T) {
	if testing.Short() {
		t.Skip("takes seconds")
	}
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	echoServer(server)

	const rps = 100
	h := &countingHandler{limit: -1}
	r := NewReactorWithTargetRPS(client, h, rps)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.Nil(t, r.Run(ctx))
	received := r.Stats().Received
	require.InDelta(t, 3*rps, received, 0.1*3*rps)
}
