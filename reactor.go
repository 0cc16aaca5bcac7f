package nosqlbench

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Shortest interval of the send ticker in rate limited mode.
	ReactorMinInterval = time.Millisecond
	// Interval of the rate observer.
	ReactorObserveInterval = time.Second

	reactorReadChunkSize = 64 * 1024
	reactorReadBuffers   = 2
	reactorOutboundSize  = 256
)

type ReactorState uint8

const (
	ReactorIdle ReactorState = iota
	ReactorWriting
	ReactorReading
	ReactorDraining
	ReactorClosed
)

func (self ReactorState) String() string {
	switch self {
	case ReactorIdle:
		return "IDLE"
	case ReactorWriting:
		return "WRITING"
	case ReactorReading:
		return "READING"
	case ReactorDraining:
		return "DRAINING"
	case ReactorClosed:
		return "CLOSED"
	default:
		return "UNKNOWN_STATE"
	}
}

// ReactorHandler produces the requests and decodes the responses of a
// Reactor. All calls happen on the goroutine running the Reactor.
type ReactorHandler interface {
	// Next returns the next request to send, or false when there is
	// nothing left to send.
	Next() ([]byte, bool)
	// MessageLength returns the length of the response at the start of buf,
	// which may exceed len(buf), or 0 if buf is too short to tell.
	MessageLength(buf []byte) (int, error)
	// Consume handles the complete response buf and returns the number of
	// bytes it used.
	Consume(buf []byte) (int, error)
}

type ReactorStats struct {
	Sent     int64
	Received int64
}

// Reactor pipelines requests and responses over one connection. Every
// request produces exactly one response, matched in send order. Run stops
// once the handler ran out of requests, or Finish was called, and all
// responses have arrived.
//
// In rate limited mode requests go out on a ticker aiming at rps requests
// per second; once per second the send rate is corrected by the
// difference between the observed and the target rate.
type Reactor struct {
	conn    net.Conn
	handler ReactorHandler
	rps     int

	finishRequested atomic.Bool
	sent            atomic.Int64
	received        atomic.Int64
	state           atomic.Uint32

	buf []byte

	writesPS         int
	interval         time.Duration
	reqPerTick       float64
	credit           float64
	receivedLastTick int64
}

func NewReactor(conn net.Conn, handler ReactorHandler) *Reactor {
	return &Reactor{
		conn:    conn,
		handler: handler,
	}
}

// NewReactorWithTargetRPS creates a Reactor that throttles writes to rps
// requests per second. A rps of 0 disables throttling.
func NewReactorWithTargetRPS(conn net.Conn, handler ReactorHandler, rps int) *Reactor {
	object := NewReactor(conn, handler)
	if rps > 0 {
		object.rps = rps
		object.setWritesPS(rps)
	}
	return object
}

func (self *Reactor) setWritesPS(writesPS int) {
	self.writesPS = writesPS
	interval := time.Second / time.Duration(writesPS)
	if interval < ReactorMinInterval {
		self.reqPerTick = float64(ReactorMinInterval) / float64(interval)
		self.interval = ReactorMinInterval
	} else {
		self.reqPerTick = 1
		self.interval = interval
	}
}

// Interval returns the current send interval and the requests sent per
// firing, only meaningful in rate limited mode.
func (self *Reactor) Interval() (time.Duration, float64) {
	return self.interval, self.reqPerTick
}

// Finish asks the reactor to stop sending. Responses still in flight are
// read before Run returns.
func (self *Reactor) Finish() {
	self.finishRequested.Store(true)
}

func (self *Reactor) Stats() ReactorStats {
	return ReactorStats{
		Sent:     self.sent.Load(),
		Received: self.received.Load(),
	}
}

func (self *Reactor) State() ReactorState {
	return ReactorState(self.state.Load())
}

func (self *Reactor) setState(state ReactorState) {
	self.state.Store(uint32(state))
}

func (self *Reactor) done() bool {
	return self.finishRequested.Load() && self.received.Load() == self.sent.Load()
}

// Run drives the connection until the reactor is done or an I/O or codec
// error happens. Cancelling ctx is equivalent to Finish.
func (self *Reactor) Run(ctx context.Context) error {
	readCh := make(chan []byte)
	// read buffers travel to the loop on readCh and come back on freeCh
	freeCh := make(chan []byte, reactorReadBuffers)
	for i := 0; i < reactorReadBuffers; i++ {
		freeCh <- make([]byte, reactorReadChunkSize)
	}
	writeCh := make(chan []byte, reactorOutboundSize)
	wroteCh := make(chan struct{}, 1)
	errCh := make(chan error, 2)
	stopCh := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			var b []byte
			select {
			case b = <-freeCh:
			case <-stopCh:
				return
			}
			n, err := self.conn.Read(b)
			if n > 0 {
				select {
				case readCh <- b[:n]:
				case <-stopCh:
					return
				}
			} else {
				freeCh <- b
			}
			if err != nil {
				select {
				case errCh <- err:
				case <-stopCh:
				}
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for msg := range writeCh {
			if _, err := self.conn.Write(msg); err != nil {
				select {
				case errCh <- err:
				case <-stopCh:
				}
				// keep draining so the loop never blocks on writeCh
				for range writeCh {
				}
				return
			}
			select {
			case wroteCh <- struct{}{}:
			default:
			}
		}
	}()
	defer func() {
		close(stopCh)
		close(writeCh)
		// unblock the reader and a writer stuck on a full socket
		self.conn.SetDeadline(time.Now())
		wg.Wait()
		self.conn.SetDeadline(time.Time{})
		self.setState(ReactorClosed)
	}()

	var sendTick, observeTick <-chan time.Time
	var sendTicker *time.Ticker
	if self.rps > 0 {
		sendTicker = time.NewTicker(self.interval)
		defer sendTicker.Stop()
		observeTicker := time.NewTicker(ReactorObserveInterval)
		defer observeTicker.Stop()
		sendTick = sendTicker.C
		observeTick = observeTicker.C
	}

	ctxDone := ctx.Done()
	self.setState(ReactorIdle)
	for {
		if self.rps == 0 {
			self.produce(writeCh, -1)
		}
		if self.done() {
			return nil
		}
		if self.finishRequested.Load() {
			self.setState(ReactorDraining)
		}
		select {
		case chunk := <-readCh:
			err := self.consume(chunk)
			freeCh <- chunk[:cap(chunk)]
			if err != nil {
				return err
			}
		case err := <-errCh:
			if errors.Is(err, io.EOF) && self.done() {
				return nil
			}
			return err
		case <-wroteCh:
		case <-sendTick:
			self.credit += self.reqPerTick
			n := int(self.credit)
			self.credit -= float64(n)
			self.produce(writeCh, n)
		case <-observeTick:
			self.observe()
			sendTicker.Reset(self.interval)
		case <-ctxDone:
			self.Finish()
			ctxDone = nil
		}
	}
}

// produce sends up to limit requests, or as many as the outbound queue
// takes if limit is negative.
func (self *Reactor) produce(writeCh chan<- []byte, limit int) {
	for n := 0; limit < 0 || n < limit; n++ {
		if self.finishRequested.Load() || len(writeCh) == cap(writeCh) {
			return
		}
		msg, ok := self.handler.Next()
		if !ok {
			self.Finish()
			return
		}
		self.sent.Add(1)
		self.setState(ReactorWriting)
		writeCh <- msg
	}
}

func (self *Reactor) consume(chunk []byte) error {
	self.setState(ReactorReading)
	self.buf = append(self.buf, chunk...)
	off := 0
	for off < len(self.buf) {
		length, err := self.handler.MessageLength(self.buf[off:])
		if err != nil {
			return err
		}
		if length <= 0 || length > len(self.buf)-off {
			// wait for more bytes
			break
		}
		used, err := self.handler.Consume(self.buf[off : off+length])
		if err != nil {
			return err
		}
		if used <= 0 || used > length {
			used = length
		}
		off += used
		self.received.Add(1)
		self.receivedLastTick++
	}
	// compact the remainder to the start of the buffer
	remain := copy(self.buf, self.buf[off:])
	self.buf = self.buf[:remain]
	return nil
}

// observe corrects the send rate by the gap between the responses of the
// last second and the target.
func (self *Reactor) observe() {
	writesPS := self.writesPS - (int(self.receivedLastTick) - self.rps)
	if writesPS <= 0 {
		writesPS = self.rps
	}
	self.receivedLastTick = 0
	self.setWritesPS(writesPS)
}
