package nosqlbench

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Shortest interval between two publishes of the async path.
	WorkerPublishInterval = 100 * time.Millisecond
)

// Worker runs the request loop of one connection. Everything but the
// counters and the latency recorder is only touched by the worker's own
// goroutine.
type Worker struct {
	id       int
	opts     *Options
	stats    *Statistics
	metrics  *Metrics
	done     *atomic.Bool
	db       Driver
	keys     KeyGenerator
	workload *Workload
	history  *History
	recorder *LatencyRecorder
	// paces the sync path, nil when unthrottled
	limiter *rate.Limiter

	slot     *RequestSlot
	prevType RequestType
	lastKey  Key
	pending  int

	lastPublish time.Time
	requests    atomic.Int64
	errors      atomic.Int64
	misses      atomic.Int64
}

// NewWorker creates the worker id. workload must be a private copy.
func NewWorker(id int, opts *Options, stats *Statistics, metrics *Metrics,
	done *atomic.Bool, db Driver, keys KeyGenerator, workload *Workload) *Worker {

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Worker{
		id:       id,
		opts:     opts,
		stats:    stats,
		metrics:  metrics,
		done:     done,
		db:       db,
		keys:     keys,
		workload: workload,
		history:  NewHistory(opts.HistoryPerBatch, time.Now()),
		recorder: NewLatencyRecorder(opts.HdrMax, opts.HdrSig),
		limiter:  limiter,
		prevType: RequestInsert,
	}
}

func (self *Worker) ID() int {
	return self.id
}

func (self *Worker) Recorder() *LatencyRecorder {
	return self.recorder
}

// Requests returns the number of requests issued so far, reinserts
// included.
func (self *Worker) Requests() int64 {
	return self.requests.Load()
}

func (self *Worker) Errors() int64 {
	return self.errors.Load()
}

func (self *Worker) Misses() int64 {
	return self.misses.Load()
}

// Run connects the driver and issues requests until the benchmark is
// done. The returned error is fatal to this worker only.
func (self *Worker) Run(ctx context.Context) error {
	if err := self.db.Init(self.opts.ValueSize); err != nil {
		return NewErrorf("worker %d: init: %w", self.id, err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, self.opts.ConnectTimeout)
	err := self.db.Connect(connectCtx, self.opts)
	cancel()
	if err != nil {
		return NewErrorf("worker %d: connect: %w", self.id, err)
	}
	defer self.db.Close()
	Debugf("worker %d connected to %s", self.id, self.opts.Address())

	self.history = NewHistory(self.opts.HistoryPerBatch, time.Now())
	if async, ok := self.db.(AsyncDriver); ok {
		return self.runAsync(ctx, async)
	}
	return self.runSync(ctx)
}

// runSync issues batches of request_batch_count requests, each followed
// by one Recv for all of them.
func (self *Worker) runSync(ctx context.Context) error {
	for {
		finished := false
		for i := 0; i < self.opts.RequestBatchCount; i++ {
			if self.limiter != nil && self.limiter.Wait(ctx) != nil {
				finished = true
				break
			}
			var err error
			finished, err = self.issue()
			if err != nil {
				return err
			}
			if finished {
				break
			}
		}
		count := self.pending
		self.pending = 0
		missed, err := self.db.Recv(count, self.recordLatency)
		if err != nil {
			if err = self.recvError(err); err != nil {
				return err
			}
		}
		self.miss(missed)
		self.publish(time.Now())
		if finished {
			return nil
		}
	}
}

type workerHandler struct {
	worker *Worker
	db     AsyncDriver
	err    error
}

func (self *workerHandler) Next() ([]byte, bool) {
	for {
		finished, err := self.worker.issue()
		if err != nil {
			self.err = err
			return nil, false
		}
		if finished {
			return nil, false
		}
		// a request that failed right away left nothing to send
		if buf := self.db.WriteBuffer(); len(buf) > 0 {
			return buf, true
		}
	}
}

func (self *workerHandler) MessageLength(buf []byte) (int, error) {
	return self.db.MessageLength(buf)
}

func (self *workerHandler) Consume(buf []byte) (int, error) {
	n, resp, err := self.db.Consume(buf)
	if err != nil {
		return n, err
	}
	self.worker.recordLatency(resp.Latency)
	if resp.Miss {
		self.worker.miss(1)
	}
	now := time.Now()
	if now.Sub(self.worker.lastPublish) >= WorkerPublishInterval {
		self.worker.publish(now)
	}
	return n, nil
}

// runAsync drives the connection through a Reactor for the lifetime of
// the worker.
func (self *Worker) runAsync(ctx context.Context, db AsyncDriver) error {
	h := &workerHandler{
		worker: self,
		db:     db,
	}
	r := NewReactorWithTargetRPS(db.NetConn(), h, self.opts.RPS)
	err := r.Run(ctx)
	self.publish(time.Now())
	if h.err != nil {
		return h.err
	}
	if err != nil {
		return NewErrorf("worker %d: %w", self.id, err)
	}
	return nil
}

// issue sends the next request of the workload. A delete is always
// followed by a reinsert of the same key, so the key space keeps its
// size. It returns true once the benchmark is done.
func (self *Worker) issue() (bool, error) {
	if self.done.Load() {
		return true, nil
	}
	now := time.Now()
	if self.prevType == RequestDelete {
		err := self.db.Replace(self.lastKey)
		self.workload.AccountExtra()
		self.prevType = RequestInsert
		self.account(RequestReplace, now)
		return false, self.check(RequestReplace, err)
	}
	if self.slot == nil {
		// start of a new pass
		self.workload.Reset()
		self.slot = self.workload.Fetch()
		if self.slot == nil {
			return true, nil
		}
	}
	slot := self.slot
	key := self.keys.Generate(uint32(self.workload.Total()))
	err := slot.Op(self.db, key)
	self.workload.Account(slot)
	self.account(slot.Type, now)
	self.prevType = slot.Type
	self.lastKey = key
	self.slot = self.workload.Fetch()
	return false, self.check(slot.Type, err)
}

func (self *Worker) account(t RequestType, now time.Time) {
	self.requests.Add(1)
	self.metrics.Request(t)
	if t.ReadOnly() {
		self.history.AddEvent(EventRead, 1, now)
	} else {
		self.history.AddEvent(EventWrite, 1, now)
	}
}

// check classifies the error of a request. Only errors that leave the
// connection unusable are returned.
func (self *Worker) check(t RequestType, err error) error {
	if err == nil {
		self.pending++
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		self.pending++
		self.miss(1)
		return nil
	}
	return self.fail(t.String(), err)
}

// recvError classifies the error of a batch Recv, which covers requests
// of any type.
func (self *Worker) recvError(err error) error {
	return self.fail("recv", err)
}

func (self *Worker) fail(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, ErrConnection) || errors.As(err, &netErr) {
		return NewErrorf("worker %d: %s: %w", self.id, op, err)
	}
	self.errors.Add(1)
	self.metrics.Error()
	if errors.Is(err, ErrNotImplemented) {
		Debugf("worker %d: %s: %s", self.id, op, err)
	} else {
		Warnf("worker %d: %s: %s", self.id, op, err)
	}
	return nil
}

func (self *Worker) miss(count int) {
	if count <= 0 {
		return
	}
	self.misses.Add(int64(count))
	self.metrics.Miss(count)
	self.history.AddEvent(EventMiss, count, time.Now())
}

func (self *Worker) recordLatency(latency time.Duration) {
	self.recorder.Record(latency)
	self.history.AddLatency(latency, time.Now())
	self.metrics.Latency(latency)
}

func (self *Worker) publish(now time.Time) {
	self.lastPublish = now
	self.stats.Publish(self.id, self.history.WindowedAverage(now))
}
