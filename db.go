package nosqlbench

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrNotFound       = errors.New("The requested record was not found.")
	ErrNotImplemented = errors.New("The operation is not implemented for the current binding.")
	ErrUnknownDriver  = errors.New("unsupported database")
	ErrBadResponse    = errors.New("The response from the server was not valid.")
	ErrConnection     = errors.New("Dependant service for the current binding is not available.")
)

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

type RequestType uint8

// Declaration order is also the rotation order of a Workload.
const (
	RequestReplace RequestType = iota
	RequestUpdate
	RequestDelete
	RequestSelect
	// Only used to reinsert a deleted key.
	RequestInsert
)

const (
	RequestTypeCount = int(RequestSelect) + 1
)

func (self RequestType) String() string {
	switch self {
	case RequestReplace:
		return "REPLACE"
	case RequestUpdate:
		return "UPDATE"
	case RequestDelete:
		return "DELETE"
	case RequestSelect:
		return "SELECT"
	case RequestInsert:
		return "INSERT"
	default:
		return "UNKNOWN_REQUEST"
	}
}

// ReadOnly reports whether the request is accounted as a read.
func (self RequestType) ReadOnly() bool {
	return self == RequestSelect
}

// Key is the encoded form of a key id, as produced by a KeyGenerator.
type Key []byte

// LatencyFunc receives the latency of a single completed request.
type LatencyFunc func(latency time.Duration)

// Driver is a client of the database under test. Every worker owns its
// own Driver instance, so implementations need not be safe for concurrent
// use.
//
// The request methods may either execute the request right away or only
// queue it. In both cases Recv is the barrier: it waits until count
// requests issued since the last Recv have completed, reports their
// latencies and returns how many of them missed their key.
type Driver interface {
	// Init prepares the driver to send values of valueSize bytes.
	Init(valueSize int) error
	Connect(ctx context.Context, opts *Options) error
	Close() error

	Insert(key Key) error
	Replace(key Key) error
	Update(key Key) error
	Delete(key Key) error
	Select(key Key) error

	Recv(count int, latency LatencyFunc) (missed int, err error)
}

// Response describes one response decoded by an AsyncDriver.
type Response struct {
	Latency time.Duration
	Miss    bool
}

// AsyncDriver is implemented by drivers that speak a framed protocol on a
// single connection. Workers drive them through a Reactor instead of the
// synchronous batch path: the request methods only encode into the write
// buffer, and responses are decoded out of the read stream.
type AsyncDriver interface {
	Driver
	NetConn() net.Conn
	// WriteBuffer returns the requests encoded since the last call and
	// empties the buffer. The returned slice is owned by the caller.
	WriteBuffer() []byte
	// MessageLength returns the length of the response at the start of buf,
	// which may exceed len(buf), or 0 if buf is too short to tell.
	MessageLength(buf []byte) (int, error)
	// Consume decodes the complete response at the start of buf and returns
	// how many bytes it used.
	Consume(buf []byte) (int, Response, error)
}

type MakeDriverFunc func() Driver

var (
	Drivers = map[string]MakeDriverFunc{
		"basic": func() Driver {
			return NewBasicDB()
		},
	}
)

// NewDriver creates a driver of the given name.
func NewDriver(name string) (Driver, error) {
	f, ok := Drivers[name]
	if !ok {
		return nil, NewErrorf("%w: %s", ErrUnknownDriver, name)
	}
	return f(), nil
}

// DriverNames returns the registered driver names in sorted order.
func DriverNames() []string {
	return sortedKeys(Drivers)
}

// BatchTracker records the outcome of requests a synchronous driver has
// already executed, until Recv hands them to the caller.
type BatchTracker struct {
	latencies []time.Duration
	missed    int
}

// Track records one request that was started at start.
func (self *BatchTracker) Track(start time.Time, miss bool) {
	self.latencies = append(self.latencies, time.Since(start))
	if miss {
		self.missed++
	}
}

// Flush reports every tracked latency to latency, which may be nil, and
// returns the number of misses. The tracker is empty afterwards.
func (self *BatchTracker) Flush(latency LatencyFunc) int {
	if latency != nil {
		for _, d := range self.latencies {
			latency(d)
		}
	}
	missed := self.missed
	self.latencies = self.latencies[:0]
	self.missed = 0
	return missed
}

// Pending returns the number of tracked requests.
func (self *BatchTracker) Pending() int {
	return len(self.latencies)
}
