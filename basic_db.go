package nosqlbench

import (
	"context"
	"math/rand"
	"strconv"
	"time"
)

// BasicDB is a database that does nothing but optionally echo the
// requests, sleep for a simulated delay and report a share of the
// selects as misses. It measures the overhead of the harness itself.
type BasicDB struct {
	verbose        bool
	randomizeDelay bool
	toDelay        int64
	missRatio      float64
	value          []byte
	random         *rand.Rand
	tracker        BatchTracker
}

func NewBasicDB() *BasicDB {
	return &BasicDB{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (self *BasicDB) Init(valueSize int) error {
	self.value = FillValue(valueSize)
	return nil
}

func (self *BasicDB) Connect(ctx context.Context, opts *Options) error {
	p := opts.Properties
	var err error
	self.verbose, err = strconv.ParseBool(
		p.GetDefault(ConfigBasicDBVerbose, ConfigBasicDBVerboseDefault))
	if err != nil {
		return err
	}
	self.toDelay, err = strconv.ParseInt(
		p.GetDefault(ConfigSimulateDelay, ConfigSimulateDelayDefault), 0, 64)
	if err != nil {
		return err
	}
	self.randomizeDelay, err = strconv.ParseBool(
		p.GetDefault(ConfigRandomizeDelay, ConfigRandomizeDelayDefault))
	if err != nil {
		return err
	}
	self.missRatio, err = strconv.ParseFloat(
		p.GetDefault(ConfigMissRatio, ConfigMissRatioDefault), 64)
	if err != nil {
		return err
	}
	if self.missRatio < 0 || self.missRatio > 1 {
		return NewErrorf("%s must be in [0, 1]: %v", ConfigMissRatio, self.missRatio)
	}
	if self.verbose {
		OutputProperties(p)
	}
	return ctx.Err()
}

func (self *BasicDB) Close() error {
	return nil
}

func (self *BasicDB) delay() {
	if self.toDelay <= 0 {
		return
	}
	var nanos int64
	if self.randomizeDelay {
		nanos = MillisecondToNanosecond(self.random.Int63n(self.toDelay))
		if nanos == 0 {
			return
		}
	} else {
		nanos = MillisecondToNanosecond(self.toDelay)
	}
	time.Sleep(time.Duration(nanos))
}

func (self *BasicDB) write(op string, key Key) error {
	start := time.Now()
	self.delay()
	if self.verbose {
		Output("%s %q %d", op, string(key), len(self.value))
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *BasicDB) Insert(key Key) error {
	return self.write("INSERT", key)
}

func (self *BasicDB) Replace(key Key) error {
	return self.write("REPLACE", key)
}

func (self *BasicDB) Update(key Key) error {
	return self.write("UPDATE", key)
}

func (self *BasicDB) Delete(key Key) error {
	return self.write("DELETE", key)
}

func (self *BasicDB) Select(key Key) error {
	start := time.Now()
	self.delay()
	if self.verbose {
		Output("SELECT %q", string(key))
	}
	miss := self.missRatio > 0 && self.random.Float64() < self.missRatio
	self.tracker.Track(start, miss)
	return nil
}

func (self *BasicDB) Recv(count int, latency LatencyFunc) (int, error) {
	return self.tracker.Flush(latency), nil
}
