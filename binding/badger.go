package binding

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	nb "github.com/hhkbp2/nosqlbench"
)

const (
	// Directory of the store, empty keeps it in memory.
	PropertyBadgerDir        = "badger.dir"
	PropertyBadgerDirDefault = ""
	// Whether every write is synced to disk.
	PropertyBadgerSync        = "badger.sync"
	PropertyBadgerSyncDefault = "false"
)

var (
	badgerStores = newStoreRegistry()
)

// badgerLogger routes the engine's own messages into the log.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	nb.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	nb.Warnf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	nb.Verbosef("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	nb.Verbosef("badger: "+format, args...)
}

// BadgerDB runs every request as its own transaction against an embedded
// badger store.
type BadgerDB struct {
	dir     string
	db      *badger.DB
	value   []byte
	tracker nb.BatchTracker
}

func NewBadgerDB() *BadgerDB {
	return &BadgerDB{}
}

func (self *BadgerDB) Init(valueSize int) error {
	self.value = nb.FillValue(valueSize)
	return nil
}

func (self *BadgerDB) Connect(ctx context.Context, opts *nb.Options) error {
	props := opts.Properties
	self.dir = props.GetDefault(PropertyBadgerDir, PropertyBadgerDirDefault)
	sync, err := strconv.ParseBool(props.GetDefault(PropertyBadgerSync, PropertyBadgerSyncDefault))
	if err != nil {
		return nb.NewErrorf("invalid %s: %w", PropertyBadgerSync, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := badgerStores.acquire(self.dir, func() (io.Closer, error) {
		options := badger.DefaultOptions(self.dir).
			WithSyncWrites(sync).
			WithLogger(badgerLogger{})
		if len(self.dir) == 0 {
			options = options.WithInMemory(true)
		}
		return badger.Open(options)
	})
	if err != nil {
		return err
	}
	self.db = handle.(*badger.DB)
	return nil
}

func (self *BadgerDB) Close() error {
	if self.db == nil {
		return nil
	}
	self.db = nil
	return badgerStores.release(self.dir)
}

func (self *BadgerDB) set(key nb.Key) error {
	start := time.Now()
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, self.value)
	})
	if err != nil {
		return err
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *BadgerDB) Insert(key nb.Key) error {
	return self.set(key)
}

func (self *BadgerDB) Replace(key nb.Key) error {
	return self.set(key)
}

// Update only writes keys that exist, a missing key is a miss.
func (self *BadgerDB) Update(key nb.Key) error {
	start := time.Now()
	miss := false
	err := self.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				miss = true
				return nil
			}
			return err
		}
		return txn.Set(key, self.value)
	})
	if err != nil {
		return err
	}
	self.tracker.Track(start, miss)
	return nil
}

func (self *BadgerDB) Delete(key nb.Key) error {
	start := time.Now()
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *BadgerDB) Select(key nb.Key) error {
	start := time.Now()
	miss := false
	err := self.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				miss = true
				return nil
			}
			return err
		}
		_, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	self.tracker.Track(start, miss)
	return nil
}

func (self *BadgerDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	return self.tracker.Flush(latency), nil
}
