package binding

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	nb "github.com/hhkbp2/nosqlbench"
)

const (
	// Directory of the store, empty keeps it in memory.
	PropertyPebbleDir        = "pebble.dir"
	PropertyPebbleDirDefault = ""
	// Whether every write is synced to disk.
	PropertyPebbleSync        = "pebble.sync"
	PropertyPebbleSyncDefault = "false"
)

var (
	pebbleStores = newStoreRegistry()
)

// PebbleDB runs requests against an embedded pebble LSM store.
type PebbleDB struct {
	dir     string
	db      *pebble.DB
	write   *pebble.WriteOptions
	value   []byte
	tracker nb.BatchTracker
}

func NewPebbleDB() *PebbleDB {
	return &PebbleDB{}
}

func (self *PebbleDB) Init(valueSize int) error {
	self.value = nb.FillValue(valueSize)
	return nil
}

func (self *PebbleDB) Connect(ctx context.Context, opts *nb.Options) error {
	props := opts.Properties
	self.dir = props.GetDefault(PropertyPebbleDir, PropertyPebbleDirDefault)
	sync, err := strconv.ParseBool(props.GetDefault(PropertyPebbleSync, PropertyPebbleSyncDefault))
	if err != nil {
		return nb.NewErrorf("invalid %s: %w", PropertyPebbleSync, err)
	}
	self.write = pebble.NoSync
	if sync {
		self.write = pebble.Sync
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := pebbleStores.acquire(self.dir, func() (io.Closer, error) {
		options := &pebble.Options{}
		if len(self.dir) == 0 {
			options.FS = vfs.NewMem()
		}
		return pebble.Open(self.dir, options)
	})
	if err != nil {
		return err
	}
	self.db = handle.(*pebble.DB)
	return nil
}

func (self *PebbleDB) Close() error {
	if self.db == nil {
		return nil
	}
	self.db = nil
	return pebbleStores.release(self.dir)
}

func (self *PebbleDB) set(key nb.Key) error {
	start := time.Now()
	if err := self.db.Set(key, self.value, self.write); err != nil {
		return err
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *PebbleDB) Insert(key nb.Key) error {
	return self.set(key)
}

func (self *PebbleDB) Replace(key nb.Key) error {
	return self.set(key)
}

// Update only writes keys that exist, a missing key is a miss.
func (self *PebbleDB) Update(key nb.Key) error {
	start := time.Now()
	_, closer, err := self.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		self.tracker.Track(start, true)
		return nil
	}
	if err != nil {
		return err
	}
	closer.Close()
	if err := self.db.Set(key, self.value, self.write); err != nil {
		return err
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *PebbleDB) Delete(key nb.Key) error {
	start := time.Now()
	if err := self.db.Delete(key, self.write); err != nil {
		return err
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *PebbleDB) Select(key nb.Key) error {
	start := time.Now()
	_, closer, err := self.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		self.tracker.Track(start, true)
		return nil
	}
	if err != nil {
		return err
	}
	closer.Close()
	self.tracker.Track(start, false)
	return nil
}

func (self *PebbleDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	return self.tracker.Flush(latency), nil
}
