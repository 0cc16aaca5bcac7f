package binding

import (
	"io"
	"sync"
)

// Embedded engines lock their directory, so all workers of a process share
// one handle per directory. An on-disk store is closed once its last user
// is gone; the in-memory store, named by the empty directory, lives until
// the process ends so the benchmark sees what the warmup wrote.
type sharedStore struct {
	handle io.Closer
	users  int
}

type storeRegistry struct {
	lock   sync.Mutex
	stores map[string]*sharedStore
}

func newStoreRegistry() *storeRegistry {
	return &storeRegistry{
		stores: make(map[string]*sharedStore),
	}
}

// acquire returns the handle of dir, opening it with open on first use.
func (self *storeRegistry) acquire(dir string, open func() (io.Closer, error)) (io.Closer, error) {
	self.lock.Lock()
	defer self.lock.Unlock()
	s, ok := self.stores[dir]
	if !ok {
		handle, err := open()
		if err != nil {
			return nil, err
		}
		s = &sharedStore{
			handle: handle,
		}
		self.stores[dir] = s
	}
	s.users++
	return s.handle, nil
}

func (self *storeRegistry) release(dir string) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	s, ok := self.stores[dir]
	if !ok {
		return nil
	}
	s.users--
	if s.users > 0 || len(dir) == 0 {
		return nil
	}
	delete(self.stores, dir)
	return s.handle.Close()
}
