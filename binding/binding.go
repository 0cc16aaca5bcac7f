package binding

import (
	"errors"
	"net"

	nb "github.com/hhkbp2/nosqlbench"
)

// AddBindings registers every driver of this package.
func AddBindings() {
	nb.Drivers["mysql"] = func() nb.Driver {
		return NewMysqlDB()
	}
	nb.Drivers["memcached"] = func() nb.Driver {
		return NewMemcachedDB()
	}
	nb.Drivers["redis"] = func() nb.Driver {
		return NewRedisDB()
	}
	nb.Drivers["tarantool"] = func() nb.Driver {
		return NewTarantoolDB()
	}
	nb.Drivers["pebble"] = func() nb.Driver {
		return NewPebbleDB()
	}
	nb.Drivers["badger"] = func() nb.Driver {
		return NewBadgerDB()
	}
}

// connectionError marks err as fatal to the worker if it comes from the
// network.
func connectionError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return nb.NewErrorf("%w: %v", nb.ErrConnection, err)
	}
	return err
}
