package binding

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"

	nb "github.com/hhkbp2/nosqlbench"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	AddBindings()
	os.Exit(m.Run())
}

func TestAddBindings(t *testing.T) {
	for _, name := range []string{"basic", "mysql", "memcached", "redis", "tarantool", "pebble", "badger"} {
		db, err := nb.NewDriver(name)
		require.Nil(t, err, name)
		require.NotNil(t, db, name)
	}
	db, _ := nb.NewDriver("memcached")
	async, ok := db.(nb.AsyncDriver)
	require.True(t, ok)
	require.NotNil(t, async)
	db, _ = nb.NewDriver("redis")
	_, ok = db.(nb.AsyncDriver)
	require.False(t, ok)
}

func TestConnectionError(t *testing.T) {
	require.Nil(t, connectionError(nil))
	plain := errors.New("plain")
	require.Equal(t, plain, connectionError(plain))
	_, err := net.Dial("tcp", "127.0.0.1:0")
	require.NotNil(t, err)
	require.ErrorIs(t, connectionError(err), nb.ErrConnection)
}

type countingCloser struct {
	closed int
}

func (self *countingCloser) Close() error {
	self.closed++
	return nil
}

func TestStoreRegistry(t *testing.T) {
	r := newStoreRegistry()
	opens := 0
	c := &countingCloser{}
	open := func() (io.Closer, error) {
		opens++
		return c, nil
	}
	h1, err := r.acquire("/data", open)
	require.Nil(t, err)
	h2, err := r.acquire("/data", open)
	require.Nil(t, err)
	require.Equal(t, h1, h2)
	require.Equal(t, 1, opens)
	require.Nil(t, r.release("/data"))
	require.Equal(t, 0, c.closed)
	require.Nil(t, r.release("/data"))
	require.Equal(t, 1, c.closed)
	// unknown directories are ignored
	require.Nil(t, r.release("/data"))

	mem := &countingCloser{}
	_, err = r.acquire("", func() (io.Closer, error) {
		return mem, nil
	})
	require.Nil(t, err)
	require.Nil(t, r.release(""))
	require.Equal(t, 0, mem.closed)

	failed := errors.New("locked")
	_, err = r.acquire("/locked", func() (io.Closer, error) {
		return nil, failed
	})
	require.Equal(t, failed, err)
}
