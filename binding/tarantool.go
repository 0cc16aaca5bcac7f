package binding

import (
	"context"
	"errors"
	"strconv"
	"time"

	nb "github.com/hhkbp2/nosqlbench"
	"github.com/tarantool/go-tarantool"
)

const (
	PropertyTarantoolSpace        = "tarantool.space"
	PropertyTarantoolSpaceDefault = "0"
	PropertyTarantoolUser         = "tarantool.user"
	PropertyTarantoolUserDefault  = "guest"
	PropertyTarantoolPass         = "tarantool.pass"
	PropertyTarantoolPassDefault  = ""
)

type tarantoolRequest struct {
	future *tarantool.Future
	start  time.Time
	// an empty answer means the key was missing
	keyed bool
}

// TarantoolDB sends every request as soon as it is issued and waits for
// the futures of the batch in Recv. Tuples are {key, value} with the key
// as primary index.
type TarantoolDB struct {
	conn    *tarantool.Connection
	space   uint32
	value   string
	pending []tarantoolRequest
}

func NewTarantoolDB() *TarantoolDB {
	return &TarantoolDB{}
}

func (self *TarantoolDB) Init(valueSize int) error {
	self.value = string(nb.FillValue(valueSize))
	return nil
}

func (self *TarantoolDB) Connect(ctx context.Context, opts *nb.Options) error {
	props := opts.Properties
	space, err := strconv.ParseUint(props.GetDefault(PropertyTarantoolSpace, PropertyTarantoolSpaceDefault), 0, 32)
	if err != nil {
		return nb.NewErrorf("invalid %s: %w", PropertyTarantoolSpace, err)
	}
	self.space = uint32(space)
	timeout := opts.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := tarantool.Connect(opts.Address(), tarantool.Opts{
		Timeout: timeout,
		User:    props.GetDefault(PropertyTarantoolUser, PropertyTarantoolUserDefault),
		Pass:    props.GetDefault(PropertyTarantoolPass, PropertyTarantoolPassDefault),
	})
	if err != nil {
		return nb.NewErrorf("%w: tarantool connect failed: %v", nb.ErrConnection, err)
	}
	self.conn = conn
	return nil
}

func (self *TarantoolDB) Close() error {
	if self.conn == nil {
		return nil
	}
	err := self.conn.Close()
	self.conn = nil
	return err
}

func (self *TarantoolDB) track(future *tarantool.Future, keyed bool) error {
	self.pending = append(self.pending, tarantoolRequest{
		future: future,
		start:  time.Now(),
		keyed:  keyed,
	})
	return nil
}

func (self *TarantoolDB) Insert(key nb.Key) error {
	return self.track(self.conn.ReplaceAsync(self.space, []interface{}{string(key), self.value}), false)
}

func (self *TarantoolDB) Replace(key nb.Key) error {
	return self.track(self.conn.ReplaceAsync(self.space, []interface{}{string(key), self.value}), false)
}

func (self *TarantoolDB) Update(key nb.Key) error {
	ops := []interface{}{[]interface{}{"=", 1, self.value}}
	return self.track(self.conn.UpdateAsync(self.space, 0, []interface{}{string(key)}, ops), true)
}

func (self *TarantoolDB) Delete(key nb.Key) error {
	return self.track(self.conn.DeleteAsync(self.space, 0, []interface{}{string(key)}), true)
}

func (self *TarantoolDB) Select(key nb.Key) error {
	return self.track(self.conn.SelectAsync(self.space, 0, 0, 1, tarantool.IterEq, []interface{}{string(key)}), true)
}

func tarantoolError(err error) error {
	var clientErr tarantool.ClientError
	if errors.As(err, &clientErr) {
		return nb.NewErrorf("%w: %v", nb.ErrConnection, err)
	}
	return err
}

func (self *TarantoolDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	missed := 0
	pending := self.pending
	self.pending = self.pending[:0]
	var firstErr error
	for _, req := range pending {
		resp, err := req.future.Get()
		if latency != nil {
			latency(time.Since(req.start))
		}
		if err != nil {
			if firstErr == nil {
				firstErr = tarantoolError(err)
			}
			continue
		}
		if req.keyed && (resp == nil || len(resp.Data) == 0) {
			missed++
		}
	}
	return missed, firstErr
}
