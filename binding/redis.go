package binding

import (
	"context"
	"errors"
	"strconv"
	"time"

	nb "github.com/hhkbp2/nosqlbench"
	"github.com/redis/go-redis/v9"
)

const (
	PropertyRedisPassword        = "redis.password"
	PropertyRedisPasswordDefault = ""
	PropertyRedisDB              = "redis.db"
	PropertyRedisDBDefault       = "0"
)

type redisRequest struct {
	start time.Time
	// a conditional write that was not applied is a miss
	conditional bool
}

// RedisDB queues every request of a batch in a pipeline and sends the
// whole pipeline on Recv.
type RedisDB struct {
	client  *redis.Client
	pipe    redis.Pipeliner
	ctx     context.Context
	value   []byte
	started []redisRequest
}

func NewRedisDB() *RedisDB {
	return &RedisDB{
		ctx: context.Background(),
	}
}

func (self *RedisDB) Init(valueSize int) error {
	self.value = nb.FillValue(valueSize)
	return nil
}

func (self *RedisDB) Connect(ctx context.Context, opts *nb.Options) error {
	props := opts.Properties
	db, err := strconv.Atoi(props.GetDefault(PropertyRedisDB, PropertyRedisDBDefault))
	if err != nil {
		return nb.NewErrorf("invalid %s: %w", PropertyRedisDB, err)
	}
	self.client = redis.NewClient(&redis.Options{
		Addr:        opts.Address(),
		Password:    props.GetDefault(PropertyRedisPassword, PropertyRedisPasswordDefault),
		DB:          db,
		DialTimeout: opts.ConnectTimeout,
		// a worker is a single client
		PoolSize: 1,
	})
	if err := self.client.Ping(ctx).Err(); err != nil {
		self.client.Close()
		self.client = nil
		return nb.NewErrorf("%w: %v", nb.ErrConnection, err)
	}
	self.pipe = self.client.Pipeline()
	return nil
}

func (self *RedisDB) Close() error {
	if self.client == nil {
		return nil
	}
	err := self.client.Close()
	self.client = nil
	return err
}

func (self *RedisDB) queued(conditional bool) {
	self.started = append(self.started, redisRequest{
		start:       time.Now(),
		conditional: conditional,
	})
}

func (self *RedisDB) Insert(key nb.Key) error {
	self.pipe.SetNX(self.ctx, string(key), self.value, 0)
	self.queued(false)
	return nil
}

func (self *RedisDB) Replace(key nb.Key) error {
	self.pipe.Set(self.ctx, string(key), self.value, 0)
	self.queued(false)
	return nil
}

func (self *RedisDB) Update(key nb.Key) error {
	self.pipe.SetXX(self.ctx, string(key), self.value, 0)
	self.queued(true)
	return nil
}

func (self *RedisDB) Delete(key nb.Key) error {
	self.pipe.Del(self.ctx, string(key))
	self.queued(false)
	return nil
}

func (self *RedisDB) Select(key nb.Key) error {
	self.pipe.Get(self.ctx, string(key))
	self.queued(false)
	return nil
}

// Recv executes the pipeline. A get or update of a missing key is a miss;
// any other failed command fails the whole batch.
func (self *RedisDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	if len(self.started) == 0 {
		return 0, nil
	}
	cmds, err := self.pipe.Exec(self.ctx)
	done := time.Now()
	started := self.started
	self.started = self.started[:0]
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, connectionError(err)
	}
	missed := 0
	for i, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			if !errors.Is(err, redis.Nil) {
				return missed, connectionError(err)
			}
			missed++
		} else if i < len(started) && started[i].conditional {
			if b, ok := cmd.(*redis.BoolCmd); ok && !b.Val() {
				missed++
			}
		}
		if latency != nil && i < len(started) {
			latency(done.Sub(started[i].start))
		}
	}
	return missed, nil
}
