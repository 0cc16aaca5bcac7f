package nosqlbench

import (
	"context"

	"golang.org/x/time/rate"
)

// Warmup fills the database with every key of the key space, ids
// 0..request_count-1, so the benchmark starts against a populated store.
// It receives once per batch and reports its progress through reporter.
// Inserts are paced to warmup.rps when it is set.
func Warmup(ctx context.Context, opts *Options, reporter Reporter) error {
	db, err := NewDriver(opts.DB)
	if err != nil {
		return err
	}
	// ids are encoded directly, the distribution is never drawn from
	keys, err := NewKeyGenerator(opts.Key, nil)
	if err != nil {
		return err
	}
	if err := db.Init(opts.ValueSize); err != nil {
		return NewErrorf("warmup: init: %w", err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	err = db.Connect(connectCtx, opts)
	cancel()
	if err != nil {
		return NewErrorf("warmup: connect: %w", err)
	}
	defer db.Close()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.WarmupRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.WarmupRPS), 1)
	}
	total := opts.RequestCount
	batch := opts.RequestBatchCount
	pending := 0
	missed := 0
	recv := func() error {
		n, err := db.Recv(pending, nil)
		missed += n
		pending = 0
		return err
	}
	for i := 0; i < total; {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := db.Insert(keys.GenerateByID(uint32(i))); err != nil {
			return NewErrorf("warmup: insert: %w", err)
		}
		pending++
		i++
		if i%batch == 0 {
			if err := recv(); err != nil {
				return NewErrorf("warmup: %w", err)
			}
			reporter.Progress(i, total)
		}
	}
	if pending > 0 {
		if err := recv(); err != nil {
			return NewErrorf("warmup: %w", err)
		}
		reporter.Progress(total, total)
	}
	Debugf("warmup inserted %d keys, %d missed", total, missed)
	return nil
}
