// Package phonebook is the blocking face of the record cache.
package phonebook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/metrics"
	"github.com/S0me0neR0man/simbook/internal/record"
)

var (
	ErrLogicViolation = errors.New("blocking phonebook call from the cache loop")
	ErrNoFreeRecord   = errors.New("no free record")
)

type result[T any] struct {
	done  bool
	value T
	err   error
}

// PhoneBook blocks callers until the cache loop completes their request.
// There is no timeout: a call returns on completion, reset or loop stop.
type PhoneBook struct {
	cache *cache.Cache
	write WriteHandler

	mu   sync.Mutex
	cond *sync.Cond

	capacitySFG singleflight.Group

	sugar *zap.SugaredLogger
}

type Option func(*options)

type options struct {
	authorizer Authorizer
	chain      *WriteChain
}

// WithAuthorizer replaces DefaultRestricted.
func WithAuthorizer(a Authorizer) Option {
	return func(o *options) {
		o.authorizer = a
	}
}

// WithMiddleware runs mwf after authorization and audit.
func WithMiddleware(mwf ...MiddlewareWriteFunc) Option {
	return func(o *options) {
		o.chain.Attach(mwf...)
	}
}

func New(c *cache.Cache, logger *zap.Logger, opts ...Option) *PhoneBook {
	o := options{authorizer: DefaultRestricted(), chain: NewWriteChain()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &PhoneBook{
		cache: c,
		sugar: logger.Sugar(),
	}
	p.cond = sync.NewCond(&p.mu)

	chain := NewWriteChain().Attach(
		NewAuditUnit(logger).WriteMiddleware,
		NewAuthUnit(o.authorizer, logger).WriteMiddleware,
	)
	chain.middlewares = append(chain.middlewares, o.chain.middlewares...)
	p.write = chain.Then(WriteHandlerFunc(p.issueWrite))

	return p
}

// onLoop catches callers on the cache loop, whichever context they pass.
func (p *PhoneBook) onLoop(ctx context.Context) bool {
	return cache.OnLoop(ctx) || p.cache.InLoop()
}

// call issues a cache request and waits for its completion.
func call[T any](ctx context.Context, p *PhoneBook, op string, issue func(complete func(T, error))) (T, error) {
	var zero T
	if p.onLoop(ctx) {
		p.sugar.Errorw("blocking call on the cache loop", "call", op)
		return zero, fmt.Errorf("%w: %s", ErrLogicViolation, op)
	}

	start := time.Now()
	slot := &result[T]{}
	issue(func(v T, err error) {
		p.mu.Lock()
		slot.value, slot.err, slot.done = v, err, true
		p.mu.Unlock()
		p.cond.Broadcast()
	})

	p.mu.Lock()
	for !slot.done {
		p.cond.Wait()
	}
	p.mu.Unlock()

	metrics.CallLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return slot.value, slot.err
}

// Records loads every record of fg, coalescing with concurrent loads.
func (p *PhoneBook) Records(ctx context.Context, fg int) ([]record.Record, error) {
	id := uuid.New()
	p.sugar.Debugw("records", "op", id, "fg", fmt.Sprintf("%04X", fg))

	list, err := call(ctx, p, "records", func(complete func([]record.Record, error)) {
		p.cache.RequestLoad(fg, record.ExtensionFor(fg), func(_ context.Context, records []record.Record, err error) {
			complete(records, err)
		})
	})
	if err != nil {
		p.sugar.Debugw("records failed", "op", id, "err", err)
		return nil, err
	}
	return record.CloneAll(list), nil
}

// RecordsIfLoaded returns the cached records of fg without touching the card.
func (p *PhoneBook) RecordsIfLoaded(ctx context.Context, fg int) ([]record.Record, bool, error) {
	type cached struct {
		records []record.Record
		ok      bool
	}
	c, err := call(ctx, p, "cached", func(complete func(cached, error)) {
		p.cache.RecordsIfLoaded(fg, func(_ context.Context, records []record.Record, ok bool) {
			complete(cached{records, ok}, nil)
		})
	})
	if err != nil {
		return nil, false, err
	}
	return record.CloneAll(c.records), c.ok, nil
}

// UpdateByIndex writes rec at the 1-based index of fg.
func (p *PhoneBook) UpdateByIndex(ctx context.Context, fg int, rec record.Record, index int, authCode string) (cache.UpdateResult, error) {
	return p.write.Write(ctx, &WriteRequest{
		ID:        uuid.New(),
		FileGroup: fg,
		Index:     index,
		Record:    rec,
		AuthCode:  authCode,
	})
}

// UpdateBySearch replaces the first record of fg equal to before.
func (p *PhoneBook) UpdateBySearch(ctx context.Context, fg int, before, after record.Record, authCode string) (cache.UpdateResult, error) {
	return p.write.Write(ctx, &WriteRequest{
		ID:        uuid.New(),
		FileGroup: fg,
		Before:    &before,
		Record:    after,
		AuthCode:  authCode,
	})
}

// Add writes rec into the first empty record of fg. fg must be loaded.
func (p *PhoneBook) Add(ctx context.Context, fg int, rec record.Record, authCode string) (cache.UpdateResult, error) {
	res, err := p.UpdateBySearch(ctx, fg, record.Record{}, rec, authCode)
	if errors.Is(err, cache.ErrRecordNotFound) {
		return res, fmt.Errorf("%w: %w", ErrNoFreeRecord, err)
	}
	return res, err
}

// Delete empties the first record of fg equal to rec.
func (p *PhoneBook) Delete(ctx context.Context, fg int, rec record.Record, authCode string) (cache.UpdateResult, error) {
	return p.UpdateBySearch(ctx, fg, rec, record.Record{}, authCode)
}

func (p *PhoneBook) issueWrite(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error) {
	ext := record.ExtensionFor(req.FileGroup)
	if req.Before != nil {
		return call(ctx, p, "update_by_search", func(complete func(cache.UpdateResult, error)) {
			p.cache.RequestUpdateBySearch(req.FileGroup, ext, *req.Before, req.Record, req.AuthCode,
				func(_ context.Context, res cache.UpdateResult, err error) {
					complete(res, err)
				})
		})
	}
	return call(ctx, p, "update_by_index", func(complete func(cache.UpdateResult, error)) {
		p.cache.RequestUpdateByIndex(req.FileGroup, ext, req.Record, req.Index, req.AuthCode,
			func(_ context.Context, res cache.UpdateResult, err error) {
				complete(res, err)
			})
	})
}

// Capacity returns the record geometry of fg. Concurrent queries for the
// same group share one card operation.
func (p *PhoneBook) Capacity(ctx context.Context, fg int) (record.Capacity, error) {
	if p.onLoop(ctx) {
		p.sugar.Errorw("blocking call on the cache loop", "call", "capacity")
		return record.Capacity{}, fmt.Errorf("%w: capacity", ErrLogicViolation)
	}

	res, err, shared := p.capacitySFG.Do(fmt.Sprintf("%04X", fg), func() (interface{}, error) {
		return call(ctx, p, "capacity", func(complete func(record.Capacity, error)) {
			p.cache.RequestCapacity(fg, func(_ context.Context, c record.Capacity, err error) {
				complete(c, err)
			})
		})
	})
	if err != nil {
		p.sugar.Debugw("capacity failed", "fg", fmt.Sprintf("%04X", fg), "err", err, "shared", shared)
		return record.Capacity{}, err
	}
	return res.(record.Capacity), nil
}

// Reset fails everything outstanding with cache.ErrCacheInvalidated and
// returns once the cache is cold.
func (p *PhoneBook) Reset(ctx context.Context) error {
	_, err := call(ctx, p, "reset", func(complete func(struct{}, error)) {
		p.cache.Reset(func(context.Context) {
			complete(struct{}{}, nil)
		})
	})
	if err == nil {
		p.sugar.Infow("phonebook reset")
	}
	return err
}
