// Package cache is the record cache of the card phonebook: coalesced reads,
// a single writer per file group and search-then-update, all driven by one
// loop goroutine that owns every piece of cache state.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/metrics"
	"github.com/S0me0neR0man/simbook/internal/record"
	"github.com/S0me0neR0man/simbook/internal/subject"
)

type LoadFunc func(ctx context.Context, records []record.Record, err error)
type UpdateFunc func(ctx context.Context, res UpdateResult, err error)
type CachedFunc func(ctx context.Context, records []record.Record, ok bool)
type CapacityFunc func(ctx context.Context, c record.Capacity, err error)

// UpdateResult where a write landed. Index is the 1-based position in the
// whole file group, Group and Local locate it inside an extended layout
// (Group 0 and Local == Index for simple file groups).
type UpdateResult struct {
	FileGroup int
	Index     int
	Group     int
	Local     int
	Record    record.Record
}

type pendingWrite struct {
	index  int
	record record.Record
	plan   *subject.Plan
	done   UpdateFunc
}

// Cache the record cache actor.
//
// Record lists handed to callbacks are shared between all waiters and
// must not be modified.
type Cache struct {
	transport card.Transport
	box       *mailbox
	loopID    atomic.Uint64

	// owned by the loop
	session uint64
	stopped bool
	loaded  map[int][]record.Record
	waiters map[int][]LoadFunc
	writers map[int]*pendingWrite
	tables  map[int]*subject.Table

	// writes that completed while a read of the group was in flight,
	// replayed over the read result
	landed map[int][]*pendingWrite

	sugar *zap.SugaredLogger
}

func New(transport card.Transport, logger *zap.Logger) *Cache {
	return &Cache{
		transport: transport,
		box:       newMailbox(),
		loaded:    make(map[int][]record.Record),
		waiters:   make(map[int][]LoadFunc),
		writers:   make(map[int]*pendingWrite),
		tables:    make(map[int]*subject.Table),
		landed:    make(map[int][]*pendingWrite),
		sugar:     logger.Sugar(),
	}
}

// Run processes events until ctx is done. Requests still queued or in
// flight when it returns fail with ErrStopped.
func (c *Cache) Run(ctx context.Context) error {
	loopCtx := context.WithValue(ctx, loopKey{}, c)
	c.loopID.Store(goid())
	defer c.loopID.Store(0)
	c.sugar.Infow("cache loop started")

	for {
		select {
		case <-ctx.Done():
			c.stop(loopCtx)
			c.sugar.Infow("cache loop stopped", "err", ctx.Err())
			return nil
		case <-c.box.notify:
			for _, ev := range c.box.drain() {
				ev(loopCtx)
			}
		}
	}
}

// InLoop reports whether the caller runs on the loop goroutine, where
// waiting for a cache completion never ends.
func (c *Cache) InLoop() bool {
	id := c.loopID.Load()
	return id != 0 && id == goid()
}

func (c *Cache) stop(ctx context.Context) {
	c.stopped = true
	for _, ev := range c.box.close() {
		ev(ctx)
	}
	c.failAll(ctx, ErrStopped)
}

// submit posts ev, fail runs instead when the loop is gone.
func (c *Cache) submit(ev event, fail func(ctx context.Context, err error)) {
	ok := c.box.post(func(ctx context.Context) {
		if c.stopped {
			fail(ctx, ErrStopped)
			return
		}
		ev(ctx)
	})
	if !ok {
		fail(context.Background(), ErrStopped)
	}
}

// completion returns the poster of transport completions for fg. It must be
// taken on the loop; completions arriving after a reset are dropped.
func (c *Cache) completion(fg int) func(ev event) {
	session := c.session
	return func(ev event) {
		ok := c.box.post(func(ctx context.Context) {
			if c.session != session || c.stopped {
				c.sugar.Debugw("stale completion dropped", "fg", fgLabel(fg))
				return
			}
			ev(ctx)
		})
		if !ok {
			c.sugar.Debugw("completion after stop", "fg", fgLabel(fg))
		}
	}
}

func fgLabel(fg int) string {
	return fmt.Sprintf("%04X", fg)
}

// RequestLoad completes done with the records of fg. Concurrent requests
// share a single storage read.
func (c *Cache) RequestLoad(fg, ext int, done LoadFunc) {
	c.submit(func(ctx context.Context) {
		c.load(ctx, fg, ext, done)
	}, func(ctx context.Context, err error) {
		done(ctx, nil, err)
	})
}

func (c *Cache) load(ctx context.Context, fg, ext int, done LoadFunc) {
	if ext < 0 {
		done(ctx, nil, fmt.Errorf("%w: %04X", ErrUnknownFileGroup, fg))
		return
	}
	if list, ok := c.loaded[fg]; ok {
		done(ctx, list, nil)
		return
	}
	if waiters, ok := c.waiters[fg]; ok {
		c.waiters[fg] = append(waiters, done)
		metrics.CoalescedWaiters.WithLabelValues(fgLabel(fg)).Inc()
		c.sugar.Debugw("load coalesced", "fg", fgLabel(fg), "waiters", len(c.waiters[fg]))
		return
	}

	c.waiters[fg] = []LoadFunc{done}
	metrics.StorageReads.WithLabelValues(fgLabel(fg)).Inc()
	c.sugar.Debugw("read issued", "fg", fgLabel(fg), "ext", ext)
	back := c.completion(fg)
	c.transport.ReadAll(fg, ext, func(contents card.Contents, err error) {
		back(func(ctx context.Context) {
			c.readDone(ctx, fg, contents, err)
		})
	})
}

func (c *Cache) readDone(ctx context.Context, fg int, contents card.Contents, err error) {
	waiters := c.waiters[fg]
	delete(c.waiters, fg)
	landed := c.landed[fg]
	delete(c.landed, fg)

	var list []record.Record
	if err == nil {
		list, err = c.install(fg, contents, landed)
	}
	if err != nil {
		err = &StorageError{Op: "read", FileGroup: fg, Err: err}
		metrics.ReadFailures.WithLabelValues(fgLabel(fg)).Inc()
		c.sugar.Errorw("read failed", "fg", fgLabel(fg), "waiters", len(waiters), "err", err)
	} else {
		c.sugar.Debugw("read done", "fg", fgLabel(fg), "records", len(list), "waiters", len(waiters))
	}

	for _, w := range waiters {
		w(ctx, list, err)
	}
}

// install caches a successful read with landed writes applied over it,
// building the slot table of extended file groups.
func (c *Cache) install(fg int, contents card.Contents, landed []*pendingWrite) ([]record.Record, error) {
	list := record.CloneAll(contents.Records)
	for _, w := range landed {
		if w.index <= len(list) {
			list[w.index-1] = w.record
		}
	}
	for i := range list {
		list[i].Index = i + 1
	}

	if contents.Layout != nil {
		table, err := subject.New(*contents.Layout, list, contents.Index)
		if err != nil {
			return nil, fmt.Errorf("slot table: %w", err)
		}
		c.tables[fg] = table
	}
	c.loaded[fg] = list
	return list, nil
}

// RecordsIfLoaded completes done with the cached records of fg, ok is false
// when fg is not loaded. Never touches storage.
func (c *Cache) RecordsIfLoaded(fg int, done CachedFunc) {
	c.submit(func(ctx context.Context) {
		list, ok := c.loaded[fg]
		done(ctx, list, ok)
	}, func(ctx context.Context, _ error) {
		done(ctx, nil, false)
	})
}

// RequestCapacity queries the record geometry of fg. It does not depend on
// the load state and survives resets.
func (c *Cache) RequestCapacity(fg int, done CapacityFunc) {
	c.submit(func(ctx context.Context) {
		c.transport.Capacity(fg, func(capacity record.Capacity, err error) {
			ok := c.box.post(func(ctx context.Context) {
				if err != nil {
					err = &StorageError{Op: "capacity", FileGroup: fg, Err: err}
				}
				done(ctx, capacity, err)
			})
			if !ok {
				done(context.Background(), record.Capacity{}, ErrStopped)
			}
		})
	}, func(ctx context.Context, err error) {
		done(ctx, record.Capacity{}, err)
	})
}

// Reset fails every waiter and pending writer with ErrCacheInvalidated and
// forgets all cached state. done, when not nil, runs on the loop afterwards.
func (c *Cache) Reset(done func(ctx context.Context)) {
	c.submit(func(ctx context.Context) {
		c.session++
		n := c.failAll(ctx, ErrCacheInvalidated)
		c.loaded = make(map[int][]record.Record)
		c.tables = make(map[int]*subject.Table)
		c.landed = make(map[int][]*pendingWrite)
		metrics.Resets.Inc()
		metrics.CancelledRequests.Add(float64(n))
		c.sugar.Infow("cache reset", "cancelled", n, "session", c.session)
		if done != nil {
			done(ctx)
		}
	}, func(ctx context.Context, _ error) {
		if done != nil {
			done(ctx)
		}
	})
}

// failAll fails waiters then writers, each in file group order.
func (c *Cache) failAll(ctx context.Context, err error) int {
	n := 0
	for _, fg := range sortedKeys(c.waiters) {
		for _, w := range c.waiters[fg] {
			w(ctx, nil, err)
			n++
		}
	}
	c.waiters = make(map[int][]LoadFunc)

	for _, fg := range sortedKeys(c.writers) {
		c.writers[fg].done(ctx, UpdateResult{}, err)
		n++
	}
	c.writers = make(map[int]*pendingWrite)
	return n
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
