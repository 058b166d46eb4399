package cache

import (
	"context"
	"fmt"

	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/metrics"
	"github.com/S0me0neR0man/simbook/internal/record"
	"github.com/S0me0neR0man/simbook/internal/subject"
)

// RequestUpdateByIndex writes rec at the 1-based index of fg. Extended file
// groups must be loaded, their subjects are reconciled against the cached
// record at index.
func (c *Cache) RequestUpdateByIndex(fg, ext int, rec record.Record, index int, authCode string, done UpdateFunc) {
	c.submit(func(ctx context.Context) {
		c.updateByIndex(ctx, fg, ext, rec, index, authCode, done)
	}, func(ctx context.Context, err error) {
		done(ctx, UpdateResult{}, err)
	})
}

// RequestUpdateBySearch replaces the first cached record of fg equal to
// before with after.
func (c *Cache) RequestUpdateBySearch(fg, ext int, before, after record.Record, authCode string, done UpdateFunc) {
	c.submit(func(ctx context.Context) {
		c.updateBySearch(ctx, fg, ext, before, after, authCode, done)
	}, func(ctx context.Context, err error) {
		done(ctx, UpdateResult{}, err)
	})
}

func (c *Cache) reject(ctx context.Context, fg int, reason string, err error, done UpdateFunc) {
	metrics.RejectedWrites.WithLabelValues(fgLabel(fg), reason).Inc()
	c.sugar.Debugw("update rejected", "fg", fgLabel(fg), "reason", reason, "err", err)
	done(ctx, UpdateResult{}, err)
}

func (c *Cache) updateByIndex(ctx context.Context, fg, ext int, rec record.Record, index int, authCode string, done UpdateFunc) {
	if ext < 0 {
		c.reject(ctx, fg, "unknown", fmt.Errorf("%w: %04X", ErrUnknownFileGroup, fg), done)
		return
	}
	if _, ok := c.writers[fg]; ok {
		c.reject(ctx, fg, "pending", fmt.Errorf("%w: %04X", ErrWriteAlreadyPending, fg), done)
		return
	}

	list, loaded := c.loaded[fg]
	if loaded && (index < 1 || index > len(list)) {
		c.reject(ctx, fg, "index", fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(list)), done)
		return
	}
	if record.IsExtended(fg) && !loaded {
		c.reject(ctx, fg, "not_loaded", fmt.Errorf("%w: %04X", ErrNotLoaded, fg), done)
		return
	}
	if table, ok := c.tables[fg]; ok {
		c.writeTable(ctx, table, fg, ext, index, list[index-1], rec, authCode, done)
		return
	}
	c.writeSimple(fg, ext, index, rec, authCode, done)
}

func (c *Cache) updateBySearch(ctx context.Context, fg, ext int, before, after record.Record, authCode string, done UpdateFunc) {
	if ext < 0 {
		c.reject(ctx, fg, "unknown", fmt.Errorf("%w: %04X", ErrUnknownFileGroup, fg), done)
		return
	}
	list, ok := c.loaded[fg]
	if !ok {
		c.reject(ctx, fg, "not_loaded", fmt.Errorf("%w: %04X", ErrNotLoaded, fg), done)
		return
	}

	index := 0
	for i, rec := range list {
		if rec.Equal(before) {
			index = i + 1
			break
		}
	}
	if index == 0 {
		c.reject(ctx, fg, "not_found", fmt.Errorf("%w: %s in %04X", ErrRecordNotFound, before, fg), done)
		return
	}
	if _, ok := c.writers[fg]; ok {
		c.reject(ctx, fg, "pending", fmt.Errorf("%w: %04X", ErrWriteAlreadyPending, fg), done)
		return
	}

	if table, ok := c.tables[fg]; ok {
		c.writeTable(ctx, table, fg, ext, index, list[index-1], after, authCode, done)
		return
	}
	c.writeSimple(fg, ext, index, after, authCode, done)
}

// writeSimple writes tag and number, the only columns a simple file group
// stores.
func (c *Cache) writeSimple(fg, ext, index int, rec record.Record, authCode string, done UpdateFunc) {
	rec = record.New(rec.Tag, rec.Number)
	rec.Index = index
	c.writers[fg] = &pendingWrite{index: index, record: rec, done: done}

	metrics.StorageWrites.WithLabelValues(fgLabel(fg), "record").Inc()
	c.sugar.Debugw("write issued", "fg", fgLabel(fg), "index", index)
	back := c.completion(fg)
	c.transport.WriteAt(fg, ext, index, rec, authCode, func(err error) {
		back(func(ctx context.Context) {
			c.writeDone(ctx, fg, "write", err)
		})
	})
}

// writeTable reconciles subjects, then writes the slot table together with
// the record when the transport batches, or the slot table first and the
// record next otherwise.
func (c *Cache) writeTable(ctx context.Context, table *subject.Table, fg, ext, global int, before, after record.Record, authCode string, done UpdateFunc) {
	plan, err := table.Plan(global, before, after)
	if err != nil {
		c.reject(ctx, fg, "index", fmt.Errorf("%w: %v", ErrInvalidIndex, err), done)
		return
	}
	if plan.Err != nil {
		metrics.ExhaustedSlots.WithLabelValues(fgLabel(fg)).Add(float64(countJoined(plan.Err)))
		c.sugar.Infow("subject positions skipped", "fg", fgLabel(fg), "index", global, "err", plan.Err)
	}

	c.writers[fg] = &pendingWrite{index: global, record: plan.Record, plan: plan, done: done}
	back := c.completion(fg)

	if batcher, ok := c.transport.(card.Batcher); ok {
		metrics.StorageWrites.WithLabelValues(fgLabel(fg), "batch").Inc()
		c.sugar.Debugw("batch issued", "fg", fgLabel(fg), "index", global, "changes", len(plan.Changes))
		batcher.WriteBatch(fg, ext, global, plan.Record, plan.Changes, authCode, func(err error) {
			back(func(ctx context.Context) {
				c.writeDone(ctx, fg, "batch", err)
			})
		})
		return
	}

	writeRecord := func() {
		metrics.StorageWrites.WithLabelValues(fgLabel(fg), "record").Inc()
		c.transport.WriteAt(fg, ext, global, plan.Record, authCode, func(err error) {
			back(func(ctx context.Context) {
				if err != nil && len(plan.Changes) > 0 {
					// the slot table already moved, re-read it on next load
					c.forget(fg)
				}
				c.writeDone(ctx, fg, "write", err)
			})
		})
	}
	if len(plan.Changes) == 0 {
		writeRecord()
		return
	}

	metrics.StorageWrites.WithLabelValues(fgLabel(fg), "slot_table").Inc()
	c.sugar.Debugw("slot table issued", "fg", fgLabel(fg), "index", global, "changes", len(plan.Changes))
	c.transport.WriteSlotTable(fg, plan.Changes, authCode, func(err error) {
		back(func(ctx context.Context) {
			if err != nil {
				c.writeDone(ctx, fg, "slot table", err)
				return
			}
			writeRecord()
		})
	})
}

// writeDone completes the pending write of fg and patches the cache.
func (c *Cache) writeDone(ctx context.Context, fg int, op string, err error) {
	w, ok := c.writers[fg]
	if !ok {
		return
	}
	delete(c.writers, fg)

	if err != nil {
		err = &StorageError{Op: op, FileGroup: fg, Err: err}
		c.sugar.Errorw("write failed", "fg", fgLabel(fg), "index", w.index, "err", err)
		w.done(ctx, UpdateResult{}, err)
		return
	}

	res := UpdateResult{FileGroup: fg, Index: w.index, Local: w.index, Record: w.record}
	if w.plan != nil {
		if table, ok := c.tables[fg]; ok {
			table.Commit(w.plan)
		}
		res.Group, res.Local = w.plan.Group, w.plan.Local
	}
	if list, ok := c.loaded[fg]; ok && w.index <= len(list) {
		next := make([]record.Record, len(list))
		copy(next, list)
		next[w.index-1] = w.record
		c.loaded[fg] = next
	} else if _, reading := c.waiters[fg]; reading && w.plan == nil {
		// the read may have been served before this write
		c.landed[fg] = append(c.landed[fg], w)
	}
	c.sugar.Debugw("write done", "fg", fgLabel(fg), "index", w.index)

	if w.plan != nil && w.plan.Err != nil {
		w.done(ctx, res, &PartialError{Result: res, Err: w.plan.Err})
		return
	}
	w.done(ctx, res, nil)
}

// forget drops the cached list and slot table of fg.
func (c *Cache) forget(fg int) {
	delete(c.loaded, fg)
	delete(c.tables, fg)
	c.sugar.Infow("file group forgotten", "fg", fgLabel(fg))
}

func countJoined(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	if err != nil {
		return 1
	}
	return 0
}
