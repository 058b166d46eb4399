package phonebook

import (
	"context"

	"github.com/google/uuid"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/record"
)

// WriteRequest one update on its way to the cache. Before is set for
// updates by search, Index for updates by index.
type WriteRequest struct {
	ID        uuid.UUID
	FileGroup int
	Index     int
	Before    *record.Record
	Record    record.Record
	AuthCode  string
}

// WriteHandler handles a WriteRequest.
type WriteHandler interface {
	Write(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error)
}

// The WriteHandlerFunc type is an adapter to allow the use of
// ordinary functions as handlers.
type WriteHandlerFunc func(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error)

// Write calls f(ctx, req).
func (f WriteHandlerFunc) Write(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error) {
	return f(ctx, req)
}

// MiddlewareWriteFunc is a function which receives a WriteHandler and returns another WriteHandler
type MiddlewareWriteFunc func(WriteHandler) WriteHandler

// writeMiddlewarer interface is anything which implements a MiddlewareWriteFunc named WriteMiddleware
type writeMiddlewarer interface {
	WriteMiddleware(WriteHandler) WriteHandler
}

// WriteMiddleware allows MiddlewareWriteFunc to implement the writeMiddlewarer interface
func (mw MiddlewareWriteFunc) WriteMiddleware(h WriteHandler) WriteHandler {
	return mw(h)
}

// WriteChain use pattern chain of responsibility in front of the cache writes
type WriteChain struct {
	middlewares []writeMiddlewarer
}

func NewWriteChain() *WriteChain {
	return &WriteChain{}
}

// Attach appends middlewares, the first attached runs first
func (c *WriteChain) Attach(mwf ...MiddlewareWriteFunc) *WriteChain {
	for _, fn := range mwf {
		c.middlewares = append(c.middlewares, fn)
	}
	return c
}

// Then builds the chain ending in final.
func (c *WriteChain) Then(final WriteHandler) WriteHandler {
	h := final
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i].WriteMiddleware(h)
	}
	return h
}
