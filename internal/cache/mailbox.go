package cache

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"

	"github.com/S0me0neR0man/simbook/internal/metrics"
)

type event func(ctx context.Context)

// mailbox unbounded queue of loop events, post never blocks.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (b *mailbox) post(ev event) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	metrics.MailboxDepth.Set(float64(len(b.queue)))
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

func (b *mailbox) drain() []event {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue
	b.queue = nil
	metrics.MailboxDepth.Set(0)
	return q
}

// close refuses further posts and returns what was still queued.
func (b *mailbox) close() []event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	q := b.queue
	b.queue = nil
	metrics.MailboxDepth.Set(0)
	return q
}

type loopKey struct{}

// OnLoop reports whether ctx belongs to a cache loop, that is whether the
// caller is running inside a cache callback. Callbacks may drop the
// context, Cache.InLoop does not depend on it.
func OnLoop(ctx context.Context) bool {
	_, ok := ctx.Value(loopKey{}).(*Cache)
	return ok
}

// goid the id of the calling goroutine, read from its stack header
// "goroutine N [running]:".
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
