package checker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/S0me0neR0man/simbook/internal/client"
	"github.com/S0me0neR0man/simbook/internal/record"
)

// fakeBook one file group in memory. busy turns away the first attempt of
// every write as if another write were pending.
type fakeBook struct {
	mu      sync.Mutex
	records []record.Record
	loaded  bool
	busy    bool
	bounced map[string]bool
	corrupt bool
}

func newFakeBook(size int) *fakeBook {
	return &fakeBook{records: make([]record.Record, size), bounced: make(map[string]bool)}
}

func (b *fakeBook) Load(_ context.Context, _ int) ([]record.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loaded = true
	out := record.CloneAll(b.records)
	if b.corrupt {
		for i := range out {
			out[i].Number += "0"
		}
	}
	return out, nil
}

func (b *fakeBook) write(key string, match func(record.Record) bool, rec record.Record) (client.UpdateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return client.UpdateResult{}, status.Error(codes.FailedPrecondition, "not loaded")
	}
	if b.busy && !b.bounced[key] {
		b.bounced[key] = true
		return client.UpdateResult{}, status.Error(codes.Aborted, "write already pending")
	}
	for i, r := range b.records {
		if match(r) {
			b.records[i] = rec
			return client.UpdateResult{Index: i + 1, Record: rec}, nil
		}
	}
	return client.UpdateResult{}, status.Error(codes.NotFound, "record not found")
}

func (b *fakeBook) Add(_ context.Context, _ int, rec record.Record, _ string) (client.UpdateResult, error) {
	return b.write("add "+rec.Tag, record.Record.IsEmpty, rec)
}

func (b *fakeBook) UpdateBySearch(_ context.Context, _ int, before, after record.Record, _ string) (client.UpdateResult, error) {
	return b.write(before.String()+" "+after.String(), before.Equal, after)
}

func runChecker(t *testing.T, book *fakeBook) *PhoneBookChecker {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	c, err := NewPhoneBookChecker(book, record.EFAdn, "", 2, logger)
	require.NoError(t, err)
	c.SetInterval(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Go(ctx))
	c.Wait()
	return c
}

func TestPhoneBookChecker_Clean(t *testing.T) {
	book := newFakeBook(50)
	book.busy = true
	c := runChecker(t, book)

	for _, s := range c.States() {
		if s.Id == AddState {
			// the book may fill up while records wait for deletion
			continue
		}
		require.Zero(t, s.Failed(), s.String())
	}
	for _, s := range c.States() {
		if s.Id == DeleteState {
			require.Positive(t, s.Passed())
		}
	}
}

func TestPhoneBookChecker_Mismatch(t *testing.T) {
	book := newFakeBook(50)
	book.corrupt = true
	c := runChecker(t, book)

	for _, s := range c.States() {
		switch s.Id {
		case FindState:
			require.Positive(t, s.Failed())
			require.Zero(t, s.Passed())
		case UpdateState, VerifyState, DeleteState:
			require.Zero(t, s.Passed())
		}
	}
}
