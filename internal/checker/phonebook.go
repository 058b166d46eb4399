package checker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/S0me0neR0man/simbook/internal/client"
	"github.com/S0me0neR0man/simbook/internal/record"
)

const (
	AddState    = "add"
	FindState   = "find"
	UpdateState = "update"
	VerifyState = "verify"
	DeleteState = "delete"

	conflictRetries = 5
	conflictBackoff = 10 * time.Millisecond
)

var ErrMismatch = errors.New("record mismatch")

// Book the phonebook calls the checker makes, client.GRPCClient is one.
type Book interface {
	Load(ctx context.Context, fg int) ([]record.Record, error)
	Add(ctx context.Context, fg int, rec record.Record, authCode string) (client.UpdateResult, error)
	UpdateBySearch(ctx context.Context, fg int, before, after record.Record, authCode string) (client.UpdateResult, error)
}

type entry struct {
	FileGroup int
	Index     int
	Record    record.Record
}

func (e entry) String() string {
	return fmt.Sprintf("%04X #%d %v", e.FileGroup, e.Index, e.Record)
}

type PhoneBookChecker struct {
	book     Book
	fg       int
	authCode string
	seq      atomic.Int64

	*StateSupervisor
}

// NewPhoneBookChecker adds records to fg and walks each one through
// find, update, verify and delete.
func NewPhoneBookChecker(book Book, fg int, authCode string, goCount uint, logger *zap.Logger) (*PhoneBookChecker, error) {
	c := &PhoneBookChecker{
		book:            book,
		fg:              fg,
		authCode:        authCode,
		StateSupervisor: NewStateSupervisor(logger),
	}

	add := NewState(AddState, goCount, logger)
	add.SetDoFunc(c.add)
	find := NewState(FindState, goCount, logger)
	find.SetDoFunc(c.load(UpdateState))
	find.SetCheckFunc(compare)
	update := NewState(UpdateState, goCount, logger)
	update.SetDoFunc(c.update)
	verify := NewState(VerifyState, goCount, logger)
	verify.SetDoFunc(c.load(DeleteState))
	verify.SetCheckFunc(compare)
	del := NewState(DeleteState, goCount, logger)
	del.SetDoFunc(c.delete)

	if err := c.Add(add, find, update, verify, del); err != nil {
		return nil, err
	}
	c.SetGenDataFunc(c.next)
	return c, nil
}

// Go loads the file group, which adds need, and starts the states.
func (c *PhoneBookChecker) Go(ctx context.Context) error {
	if _, err := c.book.Load(ctx, c.fg); err != nil {
		return fmt.Errorf("load %04X: %w", c.fg, err)
	}
	return c.StateSupervisor.Go(ctx)
}

func (c *PhoneBookChecker) next(context.Context) (DataToBeVerified, error) {
	n := c.seq.Add(1)
	return DataToBeVerified{
		NextState: AddState,
		Data: entry{
			FileGroup: c.fg,
			Record:    record.New("chk"+strconv.FormatInt(n, 10), randomNumber()),
		},
	}, nil
}

func randomNumber() string {
	return strconv.Itoa(1000000 + rand.Intn(9000000))
}

// retry repeats a write the cache turned away because another write on
// the file group was in flight.
func retry(ctx context.Context, write func() (client.UpdateResult, error)) (client.UpdateResult, error) {
	for i := 0; ; i++ {
		res, err := write()
		if status.Code(err) != codes.Aborted || i == conflictRetries {
			return res, err
		}
		select {
		case <-time.After(conflictBackoff):
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func (c *PhoneBookChecker) add(ctx context.Context, data DataToBeVerified) (DataToBeVerified, error) {
	e := data.Data.(entry)
	res, err := retry(ctx, func() (client.UpdateResult, error) {
		return c.book.Add(ctx, e.FileGroup, e.Record, c.authCode)
	})
	if err != nil {
		return data, fmt.Errorf("add: %w", err)
	}

	e.Index = res.Index
	data.Data = e
	data.NextState = FindState
	return data, nil
}

func (c *PhoneBookChecker) load(next string) DoFunc {
	return func(ctx context.Context, data DataToBeVerified) (DataToBeVerified, error) {
		e := data.Data.(entry)
		list, err := c.book.Load(ctx, e.FileGroup)
		if err != nil {
			return data, fmt.Errorf("load: %w", err)
		}
		if e.Index < 1 || e.Index > len(list) {
			return data, fmt.Errorf("load: index %d outside %d records", e.Index, len(list))
		}

		e.Record = list[e.Index-1]
		return DataToBeVerified{CurrentState: data.CurrentState, NextState: next, Data: e}, nil
	}
}

func compare(before, after DataToBeVerified) error {
	want, got := before.Data.(entry), after.Data.(entry)
	if diff := cmp.Diff(want.Record, got.Record); diff != "" {
		return fmt.Errorf("%w at %d (-want +got):\n%s", ErrMismatch, want.Index, diff)
	}
	return nil
}

func (c *PhoneBookChecker) update(ctx context.Context, data DataToBeVerified) (DataToBeVerified, error) {
	e := data.Data.(entry)
	after := e.Record.Clone()
	after.Number = randomNumber()

	res, err := retry(ctx, func() (client.UpdateResult, error) {
		return c.book.UpdateBySearch(ctx, e.FileGroup, e.Record, after, c.authCode)
	})
	if err != nil {
		return data, fmt.Errorf("update: %w", err)
	}
	if res.Index != e.Index {
		return data, fmt.Errorf("%w: updated %d, added at %d", ErrMismatch, res.Index, e.Index)
	}

	e.Record = after
	data.Data = e
	data.NextState = VerifyState
	return data, nil
}

func (c *PhoneBookChecker) delete(ctx context.Context, data DataToBeVerified) (DataToBeVerified, error) {
	e := data.Data.(entry)
	res, err := retry(ctx, func() (client.UpdateResult, error) {
		return c.book.UpdateBySearch(ctx, e.FileGroup, e.Record, record.Record{}, c.authCode)
	})
	if err != nil {
		return data, fmt.Errorf("delete: %w", err)
	}
	if res.Index != e.Index {
		return data, fmt.Errorf("%w: deleted %d, added at %d", ErrMismatch, res.Index, e.Index)
	}

	data.NextState = ""
	return data, nil
}
