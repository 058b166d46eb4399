// Package card the storage media behind the record cache.
//
// Every operation completes exactly once, asynchronously, by calling its
// done function from a transport goroutine.
package card

import (
	"errors"

	"github.com/S0me0neR0man/simbook/internal/record"
)

var (
	ErrNoSuchFile     = errors.New("no such file")
	ErrIndexOutOfFile = errors.New("record index outside file")
	ErrSecurityStatus = errors.New("security status not satisfied")
	ErrInjected       = errors.New("injected fault")
)

// Contents what a read of one file group yields. Layout and Index are
// only set for extended file groups, Index is aligned with Records.
type Contents struct {
	Records []record.Record
	Layout  *record.Layout
	Index   []record.IndexRow
}

// Transport the asynchronous storage medium.
type Transport interface {
	ReadAll(fg, ext int, done func(Contents, error))
	WriteAt(fg, ext, index int, rec record.Record, authCode string, done func(error))
	WriteSlotTable(fg int, changes []record.SlotChange, authCode string, done func(error))
	Capacity(fg int, done func(record.Capacity, error))
}

// Batcher a medium able to store slot-table changes together with the
// primary record in a single operation.
type Batcher interface {
	WriteBatch(fg, ext, index int, rec record.Record, changes []record.SlotChange, authCode string, done func(error))
}
