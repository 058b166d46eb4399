package card

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/record"
)

// Op a transport operation kind.
type Op string

const (
	OpRead      Op = "read"
	OpWrite     Op = "write"
	OpSlotTable Op = "slot_table"
	OpBatch     Op = "batch"
	OpCapacity  Op = "capacity"
)

// Memory simulated card over an Image. It has no batch support, so slot
// tables and primary records are written by separate operations.
type Memory struct {
	image   *Image
	latency time.Duration

	mu     sync.Mutex
	faults map[Op][]error
	calls  map[Op]int

	sugar *zap.SugaredLogger
}

// NewMemory every operation completes after latency on its own goroutine.
func NewMemory(image *Image, latency time.Duration, logger *zap.Logger) *Memory {
	return &Memory{
		image:   image,
		latency: latency,
		faults:  make(map[Op][]error),
		calls:   make(map[Op]int),
		sugar:   logger.Sugar(),
	}
}

// Image the card behind the transport.
func (m *Memory) Image() *Image {
	return m.image
}

// FailNext makes the next operation of kind op complete with err.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults[op] = append(m.faults[op], err)
}

// Calls number of operations of kind op issued so far.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[op]
}

func (m *Memory) begin(op Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[op]++
	if q := m.faults[op]; len(q) > 0 {
		m.faults[op] = q[1:]
		return q[0]
	}
	return nil
}

func (m *Memory) async(op Op, f func(fault error)) {
	fault := m.begin(op)
	go func() {
		if m.latency > 0 {
			time.Sleep(m.latency)
		}
		f(fault)
	}()
}

func (m *Memory) ReadAll(fg, ext int, done func(Contents, error)) {
	m.async(OpRead, func(fault error) {
		if fault != nil {
			done(Contents{}, fault)
			return
		}
		c, err := m.image.Contents(fg)
		m.sugar.Debugw("read", "fg", fg, "ext", ext, "records", len(c.Records), "err", err)
		done(c, err)
	})
}

func (m *Memory) WriteAt(fg, ext, index int, rec record.Record, authCode string, done func(error)) {
	m.async(OpWrite, func(fault error) {
		if fault != nil {
			done(fault)
			return
		}
		err := m.image.Apply(fg, index, rec, nil, authCode)
		m.sugar.Debugw("write", "fg", fg, "ext", ext, "index", index, "err", err)
		done(err)
	})
}

func (m *Memory) WriteSlotTable(fg int, changes []record.SlotChange, authCode string, done func(error)) {
	m.async(OpSlotTable, func(fault error) {
		if fault != nil {
			done(fault)
			return
		}
		err := m.image.Apply(fg, 0, record.Record{}, changes, authCode)
		m.sugar.Debugw("slot table", "fg", fg, "changes", len(changes), "err", err)
		done(err)
	})
}

func (m *Memory) Capacity(fg int, done func(record.Capacity, error)) {
	m.async(OpCapacity, func(fault error) {
		if fault != nil {
			done(record.Capacity{}, fault)
			return
		}
		done(m.image.Capacity(fg))
	})
}
