package card

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/record"
)

type imageMeta struct {
	Size         int
	RecordLength int
	AuthCode     string
	Layout       *record.Layout
}

type storedRecord struct {
	Tag    string
	Number string
}

// Pebble a card image persisted in a pebble database. Slot-table changes
// and the primary record of one update commit in the same batch.
type Pebble struct {
	db    *pebble.DB
	sugar *zap.SugaredLogger
}

// OpenPebble opens (or creates) the card image in dir.
func OpenPebble(dir string, opts *pebble.Options, logger *zap.Logger) (*Pebble, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble.Open: %w", err)
	}
	return &Pebble{db: db, sugar: logger.Sugar()}, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Pebble) get(k imageKey, v any) (bool, error) {
	data, closer, err := p.db.Get(k[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err = gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", k, err)
	}
	return true, nil
}

func (p *Pebble) meta(fg int) (imageMeta, error) {
	var m imageMeta
	found, err := p.get(metaKey(fg), &m)
	if err != nil {
		return m, err
	}
	if !found {
		return m, fmt.Errorf("%w: %04X", ErrNoSuchFile, fg)
	}
	return m, nil
}

func (p *Pebble) format(fg int, m imageMeta) error {
	b := p.db.NewBatch()
	defer b.Close()

	data, err := encode(m)
	if err != nil {
		return err
	}
	k := metaKey(fg)
	if err = b.Set(k[:], data, nil); err != nil {
		return err
	}
	empty, err := encode(storedRecord{})
	if err != nil {
		return err
	}
	for i := 1; i <= m.Size; i++ {
		k := recordKey(fg, i)
		if err = b.Set(k[:], empty, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Formatted reports whether fg already exists in the database.
func (p *Pebble) Formatted(fg int) (bool, error) {
	_, err := p.meta(fg)
	if errors.Is(err, ErrNoSuchFile) {
		return false, nil
	}
	return err == nil, err
}

// Format creates a simple file group of size empty records.
func (p *Pebble) Format(fg, size, recordLength int) error {
	return p.format(fg, imageMeta{Size: size, RecordLength: recordLength})
}

// FormatExtended creates an extended file group.
func (p *Pebble) FormatExtended(fg int, layout record.Layout, recordLength int) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	return p.format(fg, imageMeta{Size: layout.Total(), RecordLength: recordLength, Layout: &layout})
}

// Protect makes writes to fg require authCode.
func (p *Pebble) Protect(fg int, authCode string) error {
	m, err := p.meta(fg)
	if err != nil {
		return err
	}
	m.AuthCode = authCode
	data, err := encode(m)
	if err != nil {
		return err
	}
	k := metaKey(fg)
	return p.db.Set(k[:], data, pebble.Sync)
}

// load rebuilds the in-memory form of fg.
func (p *Pebble) load(fg int) (*file, error) {
	m, err := p.meta(fg)
	if err != nil {
		return nil, err
	}

	f := newFile(m.Size, m.RecordLength, m.Layout)
	f.authCode = m.AuthCode
	for i := 1; i <= m.Size; i++ {
		var sr storedRecord
		if _, err = p.get(recordKey(fg, i), &sr); err != nil {
			return nil, err
		}
		f.records[i-1] = record.New(sr.Tag, sr.Number)
	}
	if m.Layout == nil {
		return f, nil
	}

	for i := 1; i <= m.Size; i++ {
		var row record.IndexRow
		found, err := p.get(indexKey(fg, i), &row)
		if err != nil {
			return nil, err
		}
		if found {
			f.index[i-1] = row
		}

		group, local, _ := m.Layout.Locate(i)
		for _, cs := range m.Layout.Groups[group].Columns {
			for pos := 0; pos < cs.Files; pos++ {
				slot := local
				if cs.Indirect {
					slot = f.index[i-1].SlotAt(cs.Column, pos)
				}
				if slot == record.Free {
					continue
				}
				sk := subjectKey{group, cs.Column, pos, slot}
				var value string
				if _, err = p.get(subjectValueKey(fg, sk), &value); err != nil {
					return nil, err
				}
				if value != "" {
					f.subjects[sk] = value
				}
			}
		}
	}
	return f, nil
}

// commit validates against the current image, then writes changes and,
// when index > 0, the record in one batch.
func (p *Pebble) commit(fg, index int, rec record.Record, changes []record.SlotChange, authCode string) error {
	f, err := p.load(fg)
	if err != nil {
		return err
	}
	if err = f.checkAuth(authCode); err != nil {
		return err
	}
	if index > 0 {
		if err = f.checkIndex(index); err != nil {
			return err
		}
	}
	if err = f.checkChanges(changes); err != nil {
		return err
	}
	f.applyChanges(changes)

	b := p.db.NewBatch()
	defer b.Close()

	for _, ch := range changes {
		switch ch.Kind {
		case record.ChangeIndex:
			global, _ := f.layout.Global(ch.Group, ch.Record)
			data, err := encode(f.index[global-1])
			if err != nil {
				return err
			}
			k := indexKey(fg, global)
			if err = b.Set(k[:], data, nil); err != nil {
				return err
			}
		case record.ChangeValue:
			k := subjectValueKey(fg, subjectKey{ch.Group, ch.Column, ch.Position, ch.Slot})
			if ch.Value == "" {
				err = b.Delete(k[:], nil)
			} else {
				var data []byte
				if data, err = encode(ch.Value); err == nil {
					err = b.Set(k[:], data, nil)
				}
			}
			if err != nil {
				return err
			}
		}
	}

	if index > 0 {
		data, err := encode(storedRecord{Tag: rec.Tag, Number: rec.Number})
		if err != nil {
			return err
		}
		k := recordKey(fg, index)
		if err = b.Set(k[:], data, nil); err != nil {
			return err
		}
	}

	p.sugar.Debugw("commit", "fg", fg, "index", index, "changes", len(changes), "batch", b.Count())
	return b.Commit(pebble.Sync)
}

func (p *Pebble) ReadAll(fg, ext int, done func(Contents, error)) {
	go func() {
		f, err := p.load(fg)
		if err != nil {
			done(Contents{}, err)
			return
		}
		done(f.contents(), nil)
	}()
}

func (p *Pebble) WriteAt(fg, ext, index int, rec record.Record, authCode string, done func(error)) {
	go func() {
		done(p.commit(fg, index, rec, nil, authCode))
	}()
}

func (p *Pebble) WriteSlotTable(fg int, changes []record.SlotChange, authCode string, done func(error)) {
	go func() {
		done(p.commit(fg, 0, record.Record{}, changes, authCode))
	}()
}

func (p *Pebble) WriteBatch(fg, ext, index int, rec record.Record, changes []record.SlotChange, authCode string, done func(error)) {
	go func() {
		done(p.commit(fg, index, rec, changes, authCode))
	}()
}

func (p *Pebble) Capacity(fg int, done func(record.Capacity, error)) {
	go func() {
		m, err := p.meta(fg)
		if err != nil {
			done(record.Capacity{}, err)
			return
		}
		done(record.Capacity{
			RecordLength: m.RecordLength,
			TotalLength:  m.RecordLength * m.Size,
			Records:      m.Size,
		}, nil)
	}()
}
