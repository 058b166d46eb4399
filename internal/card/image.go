package card

import (
	"fmt"
	"sync"

	"github.com/S0me0neR0man/simbook/internal/record"
)

type subjectKey struct {
	group    int
	column   record.Column
	position int
	slot     int
}

// file one elementary file group as the medium holds it. Records keep
// tag and number only, subjects live in their own files.
type file struct {
	recordLength int
	authCode     string
	layout       *record.Layout
	records      []record.Record
	index        []record.IndexRow
	subjects     map[subjectKey]string
}

func newFile(size, recordLength int, layout *record.Layout) *file {
	f := &file{
		recordLength: recordLength,
		layout:       layout,
		records:      make([]record.Record, size),
		subjects:     make(map[subjectKey]string),
	}
	if layout != nil {
		f.index = make([]record.IndexRow, size)
	}
	return f
}

func (f *file) capacity() record.Capacity {
	return record.Capacity{
		RecordLength: f.recordLength,
		TotalLength:  f.recordLength * len(f.records),
		Records:      len(f.records),
	}
}

func (f *file) checkAuth(authCode string) error {
	if f.authCode != "" && f.authCode != authCode {
		return ErrSecurityStatus
	}
	return nil
}

func (f *file) checkIndex(index int) error {
	if index < 1 || index > len(f.records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfFile, index, len(f.records))
	}
	return nil
}

// contents resolves subjects through the index administration rows.
func (f *file) contents() Contents {
	out := Contents{Records: make([]record.Record, len(f.records))}
	for i, rec := range f.records {
		out.Records[i] = record.Record{Tag: rec.Tag, Number: rec.Number, Index: i + 1}
	}
	if f.layout == nil {
		return out
	}

	layout := *f.layout
	out.Layout = &layout
	out.Index = make([]record.IndexRow, len(f.index))
	for i := range f.records {
		out.Index[i] = f.index[i].Clone()
		group, local, err := layout.Locate(i + 1)
		if err != nil {
			continue
		}
		rec := out.Records[i]
		for _, cs := range layout.Groups[group].Columns {
			values := make([]string, cs.Files)
			for p := range values {
				slot := local
				if cs.Indirect {
					slot = f.index[i].SlotAt(cs.Column, p)
				}
				values[p] = f.subjects[subjectKey{group, cs.Column, p, slot}]
			}
			rec = rec.WithValues(cs.Column, trimValues(values))
		}
		out.Records[i] = rec
	}
	return out
}

func (f *file) writeRecord(index int, rec record.Record) error {
	if err := f.checkIndex(index); err != nil {
		return err
	}
	f.records[index-1] = record.Record{Tag: rec.Tag, Number: rec.Number}
	return nil
}

func (f *file) checkChanges(changes []record.SlotChange) error {
	if f.layout == nil {
		if len(changes) > 0 {
			return fmt.Errorf("%w: file has no slot table", ErrNoSuchFile)
		}
		return nil
	}
	for _, ch := range changes {
		if ch.Kind != record.ChangeIndex {
			continue
		}
		if _, err := f.layout.Global(ch.Group, ch.Record); err != nil {
			return err
		}
	}
	return nil
}

// applyChanges expects checkChanges to have passed.
func (f *file) applyChanges(changes []record.SlotChange) {
	for _, ch := range changes {
		switch ch.Kind {
		case record.ChangeIndex:
			global, _ := f.layout.Global(ch.Group, ch.Record)
			row := f.index[global-1]
			if row == nil {
				row = make(record.IndexRow)
				f.index[global-1] = row
			}
			if len(row[ch.Column]) <= ch.Position {
				grown := make([]int, ch.Position+1)
				for i := range grown {
					grown[i] = row.SlotAt(ch.Column, i)
				}
				row[ch.Column] = grown
			}
			row[ch.Column][ch.Position] = ch.Slot
		case record.ChangeValue:
			key := subjectKey{ch.Group, ch.Column, ch.Position, ch.Slot}
			if ch.Value == "" {
				delete(f.subjects, key)
			} else {
				f.subjects[key] = ch.Value
			}
		}
	}
}

// Image the in-memory model of a card.
type Image struct {
	mu    sync.Mutex
	files map[int]*file
}

// NewImage returns an unformatted card.
func NewImage() *Image {
	return &Image{files: make(map[int]*file)}
}

// Format creates a simple file group of size empty records.
func (im *Image) Format(fg, size, recordLength int) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.files[fg] = newFile(size, recordLength, nil)
}

// FormatExtended creates an extended file group with subject files.
func (im *Image) FormatExtended(fg int, layout record.Layout, recordLength int) error {
	if err := layout.Validate(); err != nil {
		return err
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.files[fg] = newFile(layout.Total(), recordLength, &layout)
	return nil
}

// Protect makes writes to fg require authCode.
func (im *Image) Protect(fg int, authCode string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	f, ok := im.files[fg]
	if !ok {
		return fmt.Errorf("%w: %04X", ErrNoSuchFile, fg)
	}
	f.authCode = authCode
	return nil
}

func (im *Image) file(fg int) (*file, error) {
	f, ok := im.files[fg]
	if !ok {
		return nil, fmt.Errorf("%w: %04X", ErrNoSuchFile, fg)
	}
	return f, nil
}

// Contents reads a whole file group.
func (im *Image) Contents(fg int) (Contents, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	f, err := im.file(fg)
	if err != nil {
		return Contents{}, err
	}
	return f.contents(), nil
}

// Capacity record geometry of fg.
func (im *Image) Capacity(fg int) (record.Capacity, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	f, err := im.file(fg)
	if err != nil {
		return record.Capacity{}, err
	}
	return f.capacity(), nil
}

// Apply writes slot-table changes and, when index > 0, the primary record.
// Nothing is written unless everything validates.
func (im *Image) Apply(fg, index int, rec record.Record, changes []record.SlotChange, authCode string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	f, err := im.file(fg)
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
	if index > 0 {
		return f.writeRecord(index, rec)
	}
	return nil
}

func trimValues(values []string) []string {
	n := len(values)
	for n > 0 && values[n-1] == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return values[:n]
}
