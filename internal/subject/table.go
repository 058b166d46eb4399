// Package subject keeps the secondary attribute slots of an extended file
// group consistent with its primary records.
package subject

import (
	"errors"
	"fmt"

	"github.com/S0me0neR0man/simbook/internal/record"
)

type poolKey struct {
	group    int
	column   record.Column
	position int
}

// Table the slot table of one extended file group.
//
// IMPORTANT: does not provide thread safety, the cache loop owns it
type Table struct {
	layout record.Layout
	pools  map[poolKey]*pool
	rows   []record.IndexRow
}

// New builds the table from a loaded file group. index is aligned with
// records and may be nil when the medium has no index administration file.
func New(layout record.Layout, records []record.Record, index []record.IndexRow) (*Table, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(records) != layout.Total() {
		return nil, fmt.Errorf("layout holds %d records, got %d", layout.Total(), len(records))
	}

	t := &Table{
		layout: layout,
		pools:  make(map[poolKey]*pool),
		rows:   make([]record.IndexRow, len(records)),
	}
	for gi, g := range layout.Groups {
		for _, cs := range g.Columns {
			if !cs.Indirect {
				continue
			}
			for p := 0; p < cs.Files; p++ {
				t.pools[poolKey{gi, cs.Column, p}] = newPool(cs.Slots)
			}
		}
	}

	for i, rec := range records {
		gi, local, _ := layout.Locate(i + 1)
		var src record.IndexRow
		if i < len(index) {
			src = index[i]
		}
		row := make(record.IndexRow)
		for _, cs := range layout.Groups[gi].Columns {
			slots := make([]int, cs.Files)
			values := rec.Values(cs.Column)
			for p := range slots {
				slots[p] = record.Free
				if !cs.Indirect {
					if record.ValueAt(values, p) != "" {
						slots[p] = local
					}
					continue
				}
				slot := src.SlotAt(cs.Column, p)
				if slot == record.Free {
					continue
				}
				pl := t.pools[poolKey{gi, cs.Column, p}]
				if !pl.valid(slot) {
					return nil, fmt.Errorf("record %d %s file %d: slot %d outside pool of %d",
						i+1, cs.Column, p+1, slot, len(pl.refs))
				}
				pl.refs[slot-1]++
				if pl.values[slot-1] == "" {
					pl.values[slot-1] = record.ValueAt(values, p)
				}
				slots[p] = slot
			}
			row[cs.Column] = slots
		}
		t.rows[i] = row
	}

	return t, nil
}

// Plan the subject changes of one record update, computed without
// touching the table.
type Plan struct {
	Group  int
	Local  int
	Global int
	// Record is what the medium holds once Changes are applied: the new
	// record with failed positions kept at their old values.
	Record  record.Record
	Changes []record.SlotChange
	// Err joins the per-position failures, nil when every position applied.
	Err error

	columns []columnPlan
}

// Plan reconciles every subject column of the record at global index.
func (t *Table) Plan(global int, before, after record.Record) (*Plan, error) {
	gi, local, err := t.layout.Locate(global)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Group: gi, Local: local, Global: global, Record: after.Clone()}
	plan.Record.Index = global
	// columns the group does not store cannot survive the write
	plan.Record.Emails, plan.Record.Numbers = nil, nil

	var failures []error
	current := t.rows[global-1]
	for _, cs := range t.layout.Groups[gi].Columns {
		var pools []*pool
		if cs.Indirect {
			pools = make([]*pool, cs.Files)
			for p := range pools {
				pools[p] = t.pools[poolKey{gi, cs.Column, p}].clone()
			}
		}
		cp := reconcileColumn(cs, gi, local, pools, before.Values(cs.Column), after.Values(cs.Column), current[cs.Column])
		plan.columns = append(plan.columns, cp)
		plan.Changes = append(plan.Changes, cp.changes...)
		failures = append(failures, cp.failures...)
		plan.Record = plan.Record.WithValues(cs.Column, trimValues(cp.values))
	}
	plan.Err = errors.Join(failures...)

	return plan, nil
}

// Commit applies a plan once the medium accepted its changes.
func (t *Table) Commit(plan *Plan) {
	row := t.rows[plan.Global-1]
	for _, cp := range plan.columns {
		for p, pl := range cp.pools {
			t.pools[poolKey{plan.Group, cp.column, p}] = pl
		}
		row[cp.column] = cp.slots
	}
}

// Layout of the file group.
func (t *Table) Layout() record.Layout {
	return t.layout
}

// Slot returns the value and reference count of a slot, refs 0 means free.
func (t *Table) Slot(group int, c record.Column, position, slot int) (string, int) {
	pl, ok := t.pools[poolKey{group, c, position}]
	if !ok || !pl.valid(slot) {
		return "", 0
	}
	return pl.values[slot-1], pl.refs[slot-1]
}

// Available number of free slots of one subject file.
func (t *Table) Available(group int, c record.Column, position int) int {
	pl, ok := t.pools[poolKey{group, c, position}]
	if !ok {
		return 0
	}
	return pl.available()
}

// Assignment copy of the index row of the record at global index.
func (t *Table) Assignment(global int) record.IndexRow {
	if global < 1 || global > len(t.rows) {
		return nil
	}
	return t.rows[global-1].Clone()
}
