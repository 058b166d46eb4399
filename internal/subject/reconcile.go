package subject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/S0me0neR0man/simbook/internal/record"
)

var ErrSlotPoolExhausted = errors.New("slot pool exhausted")

// columnPlan the outcome of one column of one record.
type columnPlan struct {
	column   record.Column
	slots    []int
	values   []string
	changes  []record.SlotChange
	failures []error
	pools    []*pool
}

// reconcileColumn moves one column of the record at (group, local) from
// before to after values. pools holds one pool per file for indirect columns
// and is mutated, so callers pass clones.
//
// Positions are independent: an exhausted pool fails its position and
// leaves it as it was, the other positions still apply.
func reconcileColumn(cs record.ColumnSpec, group, local int, pools []*pool, before, after []string, current []int) columnPlan {
	cp := columnPlan{
		column: cs.Column,
		slots:  make([]int, cs.Files),
		values: make([]string, cs.Files),
		pools:  pools,
	}

	for p := 0; p < cs.Files; p++ {
		o, n := record.ValueAt(before, p), record.ValueAt(after, p)
		cur := record.Free
		if p < len(current) {
			cur = current[p]
		}

		nt := strings.TrimSpace(n)
		if strings.TrimSpace(o) == nt {
			cp.slots[p], cp.values[p] = cur, o
			continue
		}

		if !cs.Indirect {
			cp.direct(group, local, p, n, nt)
			continue
		}

		pl := pools[p]
		chosen := record.Free
		if nt != "" {
			switch {
			case pl.find(nt) != record.Free:
				chosen = pl.find(nt)
			case cur != record.Free && pl.valid(cur) && pl.refs[cur-1] == 1:
				chosen = cur
			case pl.free() != record.Free:
				chosen = pl.free()
			default:
				cp.failures = append(cp.failures, fmt.Errorf("%w: group %d %s file %d",
					ErrSlotPoolExhausted, group, cs.Column, p+1))
				cp.slots[p], cp.values[p] = cur, o
				continue
			}
		}

		if cur != record.Free && chosen != cur && pl.release(cur) {
			cp.changes = append(cp.changes, record.SlotChange{
				Kind: record.ChangeValue, Group: group, Column: cs.Column, Position: p, Slot: cur,
			})
		}

		if chosen != record.Free {
			switch {
			case chosen == cur || pl.refs[chosen-1] == 0:
				pl.refs[chosen-1] = max(pl.refs[chosen-1], 1)
				pl.values[chosen-1] = n
				cp.changes = append(cp.changes, record.SlotChange{
					Kind: record.ChangeValue, Group: group, Column: cs.Column, Position: p, Slot: chosen, Value: n,
				})
			default:
				pl.refs[chosen-1]++
			}
		}

		if chosen != cur {
			cp.changes = append(cp.changes, record.SlotChange{
				Kind: record.ChangeIndex, Group: group, Record: local, Column: cs.Column, Position: p, Slot: chosen,
			})
		}

		cp.slots[p] = chosen
		if chosen != record.Free {
			cp.values[p] = n
		}
	}

	return cp
}

// direct columns live at the record's own local index.
func (cp *columnPlan) direct(group, local, p int, n, nt string) {
	change := record.SlotChange{
		Kind: record.ChangeValue, Group: group, Column: cp.column, Position: p, Slot: local,
	}
	if nt == "" {
		cp.slots[p] = record.Free
	} else {
		cp.slots[p], cp.values[p] = local, n
		change.Value = n
	}
	cp.changes = append(cp.changes, change)
}

// trimValues drops trailing empty values, nil when nothing is left.
func trimValues(values []string) []string {
	n := len(values)
	for n > 0 && strings.TrimSpace(values[n-1]) == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return append([]string(nil), values[:n]...)
}
