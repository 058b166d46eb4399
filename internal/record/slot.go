package record

// Free marks an unused slot and an index entry pointing nowhere.
const Free = -1

// ChangeKind kind of a slot-table mutation.
type ChangeKind int

const (
	// ChangeIndex points a record's column position at Slot (or Free).
	ChangeIndex ChangeKind = iota
	// ChangeValue stores Value in a subject file record, "" clears it.
	ChangeValue
)

// SlotChange one slot-table mutation. Record is the 1-based local index
// inside Group and is only meaningful for ChangeIndex.
type SlotChange struct {
	Kind     ChangeKind
	Group    int
	Record   int
	Column   Column
	Position int
	Slot     int
	Value    string
}

// IndexRow per column, per position: the slot a record points at.
type IndexRow map[Column][]int

// Clone deep copy.
func (r IndexRow) Clone() IndexRow {
	if r == nil {
		return nil
	}
	out := make(IndexRow, len(r))
	for c, slots := range r {
		out[c] = append([]int(nil), slots...)
	}
	return out
}

// SlotAt returns the slot of (c, position) or Free.
func (r IndexRow) SlotAt(c Column, position int) int {
	slots := r[c]
	if position < 0 || position >= len(slots) {
		return Free
	}
	return slots[position]
}
