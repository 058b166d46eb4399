package record

import (
	"errors"
	"fmt"
)

var ErrOutOfLayout = errors.New("index outside layout")

// ColumnSpec how one subject column is stored inside a group.
//
// Files is the number of subject files (positions) for the column.
// Indirect columns go through the index administration file and draw
// from a pool of Slots records per file; direct ones live at the
// record's own local index.
type ColumnSpec struct {
	Column   Column `yaml:"column"`
	Files    int    `yaml:"files"`
	Indirect bool   `yaml:"indirect"`
	Slots    int    `yaml:"slots"`
}

// Group one record sub-range of an extended file group.
type Group struct {
	Size    int          `yaml:"size"`
	Columns []ColumnSpec `yaml:"columns"`
}

// Column returns the spec of column c.
func (g Group) Column(c Column) (ColumnSpec, bool) {
	for _, cs := range g.Columns {
		if cs.Column == c {
			return cs, true
		}
	}
	return ColumnSpec{}, false
}

// HasIndirect reports whether the group needs an index administration file.
func (g Group) HasIndirect() bool {
	for _, cs := range g.Columns {
		if cs.Indirect {
			return true
		}
	}
	return false
}

// Layout ordered groups of an extended file group.
type Layout struct {
	Groups []Group `yaml:"groups"`
}

// Total number of records.
func (l Layout) Total() int {
	n := 0
	for _, g := range l.Groups {
		n += g.Size
	}
	return n
}

// Global maps (group, 1-based local index) to the 1-based global index.
func (l Layout) Global(group, local int) (int, error) {
	if group < 0 || group >= len(l.Groups) {
		return 0, fmt.Errorf("%w: group %d", ErrOutOfLayout, group)
	}
	if local < 1 || local > l.Groups[group].Size {
		return 0, fmt.Errorf("%w: group %d local %d", ErrOutOfLayout, group, local)
	}
	offset := 0
	for _, g := range l.Groups[:group] {
		offset += g.Size
	}
	return offset + local, nil
}

// Locate is the inverse of Global.
func (l Layout) Locate(global int) (group, local int, err error) {
	if global < 1 {
		return 0, 0, fmt.Errorf("%w: global %d", ErrOutOfLayout, global)
	}
	rest := global
	for i, g := range l.Groups {
		if rest <= g.Size {
			return i, rest, nil
		}
		rest -= g.Size
	}
	return 0, 0, fmt.Errorf("%w: global %d", ErrOutOfLayout, global)
}

// Validate checks sizes and column specs.
func (l Layout) Validate() error {
	if len(l.Groups) == 0 {
		return errors.New("layout has no groups")
	}
	for i, g := range l.Groups {
		if g.Size <= 0 {
			return fmt.Errorf("group %d: size must be > 0", i)
		}
		seen := make(map[Column]bool)
		for _, cs := range g.Columns {
			if seen[cs.Column] {
				return fmt.Errorf("group %d: column %s repeated", i, cs.Column)
			}
			seen[cs.Column] = true
			if cs.Files <= 0 {
				return fmt.Errorf("group %d column %s: files must be > 0", i, cs.Column)
			}
			if cs.Indirect && (cs.Slots <= 0 || cs.Slots >= 0xFF) {
				return fmt.Errorf("group %d column %s: slots must be in [1 ... 254]", i, cs.Column)
			}
		}
	}
	return nil
}

// Capacity the record geometry of a file group.
type Capacity struct {
	RecordLength int
	TotalLength  int
	Records      int
}
