package subject

import (
	"strings"

	"github.com/S0me0neR0man/simbook/internal/record"
)

// pool the slots of one subject file. Slot numbers are 1-based.
type pool struct {
	refs   []int
	values []string
}

func newPool(n int) *pool {
	return &pool{refs: make([]int, n), values: make([]string, n)}
}

func (p *pool) clone() *pool {
	return &pool{
		refs:   append([]int(nil), p.refs...),
		values: append([]string(nil), p.values...),
	}
}

func (p *pool) valid(slot int) bool {
	return slot >= 1 && slot <= len(p.refs)
}

// find returns a referenced slot holding value, or record.Free.
func (p *pool) find(value string) int {
	for i, v := range p.values {
		if p.refs[i] > 0 && strings.TrimSpace(v) == value {
			return i + 1
		}
	}
	return record.Free
}

// free returns the first unreferenced slot, or record.Free.
func (p *pool) free() int {
	for i, r := range p.refs {
		if r == 0 {
			return i + 1
		}
	}
	return record.Free
}

func (p *pool) available() int {
	n := 0
	for _, r := range p.refs {
		if r == 0 {
			n++
		}
	}
	return n
}

// release drops one reference and reports whether the slot became free.
func (p *pool) release(slot int) bool {
	if !p.valid(slot) || p.refs[slot-1] == 0 {
		return false
	}
	p.refs[slot-1]--
	if p.refs[slot-1] > 0 {
		return false
	}
	p.values[slot-1] = ""
	return true
}
