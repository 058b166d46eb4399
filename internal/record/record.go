// Package record holds the phonebook data model shared by the cache, the subject manager and the card media.
package record

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column identifies a secondary attribute (subject) kind.
type Column int

const (
	ColumnNumber Column = iota // additional numbers (ANR)
	ColumnEmail
)

func (c Column) String() string {
	switch c {
	case ColumnNumber:
		return "anr"
	case ColumnEmail:
		return "email"
	default:
		return fmt.Sprintf("column(%d)", int(c))
	}
}

// MarshalYAML writes the column by name.
func (c Column) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML accepts "anr", "email" or the number.
func (c *Column) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "anr", "number":
		*c = ColumnNumber
		return nil
	case "email":
		*c = ColumnEmail
		return nil
	}
	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("column %q: %w", value.Value, err)
	}
	*c = Column(n)
	return nil
}

// Record one phonebook entry.
//
// Index is the 1-based position inside its file group and takes no part in equality.
type Record struct {
	Tag     string
	Number  string
	Emails  []string
	Numbers []string
	Index   int
}

// New returns a simple tag+number record.
func New(tag, number string) Record {
	return Record{Tag: tag, Number: number}
}

// ParseNumbers splits the ';'-joined additional numbers form.
func ParseNumbers(anr string) []string {
	if anr == "" {
		return nil
	}
	return strings.Split(anr, ";")
}

// Values returns the values of column c (nil when absent).
func (r Record) Values(c Column) []string {
	switch c {
	case ColumnNumber:
		return r.Numbers
	case ColumnEmail:
		return r.Emails
	}
	return nil
}

// WithValues returns a copy of r with column c replaced.
func (r Record) WithValues(c Column, values []string) Record {
	out := r.Clone()
	switch c {
	case ColumnNumber:
		out.Numbers = values
	case ColumnEmail:
		out.Emails = values
	}
	return out
}

// IsEmpty reports whether r is a free position.
func (r Record) IsEmpty() bool {
	return isBlank([]string{r.Tag, r.Number}) && isBlank(r.Emails) && isBlank(r.Numbers)
}

// Equal structural equality on trimmed values, nil and empty lists are the
// same.
func (r Record) Equal(o Record) bool {
	return strings.TrimSpace(r.Tag) == strings.TrimSpace(o.Tag) &&
		strings.TrimSpace(r.Number) == strings.TrimSpace(o.Number) &&
		equalValues(r.Emails, o.Emails) &&
		equalValues(r.Numbers, o.Numbers)
}

// Clone deep copy.
func (r Record) Clone() Record {
	out := r
	if r.Emails != nil {
		out.Emails = append([]string(nil), r.Emails...)
	}
	if r.Numbers != nil {
		out.Numbers = append([]string(nil), r.Numbers...)
	}
	return out
}

func (r Record) String() string {
	return fmt.Sprintf("'%s' '%s' emails=%v anr=%v #%d", r.Tag, r.Number, r.Emails, r.Numbers, r.Index)
}

// CloneAll deep copies a record list.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// equalValues compares trimmed values, trailing empty values are ignored.
func equalValues(a, b []string) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if strings.TrimSpace(ValueAt(a, i)) != strings.TrimSpace(ValueAt(b, i)) {
			return false
		}
	}
	return true
}

// ValueAt returns values[i] or "" when out of range.
func ValueAt(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
