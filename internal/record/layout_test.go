package record

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLayout_Global(t *testing.T) {
	l := Layout{Groups: []Group{{Size: 3}, {Size: 5}, {Size: 2}}}

	g, err := l.Global(1, 2)
	require.NoError(t, err)
	require.Equal(t, 5, g)

	g, err = l.Global(0, 1)
	require.NoError(t, err)
	require.Equal(t, 1, g)

	g, err = l.Global(2, 2)
	require.NoError(t, err)
	require.Equal(t, 10, g)
	require.Equal(t, 10, l.Total())

	_, err = l.Global(1, 6)
	require.ErrorIs(t, err, ErrOutOfLayout)
	_, err = l.Global(3, 1)
	require.ErrorIs(t, err, ErrOutOfLayout)
}

func TestLayout_Locate(t *testing.T) {
	l := Layout{Groups: []Group{{Size: 3}, {Size: 5}, {Size: 2}}}

	for group, size := range []int{3, 5, 2} {
		for local := 1; local <= size; local++ {
			global, err := l.Global(group, local)
			require.NoError(t, err)
			g, lo, err := l.Locate(global)
			require.NoError(t, err)
			require.Equal(t, group, g)
			require.Equal(t, local, lo)
		}
	}

	_, _, err := l.Locate(11)
	require.ErrorIs(t, err, ErrOutOfLayout)
	_, _, err = l.Locate(0)
	require.ErrorIs(t, err, ErrOutOfLayout)
}

func TestLayout_Validate(t *testing.T) {
	require.Error(t, Layout{}.Validate())
	require.Error(t, Layout{Groups: []Group{{Size: 0}}}.Validate())
	require.Error(t, Layout{Groups: []Group{{Size: 2, Columns: []ColumnSpec{
		{Column: ColumnEmail, Files: 1, Indirect: true, Slots: 0},
	}}}}.Validate())
	require.Error(t, Layout{Groups: []Group{{Size: 2, Columns: []ColumnSpec{
		{Column: ColumnEmail, Files: 1},
		{Column: ColumnEmail, Files: 1},
	}}}}.Validate())
	require.NoError(t, Layout{Groups: []Group{{Size: 2, Columns: []ColumnSpec{
		{Column: ColumnEmail, Files: 1, Indirect: true, Slots: 4},
		{Column: ColumnNumber, Files: 2},
	}}}}.Validate())
}

func TestLayout_YAML(t *testing.T) {
	src := `
groups:
  - size: 3
    columns:
      - column: email
        files: 2
        indirect: true
        slots: 10
      - column: anr
        files: 1
  - size: 5
    columns:
      - column: 1
        files: 1
`
	var l Layout
	require.NoError(t, yaml.Unmarshal([]byte(src), &l))
	require.NoError(t, l.Validate())
	require.Equal(t, 8, l.Total())
	require.Equal(t, ColumnSpec{Column: ColumnEmail, Files: 2, Indirect: true, Slots: 10}, l.Groups[0].Columns[0])
	require.Equal(t, ColumnNumber, l.Groups[0].Columns[1].Column)
	require.Equal(t, ColumnEmail, l.Groups[1].Columns[0].Column)

	out, err := yaml.Marshal(l)
	require.NoError(t, err)
	require.Contains(t, string(out), "column: email")

	require.Error(t, yaml.Unmarshal([]byte("groups: [{size: 1, columns: [{column: fax}]}]"), &l))
}
