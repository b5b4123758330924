package sieve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/csvsieve/internal/table"
)

func rowsOf(rows []taggedRow) []table.Row {
	out := make([]table.Row, len(rows))
	for i, tr := range rows {
		out[i] = tr.row
	}
	return out
}

func TestSortRowsSingleKey(t *testing.T) {
	rows := []taggedRow{
		{seq: 1, row: table.Row{"c"}},
		{seq: 2, row: table.Row{"a"}},
		{seq: 3, row: table.Row{"b"}},
	}
	sortRows(rows, []int{0})

	assert.Equal(t, []table.Row{{"a"}, {"b"}, {"c"}}, rowsOf(rows))
}

func TestSortRowsMultiKeyPrecedence(t *testing.T) {
	rows := []taggedRow{
		{seq: 1, row: table.Row{"b", "1"}},
		{seq: 2, row: table.Row{"a", "2"}},
		{seq: 3, row: table.Row{"a", "1"}},
	}
	sortRows(rows, []int{0, 1})

	assert.Equal(t, []table.Row{{"a", "1"}, {"a", "2"}, {"b", "1"}}, rowsOf(rows))
}

func TestSortRowsStability(t *testing.T) {
	// Equal sort keys keep their relative order; the second column is a
	// hidden sequence marker not part of the key list.
	rows := []taggedRow{
		{seq: 1, row: table.Row{"k", "first"}},
		{seq: 2, row: table.Row{"a", "x"}},
		{seq: 3, row: table.Row{"k", "second"}},
		{seq: 4, row: table.Row{"k", "third"}},
	}
	sortRows(rows, []int{0})

	assert.Equal(t, []table.Row{
		{"a", "x"},
		{"k", "first"},
		{"k", "second"},
		{"k", "third"},
	}, rowsOf(rows))
}

func TestSortRowsByteWise(t *testing.T) {
	// Lexicographic, not numeric: "10" sorts before "9".
	rows := []taggedRow{
		{seq: 1, row: table.Row{"9"}},
		{seq: 2, row: table.Row{"10"}},
	}
	sortRows(rows, []int{0})

	assert.Equal(t, []table.Row{{"10"}, {"9"}}, rowsOf(rows))
}

func TestSortRowsNoKeysIsNoop(t *testing.T) {
	rows := []taggedRow{
		{seq: 1, row: table.Row{"b"}},
		{seq: 2, row: table.Row{"a"}},
	}
	sortRows(rows, nil)

	assert.Equal(t, []table.Row{{"b"}, {"a"}}, rowsOf(rows))
}

func TestAccumulatorRestoreInputOrder(t *testing.T) {
	acc := &accumulator{}
	acc.merge([]taggedRow{{seq: 5, row: table.Row{"e"}}, {seq: 2, row: table.Row{"b"}}})
	acc.merge([]taggedRow{{seq: 1, row: table.Row{"a"}}, {seq: 9, row: table.Row{"f"}}})
	acc.restoreInputOrder()

	assert.Equal(t, []table.Row{{"a"}, {"b"}, {"e"}, {"f"}}, rowsOf(acc.rows))
}
