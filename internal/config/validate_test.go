package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func validGroup() Group {
	return Group{
		Output: "out.csv",
		Filters: []Constraint{
			{Column: "status", Include: true, Values: []string{"active"}},
			{Column: "date", Include: true},
		},
		SortColumns: []string{"date"},
	}
}

func TestValidateAcceptsWellFormedGroup(t *testing.T) {
	assert.Empty(t, Validate([]Group{validGroup()}))
}

func TestValidateEmptyConfig(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no groups")
}

func TestValidateNoIncludedColumns(t *testing.T) {
	g := Group{
		Output:  "out.csv",
		Filters: []Constraint{{Column: "status", Values: []string{"active"}}},
	}
	errs := Validate([]Group{g})
	require.Len(t, errs, 1)
	assert.Equal(t, "out.csv", errs[0].Output)
	assert.Contains(t, errs[0].Message, "does not include any output columns")
}

func TestValidateValuesAndRangeExclusive(t *testing.T) {
	g := validGroup()
	g.Filters[0].Min = strptr("a")

	errs := Validate([]Group{g})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "values and a range")
}

func TestValidateDuplicateColumnReference(t *testing.T) {
	g := validGroup()
	g.Filters = append(g.Filters, Constraint{Column: "status", Include: true})

	errs := Validate([]Group{g})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `"status" is referenced more than once`)
}

func TestValidateSortColumnMustBeIncluded(t *testing.T) {
	g := validGroup()
	g.SortColumns = []string{"internal_id"}

	errs := Validate([]Group{g})
	require.Len(t, errs, 1)
	assert.Equal(t, "sort_columns", errs[0].Field)
	assert.Contains(t, errs[0].Message, "not part of the group's output")
}

func TestValidateSortColumnExcludedFromOutput(t *testing.T) {
	// A column that only filters (include=false) cannot be a sort key.
	g := Group{
		Output: "out.csv",
		Filters: []Constraint{
			{Column: "status", Include: true},
			{Column: "date", Include: false, Min: strptr("2020-01-01")},
		},
		SortColumns: []string{"date"},
	}
	errs := Validate([]Group{g})
	require.Len(t, errs, 1)
	assert.Equal(t, "sort_columns", errs[0].Field)
}

func TestValidateDuplicateOutputs(t *testing.T) {
	a, b := validGroup(), validGroup()
	errs := Validate([]Group{a, b})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "more than one group")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	bad := Group{
		Output: "bad.csv",
		Filters: []Constraint{
			{Column: "a", Values: []string{"x"}, Max: strptr("z")},
			{Column: "a"},
		},
		SortColumns: []string{"b"},
	}
	errs := Validate([]Group{bad})
	// values+range, duplicate column, no included columns, bad sort column.
	assert.Len(t, errs, 4)
}
