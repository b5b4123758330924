package sieve

import (
	"github.com/roach88/csvsieve/internal/config"
	"github.com/roach88/csvsieve/internal/table"
)

// constraint is one compiled column rule: the column name resolved to
// its header position, plus the filtering predicate (if any).
type constraint struct {
	column  string
	index   int
	include bool
	values  map[string]struct{} // nil means no membership constraint
	min     *string             // inclusive lower bound, nil when unbounded
	max     *string             // inclusive upper bound, nil when unbounded
}

// constrains reports whether this constraint filters rows at all.
func (c *constraint) constrains() bool {
	return c.values != nil || c.min != nil || c.max != nil
}

// GroupSpec is one group's rules compiled against a concrete input
// header. Column names are resolved to positions exactly once, here;
// the hot path never touches a map keyed by name.
//
// A GroupSpec is immutable after Compile and safe for unsynchronized
// concurrent reads from any number of filter workers.
type GroupSpec struct {
	output     string
	filters    []constraint // only constraints that actually filter
	outIndexes []int        // header positions of included columns, declaration order
	outNames   []string     // projected header, declaration order
	sortKeys   []int        // positions within the projected row
	sortNames  []string
}

// Compile resolves a validated configuration against the input header.
//
// Every referenced column (constraint or sort key) must exist in the
// header; a duplicate column reference within a group is rejected here
// as well, independent of config-level validation. All violations are
// ConfigError values, returned before any row is processed.
func Compile(groups []config.Group, hdr table.Header) ([]*GroupSpec, error) {
	specs := make([]*GroupSpec, 0, len(groups))

	for _, g := range groups {
		spec, err := compileGroup(g, hdr)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

func compileGroup(g config.Group, hdr table.Header) (*GroupSpec, error) {
	spec := &GroupSpec{output: g.Output}

	seen := make(map[string]bool, len(g.Filters))
	// Positions of included columns within the projected row, for
	// resolving sort keys below.
	projected := make(map[string]int)

	for _, f := range g.Filters {
		if seen[f.Column] {
			return nil, &ConfigError{
				Code:    ErrCodeDuplicateColumn,
				Output:  g.Output,
				Column:  f.Column,
				Message: "column is referenced more than once",
			}
		}
		seen[f.Column] = true

		idx, ok := hdr.Index(f.Column)
		if !ok {
			return nil, &ConfigError{
				Code:    ErrCodeUnknownColumn,
				Output:  g.Output,
				Column:  f.Column,
				Message: "column does not exist in the input header",
			}
		}

		c := constraint{
			column:  f.Column,
			index:   idx,
			include: f.Include,
			min:     f.Min,
			max:     f.Max,
		}
		if f.Values != nil {
			// An explicit empty list is kept as an empty set: it
			// rejects every row, which is what the config said.
			c.values = make(map[string]struct{}, len(f.Values))
			for _, v := range f.Values {
				c.values[v] = struct{}{}
			}
		}

		if c.constrains() {
			spec.filters = append(spec.filters, c)
		}
		if c.include {
			projected[f.Column] = len(spec.outIndexes)
			spec.outIndexes = append(spec.outIndexes, idx)
			spec.outNames = append(spec.outNames, f.Column)
		}
	}

	for _, sc := range g.SortColumns {
		if _, ok := hdr.Index(sc); !ok {
			return nil, &ConfigError{
				Code:    ErrCodeUnknownColumn,
				Output:  g.Output,
				Column:  sc,
				Message: "sort column does not exist in the input header",
			}
		}
		pos, ok := projected[sc]
		if !ok {
			return nil, &ConfigError{
				Code:    ErrCodeUnknownColumn,
				Output:  g.Output,
				Column:  sc,
				Message: "sort column is not part of the group's output",
			}
		}
		spec.sortKeys = append(spec.sortKeys, pos)
		spec.sortNames = append(spec.sortNames, sc)
	}

	return spec, nil
}

// Evaluate applies the group's filtering constraints to one row.
//
// The first failing constraint rejects the row (short-circuit; rejection
// carries no partial state, so the order is not observable). If every
// constraint passes, the projected row is built from the included
// columns in declaration order.
//
// A row shorter than a resolved position is an InvariantError: the
// dispatcher only hands over rows whose length matches the header, so
// hitting this means validation and execution data disagree.
func (g *GroupSpec) Evaluate(row table.Row) (table.Row, bool, error) {
	for i := range g.filters {
		c := &g.filters[i]
		if c.index >= len(row) {
			return nil, false, &InvariantError{
				Output:  g.output,
				Column:  c.column,
				Message: "constraint position exceeds row length",
			}
		}
		v := row[c.index]

		if c.values != nil {
			if _, ok := c.values[v]; !ok {
				return nil, false, nil
			}
		}
		if c.min != nil && v < *c.min {
			return nil, false, nil
		}
		if c.max != nil && v > *c.max {
			return nil, false, nil
		}
	}

	out := make(table.Row, len(g.outIndexes))
	for i, idx := range g.outIndexes {
		if idx >= len(row) {
			return nil, false, &InvariantError{
				Output:  g.output,
				Column:  g.outNames[i],
				Message: "projection position exceeds row length",
			}
		}
		out[i] = row[idx]
	}
	return out, true, nil
}

// Output returns the group's output target name.
func (g *GroupSpec) Output() string {
	return g.output
}

// OutputColumns returns the projected header in declaration order.
// The returned slice must not be mutated.
func (g *GroupSpec) OutputColumns() []string {
	return g.outNames
}

// SortColumns returns the group's sort keys in precedence order.
func (g *GroupSpec) SortColumns() []string {
	return g.sortNames
}

// Sorted reports whether the group requests sorting.
func (g *GroupSpec) Sorted() bool {
	return len(g.sortKeys) > 0
}
