package config

// Constraint is one column-level rule within a group.
//
// Include controls projection only: an excluded column may still drive
// filtering. Values and Min/Max are both optional; a constraint with
// neither is a pure projection directive and filters nothing. Values and
// Min/Max are mutually exclusive on a single constraint.
//
// Min is the inclusive lower bound and Max the inclusive upper bound,
// compared byte-wise (not numerically, not locale-aware). Pointers
// distinguish an absent bound from an explicit empty string.
type Constraint struct {
	Column  string   `json:"column" yaml:"column"`
	Include bool     `json:"include" yaml:"include"`
	Values  []string `json:"values,omitempty" yaml:"values,omitempty"`
	Min     *string  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *string  `json:"max,omitempty" yaml:"max,omitempty"`
}

// Constrains reports whether the constraint filters records at all,
// as opposed to only steering projection.
func (c Constraint) Constrains() bool {
	return c.Values != nil || c.Min != nil || c.Max != nil
}

// Group is one output specification: which records it accepts, which
// columns it emits, where they go, and in what order.
type Group struct {
	Output      string       `json:"output" yaml:"output"`
	Filters     []Constraint `json:"filters" yaml:"filters"`
	SortColumns []string     `json:"sort_columns,omitempty" yaml:"sort_columns,omitempty"`
}

// OutputColumns returns the names of the included columns in declaration
// order. This is the projected header of the group's output.
func (g Group) OutputColumns() []string {
	var cols []string
	for _, f := range g.Filters {
		if f.Include {
			cols = append(cols, f.Column)
		}
	}
	return cols
}
