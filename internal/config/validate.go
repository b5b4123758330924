package config

import "fmt"

// ValidationError describes one structural rule violation, tied to the
// group (by output name) where it was found.
type ValidationError struct {
	Output  string // output name of the offending group, "" for file-level rules
	Field   string // the field the rule applies to
	Message string
}

func (e ValidationError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("group %q: %s: %s", e.Output, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate runs the structural rules that the CUE schema cannot express:
//
//   - at least one group is defined
//   - output names are unique across groups
//   - every group includes at least one output column
//   - a column is referenced at most once per group
//   - a constraint does not combine values with min/max
//   - sort columns are included output columns of the same group
//
// All violations are collected so a broken file is reported in one pass.
func Validate(groups []Group) []ValidationError {
	var errs []ValidationError

	if len(groups) == 0 {
		errs = append(errs, ValidationError{
			Field:   "groups",
			Message: "configuration defines no groups",
		})
		return errs
	}

	seenOutputs := make(map[string]bool, len(groups))
	for _, g := range groups {
		if seenOutputs[g.Output] {
			errs = append(errs, ValidationError{
				Output:  g.Output,
				Field:   "output",
				Message: "output is used by more than one group",
			})
		}
		seenOutputs[g.Output] = true

		errs = append(errs, validateGroup(g)...)
	}

	return errs
}

func validateGroup(g Group) []ValidationError {
	var errs []ValidationError

	included := make(map[string]bool)
	seenColumns := make(map[string]bool, len(g.Filters))

	for _, f := range g.Filters {
		if seenColumns[f.Column] {
			errs = append(errs, ValidationError{
				Output:  g.Output,
				Field:   "filters",
				Message: fmt.Sprintf("column %q is referenced more than once", f.Column),
			})
		}
		seenColumns[f.Column] = true

		if f.Values != nil && (f.Min != nil || f.Max != nil) {
			errs = append(errs, ValidationError{
				Output:  g.Output,
				Field:   "filters",
				Message: fmt.Sprintf("column %q defines values and a range (min/max)", f.Column),
			})
		}

		if f.Include {
			included[f.Column] = true
		}
	}

	if len(included) == 0 {
		errs = append(errs, ValidationError{
			Output:  g.Output,
			Field:   "filters",
			Message: "group does not include any output columns",
		})
	}

	for _, sc := range g.SortColumns {
		if !included[sc] {
			errs = append(errs, ValidationError{
				Output:  g.Output,
				Field:   "sort_columns",
				Message: fmt.Sprintf("sort column %q is not part of the group's output", sc),
			})
		}
	}

	return errs
}
