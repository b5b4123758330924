// Package config loads and validates csvsieve group configuration files.
//
// A configuration file is a JSON or YAML document holding a list of
// groups. Each group names an output target, a list of per-column
// constraints (filtering plus projection), and an optional ordered list
// of sort columns.
//
// Validation happens in two layers:
//
//  1. Schema validation: the decoded document is unified with an
//     embedded CUE schema, which rejects wrong types, missing required
//     fields, and unknown fields with positioned messages.
//  2. Structural validation: cross-field rules that CUE cannot express
//     cleanly (unique outputs, duplicate column references, values vs.
//     range exclusivity, sort columns being part of the projection).
//
// Header-dependent validation (does a referenced column exist in the
// input file) is deferred to engine setup, since the header is only
// known once the input is opened.
package config
