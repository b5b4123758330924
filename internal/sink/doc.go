// Package sink provides output sinks for finalized group record sets.
//
// A sink receives one group's projected header and its final row
// sequence exactly once, after filtering and (where requested) sorting
// are complete. Two implementations exist:
//
//   - CSV: one file per group, written to a temp file and renamed into
//     place so a failed run never leaves a half-written output.
//   - SQLite: one table per group in a shared database file, written in
//     a single transaction for the same all-or-nothing property.
package sink
