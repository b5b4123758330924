// Package table holds the shared tabular data model: a Header mapping
// column names to positions, and Row, the positional string tuple every
// stage of the engine operates on.
//
// Values are always strings. Comparison semantics (byte-wise ordering,
// no coercion) live with the consumers, not here.
package table
