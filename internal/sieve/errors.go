package sieve

import "fmt"

// ErrorCode categorizes engine errors for CLI output and logs.
type ErrorCode string

const (
	// ErrCodeUnknownColumn indicates a constraint or sort key references
	// a column missing from the input header.
	ErrCodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// ErrCodeDuplicateColumn indicates a group references one column twice.
	ErrCodeDuplicateColumn ErrorCode = "DUPLICATE_COLUMN"

	// ErrCodeBadParallelism indicates a negative pool size was configured.
	ErrCodeBadParallelism ErrorCode = "BAD_PARALLELISM"

	// ErrCodeMissingSink indicates no sink was supplied for a group.
	ErrCodeMissingSink ErrorCode = "MISSING_SINK"

	// ErrCodeDuplicateTable indicates two groups' outputs resolve to the
	// same sink target, so one would silently replace the other.
	ErrCodeDuplicateTable ErrorCode = "DUPLICATE_TABLE"

	// ErrCodeTooManyBadRows indicates the malformed-row tolerance was
	// exceeded and the run was aborted.
	ErrCodeTooManyBadRows ErrorCode = "TOO_MANY_BAD_ROWS"
)

// ConfigError is a fatal configuration-level failure, detected and
// reported before any row is processed.
type ConfigError struct {
	Code    ErrorCode
	Output  string // affected group's output name, "" for run-level errors
	Column  string // affected column, when applicable
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Output != "" && e.Column != "":
		return fmt.Sprintf("%s: group %q: column %q: %s", e.Code, e.Output, e.Column, e.Message)
	case e.Output != "":
		return fmt.Sprintf("%s: group %q: %s", e.Code, e.Output, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// RecordError is the fatal form of the malformed-row policy: individual
// bad rows are skipped and reported, but once the configured tolerance
// is exceeded the whole run fails with this error.
type RecordError struct {
	Skipped int64 // malformed rows seen so far, including the fatal one
	Limit   int   // configured tolerance
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %d malformed rows exceed the tolerance of %d",
		ErrCodeTooManyBadRows, e.Skipped, e.Limit)
}

// InvariantError reports that validation and execution disagree: a
// compiled constraint or projection referenced a field position absent
// from a well-formed row. It indicates an internal consistency bug and
// is always fatal.
type InvariantError struct {
	Output  string
	Column  string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("INTERNAL_INVARIANT: group %q: column %q: %s", e.Output, e.Column, e.Message)
}
