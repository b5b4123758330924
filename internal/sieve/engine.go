package sieve

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/csvsieve/internal/config"
	"github.com/roach88/csvsieve/internal/table"
)

// Source produces the finite, non-restartable record stream. The header
// is fixed for the whole stream; Next returns io.EOF when the stream is
// exhausted. Sources are read from exactly one goroutine.
type Source interface {
	Header() table.Header
	Next() (table.Row, error)
}

// Sink serializes one group's final record sequence. Write is called at
// most once per run per group, after the group's rows are final
// (post-sort where applicable). Distinct groups may be written
// concurrently, so a Sink shared between groups must be safe for that.
type Sink interface {
	Write(ctx context.Context, columns []string, rows []table.Row) error
}

// Options are the engine's tuning knobs, passed explicitly to New -
// never ambient state.
type Options struct {
	// NoSort disables sorting for every group, regardless of their
	// sort columns. Output then reflects original input order.
	NoSort bool

	// FilterParallelism is the filter worker pool size.
	// 0 means GOMAXPROCS; negative values are a configuration error.
	FilterParallelism int

	// SortParallelism bounds how many groups are sorted (and written)
	// concurrently, and with that the peak sort memory.
	// 0 means GOMAXPROCS; negative values are a configuration error.
	SortParallelism int

	// MaxRecordErrors is the malformed-row tolerance: rows with a wrong
	// field count are skipped and reported until this many have been
	// seen, then the run fails. 0 means unlimited (skip-and-report only).
	MaxRecordErrors int

	// BatchSize is the worker-local batch length flushed into the
	// shared accumulators. 0 means a sensible default.
	BatchSize int
}

// GroupStats summarizes one group's outcome.
type GroupStats struct {
	Output   string `json:"output"`
	Accepted int    `json:"accepted"`
	Sorted   bool   `json:"sorted"`
}

// Stats summarizes a completed run.
type Stats struct {
	RunToken        string        `json:"run_token"`
	RowsRead        int64         `json:"rows_read"`
	RowsSkipped     int64         `json:"rows_skipped"`
	FilterElapsed   time.Duration `json:"filter_elapsed_ns"`
	FinalizeElapsed time.Duration `json:"finalize_elapsed_ns"`
	Groups          []GroupStats  `json:"groups"`
}

// Engine is the filter-dispatch-and-sort engine for one run.
//
// Construction compiles and validates everything header-dependent;
// after New succeeds, Run can only fail on I/O, malformed-row
// tolerance, or internal invariant violations.
type Engine struct {
	specs    []*GroupSpec
	header   table.Header
	opts     Options
	runToken string
	log      *slog.Logger
}

// New compiles the configured groups against the input header and
// validates the options. All configuration errors surface here, before
// any processing begins.
//
// Each engine gets a run token (UUIDv7, time-sortable) attached to all
// of its log lines for correlation.
func New(groups []config.Group, hdr table.Header, opts Options) (*Engine, error) {
	if opts.FilterParallelism < 0 {
		return nil, &ConfigError{
			Code:    ErrCodeBadParallelism,
			Message: fmt.Sprintf("filter parallelism must not be negative, got %d", opts.FilterParallelism),
		}
	}
	if opts.SortParallelism < 0 {
		return nil, &ConfigError{
			Code:    ErrCodeBadParallelism,
			Message: fmt.Sprintf("sort parallelism must not be negative, got %d", opts.SortParallelism),
		}
	}
	if opts.FilterParallelism == 0 {
		opts.FilterParallelism = runtime.GOMAXPROCS(0)
	}
	if opts.SortParallelism == 0 {
		opts.SortParallelism = runtime.GOMAXPROCS(0)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	specs, err := Compile(groups, hdr)
	if err != nil {
		return nil, err
	}

	token := uuid.Must(uuid.NewV7()).String()
	return &Engine{
		specs:    specs,
		header:   hdr,
		opts:     opts,
		runToken: token,
		log:      slog.Default().With("run", token),
	}, nil
}

// Specs returns the compiled group specs in declaration order.
// Used for sink construction and introspection.
func (e *Engine) Specs() []*GroupSpec {
	return e.specs
}

// RunToken returns the engine's log correlation token.
func (e *Engine) RunToken() string {
	return e.runToken
}

// Run drives the full stream through both phases and returns run
// statistics.
//
// sinks maps group output names to their sinks; a group without a sink
// is a configuration error, reported before any row is read. A fatal
// error mid-run aborts the whole run - per-group sinks are only
// committed once their group's rows are final, so no group's output is
// left half-written.
func (e *Engine) Run(ctx context.Context, src Source, sinks map[string]Sink) (Stats, error) {
	for _, spec := range e.specs {
		if sinks[spec.Output()] == nil {
			return Stats{}, &ConfigError{
				Code:    ErrCodeMissingSink,
				Output:  spec.Output(),
				Message: "no sink supplied for group",
			}
		}
	}

	e.log.Info("filter stage starting",
		"groups", len(e.specs),
		"filter_parallelism", e.opts.FilterParallelism,
	)

	accs := make([]*accumulator, len(e.specs))
	for i := range accs {
		accs[i] = &accumulator{}
	}

	filterStart := time.Now()
	rowsRead, rowsSkipped, err := e.runFilter(ctx, src, accs)
	if err != nil {
		return Stats{}, err
	}
	filterElapsed := time.Since(filterStart)

	// Filter barrier passed: every worker is done, the buffers are
	// complete and exclusively owned from here on.
	for _, acc := range accs {
		acc.restoreInputOrder()
	}

	e.log.Info("filter stage complete",
		"rows", rowsRead,
		"skipped", rowsSkipped,
		"elapsed", filterElapsed,
	)
	e.log.Info("finalize stage starting",
		"sort_parallelism", e.opts.SortParallelism,
		"no_sort", e.opts.NoSort,
	)

	finalizeStart := time.Now()
	if err := e.runFinalize(ctx, accs, sinks); err != nil {
		return Stats{}, err
	}
	finalizeElapsed := time.Since(finalizeStart)

	e.log.Info("finalize stage complete", "elapsed", finalizeElapsed)

	stats := Stats{
		RunToken:        e.runToken,
		RowsRead:        rowsRead,
		RowsSkipped:     rowsSkipped,
		FilterElapsed:   filterElapsed,
		FinalizeElapsed: finalizeElapsed,
		Groups:          make([]GroupStats, len(e.specs)),
	}
	for i, spec := range e.specs {
		stats.Groups[i] = GroupStats{
			Output:   spec.Output(),
			Accepted: len(accs[i].rows),
			Sorted:   spec.Sorted() && !e.opts.NoSort,
		}
	}
	return stats, nil
}
