package sieve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/csvsieve/internal/table"
)

// runFinalize sorts (where requested) and writes every group's result
// set. Each group is one task on a bounded pool of size
// SortParallelism; since a task holds its whole group in memory while
// sorting, the pool size is the peak-memory knob.
//
// Admission is first-ready, first-served. The first group failure
// cancels the remaining tasks so the run aborts instead of committing
// further outputs behind an error; groups already committed keep their
// output, since each sink write is all-or-nothing.
func (e *Engine) runFinalize(ctx context.Context, accs []*accumulator, sinks map[string]Sink) error {
	pool, err := ants.NewPool(e.opts.SortParallelism)
	if err != nil {
		return fmt.Errorf("create sort pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, len(e.specs))

	for i, spec := range e.specs {
		acc := accs[i]
		sink := sinks[spec.Output()]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if errs[i] = e.finalizeGroup(ctx, spec, acc, sink); errs[i] != nil {
				cancel()
			}
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("schedule group %q: %w", spec.Output(), submitErr)
			cancel()
		}
	}
	wg.Wait()

	// Report the causing failure, not the cancellations it triggered in
	// the tasks behind it.
	var ctxErr error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			if ctxErr == nil {
				ctxErr = err
			}
		default:
			return err
		}
	}
	return ctxErr
}

// finalizeGroup owns one group's buffer exclusively: the filter barrier
// has passed, so no merges can race with the sort.
func (e *Engine) finalizeGroup(ctx context.Context, spec *GroupSpec, acc *accumulator, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if spec.Sorted() && !e.opts.NoSort {
		e.log.Debug("sorting group",
			"output", spec.Output(),
			"rows", len(acc.rows),
			"keys", spec.SortColumns(),
		)
		sortRows(acc.rows, spec.sortKeys)
	}

	out := make([]table.Row, len(acc.rows))
	for i := range acc.rows {
		out[i] = acc.rows[i].row
	}

	if err := sink.Write(ctx, spec.OutputColumns(), out); err != nil {
		return fmt.Errorf("write group %q: %w", spec.Output(), err)
	}

	e.log.Info("group written",
		"output", spec.Output(),
		"rows", len(out),
		"sorted", spec.Sorted() && !e.opts.NoSort,
	)
	return nil
}
