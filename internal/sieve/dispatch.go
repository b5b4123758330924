package sieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/csvsieve/internal/table"
)

// channelCapacity bounds how many rows can be queued between the
// producer and the filter workers at a time. An unbounded queue would
// let a fast reader run memory consumption away from slow workers.
const channelCapacity = 1024

// defaultBatchSize is the worker-local batch length that triggers a
// merge into the shared per-group accumulator.
const defaultBatchSize = 256

// progressInterval is how many rows pass between filter progress logs.
const progressInterval = 100_000

// taggedRow pairs a row with its input sequence number. The tag travels
// with accepted projections so input order can be restored after the
// concurrent filter phase.
type taggedRow struct {
	seq int64
	row table.Row
}

// accumulator collects one group's accepted projections. Append-only
// during the filter phase (merge), then ownership passes to exactly one
// finalize task, which may reorder and read it freely.
type accumulator struct {
	mu   sync.Mutex
	rows []taggedRow
}

// merge appends a worker-local batch. The mutex is held only for the
// append; unrelated groups never contend.
func (a *accumulator) merge(batch []taggedRow) {
	if len(batch) == 0 {
		return
	}
	a.mu.Lock()
	a.rows = append(a.rows, batch...)
	a.mu.Unlock()
}

// restoreInputOrder reorders the buffer by input sequence number.
// Must only be called after the filter barrier, when no merges remain.
func (a *accumulator) restoreInputOrder() {
	sort.Slice(a.rows, func(i, j int) bool {
		return a.rows[i].seq < a.rows[j].seq
	})
}

// runFilter drives the whole record stream through every group spec
// using a bounded worker pool, and returns once the input is fully
// drained (the sort barrier).
//
// Returns rows read, malformed rows skipped, and the first fatal error.
func (e *Engine) runFilter(ctx context.Context, src Source, accs []*accumulator) (int64, int64, error) {
	var (
		rowsRead atomic.Int64
		skipped  atomic.Int64
	)
	want := e.header.Len()

	rows := make(chan taggedRow, channelCapacity)
	g, ctx := errgroup.WithContext(ctx)

	// Producer: reads the source sequentially (sources are not
	// restartable or concurrent) and tags rows with 1-based sequence
	// numbers. The header row is not part of the stream.
	g.Go(func() error {
		defer close(rows)
		var seq int64
		for {
			row, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			seq++
			select {
			case rows <- taggedRow{seq: seq, row: row}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	for w := 0; w < e.opts.FilterParallelism; w++ {
		g.Go(func() error {
			local := make([][]taggedRow, len(e.specs))
			flush := func(i int) {
				accs[i].merge(local[i])
				local[i] = nil
			}

			for tr := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}

				if len(tr.row) != want {
					n := skipped.Add(1)
					e.log.Warn("skipping malformed row",
						"row", tr.seq,
						"fields", len(tr.row),
						"expected", want,
					)
					if e.opts.MaxRecordErrors > 0 && n > int64(e.opts.MaxRecordErrors) {
						return &RecordError{Skipped: n, Limit: e.opts.MaxRecordErrors}
					}
					continue
				}

				for i, spec := range e.specs {
					out, ok, err := spec.Evaluate(tr.row)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					local[i] = append(local[i], taggedRow{seq: tr.seq, row: out})
					if len(local[i]) >= e.opts.BatchSize {
						flush(i)
					}
				}

				if n := rowsRead.Add(1); n%progressInterval == 0 {
					e.log.Debug("filter progress", "rows", n)
				}
			}

			for i := range local {
				flush(i)
			}
			return nil
		})
	}

	err := g.Wait()
	return rowsRead.Load() + skipped.Load(), skipped.Load(), err
}
