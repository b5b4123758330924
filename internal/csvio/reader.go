// Package csvio adapts encoding/csv to the engine's record stream
// contract: one fixed header row, then a lazy, finite, non-restartable
// sequence of rows.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/roach88/csvsieve/internal/table"
)

// Reader streams rows from one CSV file. The header is read eagerly at
// Open time; rows are read lazily by Next.
//
// Field-count checking is intentionally disabled on the underlying
// csv.Reader: the engine owns the malformed-row policy (skip, report,
// tolerance), so short and long rows must reach it instead of erroring
// here. Only real syntax errors (e.g. bare quotes) surface as errors,
// and those are fatal to the run.
type Reader struct {
	f   *os.File
	csv *csv.Reader
	hdr table.Header
}

// Open opens a CSV file and consumes its header row.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err == io.EOF {
		f.Close()
		return nil, fmt.Errorf("input file %s is empty", path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	return &Reader{
		f:   f,
		csv: cr,
		hdr: table.NewHeader(head),
	}, nil
}

// Header returns the input's fixed column ordering.
func (r *Reader) Header() table.Header {
	return r.hdr
}

// Next returns the next row, or io.EOF at end of input. The returned
// row is an independent copy; the csv.Reader's reused buffer never
// escapes.
func (r *Reader) Next() (table.Row, error) {
	rec, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("parse input row: %w", err)
	}
	return table.Row(rec).Clone(), nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
