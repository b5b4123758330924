package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/csvsieve/internal/table"
)

// cancelCheckInterval is how many rows are written between context
// cancellation checks.
const cancelCheckInterval = 4096

// CSV writes one group's output as a CSV file: header first, then rows.
//
// The file materializes atomically: content goes to a temp file in the
// target directory, which is renamed over the final path only after a
// successful flush. On any error the temp file is removed and the final
// path is left untouched.
type CSV struct {
	path string
}

// NewCSV creates a sink that writes to the given path, creating parent
// directories as needed.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Path returns the sink's target path.
func (s *CSV) Path() string {
	return s.path
}

// Write serializes the group. Implements the engine's Sink contract.
func (s *CSV) Write(ctx context.Context, columns []string, rows []table.Row) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header to %s: %w", s.path, err)
	}
	for i, row := range rows {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row to %s: %w", s.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("finalize %s: %w", s.path, err)
	}
	return nil
}
