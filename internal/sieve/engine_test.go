package sieve

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csvsieve/internal/config"
	"github.com/roach88/csvsieve/internal/table"
)

// sliceSource serves a fixed set of rows, like a Source backed by an
// already-read file.
type sliceSource struct {
	hdr  table.Header
	rows []table.Row
	pos  int
}

func (s *sliceSource) Header() table.Header { return s.hdr }

func (s *sliceSource) Next() (table.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// memSink records what was written to it. Safe for concurrent use, even
// though the engine writes each sink at most once.
type memSink struct {
	mu      sync.Mutex
	columns []string
	rows    []table.Row
	writes  int
}

func (m *memSink) Write(_ context.Context, columns []string, rows []table.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.columns = columns
	m.rows = rows
	m.writes++
	return nil
}

type failSink struct{}

func (failSink) Write(context.Context, []string, []table.Row) error {
	return fmt.Errorf("sink is broken")
}

func exampleGroups() []config.Group {
	return []config.Group{{
		Output: "active.csv",
		Filters: []config.Constraint{
			{Column: "status", Include: true, Values: []string{"active"}},
			{Column: "date", Include: true},
		},
		SortColumns: []string{"date"},
	}}
}

func exampleRows() []table.Row {
	return []table.Row{
		{"1", "active", "2020-02-01"},
		{"2", "inactive", "2020-01-01"},
		{"3", "active", "2020-01-01"},
	}
}

func runEngine(t *testing.T, groups []config.Group, rows []table.Row, opts Options) (map[string]*memSink, Stats) {
	t.Helper()

	hdr := testHeader()
	eng, err := New(groups, hdr, opts)
	require.NoError(t, err)

	sinks := make(map[string]Sink, len(groups))
	mems := make(map[string]*memSink, len(groups))
	for _, g := range groups {
		m := &memSink{}
		mems[g.Output] = m
		sinks[g.Output] = m
	}

	stats, err := eng.Run(context.Background(), &sliceSource{hdr: hdr, rows: rows}, sinks)
	require.NoError(t, err)
	return mems, stats
}

func TestRunFilterProjectSort(t *testing.T) {
	mems, stats := runEngine(t, exampleGroups(), exampleRows(), Options{})

	m := mems["active.csv"]
	assert.Equal(t, []string{"status", "date"}, m.columns)
	assert.Equal(t, []table.Row{
		{"active", "2020-01-01"},
		{"active", "2020-02-01"},
	}, m.rows)
	assert.Equal(t, 1, m.writes)

	assert.Equal(t, int64(3), stats.RowsRead)
	assert.Equal(t, int64(0), stats.RowsSkipped)
	require.Len(t, stats.Groups, 1)
	assert.Equal(t, 2, stats.Groups[0].Accepted)
	assert.True(t, stats.Groups[0].Sorted)
	assert.NotEmpty(t, stats.RunToken)
}

func TestRunNoSortPreservesInputOrder(t *testing.T) {
	opts := Options{NoSort: true, FilterParallelism: 4}
	mems, stats := runEngine(t, exampleGroups(), exampleRows(), opts)

	m := mems["active.csv"]
	assert.Equal(t, []table.Row{
		{"active", "2020-02-01"},
		{"active", "2020-01-01"},
	}, m.rows, "global no-sort keeps input order despite sort_columns")
	assert.False(t, stats.Groups[0].Sorted)
}

func TestRunUnsortedGroupKeepsInputOrderUnderParallelism(t *testing.T) {
	groups := []config.Group{{
		Output:  "all.csv",
		Filters: []config.Constraint{{Column: "id", Include: true}},
	}}

	var rows []table.Row
	for i := 0; i < 5000; i++ {
		rows = append(rows, table.Row{fmt.Sprintf("%06d", i), "s", "d"})
	}

	mems, _ := runEngine(t, groups, rows, Options{FilterParallelism: 8, BatchSize: 7})

	m := mems["all.csv"]
	require.Len(t, m.rows, 5000)
	for i, row := range m.rows {
		require.Equal(t, fmt.Sprintf("%06d", i), row[0], "row %d out of order", i)
	}
}

func TestRunParallelismDoesNotChangeResults(t *testing.T) {
	var rows []table.Row
	for i := 0; i < 2000; i++ {
		status := "inactive"
		if i%3 == 0 {
			status = "active"
		}
		rows = append(rows, table.Row{fmt.Sprintf("%05d", i), status, fmt.Sprintf("2020-%02d-01", i%12+1)})
	}

	serial, _ := runEngine(t, exampleGroups(), rows, Options{FilterParallelism: 1, SortParallelism: 1})
	parallel, _ := runEngine(t, exampleGroups(), rows, Options{FilterParallelism: 8, SortParallelism: 4, BatchSize: 13})

	assert.Equal(t, serial["active.csv"].rows, parallel["active.csv"].rows)
}

func TestRunStableSortWithDuplicateKeys(t *testing.T) {
	// id acts as a hidden sequence marker; it is projected but not a
	// sort key, so equal dates must come out in input order.
	groups := []config.Group{{
		Output: "sorted.csv",
		Filters: []config.Constraint{
			{Column: "id", Include: true},
			{Column: "date", Include: true},
		},
		SortColumns: []string{"date"},
	}}
	rows := []table.Row{
		{"1", "s", "2020-02-01"},
		{"2", "s", "2020-01-01"},
		{"3", "s", "2020-02-01"},
		{"4", "s", "2020-01-01"},
		{"5", "s", "2020-02-01"},
	}

	mems, _ := runEngine(t, groups, rows, Options{FilterParallelism: 4, BatchSize: 2})

	assert.Equal(t, []table.Row{
		{"2", "2020-01-01"},
		{"4", "2020-01-01"},
		{"1", "2020-02-01"},
		{"3", "2020-02-01"},
		{"5", "2020-02-01"},
	}, mems["sorted.csv"].rows)
}

func TestRunMultipleIndependentGroups(t *testing.T) {
	groups := []config.Group{
		{
			Output: "active.csv",
			Filters: []config.Constraint{
				{Column: "id", Include: true},
				{Column: "status", Include: false, Values: []string{"active"}},
			},
		},
		{
			Output: "early.csv",
			Filters: []config.Constraint{
				{Column: "id", Include: true},
				{Column: "date", Include: true, Max: strptr("2020-01-15")},
			},
			SortColumns: []string{"id"},
		},
	}

	mems, stats := runEngine(t, groups, exampleRows(), Options{FilterParallelism: 2, SortParallelism: 2})

	assert.Equal(t, []table.Row{{"1"}, {"3"}}, mems["active.csv"].rows)
	assert.Equal(t, []table.Row{{"2", "2020-01-01"}, {"3", "2020-01-01"}}, mems["early.csv"].rows)
	assert.Len(t, stats.Groups, 2)
}

func TestRunIdempotence(t *testing.T) {
	first, _ := runEngine(t, exampleGroups(), exampleRows(), Options{FilterParallelism: 4})
	second, _ := runEngine(t, exampleGroups(), exampleRows(), Options{FilterParallelism: 4})

	assert.Equal(t, first["active.csv"].rows, second["active.csv"].rows)
	assert.Equal(t, first["active.csv"].columns, second["active.csv"].columns)
}

func TestRunSkipsMalformedRows(t *testing.T) {
	rows := []table.Row{
		{"1", "active", "2020-02-01"},
		{"too", "short"},
		{"3", "active", "2020-01-01", "extra"},
		{"4", "active", "2020-01-01"},
	}

	mems, stats := runEngine(t, exampleGroups(), rows, Options{})

	assert.Equal(t, int64(4), stats.RowsRead)
	assert.Equal(t, int64(2), stats.RowsSkipped)
	assert.Equal(t, []table.Row{
		{"active", "2020-01-01"},
		{"active", "2020-02-01"},
	}, mems["active.csv"].rows)
}

func TestRunMalformedToleranceExceeded(t *testing.T) {
	hdr := testHeader()
	eng, err := New(exampleGroups(), hdr, Options{MaxRecordErrors: 2, FilterParallelism: 1})
	require.NoError(t, err)

	rows := []table.Row{
		{"short"},
		{"short"},
		{"short"},
	}
	_, err = eng.Run(context.Background(), &sliceSource{hdr: hdr, rows: rows}, map[string]Sink{"active.csv": &memSink{}})

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Limit)
	assert.GreaterOrEqual(t, recErr.Skipped, int64(3))
}

func TestRunMissingSink(t *testing.T) {
	hdr := testHeader()
	eng, err := New(exampleGroups(), hdr, Options{})
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), &sliceSource{hdr: hdr}, map[string]Sink{})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeMissingSink, cfgErr.Code)
	assert.Equal(t, "active.csv", cfgErr.Output)
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	hdr := testHeader()
	eng, err := New(exampleGroups(), hdr, Options{})
	require.NoError(t, err)

	src := &sliceSource{hdr: hdr, rows: exampleRows()}
	_, err = eng.Run(context.Background(), src, map[string]Sink{"active.csv": failSink{}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `write group "active.csv"`)
}

func TestRunSinkFailureCancelsRemainingGroups(t *testing.T) {
	// Serial finalize pool: the failing group runs first, so the second
	// group's task must observe the cancellation and not commit.
	groups := []config.Group{
		{Output: "bad.csv", Filters: []config.Constraint{{Column: "id", Include: true}}},
		{Output: "good.csv", Filters: []config.Constraint{{Column: "status", Include: true}}},
	}
	hdr := testHeader()
	eng, err := New(groups, hdr, Options{FilterParallelism: 1, SortParallelism: 1})
	require.NoError(t, err)

	good := &memSink{}
	src := &sliceSource{hdr: hdr, rows: exampleRows()}
	_, err = eng.Run(context.Background(), src, map[string]Sink{
		"bad.csv":  failSink{},
		"good.csv": good,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `write group "bad.csv"`)
	assert.Equal(t, 0, good.writes, "groups behind a failure must not commit")
}

func TestNewRejectsNegativeParallelism(t *testing.T) {
	_, err := New(exampleGroups(), testHeader(), Options{FilterParallelism: -1})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeBadParallelism, cfgErr.Code)

	_, err = New(exampleGroups(), testHeader(), Options{SortParallelism: -3})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeBadParallelism, cfgErr.Code)
}

func TestRunEmptyInput(t *testing.T) {
	mems, stats := runEngine(t, exampleGroups(), nil, Options{})

	m := mems["active.csv"]
	assert.Equal(t, []string{"status", "date"}, m.columns)
	assert.Empty(t, m.rows)
	assert.Equal(t, 1, m.writes, "empty groups still get their header written")
	assert.Equal(t, int64(0), stats.RowsRead)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hdr := testHeader()
	eng, err := New(exampleGroups(), hdr, Options{FilterParallelism: 1})
	require.NoError(t, err)

	var rows []table.Row
	for i := 0; i < 100000; i++ {
		rows = append(rows, table.Row{"1", "active", "2020-01-01"})
	}
	_, err = eng.Run(ctx, &sliceSource{hdr: hdr, rows: rows}, map[string]Sink{"active.csv": &memSink{}})
	require.Error(t, err)
}
