package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/csvsieve/internal/table"
)

// DB is a shared SQLite database receiving one table per group.
//
// SQLite supports one writer at a time; the connection pool is capped
// at a single connection so concurrent group writes from the finalize
// pool serialize cleanly instead of fighting over the write lock.
type DB struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]string // claimed table name -> claiming output
}

// OpenDB creates or opens a SQLite database at the given path and
// applies the engine's pragmas: WAL journaling for concurrent readers,
// NORMAL synchronous mode, and a busy timeout for lock contention.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}

	return &DB{db: db, tables: make(map[string]string)}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Sink returns a sink writing one group into the table derived from its
// output name ("reports/active.csv" becomes table "active").
//
// Sanitizing can map distinct outputs to one table name. The second
// claim on a table is rejected: Write replaces the target table, so a
// collision would silently drop the first group's committed rows.
func (d *DB) Sink(output string) (*SQLite, error) {
	name := tableName(output)

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.tables[name]; ok && prev != output {
		return nil, fmt.Errorf("outputs %q and %q both map to table %q", prev, output, name)
	}
	d.tables[name] = output

	return &SQLite{db: d.db, table: name}, nil
}

// SQLite writes one group's record set as a table of TEXT columns.
type SQLite struct {
	db    *sql.DB
	table string
}

// Table returns the sink's target table name.
func (s *SQLite) Table() string {
	return s.table
}

// Write replaces the target table with the group's final record set in
// a single transaction: either the whole table lands or nothing does.
func (s *SQLite) Write(ctx context.Context, columns []string, rows []table.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for table %s: %w", s.table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(s.table))); err != nil {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c) + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.table), placeholders)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert for table %s: %w", s.table, err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into table %s: %w", s.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit table %s: %w", s.table, err)
	}
	return nil
}

// tableName derives a SQLite table name from a group's output name:
// directory and extension stripped, non-identifier bytes replaced.
func tableName(output string) string {
	name := output
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name = b.String()
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		name = "g_" + name
	}
	return name
}

// quoteIdent quotes an identifier for SQLite, doubling embedded quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
