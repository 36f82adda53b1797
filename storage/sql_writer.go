package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"flipscout/models"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Name        string
	idColumn    string
	timeType    string
	placeholder func(n int) string
	columnsSQL  string
}

var (
	Postgres = Dialect{
		Name:        "postgres",
		idColumn:    "BIGSERIAL PRIMARY KEY",
		timeType:    "TIMESTAMPTZ",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		columnsSQL:  `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`,
	}
	SQLite = Dialect{
		Name:        "sqlite",
		idColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		timeType:    "TIMESTAMP",
		placeholder: func(int) string { return "?" },
		columnsSQL:  `SELECT name FROM pragma_table_info(?)`,
	}
)

// SQLWriter appends tables to a relational database. Each table name maps
// to a snake_case SQL table with one TEXT column per header field; columns
// are added as new header fields appear. Every append is also recorded in
// sink_appends together with its header, so empty runs leave a row too.
type SQLWriter struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect Dialect
	closed  bool
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use SQLWriter.
func NewPostgresWriter(ctx context.Context, dsn string) (*SQLWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = pingWithRetry(ctx, db, 10, 2*time.Second)
	if err != nil {
		_ = db.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("postgres: %w: %v", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return newSQLWriter(ctx, db, Postgres)
}

// NewSQLiteWriter opens (or creates) the SQLite database at path.
func NewSQLiteWriter(ctx context.Context, path string) (*SQLWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: apply pragma %q: %w", pragma, execErr)
		}
	}

	return newSQLWriter(ctx, db, SQLite)
}

// pingWithRetry waits for the database to come up. Credential errors are
// returned immediately.
func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil || isAuthError(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func newSQLWriter(ctx context.Context, db *sql.DB, d Dialect) (*SQLWriter, error) {
	w := &SQLWriter{db: db, dialect: d}
	if err := w.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.Name, err)
	}
	return w, nil
}

func (w *SQLWriter) migrate(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sink_appends (
			id          %s,
			run_id      TEXT    NOT NULL DEFAULT '',
			table_name  TEXT    NOT NULL,
			header      TEXT    NOT NULL,
			row_count   INTEGER NOT NULL,
			appended_at %s      NOT NULL
		)`, w.dialect.idColumn, w.dialect.timeType))
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_sink_appends_table ON sink_appends(table_name)`)
	return err
}

// Append inserts the header record and all rows of t in one transaction.
func (w *SQLWriter) Append(ctx context.Context, t models.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := Validate(t); err != nil {
		return err
	}
	header, err := json.Marshal(t.Header)
	if err != nil {
		return fmt.Errorf("%s: encode header: %w", w.dialect.Name, err)
	}

	tableName := SQLTableName(t.Name)
	if err := w.ensureTable(ctx, tableName, t.Header); err != nil {
		return w.wrap(err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return w.wrap(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var appendID int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO sink_appends (run_id, table_name, header, row_count, appended_at)
		 VALUES (%s, %s, %s, %s, %s) RETURNING id`,
		w.ph(1), w.ph(2), w.ph(3), w.ph(4), w.ph(5)),
		t.RunID, t.Name, string(header), len(t.Rows), time.Now().UTC(),
	).Scan(&appendID)
	if err != nil {
		return w.wrap(fmt.Errorf("record append: %w", err))
	}

	const batchSize = 50
	for i := 0; i < len(t.Rows); i += batchSize {
		end := i + batchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := w.insertBatch(ctx, tx, tableName, appendID, t.Header, i, t.Rows[i:end]); err != nil {
			return w.wrap(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return w.wrap(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (w *SQLWriter) insertBatch(ctx context.Context, tx *sql.Tx, tableName string, appendID int64,
	header []string, offset int, batch [][]string) error {
	cols := make([]string, 0, len(header)+2)
	cols = append(cols, "append_id", "row_num")
	for _, h := range header {
		cols = append(cols, pq.QuoteIdentifier(h))
	}

	width := len(cols)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*width)
	for idx, row := range batch {
		base := idx * width
		ph := make([]string, width)
		for j := range ph {
			ph[j] = w.ph(base + j + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, appendID, offset+idx)
		for _, cell := range row {
			valueArgs = append(valueArgs, cell)
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`,
		pq.QuoteIdentifier(tableName), strings.Join(cols, ", "), strings.Join(valueStrings, ","))
	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("insert into %s: %w", tableName, err)
	}
	return nil
}

// ensureTable creates the data table and adds any header column it lacks.
func (w *SQLWriter) ensureTable(ctx context.Context, tableName string, header []string) error {
	_, err := w.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			append_id BIGINT  NOT NULL,
			row_num   INTEGER NOT NULL,
			PRIMARY KEY (append_id, row_num)
		)`, pq.QuoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}

	existing, err := w.columns(ctx, tableName)
	if err != nil {
		return err
	}
	for _, col := range header {
		if _, ok := existing[col]; ok {
			continue
		}
		_, err := w.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT NOT NULL DEFAULT ''`,
			pq.QuoteIdentifier(tableName), pq.QuoteIdentifier(col)))
		if err != nil {
			return fmt.Errorf("add column %s.%s: %w", tableName, col, err)
		}
		existing[col] = struct{}{}
	}
	return nil
}

func (w *SQLWriter) columns(ctx context.Context, tableName string) (map[string]struct{}, error) {
	rows, err := w.db.QueryContext(ctx, w.dialect.columnsSQL, tableName)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// Rows reads back the data rows of a table in append order, with cells in
// header order.
func (w *SQLWriter) Rows(ctx context.Context, table string, header []string) ([][]string, error) {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = pq.QuoteIdentifier(h)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY append_id, row_num`,
		strings.Join(cols, ", "), pq.QuoteIdentifier(SQLTableName(table)))

	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", w.dialect.Name, table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := make([]string, len(header))
		ptrs := make([]any, len(header))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan %s: %w", w.dialect.Name, table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AppendCount returns how many appends were recorded for a table.
func (w *SQLWriter) AppendCount(ctx context.Context, table string) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM sink_appends WHERE table_name = %s`, w.ph(1)), table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: count appends: %w", w.dialect.Name, err)
	}
	return n, nil
}

func (w *SQLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}

func (w *SQLWriter) ph(n int) string { return w.dialect.placeholder(n) }

func (w *SQLWriter) wrap(err error) error {
	if isAuthError(err) {
		return fmt.Errorf("%s: %w: %v", w.dialect.Name, ErrUnauthorized, err)
	}
	return fmt.Errorf("%s: %w", w.dialect.Name, err)
}

// isAuthError reports PostgreSQL class 28 (invalid authorization) errors.
func isAuthError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "28"
	}
	return false
}

// SQLTableName converts a table name such as "ForSale" or "Sold_Comps" to
// snake_case ("for_sale", "sold_comps").
func SQLTableName(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}
