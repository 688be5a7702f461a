package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"saifuu/internal/core"
)

// SQLiteRepository is the query layer. One instance owns the connection pool
// for the lifetime of the process and is safe for concurrent use.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*SQLiteRepository)

// WithClock overrides the source of audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

// DSN builds the driver connection string for dbPath. Foreign keys are
// enforced on every pooled connection and write transactions take the
// database lock up front.
func DSN(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_txlock", "immediate")
	return dbPath + "?" + params.Encode()
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return core.FormatTimestamp(r.now())
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// inTx runs fn inside a write transaction, committing when fn returns nil.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// touchUpdatedAt is the SET fragment refreshing updated_at. The new value is always
// later than the stored one, even when the clock has not advanced.
const touchUpdatedAt = `updated_at = CASE WHEN ? > updated_at THEN ? ` +
	`ELSE strftime('%Y-%m-%dT%H:%M:%fZ', updated_at, '+0.001 seconds') END`

// setBuilder accumulates the SET clause of a partial update.
type setBuilder struct {
	cols []string
	args []any
}

func (b *setBuilder) set(col string, v any) {
	b.cols = append(b.cols, col+" = ?")
	b.args = append(b.args, v)
}

func (b *setBuilder) null(col string) {
	b.cols = append(b.cols, col+" = NULL")
}

func (b *setBuilder) touch(now string) {
	b.cols = append(b.cols, touchUpdatedAt)
	b.args = append(b.args, now, now)
}

func (b *setBuilder) String() string {
	return strings.Join(b.cols, ", ")
}

// whereBuilder accumulates AND-ed predicates.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// orderBy renders a whitelisted ORDER BY clause with an id tiebreak.
func orderBy(columns map[string]string, s core.Sort, def core.Sort) string {
	col, ok := columns[s.By]
	if !ok {
		col = columns[def.By]
	}
	dir := "DESC"
	if strings.EqualFold(s.Order, "asc") || (s.Order == "" && strings.EqualFold(def.Order, "asc")) {
		dir = "ASC"
	}
	if col == "id" {
		return " ORDER BY id " + dir
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}

// constraintViolation matches SQLite constraint errors whether or not the
// connection reports extended result codes.
func constraintViolation(err error, extended int, marker string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == extended {
		return true
	}
	return se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT && strings.Contains(se.Error(), marker)
}

func isUniqueViolation(err error) bool {
	return constraintViolation(err, sqlitelib.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE")
}

func isForeignKeyViolation(err error) bool {
	return constraintViolation(err, sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
}

func parseTimestamps(created, updated string, dstCreated, dstUpdated *time.Time) error {
	c, err := core.ParseTimestamp(created)
	if err != nil {
		return err
	}
	u, err := core.ParseTimestamp(updated)
	if err != nil {
		return err
	}
	*dstCreated, *dstUpdated = c, u
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
