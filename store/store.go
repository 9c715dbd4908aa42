package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"todo-api-v2/apperr"
	"todo-api-v2/config"
)

// ErrNotFound indicates a requested record is missing or not visible to the
// caller.
var ErrNotFound = apperr.New(apperr.CodeNotFound, "Not found.")

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repositories run the same
// statements inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the relational connection pool.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, source string) (*Store, error) {
	s, err := Connect(ctx, driver, source)
	if err != nil {
		return nil, err
	}
	if _, err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Connect opens and pings the database without touching the schema.
func Connect(ctx context.Context, driver, source string) (*Store, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("db source is required")
	}

	dsn := source
	switch driver {
	case config.DriverPostgres:
	case config.DriverSQLite:
		dsn = sqliteDSN(source)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		// One writer at a time; also keeps ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	log.Printf("Database connection successful (%s).", driver)
	return &Store{db: db, driver: driver}, nil
}

// sqliteDSN turns foreign key enforcement on, which SQLite leaves off by
// default and the todo → users cascade depends on.
func sqliteDSN(source string) string {
	if strings.Contains(source, "_foreign_keys=") || strings.Contains(source, "_fk=") {
		return source
	}
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return source + sep + "_foreign_keys=on"
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the raw handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repo returns a repository bound to the pool, outside any transaction.
func (s *Store) Repo() *Repo {
	return NewRepo(s.db)
}

// InTx runs fn inside one transaction: committed when fn returns nil, rolled
// back when it returns an error or panics. Panics are re-raised after
// rollback.
func (s *Store) InTx(ctx context.Context, fn func(*Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewRepo(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("ERROR: rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repo groups the user and todo queries over a single DBTX.
type Repo struct {
	q DBTX
}

// NewRepo binds a repository to q.
func NewRepo(q DBTX) *Repo {
	return &Repo{q: q}
}

// isUniqueViolation recognizes UNIQUE constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
