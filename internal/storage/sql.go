// Package storage persists tasks, answers, projects, files, instrumentation
// events and policy decisions in SQLite or Postgres through database/sql.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/josephgoksu/guidedmodules/store"
	"github.com/josephgoksu/guidedmodules/types"
)

// Dialect is the SQL flavour of the underlying database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements store.Store on a SQL database.
type SQLStore struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

var _ store.Store = (*SQLStore)(nil)

// Open opens the store configured by cfg. A relative SQLite path resolves
// against rootDir.
func Open(ctx context.Context, cfg types.DataConfig, rootDir string) (*SQLStore, error) {
	switch cfg.Driver {
	case "", string(DialectSQLite):
		path := cfg.Path
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(rootDir, path)
		}
		return OpenSQLite(ctx, path)
	case string(DialectPostgres):
		return OpenPostgres(ctx, cfg.DSN)
	}
	return nil, types.NewConfigurationError("unknown data driver %q", cfg.Driver)
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers within the process and keeps the
	// pragmas below in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return newStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to Postgres through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return newStore(ctx, db, DialectPostgres)
}

func newStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, q: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Dialect reports the database flavour.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Close closes the database. Closing a transactional view is a no-op.
func (s *SQLStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// InTx implements store.Store.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLStore{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}
