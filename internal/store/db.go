package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// dbOps is the query surface shared by a root connection and a transaction.
type dbOps interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
	NamedExec(query string, arg interface{}) (sql.Result, error)
}

// DB is the catalog store. A DB value handed to a RunInTx callback routes
// all queries through the open transaction.
type DB struct {
	dbOps
	root *sqlx.DB
}

// Open opens (or creates) the catalog database and applies the schema.
// Init is idempotent: every table is create-if-absent.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Set pragmas for better concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// sqlite allows one writer at a time; a single pooled connection keeps
	// concurrent claim transactions serialized instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{dbOps: db, root: db}, nil
}

func (db *DB) Close() error {
	return db.root.Close()
}

// RunInTx runs fn against a transaction-scoped DB. The transaction commits
// only if fn returns nil. Must be called on the root DB, not from inside
// another RunInTx callback.
func (db *DB) RunInTx(ctx context.Context, fn func(txDB *DB) error) error {
	tx, err := db.root.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txDB := &DB{
		dbOps: tx,
		root:  db.root,
	}

	if err := fn(txDB); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset drops and recreates every table. For test and dev use only.
func (db *DB) Reset() error {
	if _, err := db.root.Exec(DropSchema); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	if _, err := db.root.Exec(Schema); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}
