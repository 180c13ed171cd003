package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries provides access to named SQL queries loaded from embedded .sql files.
// Uses dotsql for named query management and sqlx for database operations.
// Queries are written with ? placeholders and rebound per driver.
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
}

// LoadQueries loads all .sql files from embedded filesystem and returns Queries instance.
// Named queries accessible by name (e.g., "insert-association", "stage-associations-attached").
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combinedSQL string

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		combinedSQL += string(content) + "\n"
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Queries{dot: dot, db: db}, nil
}

// Binder rebinds ? placeholders for a driver; *sqlx.DB and *sqlx.Tx
// satisfy it.
type Binder interface {
	Rebind(query string) string
}

// Raw returns the named query rebound for b's driver.
func (q *Queries) Raw(b Binder, name string) (string, error) {
	query, err := q.Statement(name)
	if err != nil {
		return "", err
	}
	return b.Rebind(query), nil
}

// Statement returns the named query text as written.
func (q *Queries) Statement(name string) (string, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return query, nil
}

// Exec executes a named query against the pooled database.
func (q *Queries) Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error) {
	return q.ExecOn(ctx, q.db, name, args...)
}

// ExecOn executes a named query on ext (a *sqlx.DB or *sqlx.Tx).
func (q *Queries) ExecOn(ctx context.Context, ext sqlx.ExtContext, name string, args ...interface{}) (sql.Result, error) {
	query, err := q.Raw(ext, name)
	if err != nil {
		return nil, err
	}
	return ext.ExecContext(ctx, query, args...)
}

// Get retrieves a single row into dest struct using named query.
func (q *Queries) Get(ctx context.Context, dest interface{}, name string, args ...interface{}) error {
	return q.GetOn(ctx, q.db, dest, name, args...)
}

// GetOn retrieves a single row on ext.
func (q *Queries) GetOn(ctx context.Context, ext sqlx.ExtContext, dest interface{}, name string, args ...interface{}) error {
	query, err := q.Raw(ext, name)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, ext, dest, query, args...)
}

// Select retrieves multiple rows into dest slice using named query.
func (q *Queries) Select(ctx context.Context, dest interface{}, name string, args ...interface{}) error {
	return q.SelectOn(ctx, q.db, dest, name, args...)
}

// SelectOn retrieves multiple rows on ext.
func (q *Queries) SelectOn(ctx context.Context, ext sqlx.ExtContext, dest interface{}, name string, args ...interface{}) error {
	query, err := q.Raw(ext, name)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, ext, dest, query, args...)
}
