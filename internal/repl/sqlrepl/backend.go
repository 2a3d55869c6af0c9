// Package sqlrepl is a Backend that runs SQL against a database/sql connection.
//
// Registered backend types:
//
//	sqlite    modernc.org/sqlite, dsn defaults to an in-memory database
//	duckdb    github.com/marcboeker/go-duckdb, dsn defaults to an in-memory database
//	postgres  github.com/jackc/pgx/v5/stdlib, dsn required
//
// Queries that return rows are rendered as a table; other statements report
// the number of rows affected.
package sqlrepl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/replsnip/internal/repl"

	_ "github.com/jackc/pgx/v5/stdlib"  // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver (pure Go)
)

// drivers maps backend types to database/sql driver names.
var drivers = map[string]string{
	"sqlite":   "sqlite",
	"duckdb":   "duckdb",
	"postgres": "pgx",
}

func init() {
	for typ := range drivers {
		repl.Register(typ, func(ctx context.Context, cfg repl.TargetConfig, logger *slog.Logger) (repl.Backend, error) {
			return Open(ctx, typ, cfg.DSN, logger)
		})
	}
}

// Backend is a SQL session over one connection.
type Backend struct {
	db     *sql.DB
	typ    string
	logger *slog.Logger
}

var _ repl.Backend = (*Backend)(nil)

// Open connects to a database of the given backend type.
func Open(ctx context.Context, typ, dsn string, logger *slog.Logger) (*Backend, error) {
	driver, ok := drivers[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL backend %q", typ)
	}
	switch {
	case dsn == "" && typ == "sqlite":
		dsn = ":memory:"
	case dsn == "" && typ == "postgres":
		return nil, fmt.Errorf("postgres target requires a dsn")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", typ, err)
	}
	// One connection keeps session state such as temp tables and in-memory databases.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", typ, err)
	}
	return New(db, typ, logger), nil
}

// New wraps an open database.
func New(db *sql.DB, typ string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{db: db, typ: typ, logger: logger}
}

// Eval runs one SQL statement. SQL has no namespaces, so ns is ignored.
func (b *Backend) Eval(ctx context.Context, code, _ string) (*repl.Result, error) {
	stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(code), ";"))
	if stmt == "" {
		return &repl.Result{}, nil
	}

	if returnsRows(stmt) {
		b.logger.Debug("running query", slog.String("backend", b.typ))
		rows, err := b.db.QueryContext(ctx, stmt)
		if err != nil {
			return &repl.Result{Err: err.Error()}, fmt.Errorf("query failed: %w", err)
		}
		defer func() { _ = rows.Close() }()

		table, err := renderRows(rows)
		if err != nil {
			return &repl.Result{Err: err.Error()}, fmt.Errorf("failed to read rows: %w", err)
		}
		return &repl.Result{Value: table}, nil
	}

	b.logger.Debug("running statement", slog.String("backend", b.typ))
	res, err := b.db.ExecContext(ctx, stmt)
	if err != nil {
		return &repl.Result{Err: err.Error()}, fmt.Errorf("statement failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &repl.Result{Value: "OK"}, nil //nolint:nilerr // some drivers cannot count rows
	}
	return &repl.Result{Value: fmt.Sprintf("OK, %d rows affected", n)}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

var rowKeywords = map[string]bool{
	"select": true, "with": true, "values": true, "table": true, "pragma": true,
	"show": true, "describe": true, "explain": true, "summarize": true, "from": true,
}

// returnsRows guesses whether stmt produces a result set.
func returnsRows(stmt string) bool {
	fields := strings.Fields(strings.ToLower(stmt))
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimLeft(fields[0], "(")
	if rowKeywords[first] {
		return true
	}
	for _, f := range fields {
		if f == "returning" {
			return true
		}
	}
	return false
}
