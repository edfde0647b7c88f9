// Package sqldb implements store.Store on top of database/sql. The sqlite and
// postgres drivers supply a Dialect and their embedded migrations.
package sqldb

import (
	"context"
	"database/sql"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect interface {
	Name() string

	// Placeholder returns the n-th (1 based) bind placeholder.
	Placeholder(n int) string

	// LockClause is appended to a SELECT that must lock the rows it reads.
	LockClause() string

	IsUniqueViolation(err error) bool

	MigrationDriver(db *sql.DB) (database.Driver, error)
	Migrations() fs.FS
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn binds a querier to a dialect and rewrites "?" placeholders.
type conn struct {
	q querier
	d Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

func (c conn) rebind(query string) string {
	if c.d.Placeholder(1) == "?" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(c.d.Placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// NumberedPlaceholder renders $1, $2, ... style placeholders.
func NumberedPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
