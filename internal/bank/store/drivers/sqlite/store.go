// Package sqlite is the embedded store driver. Every transaction is opened
// with BEGIN IMMEDIATE so a read-modify-write of account balances holds the
// database write lock from its first read.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/sqldb"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/sqlite/migrations"
	"github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type dialect struct{}

func (dialect) Name() string { return "sqlite" }
func (dialect) Placeholder(int) string { return "?" }
func (dialect) LockClause() string { return "" }
func (dialect) Migrations() fs.FS { return migrations.Migrations }

func (dialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (dialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return migratesqlite.WithInstance(db, &migratesqlite.Config{})
}

// DSN builds a connection string for the database file at path with the
// pragmas the store depends on.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return fmt.Sprintf("file:%s?%s", path, q.Encode())
}

// NewStore opens the database described by dsn. Use DSN to build one.
func NewStore(dsn string) (*sqldb.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqldb.New(db, dialect{}), nil
}
