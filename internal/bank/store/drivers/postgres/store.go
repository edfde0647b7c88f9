// Package postgres is the server store driver. Balance updates lock the
// affected account rows with SELECT ... FOR UPDATE.
package postgres

import (
	"database/sql"
	"errors"
	"io/fs"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/postgres/migrations"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store/drivers/sqldb"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type dialect struct{}

func (dialect) Name() string { return "postgres" }
func (dialect) Placeholder(n int) string { return sqldb.NumberedPlaceholder(n) }
func (dialect) LockClause() string { return " FOR UPDATE" }
func (dialect) Migrations() fs.FS { return migrations.Migrations }

func (dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (dialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return migratepgx.WithInstance(db, &migratepgx.Config{})
}

// NewStore opens a pool against the postgres URL dsn.
func NewStore(dsn string) (*sqldb.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return sqldb.New(db, dialect{}), nil
}
