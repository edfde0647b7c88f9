package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

type Store struct {
	db *sql.DB
	d  Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle. The caller hands ownership of db over;
// Close closes it.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx, s.d), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyMigrations runs every pending up migration from the dialect's
// embedded migration set.
func (s *Store) ApplyMigrations() error {
	driver, err := s.d.MigrationDriver(s.db)
	if err != nil {
		return err
	}

	source, err := iofs.New(s.d.Migrations(), ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, s.d.Name(), driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) conn() conn { return conn{q: s.db, d: s.d} }

func (s *Store) Users() store.Users                 { return &usersRepo{s.conn()} }
func (s *Store) Accounts() store.Accounts           { return &accountsRepo{s.conn()} }
func (s *Store) Transactions() store.Transactions   { return &transactionsRepo{s.conn()} }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{s.conn()} }
func (s *Store) AuditLogs() store.AuditLogs         { return &auditLogsRepo{s.conn()} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapInsert turns a unique constraint violation into store.ErrAlreadyExists.
func mapInsert(d Dialect, err error) error {
	if err != nil && d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}
