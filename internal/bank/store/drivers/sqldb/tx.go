package sqldb

import (
	"context"
	"database/sql"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
)

type txStore struct {
	tx *sql.Tx
	d  Dialect
}

func newTx(tx *sql.Tx, d Dialect) *txStore {
	return &txStore{tx: tx, d: d}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the outer Store owns the connection pool.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) conn() conn { return conn{q: t.tx, d: t.d} }

func (t *txStore) Users() store.Users                 { return &usersRepo{t.conn()} }
func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{t.conn()} }
func (t *txStore) Transactions() store.Transactions   { return &transactionsRepo{t.conn()} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{t.conn()} }
func (t *txStore) AuditLogs() store.AuditLogs         { return &auditLogsRepo{t.conn()} }
