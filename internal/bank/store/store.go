package store

import (
	"context"
	"errors"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are reached through methods so a Tx can
// hand out the same repositories bound to the transaction.
type Store interface {
	Users() Users
	Accounts() Accounts
	Transactions() Transactions
	RefreshTokens() RefreshTokens
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash is used to upgrade legacy hashes after login.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

type Accounts interface {
	// CreateAccount returns ErrAlreadyExists when the IBAN is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByIBAN(ctx context.Context, iban string) (domain.Account, error)

	// GetAccountByIBANForUpdate reads the account and holds a write lock on
	// it until the surrounding transaction ends. Only meaningful inside a Tx.
	GetAccountByIBANForUpdate(ctx context.Context, iban string) (domain.Account, error)

	ExistsByIBAN(ctx context.Context, iban string) (bool, error)

	// ListAccounts returns all accounts, newest first.
	ListAccounts(ctx context.Context) ([]domain.Account, error)

	// UpdateBalance persists the balance and updated_at of a.
	UpdateBalance(ctx context.Context, a domain.Account) error
}

type Transactions interface {
	CreateTransaction(ctx context.Context, t domain.Transaction) error

	// ListTransactionsByIBAN returns every transaction where iban is the
	// sender or the receiver, newest first.
	ListTransactionsByIBAN(ctx context.Context, iban string) ([]domain.Transaction, error)
}

type RefreshTokens interface {
	// ReplaceRefreshToken stores t as the only token of t.UserID, replacing
	// any token the user already holds. Safe under concurrent calls for the
	// same user.
	ReplaceRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash looks a token up by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteRefreshTokenByHash returns the number of rows removed.
	DeleteRefreshTokenByHash(ctx context.Context, hash string) (int64, error)

	DeleteRefreshTokensByUser(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is housekeeping; returns rows removed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type AuditLogs interface {
	// AppendAuditLog inserts rec unless a record with the same EventID
	// exists. It reports whether a row was written.
	AppendAuditLog(ctx context.Context, rec domain.AuditRecord) (bool, error)

	// ListAuditLogs returns up to limit records, newest first.
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}
