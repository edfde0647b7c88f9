// Package storetest is a behavioural test suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Run executes the suite. newStore must return a migrated, empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("refresh tokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("concurrent refresh replace", func(t *testing.T) { testConcurrentRefreshReplace(t, newStore(t)) })
	t.Run("audit logs", func(t *testing.T) { testAuditLogs(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("locked read modify write", func(t *testing.T) { testLockedUpdates(t, newStore(t)) })
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func mustAccount(t *testing.T, st store.Store, iban, owner, balance string) domain.Account {
	t.Helper()
	a, err := domain.NewAccount(idx.New().String(), iban, owner, decimal.RequireFromString(balance), now())
	require.NoError(t, err)
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), a))
	return a
}

func mustUser(t *testing.T, st store.Store, username string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    now(),
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "alice")

	got, err := st.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, domain.RoleUser, got.Role)
	require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	dup := u
	dup.ID = idx.New().String()
	require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	require.NoError(t, st.Users().UpdatePasswordHash(ctx, u.ID, "new-hash"))
	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)

	require.ErrorIs(t, st.Users().UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)

	_, err = st.Users().GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testAccounts(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustAccount(t, st, "DE53100500000000001234", "alice", "1000.50")

	got, err := st.Accounts().GetAccountByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.Equal(t, a.ID(), got.ID())
	require.Equal(t, "alice", got.OwnerName())
	require.True(t, got.Balance().Equal(decimal.RequireFromString("1000.50")), got.Balance().String())

	exists, err := st.Accounts().ExistsByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = st.Accounts().ExistsByIBAN(ctx, "DE03100500000000000000")
	require.NoError(t, err)
	require.False(t, exists)

	dup, err := domain.NewAccount(idx.New().String(), a.IBAN(), "bob", decimal.NewFromInt(1), now())
	require.NoError(t, err)
	require.ErrorIs(t, st.Accounts().CreateAccount(ctx, dup), store.ErrAlreadyExists)

	debited, err := got.Debit(decimal.RequireFromString("0.50"), now())
	require.NoError(t, err)
	require.NoError(t, st.Accounts().UpdateBalance(ctx, debited))

	got, err = st.Accounts().GetAccountByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.Equal(t, "1000.00", got.Balance().StringFixed(2))

	mustAccount(t, st, "DE03100500000000000000", "bob", "0")
	all, err := st.Accounts().ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = st.Accounts().GetAccountByIBAN(ctx, "DE89370400440532013000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testTransactions(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustAccount(t, st, "DE53100500000000001234", "alice", "100")
	b := mustAccount(t, st, "DE03100500000000000000", "bob", "100")
	c := mustAccount(t, st, "DE89370400440532013000", "carol", "100")

	base := now()
	record := func(from, to domain.Account, amount string, at time.Time) domain.Transaction {
		tx := domain.Transaction{
			ID:           idx.NewAt(at).String(),
			SenderIBAN:   from.IBAN(),
			ReceiverIBAN: to.IBAN(),
			Amount:       decimal.RequireFromString(amount),
			Status:       domain.TransactionSuccess,
			CreatedAt:    at,
		}
		require.NoError(t, st.Transactions().CreateTransaction(ctx, tx))
		return tx
	}

	first := record(a, b, "1.00", base)
	second := record(b, a, "2.50", base.Add(time.Second))
	record(b, c, "3.00", base.Add(2*time.Second))
	third := record(c, a, "4.00", base.Add(3*time.Second))

	history, err := st.Transactions().ListTransactionsByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, third.ID, history[0].ID)
	require.Equal(t, second.ID, history[1].ID)
	require.Equal(t, first.ID, history[2].ID)
	require.Equal(t, "2.50", history[1].Amount.StringFixed(2))
	require.Equal(t, domain.TransactionSuccess, history[1].Status)

	none, err := st.Transactions().ListTransactionsByIBAN(ctx, "DE12345")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testRefreshTokens(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "alice")

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: "fp-1",
		ExpiresAt: now().Add(time.Hour),
		CreatedAt: now(),
	}
	require.NoError(t, st.RefreshTokens().ReplaceRefreshToken(ctx, rt))

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.WithinDuration(t, rt.ExpiresAt, got.ExpiresAt, time.Millisecond)

	second := rt
	second.ID = idx.New().String()
	second.TokenHash = "fp-2"
	second.ExpiresAt = now().Add(2 * time.Hour)
	require.NoError(t, st.RefreshTokens().ReplaceRefreshToken(ctx, second))

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-1")
	require.ErrorIs(t, err, store.ErrNotFound, "one refresh token per user")
	got, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-2")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
	require.WithinDuration(t, second.ExpiresAt, got.ExpiresAt, time.Millisecond)

	require.NoError(t, st.RefreshTokens().DeleteRefreshTokensByUser(ctx, u.ID))
	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-2")
	require.ErrorIs(t, err, store.ErrNotFound)

	expired := rt
	expired.ID = idx.New().String()
	expired.TokenHash = "fp-old"
	expired.ExpiresAt = now().Add(-time.Minute)
	require.NoError(t, st.RefreshTokens().ReplaceRefreshToken(ctx, expired))

	n, err := st.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = st.RefreshTokens().DeleteRefreshTokenByHash(ctx, "fp-old")
	require.NoError(t, err)
	require.Zero(t, n)
}

// testConcurrentRefreshReplace replaces the token of one user from several
// transactions at once. Every replacement succeeds and one token survives.
func testConcurrentRefreshReplace(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "alice")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.WithTx(ctx, func(tx store.Tx) error {
				return tx.RefreshTokens().ReplaceRefreshToken(ctx, domain.RefreshToken{
					ID:        idx.New().String(),
					UserID:    u.ID,
					TokenHash: fmt.Sprintf("fp-%d", i),
					ExpiresAt: now().Add(time.Hour),
					CreatedAt: now(),
				})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var found int
	for i := range workers {
		if _, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, fmt.Sprintf("fp-%d", i)); err == nil {
			found++
		}
	}
	require.Equal(t, 1, found)
}

func testAuditLogs(t *testing.T, st store.Store) {
	ctx := context.Background()
	base := now()

	rec := domain.AuditRecord{
		ID:        idx.New().String(),
		EventID:   "evt-1",
		Username:  "alice",
		Action:    "LOGIN_SUCCESS",
		ClientIP:  "203.0.113.7",
		Status:    "SUCCESS",
		CreatedAt: base,
	}
	inserted, err := st.AuditLogs().AppendAuditLog(ctx, rec)
	require.NoError(t, err)
	require.True(t, inserted)

	redelivered := rec
	redelivered.ID = idx.New().String()
	inserted, err = st.AuditLogs().AppendAuditLog(ctx, redelivered)
	require.NoError(t, err)
	require.False(t, inserted)

	later := rec
	later.ID = idx.New().String()
	later.EventID = "evt-2"
	later.Action = "TRANSFER"
	later.CreatedAt = base.Add(time.Second)
	_, err = st.AuditLogs().AppendAuditLog(ctx, later)
	require.NoError(t, err)

	logs, err := st.AuditLogs().ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "TRANSFER", logs[0].Action)
	require.Equal(t, "203.0.113.7", logs[1].ClientIP)

	logs, err = st.AuditLogs().ListAuditLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func testRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustAccount(t, st, "DE53100500000000001234", "alice", "10")

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.Accounts().GetAccountByIBANForUpdate(ctx, a.IBAN())
		if err != nil {
			return err
		}
		acc, err = acc.Credit(decimal.NewFromInt(5), now())
		if err != nil {
			return err
		}
		if err := tx.Accounts().UpdateBalance(ctx, acc); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.Accounts().GetAccountByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.Equal(t, "10.00", got.Balance().StringFixed(2))
}

// testLockedUpdates runs concurrent decrements through locked reads. Without
// the lock some updates would be lost.
func testLockedUpdates(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustAccount(t, st, "DE53100500000000001234", "alice", "100")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.WithTx(ctx, func(tx store.Tx) error {
				acc, err := tx.Accounts().GetAccountByIBANForUpdate(ctx, a.IBAN())
				if err != nil {
					return err
				}
				acc, err = acc.Debit(decimal.NewFromInt(1), now())
				if err != nil {
					return err
				}
				return tx.Accounts().UpdateBalance(ctx, acc)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := st.Accounts().GetAccountByIBAN(ctx, a.IBAN())
	require.NoError(t, err)
	require.Equal(t, "90.00", got.Balance().StringFixed(2))
}
