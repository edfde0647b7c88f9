package sqldb

import (
	"context"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/shopspring/decimal"
)

type accountsRepo struct {
	conn
}

const accountColumns = `id, iban, owner_name, balance, created_at, updated_at`

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.exec(ctx,
		`INSERT INTO accounts (id, iban, owner_name, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID(), a.IBAN(), a.OwnerName(), a.Balance().StringFixed(domain.MoneyScale),
		a.CreatedAt().UTC(), a.UpdatedAt().UTC(),
	)
	return mapInsert(r.d, err)
}

func (r *accountsRepo) GetAccountByIBAN(ctx context.Context, iban string) (domain.Account, error) {
	row := r.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE iban = ?`, iban)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByIBANForUpdate(ctx context.Context, iban string) (domain.Account, error) {
	row := r.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE iban = ?`+r.d.LockClause(), iban)
	return scanAccount(row)
}

func (r *accountsRepo) ExistsByIBAN(ctx context.Context, iban string) (bool, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(1) FROM accounts WHERE iban = ?`, iban).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAccount)
}

func (r *accountsRepo) UpdateBalance(ctx context.Context, a domain.Account) error {
	res, err := r.exec(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		a.Balance().StringFixed(domain.MoneyScale), a.UpdatedAt().UTC(), a.ID(),
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanAccount(s scanner) (domain.Account, error) {
	var (
		id, iban, owner      string
		balance              decimal.Decimal
		createdAt, updatedAt time.Time
	)
	if err := s.Scan(&id, &iban, &owner, &balance, &createdAt, &updatedAt); err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return domain.RestoreAccount(id, iban, owner, balance, createdAt, updatedAt), nil
}

var _ store.Accounts = (*accountsRepo)(nil)
