package sqldb

import (
	"context"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
)

type transactionsRepo struct {
	conn
}

const transactionColumns = `id, sender_iban, receiver_iban, amount, status, created_at`

func (r *transactionsRepo) CreateTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := r.exec(ctx,
		`INSERT INTO transactions (id, sender_iban, receiver_iban, amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SenderIBAN, t.ReceiverIBAN, t.Amount.StringFixed(domain.MoneyScale),
		string(t.Status), t.CreatedAt.UTC(),
	)
	return mapInsert(r.d, err)
}

func (r *transactionsRepo) ListTransactionsByIBAN(ctx context.Context, iban string) ([]domain.Transaction, error) {
	rows, err := r.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE sender_iban = ? OR receiver_iban = ?
		 ORDER BY created_at DESC, id DESC`,
		iban, iban,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransaction)
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		t      domain.Transaction
		status string
	)
	if err := s.Scan(&t.ID, &t.SenderIBAN, &t.ReceiverIBAN, &t.Amount, &status, &t.CreatedAt); err != nil {
		return domain.Transaction{}, mapNotFound(err)
	}
	t.Status = domain.TransactionStatus(status)
	return t, nil
}

var _ store.Transactions = (*transactionsRepo)(nil)
