package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/audit"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/iban"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/idx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// DefaultBankCode is the German bank code accounts are opened under.
const DefaultBankCode = "10050000"

const maxIBANAttempts = 16

var seedSpace = big.NewInt(10_000_000_000)

// LedgerService opens accounts and moves money between them. It is the only
// code that changes balances.
type LedgerService struct {
	Store    store.Store
	Audit    audit.Publisher
	BankCode string

	// newSeed yields account number candidates. Nil means crypto/rand.
	newSeed func() (string, error)
}

func (s *LedgerService) bankCode() string {
	if s.BankCode == "" {
		return DefaultBankCode
	}
	return s.BankCode
}

func (s *LedgerService) seed() (string, error) {
	if s.newSeed != nil {
		return s.newSeed()
	}
	n, err := rand.Int(rand.Reader, seedSpace)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

func actorFrom(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Username
	}
	return audit.SystemActor
}

func checkAmount(amount decimal.Decimal, what string) error {
	switch err := domain.CheckAmount(amount); {
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return transferErr(KindInvalidAmount, "%s is out of range", what)
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return transferErr(KindInvalidAmount, "%s must be greater than zero", what)
	case errors.Is(err, domain.ErrAmountPrecision):
		return transferErr(KindInvalidAmount, "%s must not have more than %d decimal places", what, domain.MoneyScale)
	}
	return nil
}

// OpenAccount creates an account for ownerName under a fresh IBAN.
func (s *LedgerService) OpenAccount(ctx context.Context, ownerName string, initial decimal.Decimal) (domain.Account, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return domain.Account{}, invalid("owner name must not be blank")
	}
	if err := checkAmount(initial, "initial balance"); err != nil {
		return domain.Account{}, err
	}

	for attempt := 1; attempt <= maxIBANAttempts; attempt++ {
		seed, err := s.seed()
		if err != nil {
			return domain.Account{}, fmt.Errorf("account seed: %w", err)
		}
		code, err := iban.Generate(s.bankCode(), seed)
		if err != nil {
			return domain.Account{}, fmt.Errorf("generate iban: %w", err)
		}

		taken, err := s.Store.Accounts().ExistsByIBAN(ctx, code)
		if err != nil {
			return domain.Account{}, fmt.Errorf("check iban: %w", err)
		}
		if taken {
			continue
		}

		now := time.Now().UTC()
		acc, err := domain.NewAccount(idx.NewAt(now).String(), code, ownerName, initial, now)
		if err != nil {
			return domain.Account{}, err
		}

		err = s.Store.Accounts().CreateAccount(ctx, acc)
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race for the same IBAN.
			continue
		}
		if err != nil {
			return domain.Account{}, fmt.Errorf("create account: %w", err)
		}

		slogx.FromContext(ctx).Info("account opened",
			slog.String("account_id", acc.ID()),
			slog.String("iban", acc.IBAN()),
		)
		s.Audit.Publish(ctx, audit.NewEvent(ctx, audit.ActionCreateAccount, audit.StatusSuccess, actorFrom(ctx)).
			WithAmount("", acc.IBAN(), initial))
		return acc, nil
	}

	return domain.Account{}, ErrIBANExhausted
}

// Transfer moves amount from one account to another on behalf of actor, who
// must own the sending account. Both balances, and the transaction record,
// are written in one transaction; the audit event follows the commit.
func (s *LedgerService) Transfer(
	ctx context.Context,
	fromIBAN, toIBAN string,
	amount decimal.Decimal,
	actor Principal,
) (domain.Transaction, error) {
	fromIBAN = iban.Normalize(fromIBAN)
	toIBAN = iban.Normalize(toIBAN)

	if err := checkAmount(amount, "transfer amount"); err != nil {
		return domain.Transaction{}, err
	}
	if fromIBAN == toIBAN {
		return domain.Transaction{}, transferErr(KindSelfTransfer, "sender and receiver account must differ")
	}

	var txn domain.Transaction
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		accounts, err := lockAccounts(ctx, tx, fromIBAN, toIBAN)
		if err != nil {
			return err
		}
		from, to := accounts[fromIBAN], accounts[toIBAN]

		if !from.OwnedBy(actor.Username) {
			return transferErr(KindForbidden, "access denied: account %s does not belong to you", fromIBAN)
		}

		now := time.Now().UTC()
		from, err = from.Debit(amount, now)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return transferErr(KindInsufficientFunds, "insufficient funds on account %s", fromIBAN)
		}
		if err != nil {
			return err
		}
		to, err = to.Credit(amount, now)
		if err != nil {
			return err
		}

		if err := tx.Accounts().UpdateBalance(ctx, from); err != nil {
			return fmt.Errorf("debit %s: %w", fromIBAN, err)
		}
		if err := tx.Accounts().UpdateBalance(ctx, to); err != nil {
			return fmt.Errorf("credit %s: %w", toIBAN, err)
		}

		txn = domain.Transaction{
			ID:           idx.NewAt(now).String(),
			SenderIBAN:   fromIBAN,
			ReceiverIBAN: toIBAN,
			Amount:       amount,
			Status:       domain.TransactionSuccess,
			CreatedAt:    now,
		}
		if err := tx.Transactions().CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	slogx.FromContext(ctx).Info("transfer booked",
		slog.String("transaction_id", txn.ID),
		slog.String("amount", amount.StringFixed(domain.MoneyScale)),
	)
	s.Audit.Publish(ctx, audit.NewEvent(ctx, audit.ActionTransfer, audit.StatusSuccess, actor.Username).
		WithAmount(fromIBAN, toIBAN, amount))
	return txn, nil
}

// lockAccounts loads both accounts for update in IBAN order so two opposite
// transfers cannot deadlock.
func lockAccounts(ctx context.Context, tx store.Tx, a, b string) (map[string]domain.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	out := make(map[string]domain.Account, 2)
	for _, code := range []string{first, second} {
		acc, err := tx.Accounts().GetAccountByIBANForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, transferErr(KindNotFound, "account not found: %s", code)
			}
			return nil, fmt.Errorf("lock account %s: %w", code, err)
		}
		out[code] = acc
	}
	return out, nil
}

// GetAccount returns the account to its owner or an administrator.
func (s *LedgerService) GetAccount(ctx context.Context, code string, p Principal) (domain.Account, error) {
	code = iban.Normalize(code)

	acc, err := s.Store.Accounts().GetAccountByIBAN(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, transferErr(KindNotFound, "account not found: %s", code)
		}
		return domain.Account{}, err
	}
	if !p.IsAdmin() && !acc.OwnedBy(p.Username) {
		return domain.Account{}, transferErr(KindForbidden, "access denied: account %s does not belong to you", code)
	}
	return acc, nil
}

// ListAccounts returns every account, newest first.
func (s *LedgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.Store.Accounts().ListAccounts(ctx)
}

// History returns the transactions of an account, newest first. Only the
// owner and administrators may read it.
func (s *LedgerService) History(ctx context.Context, code string, p Principal) ([]domain.Transaction, error) {
	acc, err := s.GetAccount(ctx, code, p)
	if err != nil {
		return nil, err
	}
	return s.Store.Transactions().ListTransactionsByIBAN(ctx, acc.IBAN())
}
