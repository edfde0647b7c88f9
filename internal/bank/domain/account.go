package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits an amount may carry.
const MoneyScale = 2

// MaxIntegerDigits bounds the digits before the decimal point of an amount.
const MaxIntegerDigits = 17

const (
	// Trailing zeros allowed beyond MoneyScale, as in "1.000".
	minExponent = -(MoneyScale + 16)

	maxCoefficientBits = 140
)

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount must not have more than two decimal places")
	ErrAmountOutOfRange  = errors.New("amount is out of range")
	ErrNegativeBalance   = errors.New("balance must not be negative")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Account is a value type. The balance can only change through Debit and
// Credit, both of which return a new Account and never produce a negative
// balance.
type Account struct {
	id        string
	iban      string
	ownerName string
	balance   decimal.Decimal
	createdAt time.Time
	updatedAt time.Time
}

// NewAccount opens an account with a non-negative opening balance.
func NewAccount(id, iban, ownerName string, opening decimal.Decimal, now time.Time) (Account, error) {
	if opening.IsNegative() {
		return Account{}, ErrNegativeBalance
	}
	if err := CheckPrecision(opening); err != nil {
		return Account{}, err
	}
	return Account{
		id:        id,
		iban:      iban,
		ownerName: ownerName,
		balance:   opening,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// RestoreAccount rebuilds an account from storage.
func RestoreAccount(
	id, iban, ownerName string,
	balance decimal.Decimal,
	createdAt, updatedAt time.Time,
) Account {
	return Account{
		id:        id,
		iban:      iban,
		ownerName: ownerName,
		balance:   balance,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (a Account) ID() string               { return a.id }
func (a Account) IBAN() string             { return a.iban }
func (a Account) OwnerName() string        { return a.ownerName }
func (a Account) Balance() decimal.Decimal { return a.balance }
func (a Account) CreatedAt() time.Time     { return a.createdAt }
func (a Account) UpdatedAt() time.Time     { return a.updatedAt }

// OwnedBy reports whether username owns the account.
func (a Account) OwnedBy(username string) bool {
	return username != "" && a.ownerName == username
}

// Debit returns the account with amount withdrawn.
func (a Account) Debit(amount decimal.Decimal, now time.Time) (Account, error) {
	if err := CheckAmount(amount); err != nil {
		return a, err
	}
	if a.balance.LessThan(amount) {
		return a, ErrInsufficientFunds
	}
	a.balance = a.balance.Sub(amount)
	a.updatedAt = now
	return a, nil
}

// Credit returns the account with amount deposited.
func (a Account) Credit(amount decimal.Decimal, now time.Time) (Account, error) {
	if err := CheckAmount(amount); err != nil {
		return a, err
	}
	a.balance = a.balance.Add(amount)
	a.updatedAt = now
	return a, nil
}

// CheckAmount validates a monetary amount used for a movement.
func CheckAmount(amount decimal.Decimal) error {
	if err := CheckRange(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return CheckPrecision(amount)
}

// CheckRange rejects amounts whose exponent or coefficient is too large to
// be money. It only inspects the representation, so it is cheap for any
// input; rescaling "1e-50000000" is not.
func CheckRange(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp < minExponent || exp > MaxIntegerDigits {
		return ErrAmountOutOfRange
	}

	coef := amount.Coefficient()
	if coef.BitLen() > maxCoefficientBits {
		return ErrAmountOutOfRange
	}
	if coef.Sign() != 0 && len(coef.Abs(coef).String())+int(exp) > MaxIntegerDigits {
		return ErrAmountOutOfRange
	}
	return nil
}

// CheckPrecision rejects amounts with more than MoneyScale fractional digits.
func CheckPrecision(amount decimal.Decimal) error {
	if err := CheckRange(amount); err != nil {
		return err
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}
