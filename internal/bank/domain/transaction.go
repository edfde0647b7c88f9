package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Transaction records one transfer. It is never updated once written.
type Transaction struct {
	ID           string
	SenderIBAN   string
	ReceiverIBAN string
	Amount       decimal.Decimal
	Status       TransactionStatus
	CreatedAt    time.Time
}
