package banksdk

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Auth
// ============================================================================

// Credentials is the body of POST /api/v1/auth/register and /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// ============================================================================
// Accounts
// ============================================================================

// CreateAccountRequest is the body of POST /api/v1/accounts (admin only).
type CreateAccountRequest struct {
	OwnerName      string          `json:"ownerName"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	IBAN      string    `json:"iban"`
	OwnerName string    `json:"ownerName"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransferRequest is the body of POST /api/v1/accounts/transfer. Amount
// accepts a JSON number or a quoted decimal.
type TransferRequest struct {
	FromIBAN string          `json:"fromIban"`
	ToIBAN   string          `json:"toIban"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	ID           string    `json:"id"`
	SenderIBAN   string    `json:"senderIban"`
	ReceiverIBAN string    `json:"receiverIban"`
	Amount       string    `json:"amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ============================================================================
// Audit
// ============================================================================

type AuditLogResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	ClientIP  string    `json:"clientIp"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ============================================================================
// System
// ============================================================================

type PingResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}
