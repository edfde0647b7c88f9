package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrRefreshNotFound    = errors.New("refresh token not found or already used")
	ErrRefreshExpired     = errors.New("refresh token expired")
	ErrForbidden          = errors.New("access denied")
	ErrAccountNotFound    = errors.New("account not found")
	ErrIBANExhausted      = errors.New("could not allocate a free iban")
)

// ValidationError reports malformed or missing input. Reason is safe to show
// to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransferErrorKind tags why a ledger operation was refused.
type TransferErrorKind string

const (
	KindInvalidAmount     TransferErrorKind = "INVALID_AMOUNT"
	KindSelfTransfer      TransferErrorKind = "SELF_TRANSFER"
	KindNotFound          TransferErrorKind = "NOT_FOUND"
	KindForbidden         TransferErrorKind = "FORBIDDEN"
	KindInsufficientFunds TransferErrorKind = "INSUFFICIENT_FUNDS"
)

// TransferError is the refusal of a ledger operation. Callers switch on Kind;
// errors.Is matches any TransferError of the same Kind.
type TransferError struct {
	Kind   TransferErrorKind
	Reason string
}

func (e *TransferError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return e.Reason
}

func (e *TransferError) Is(target error) bool {
	switch t := target.(type) {
	case *TransferError:
		return t.Kind == e.Kind
	}
	switch e.Kind {
	case KindNotFound:
		return target == ErrAccountNotFound
	case KindForbidden:
		return target == ErrForbidden
	}
	return false
}

func transferErr(kind TransferErrorKind, format string, args ...any) *TransferError {
	return &TransferError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
