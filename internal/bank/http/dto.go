package http

import (
	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/banksdk"
)

func tokenResponse(p domain.TokenPair) banksdk.TokenResponse {
	return banksdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

func accountResponse(a domain.Account) banksdk.AccountResponse {
	return banksdk.AccountResponse{
		ID:        a.ID(),
		IBAN:      a.IBAN(),
		OwnerName: a.OwnerName(),
		Balance:   a.Balance().StringFixed(domain.MoneyScale),
		CreatedAt: a.CreatedAt(),
		UpdatedAt: a.UpdatedAt(),
	}
}

func transactionResponse(t domain.Transaction) banksdk.TransactionResponse {
	return banksdk.TransactionResponse{
		ID:           t.ID,
		SenderIBAN:   t.SenderIBAN,
		ReceiverIBAN: t.ReceiverIBAN,
		Amount:       t.Amount.StringFixed(domain.MoneyScale),
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
	}
}

func auditLogResponse(r domain.AuditRecord) banksdk.AuditLogResponse {
	return banksdk.AuditLogResponse{
		ID:        r.ID,
		EventID:   r.EventID,
		Username:  r.Username,
		Action:    r.Action,
		Details:   r.Details,
		ClientIP:  r.ClientIP,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

// mapSlice converts every element with fn; the result is never nil so it
// encodes as [] rather than null.
func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
