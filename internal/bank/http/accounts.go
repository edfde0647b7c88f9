package http

import (
	"net/http"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/service"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/banksdk"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
)

// AccountsHandler serves the /api/v1/accounts endpoints.
type AccountsHandler struct {
	Ledger *service.LedgerService
}

// HandleCreate handles POST /api/v1/accounts (admin).
func (h *AccountsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req banksdk.CreateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.Ledger.OpenAccount(r.Context(), req.OwnerName, req.InitialBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, accountResponse(acc))
}

// HandleList handles GET /api/v1/accounts (admin).
func (h *AccountsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accs, err := h.Ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapSlice(accs, accountResponse))
}

// HandleGet handles GET /api/v1/accounts/{iban}.
func (h *AccountsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	acc, err := h.Ledger.GetAccount(r.Context(), r.PathValue("iban"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(acc))
}

// HandleHistory handles GET /api/v1/accounts/{iban}/transactions.
func (h *AccountsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	txs, err := h.Ledger.History(r.Context(), r.PathValue("iban"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapSlice(txs, transactionResponse))
}

// HandleTransfer handles POST /api/v1/accounts/transfer.
func (h *AccountsHandler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req banksdk.TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := h.Ledger.Transfer(r.Context(), req.FromIBAN, req.ToIBAN, req.Amount, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, transactionResponse(txn))
}
