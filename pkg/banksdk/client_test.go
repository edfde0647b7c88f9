package banksdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewSDKClientTrimsSlash(t *testing.T) {
	t.Parallel()

	c := NewSDKClient("https://bank.example.com/")
	require.Equal(t, "https://bank.example.com/api/v1/system/ping", c.url("/api/v1/system/ping"))
}

func TestAPIErrorFromProblem(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"timestamp":"2025-01-01T12:00:00Z","status":429,"error":"Too Many Requests","message":"Too many login attempts"}`))
	}))
	defer srv.Close()

	_, err := NewSDKClient(srv.URL).Login(t.Context(), "alice", "password1")
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusTooManyRequests))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Too many login attempts", apiErr.Message)
	require.Equal(t, 12*time.Second, apiErr.RetryAfter)
}

func TestAPIErrorFromPlainBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSDKClient(srv.URL).Ping(t.Context())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, "upstream exploded", apiErr.Message)
}

func TestSessionRefreshesExpiredAccessToken(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer", ExpiresIn: 900,
		})
	})
	mux.HandleFunc("POST /api/v1/accounts/transfer", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TransactionResponse{
			SenderIBAN: req.FromIBAN, ReceiverIBAN: req.ToIBAN, Amount: req.Amount.StringFixed(2), Status: "SUCCESS",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// An expiry inside the refresh skew forces a refresh before the first call.
	s := NewSDKClient(srv.URL).NewSessionFromTokens("access-1", "refresh-1", 10)

	tx, err := s.Transfer(t.Context(), TransferRequest{
		FromIBAN: "DE89370400440532013000",
		ToIBAN:   "DE02120300000000202051",
		Amount:   decimal.RequireFromString("250"),
	})
	require.NoError(t, err)
	require.Equal(t, "250.00", tx.Amount)
	require.EqualValues(t, 1, refreshes.Load())
	require.Equal(t, "refresh-2", s.RefreshToken())

	// The fresh token is reused.
	_, err = s.Transfer(t.Context(), TransferRequest{
		FromIBAN: "DE89370400440532013000",
		ToIBAN:   "DE02120300000000202051",
		Amount:   decimal.RequireFromString("1"),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, refreshes.Load())
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/logout" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSDKClient(srv.URL).NewSessionFromTokens("access", "refresh", 900)
	require.NoError(t, s.Logout(t.Context()))
	require.Empty(t, s.AccessToken())

	_, err := s.ListAccounts(t.Context())
	require.ErrorIs(t, err, ErrLoggedOut)
}
