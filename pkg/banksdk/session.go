package banksdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// refreshSkew renews the access token this long before it expires.
const refreshSkew = 30 * time.Second

// ErrLoggedOut is returned by Session methods after Logout.
var ErrLoggedOut = errors.New("banksdk: session logged out")

// Session is an authenticated session with automatic token refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.store(tokens)
	return s
}

func (s *Session) store(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshSkew)
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// getValidToken returns a valid access token, refreshing it first if it is
// about to expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", ErrLoggedOut
	}

	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.store(tokens)
	return s.accessToken, nil
}

func (s *Session) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.doRequest(ctx, method, path, token, body)
}

// Logout revokes the access token and the refresh token on the server and
// clears them locally.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.mu.Unlock()
	return nil
}

// ============================================================================
// Accounts
// ============================================================================

// OpenAccount creates an account. Requires the ADMIN role.
func (s *Session) OpenAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	resp, err := s.do(ctx, http.MethodPost, "/api/v1/accounts", req)
	if err != nil {
		return nil, err
	}

	var acc AccountResponse
	if err := decodeJSON(resp, &acc, http.StatusCreated); err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListAccounts returns every account. Requires the ADMIN role.
func (s *Session) ListAccounts(ctx context.Context) ([]AccountResponse, error) {
	resp, err := s.do(ctx, http.MethodGet, "/api/v1/accounts", nil)
	if err != nil {
		return nil, err
	}

	var accs []AccountResponse
	if err := decodeJSON(resp, &accs, http.StatusOK); err != nil {
		return nil, err
	}
	return accs, nil
}

// GetAccount returns one account the caller owns (or any account for ADMIN).
func (s *Session) GetAccount(ctx context.Context, iban string) (*AccountResponse, error) {
	resp, err := s.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(iban), nil)
	if err != nil {
		return nil, err
	}

	var acc AccountResponse
	if err := decodeJSON(resp, &acc, http.StatusOK); err != nil {
		return nil, err
	}
	return &acc, nil
}

// History returns the transactions of an account, newest first.
func (s *Session) History(ctx context.Context, iban string) ([]TransactionResponse, error) {
	resp, err := s.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(iban)+"/transactions", nil)
	if err != nil {
		return nil, err
	}

	var txs []TransactionResponse
	if err := decodeJSON(resp, &txs, http.StatusOK); err != nil {
		return nil, err
	}
	return txs, nil
}

// Transfer moves money from an account the caller owns.
func (s *Session) Transfer(ctx context.Context, req TransferRequest) (*TransactionResponse, error) {
	resp, err := s.do(ctx, http.MethodPost, "/api/v1/accounts/transfer", req)
	if err != nil {
		return nil, err
	}

	var tx TransactionResponse
	if err := decodeJSON(resp, &tx, http.StatusOK); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ============================================================================
// Audit
// ============================================================================

// AuditLogs returns up to limit audit records, newest first. Zero uses the
// server default. Requires the ADMIN role.
func (s *Session) AuditLogs(ctx context.Context, limit int) ([]AuditLogResponse, error) {
	path := "/api/v1/audit-logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var logs []AuditLogResponse
	if err := decodeJSON(resp, &logs, http.StatusOK); err != nil {
		return nil, err
	}
	return logs, nil
}
