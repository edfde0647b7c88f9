package banksdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the SparkCore banking API. It provides the
// unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates a USER and returns a session for it.
func (c *SDKClient) Register(ctx context.Context, username, password string) (*Session, error) {
	tokens, err := c.postTokens(ctx, "/api/v1/auth/register", Credentials{Username: username, Password: password}, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// Login authenticates with username and password.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	tokens, err := c.postTokens(ctx, "/api/v1/auth/login", Credentials{Username: username, Password: password}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token stops working.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.postTokens(ctx, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, http.StatusOK)
}

// NewSessionFromTokens resumes a session from tokens obtained earlier.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}

// Ping calls the public GET /api/v1/system/ping.
func (c *SDKClient) Ping(ctx context.Context) (*PingResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/system/ping", "", nil)
	if err != nil {
		return nil, err
	}

	var pong PingResponse
	if err := decodeJSON(resp, &pong, http.StatusOK); err != nil {
		return nil, err
	}
	return &pong, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service and its dependencies are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *SDKClient) postTokens(ctx context.Context, path string, body any, expected int) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, expected); err != nil {
		return nil, err
	}
	return &tokens, nil
}
