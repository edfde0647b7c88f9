package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/banksdk"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/iban"
)

const (
	testAdmin    = "root"
	testPassword = "root-password-123"
)

func startApp(t *testing.T) *banksdk.SDKClient {
	t.Helper()

	mr := miniredis.RunT(t)
	dir := t.TempDir()

	t.Setenv("JWT_SECRET", testSecret())
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("DATABASE_FILE", filepath.Join(dir, "bank.db"))
	t.Setenv("PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("ADMIN_USERNAME", testAdmin)
	t.Setenv("ADMIN_PASSWORD", testPassword)
	t.Setenv("AUDIT_CONSUMER", "test-consumer")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	application, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, application.Shutdown())
	})

	return banksdk.NewSDKClient(srv.URL)
}

func TestEndToEndTransferIsAudited(t *testing.T) {
	client := startApp(t)
	ctx := t.Context()

	admin, err := client.Login(ctx, testAdmin, testPassword)
	require.NoError(t, err)

	alice, err := client.Register(ctx, "alice", "alice-password")
	require.NoError(t, err)

	accA, err := admin.OpenAccount(ctx, banksdk.CreateAccountRequest{OwnerName: "alice", InitialBalance: decimal.RequireFromString("1000.00")})
	require.NoError(t, err)
	accB, err := admin.OpenAccount(ctx, banksdk.CreateAccountRequest{OwnerName: "bob", InitialBalance: decimal.RequireFromString("1.00")})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(accA.IBAN, "DE"))
	require.True(t, iban.Validate(accA.IBAN))
	require.Equal(t, "10050000", accA.IBAN[4:12])

	_, err = alice.Transfer(ctx, banksdk.TransferRequest{
		FromIBAN: accA.IBAN,
		ToIBAN:   accB.IBAN,
		Amount:   decimal.RequireFromString("250.00"),
	})
	require.NoError(t, err)

	a, err := alice.GetAccount(ctx, accA.IBAN)
	require.NoError(t, err)
	require.Equal(t, "750.00", a.Balance)
	b, err := admin.GetAccount(ctx, accB.IBAN)
	require.NoError(t, err)
	require.Equal(t, "251.00", b.Balance)

	// Events travel through the Redis stream into the audit table.
	var logs []banksdk.AuditLogResponse
	require.Eventually(t, func() bool {
		logs, err = admin.AuditLogs(ctx, 0)
		return err == nil && countAction(logs, "TRANSFER") == 1 && countAction(logs, "CREATE_ACCOUNT") == 2
	}, 10*time.Second, 50*time.Millisecond)

	for _, l := range logs {
		if l.Action == "TRANSFER" {
			require.Equal(t, "alice", l.Username)
			require.Equal(t, "SUCCESS", l.Status)
			require.Contains(t, l.Details, "amount=250.00")
			require.Equal(t, "127.0.0.1", l.ClientIP)
		}
	}
	require.Equal(t, 1, countAction(logs, "LOGIN_SUCCESS"))
}

func TestEndToEndLogout(t *testing.T) {
	client := startApp(t)
	ctx := t.Context()

	alice, err := client.Register(ctx, "alice", "alice-password")
	require.NoError(t, err)
	stale := client.NewSessionFromTokens(alice.AccessToken(), "", 900)

	require.NoError(t, alice.Logout(ctx))

	_, err = stale.GetAccount(ctx, "DE89370400440532013000")
	require.True(t, banksdk.IsStatus(err, 401))
}

func countAction(logs []banksdk.AuditLogResponse, action string) int {
	var n int
	for _, l := range logs {
		if l.Action == action {
			n++
		}
	}
	return n
}
