package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/domain"
)

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"whole", "250", nil},
		{"cents", "0.01", nil},
		{"trailing zeros", "1.000", nil},
		{"largest", "99999999999999999.99", nil},
		{"zero", "0", domain.ErrNonPositiveAmount},
		{"negative", "-1", domain.ErrNonPositiveAmount},
		{"sub cent", "0.001", domain.ErrAmountPrecision},
		{"too large", "100000000000000000", domain.ErrAmountOutOfRange},
		{"huge negative exponent", "1e-50000000", domain.ErrAmountOutOfRange},
		{"huge positive exponent", "1e2000000000", domain.ErrAmountOutOfRange},
		{"long coefficient", "0." + zeros(60) + "1", domain.ErrAmountOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.CheckAmount(decimal.RequireFromString(tc.in))
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCheckAmountHugeExponentIsFast(t *testing.T) {
	for _, in := range []string{"1e-50000000", "-1e-50000000", "1e2000000000", "5e-2000000000"} {
		start := time.Now()
		err := domain.CheckAmount(decimal.RequireFromString(in))
		require.ErrorIs(t, err, domain.ErrAmountOutOfRange, in)
		require.Less(t, time.Since(start), 100*time.Millisecond, in)
	}
}

func TestNewAccountRejectsOutOfRangeOpening(t *testing.T) {
	_, err := domain.NewAccount("id", "DE00", "alice", decimal.RequireFromString("1e-50000000"), time.Now())
	require.ErrorIs(t, err, domain.ErrAmountOutOfRange)

	acc, err := domain.NewAccount("id", "DE00", "alice", decimal.Zero, time.Now())
	require.NoError(t, err)
	require.True(t, acc.Balance().IsZero())
}

func TestDebitCredit(t *testing.T) {
	now := time.Now()
	acc, err := domain.NewAccount("id", "DE00", "alice", decimal.NewFromInt(100), now)
	require.NoError(t, err)

	acc, err = acc.Debit(decimal.RequireFromString("40.50"), now)
	require.NoError(t, err)
	require.Equal(t, "59.50", acc.Balance().StringFixed(2))

	_, err = acc.Debit(decimal.NewFromInt(60), now)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = acc.Credit(decimal.RequireFromString("1e2000000000"), now)
	require.ErrorIs(t, err, domain.ErrAmountOutOfRange)
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
