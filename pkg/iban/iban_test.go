package iban_test

import (
	"fmt"
	"testing"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/iban"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("known values", func(t *testing.T) {
		got, err := iban.Generate("37040044", "532013000")
		require.NoError(t, err)
		require.Equal(t, "DE89370400440532013000", got)

		got, err = iban.Generate("10050000", "1234")
		require.NoError(t, err)
		require.Equal(t, "DE53100500000000001234", got)

		got, err = iban.Generate("10050000", "0")
		require.NoError(t, err)
		require.Equal(t, "DE03100500000000000000", got)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, seed := range []string{"1", "42", "999999", "1234567890", "0000000001"} {
			got, err := iban.Generate("10050000", seed)
			require.NoError(t, err)
			require.Len(t, got, 22)
			require.True(t, iban.Validate(got), got)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		cases := []struct {
			bank, seed string
		}{
			{"1005000", "1"},
			{"100500000", "1"},
			{"1005000a", "1"},
			{"10050000", ""},
			{"10050000", "12345678901"},
			{"10050000", "12a"},
		}
		for _, tc := range cases {
			_, err := iban.Generate(tc.bank, tc.seed)
			require.ErrorIs(t, err, iban.ErrInvalidInput, "%s/%s", tc.bank, tc.seed)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid", func(t *testing.T) {
		require.True(t, iban.Validate("DE89370400440532013000"))
		require.True(t, iban.Validate("de89 3704 0044 0532 0130 00"))
		require.True(t, iban.Validate("GB82WEST12345698765432"))
	})

	t.Run("rejects wrong checksum", func(t *testing.T) {
		require.False(t, iban.Validate("DE88370400440532013000"))
	})

	t.Run("any single digit change breaks the checksum", func(t *testing.T) {
		valid := "DE89370400440532013000"
		for i := 2; i < len(valid); i++ {
			for d := byte('0'); d <= '9'; d++ {
				if valid[i] == d {
					continue
				}
				mutated := valid[:i] + string(d) + valid[i+1:]
				require.False(t, iban.Validate(mutated), fmt.Sprintf("position %d digit %c", i, d))
			}
		}
	})

	t.Run("rejects bad length", func(t *testing.T) {
		require.False(t, iban.Validate("DE8937040044"))
		require.False(t, iban.Validate("DE89370400440532013000000000000000000"))
		require.False(t, iban.Validate(""))
	})

	t.Run("rejects non alphanumeric", func(t *testing.T) {
		require.False(t, iban.Validate("DE89-3704-0044-0532-0130-00"))
		require.False(t, iban.Validate("DE8937040044053201300!"))
	})
}
