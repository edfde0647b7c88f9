// Package iban generates and validates German-style IBANs using the ISO 7064
// mod-97 checksum.
package iban

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode"
)

// CountryCode is the country prefix used for generated IBANs.
const CountryCode = "DE"

const (
	minLength = 15
	maxLength = 34
)

var (
	ErrInvalidInput          = errors.New("iban: invalid input")
	ErrInternalInconsistency = errors.New("iban: generated value failed validation")
)

var (
	bankCodePattern = regexp.MustCompile(`^\d{8}$`)
	seedPattern     = regexp.MustCompile(`^\d{1,10}$`)

	ninetySeven = big.NewInt(97)
)

// Generate builds an IBAN from an 8 digit bank code and a 1-10 digit account
// number. The account number is left padded with zeros to 10 digits.
func Generate(bankCode, accountSeed string) (string, error) {
	if !bankCodePattern.MatchString(bankCode) {
		return "", fmt.Errorf("%w: bank code must be exactly 8 digits", ErrInvalidInput)
	}
	if !seedPattern.MatchString(accountSeed) {
		return "", fmt.Errorf("%w: account number must be 1 to 10 digits", ErrInvalidInput)
	}

	bban := bankCode + strings.Repeat("0", 10-len(accountSeed)) + accountSeed

	// Country code in numeric form followed by the "00" placeholder.
	numeric, ok := toNumeric(bban + CountryCode + "00")
	if !ok {
		return "", fmt.Errorf("%w: non numeric bban", ErrInvalidInput)
	}

	check := 98 - mod97(numeric)
	out := fmt.Sprintf("%s%02d%s", CountryCode, check, bban)

	if !Validate(out) {
		return "", fmt.Errorf("%w: %s", ErrInternalInconsistency, out)
	}
	return out, nil
}

// Validate reports whether s is a structurally valid IBAN with a correct
// checksum. Whitespace is ignored and letters are case-insensitive.
func Validate(s string) bool {
	s = Normalize(s)
	if len(s) < minLength || len(s) > maxLength {
		return false
	}

	rearranged := s[4:] + s[:4]
	numeric, ok := toNumeric(rearranged)
	if !ok {
		return false
	}
	return mod97(numeric) == 1
}

// Normalize strips all whitespace and upper-cases the input.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// toNumeric replaces every letter with its two digit value (A=10 ... Z=35).
// It fails on anything that is not an ASCII letter or digit.
func toNumeric(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			fmt.Fprintf(&b, "%d", int(c-'A')+10)
		default:
			return "", false
		}
	}
	return b.String(), true
}

func mod97(numeric string) int {
	n, ok := new(big.Int).SetString(numeric, 10)
	if !ok {
		return -1
	}
	return int(new(big.Int).Mod(n, ninetySeven).Int64())
}
