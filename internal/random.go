package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	recordIDSize      = 16
	refreshSecretSize = 32
)

// NewRecordID returns a random base64url identifier for ledger records.
func NewRecordID() (string, error) {
	var id [recordIDSize]byte
	if _, err := rand.Read(id[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

// NewRefreshSecret returns the opaque bearer value handed to clients as a
// refresh token. Only its hash is ever stored.
func NewRefreshSecret() (string, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// ValidRefreshSecret reports whether s has the shape NewRefreshSecret
// produces. Ledgers use it to skip hashing obviously bogus input.
func ValidRefreshSecret(s string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(raw) == refreshSecretSize
}

// NewOTP returns a zero-padded numeric code drawn from crypto/rand.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// ValidOTP reports whether code is exactly digits ASCII digits.
func ValidOTP(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
