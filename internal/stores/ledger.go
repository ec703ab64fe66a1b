package stores

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound means no live record matched the presented secret.
	ErrNotFound = errors.New("record not found")
	// ErrExpired means the matching record is past its expiry.
	ErrExpired = errors.New("record expired")
	// ErrMismatch means the latest OTP record did not match the code.
	ErrMismatch = errors.New("code mismatch")
	// ErrInvalid is returned by refresh rotation when the presented token is
	// not an active record, including when a concurrent rotation won.
	ErrInvalid = errors.New("refresh token invalid")
	// ErrReused means a refresh secret that was already rotated away was
	// presented again.
	ErrReused = errors.New("refresh token reuse detected")
	// ErrRevokedOrInvalid means the owner has access records but none match
	// the token's identifier.
	ErrRevokedOrInvalid = errors.New("access token revoked or invalid")
	// ErrBackend wraps every Redis failure.
	ErrBackend = errors.New("ledger backend unavailable")
)

// Hasher is the subset of the secret hasher the ledgers need.
type Hasher interface {
	Hash(secret string) (string, error)
	Matches(candidate, encodedHash string) bool
}

// Options are shared by every ledger constructor.
type Options struct {
	// Prefix namespaces all keys. Defaults to "ah".
	Prefix string
	// Now overrides the ledger clock.
	Now func() time.Time
}

func (o Options) normalized() Options {
	o.Prefix = strings.TrimSpace(o.Prefix)
	if o.Prefix == "" {
		o.Prefix = "ah"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ownerTag wraps the owner id in a Redis Cluster hash tag so that every key
// touched by a single script lands in the same slot.
func ownerTag(ownerID string) string {
	return "{" + ownerID + "}"
}

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMs(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(n)
}

func backendErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBackend, err)
}
