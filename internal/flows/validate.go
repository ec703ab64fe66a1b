package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accesshub/internal/stores"
	"github.com/MrEthical07/accesshub/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureSignature
	ValidateFailureNoRecords
	ValidateFailureRevoked
	ValidateFailureBackend
)

// ValidateResult returns either the token owner or a classified failure.
type ValidateResult struct {
	Failure   ValidateFailureKind
	Err       error
	UserID    string
	ExpiresAt time.Time
}

// AccessVerifier is the subset of [stores.AccessLedger] the flows use.
type AccessVerifier interface {
	Verify(ctx context.Context, token string) (*stores.AccessIdentity, error)
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Ledger AccessVerifier
}

// RunValidate checks the token signature and its backing ledger record.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if token == "" {
		return ValidateResult{Failure: ValidateFailureSignature}
	}

	id, err := deps.Ledger.Verify(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return ValidateResult{Failure: ValidateFailureSignature, Err: err}
		case errors.Is(err, stores.ErrNotFound):
			return ValidateResult{Failure: ValidateFailureNoRecords, Err: err}
		case errors.Is(err, stores.ErrRevokedOrInvalid):
			return ValidateResult{Failure: ValidateFailureRevoked, Err: err}
		default:
			return ValidateResult{Failure: ValidateFailureBackend, Err: err}
		}
	}

	return ValidateResult{UserID: id.OwnerID, ExpiresAt: id.ExpiresAt}
}
