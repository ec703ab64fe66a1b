package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accesshub/internal/stores"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureValidate
	RefreshFailureRateLimited
	RefreshFailureInvalid
	RefreshFailureReuse
	RefreshFailureBackend
	RefreshFailureIssueAccess
)

// RefreshInput is the refresh request.
type RefreshInput struct {
	UserID       string
	RefreshToken string
	UserAgent    string
	IP           string
}

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Tokens  TokenPair
}

// RefreshRateLimiter bounds refresh calls per user.
type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, userID string) error
}

// RefreshLedger is the subset of [stores.RefreshLedger] the flows use.
type RefreshLedger interface {
	Issue(ctx context.Context, ownerID string, ttl time.Duration, meta stores.RefreshMeta) (string, error)
	Resolve(ctx context.Context, ownerID, raw string) (*stores.RefreshRecord, error)
	RotateRecord(ctx context.Context, rec *stores.RefreshRecord, ttl time.Duration, meta stores.RefreshMeta) (string, error)
	Revoke(ctx context.Context, ownerID, raw string) error
	RevokeAll(ctx context.Context, ownerID string) (int, error)
	History(ctx context.Context, ownerID string, limit int) ([]stores.RefreshRecord, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Ledger      RefreshLedger
	TTL         time.Duration
	RateLimiter RefreshRateLimiter
	IssueAccess func(ctx context.Context, userID string) (string, time.Time, error)
}

// RunRefresh rotates the presented refresh secret and issues a new access
// token. The access token is minted before rotation commits, so a failed
// issuance leaves the presented secret usable. The old secret stops working
// as soon as rotation commits.
func RunRefresh(ctx context.Context, in RefreshInput, deps RefreshDeps) RefreshResult {
	if in.UserID == "" || in.RefreshToken == "" {
		return RefreshResult{Failure: RefreshFailureValidate}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, in.UserID); err != nil {
			if isRateLimited(err) {
				return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, UserID: in.UserID}
			}
			return RefreshResult{Failure: RefreshFailureBackend, Err: err, UserID: in.UserID}
		}
	}

	rec, err := deps.Ledger.Resolve(ctx, in.UserID, in.RefreshToken)
	if err != nil {
		return rotateFailure(in.UserID, err)
	}

	access, expiresAt, err := deps.IssueAccess(ctx, in.UserID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, UserID: in.UserID}
	}

	next, err := deps.Ledger.RotateRecord(ctx, rec, deps.TTL, stores.RefreshMeta{
		UserAgent: in.UserAgent,
		IP:        in.IP,
	})
	if err != nil {
		return rotateFailure(in.UserID, err)
	}

	return RefreshResult{
		UserID: in.UserID,
		Tokens: TokenPair{
			AccessToken:     access,
			AccessExpiresAt: expiresAt,
			RefreshToken:    next,
		},
	}
}

func rotateFailure(userID string, err error) RefreshResult {
	switch {
	case errors.Is(err, stores.ErrReused):
		return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: userID}
	case errors.Is(err, stores.ErrInvalid):
		return RefreshResult{Failure: RefreshFailureInvalid, Err: err, UserID: userID}
	default:
		return RefreshResult{Failure: RefreshFailureBackend, Err: err, UserID: userID}
	}
}

// NewTokenIssuer composes access issuance and refresh issuance into a
// [TokenIssuer].
func NewTokenIssuer(
	issueAccess func(ctx context.Context, userID string) (string, time.Time, error),
	ledger RefreshLedger,
	refreshTTL time.Duration,
) TokenIssuer {
	return func(ctx context.Context, userID string, meta ClientMeta) (TokenPair, error) {
		access, expiresAt, err := issueAccess(ctx, userID)
		if err != nil {
			return TokenPair{}, err
		}
		refresh, err := ledger.Issue(ctx, userID, refreshTTL, stores.RefreshMeta{
			UserAgent: meta.UserAgent,
			IP:        meta.IP,
		})
		if err != nil {
			return TokenPair{}, err
		}
		return TokenPair{AccessToken: access, AccessExpiresAt: expiresAt, RefreshToken: refresh}, nil
	}
}
