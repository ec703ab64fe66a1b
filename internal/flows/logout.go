package flows

import (
	"context"
	"errors"
)

// ErrMissingFields is returned by logout when the user id or refresh token
// is empty.
var ErrMissingFields = errors.New("missing required fields")

// AccessRevoker drops access records of an owner.
type AccessRevoker interface {
	Revoke(ctx context.Context, ownerID, token string) error
	RevokeAll(ctx context.Context, ownerID string) (int, error)
}

// LogoutInput is the logout request. AccessToken is optional; when set, the
// access record behind it is dropped together with the refresh record.
type LogoutInput struct {
	UserID       string
	RefreshToken string
	AccessToken  string
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Refresh RefreshLedger
	Access  AccessRevoker
	Warn    WarnFunc
}

// LogoutAllResult counts what a logout-everywhere revoked.
type LogoutAllResult struct {
	RefreshRevoked int
	AccessRevoked  int
}

// RunLogout revokes the refresh record matching the refresh token and, when
// given, the access record behind the access token. Unknown and already
// revoked tokens succeed; backend errors are logged and swallowed so logout
// never fails once the request is well formed.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) error {
	if in.UserID == "" || in.RefreshToken == "" {
		return ErrMissingFields
	}
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}
	if err := deps.Refresh.Revoke(ctx, in.UserID, in.RefreshToken); err != nil {
		deps.Warn(ctx, "accesshub: refresh revoke failed", "user_id", in.UserID, "error", err)
	}
	if in.AccessToken != "" && deps.Access != nil {
		if err := deps.Access.Revoke(ctx, in.UserID, in.AccessToken); err != nil {
			deps.Warn(ctx, "accesshub: access revoke failed", "user_id", in.UserID, "error", err)
		}
	}
	return nil
}

// RunLogoutAll revokes every refresh record and access record of userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (LogoutAllResult, error) {
	if userID == "" {
		return LogoutAllResult{}, ErrMissingFields
	}

	var out LogoutAllResult
	n, err := deps.Refresh.RevokeAll(ctx, userID)
	out.RefreshRevoked = n
	if err != nil {
		return out, err
	}

	if deps.Access != nil {
		n, err = deps.Access.RevokeAll(ctx, userID)
		out.AccessRevoked = n
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
