package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/accesshub"
)

// Verifier checks a bearer access token. *accesshub.Engine satisfies it.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, token string) (accesshub.AuthResult, error)
}

type authResultContextKey struct{}

// AuthResultFromContext returns the verified token result stored by [Guard].
func AuthResultFromContext(ctx context.Context) (accesshub.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(accesshub.AuthResult)
	return res, ok
}

// UserIDFromContext returns the authenticated user id, or "" outside a
// guarded handler.
func UserIDFromContext(ctx context.Context) string {
	res, _ := AuthResultFromContext(ctx)
	return res.UserID
}

// Guard rejects requests without a valid bearer access token. A backend
// outage answers 503 so clients do not discard a token that may still be
// good.
func Guard(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := v.VerifyAccessToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, accesshub.ErrUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header of r.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
