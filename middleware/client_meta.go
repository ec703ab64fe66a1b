package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/accesshub"
)

// ClientMeta copies the caller's IP and User-Agent into the request context
// so engine calls pick them up for throttling, refresh metadata and audit.
//
// When trustProxy is set the first X-Forwarded-For hop wins over RemoteAddr.
func ClientMeta(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := accesshub.WithClientIP(r.Context(), clientIP(r, trustProxy))
			ctx = accesshub.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
